// Package bitfold maps Go values onto tightly packed bit sequences.
//
// A schema is declared with a layout such as
//
//	"age=uint:10, address=Address, alive=bool"
//
// where every field is either a bit-level atom (see package atom) or
// the name of a schema registered earlier in the same Registry. Fold
// turns an instance into a bitstream.Bits whose length is exactly the
// sum of the atom widths; Unfold reads it back and builds the instance
// through the schema's factory. Creases transform single fields on the
// way in and out.
package bitfold

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rawbytedev/bitfold/pkg/atom"
)

// Options configures a Registry.
type Options struct {
	// Logger receives registration events. nil disables logging.
	Logger *zerolog.Logger
}

// Registry is a named collection of compiled schemas. Schemas are only
// visible to the registry they were registered in.
type Registry struct {
	name string
	log  zerolog.Logger

	mu     sync.RWMutex
	order  []*Schema
	byName map[string]*Schema
	byType map[reflect.Type]*Schema
	byFP   map[[32]byte]*Schema
}

func NewRegistry(name string, opts Options) *Registry {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Registry{
		name:   name,
		log:    log.With().Str("registry", name).Logger(),
		byName: make(map[string]*Schema),
		byType: make(map[reflect.Type]*Schema),
		byFP:   make(map[[32]byte]*Schema),
	}
}

var global = NewRegistry("global", Options{})

// Default returns the process-wide registry used by the package-level
// Fold and Unfold.
func Default() *Registry { return global }

func (r *Registry) Name() string { return r.name }

// Lookup returns the schema registered under name.
func (r *Registry) Lookup(name string) (*Schema, error) {
	r.mu.RLock()
	s, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q in registry %q", ErrUnknownSchema, name, r.name)
	}
	return s, nil
}

// LookupType returns the schema bound to t. Pointer types resolve to
// their element type.
func (r *Registry) LookupType(t reflect.Type) (*Schema, error) {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	r.mu.RLock()
	s, ok := r.byType[t]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: type %v in registry %q", ErrUnknownSchema, t, r.name)
	}
	return s, nil
}

// LookupFingerprint returns the schema whose Fingerprint is fp.
func (r *Registry) LookupFingerprint(fp [32]byte) (*Schema, error) {
	r.mu.RLock()
	s, ok := r.byFP[fp]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: fingerprint %x in registry %q", ErrUnknownSchema, fp[:8], r.name)
	}
	return s, nil
}

// Schemas returns every schema in registration order.
func (r *Registry) Schemas() []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Schema, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) register(name, layout string, creases Creases, b binding) (*Schema, error) {
	s, err := r.compile(name, layout, creases, b)
	if err != nil {
		r.log.Warn().Err(err).Str("schema", name).Msg("register failed")
		return nil, err
	}
	r.log.Debug().
		Str("schema", s.name).
		Str("format", s.Format()).
		Int("flat_count", s.flatCount).
		Int("bit_len", s.BitLen()).
		Msg("registered")
	return s, nil
}

func (r *Registry) compile(name, layout string, creases Creases, b binding) (*Schema, error) {
	fail := func(token string, err error) error {
		return &SchemaError{Registry: r.name, Schema: name, Token: token, Err: err}
	}
	if strings.TrimSpace(name) != name || name == "" || strings.ContainsAny(name, ",=") {
		return nil, fail("", ErrInvalidName)
	}
	if key, err := creases.validate(); err != nil {
		return nil, fail(key, err)
	}
	pairs, perr := parseLayout(layout)
	if perr != nil {
		return nil, fail(perr.Token, perr.Err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; ok {
		return nil, fail("", ErrDuplicateSchema)
	}
	t := b.goType()
	if t != nil {
		if prev, ok := r.byType[t]; ok {
			return nil, fail(t.String(), fmt.Errorf("%w: type already bound to %q", ErrDuplicateSchema, prev.name))
		}
	}

	s := &Schema{
		name:     name,
		registry: r.name,
		fields:   make([]FieldSpec, 0, len(pairs)),
		binding:  b,
		creases:  creaseTable{byName: map[string]Crease{}, byFormat: map[string]Crease{}},
	}
	names := make(map[string]bool, len(pairs))
	tokens := make(map[string]bool, len(pairs))
	for _, p := range pairs {
		field, token := p[0], p[1]
		kind, err := r.resolveKind(token, creases)
		if err != nil {
			return nil, fail(field+"="+token, err)
		}
		if !kind.IsNested() {
			names[field] = true
			tokens[token] = true
		}
		s.fields = append(s.fields, FieldSpec{Name: field, Token: token, Kind: kind})
	}
	// A key may be both a field name and another field's token.
	for key, c := range creases {
		if names[key] {
			s.creases.byName[key] = c
		}
		if tokens[key] {
			s.creases.byFormat[key] = c
		}
	}
	s.compile()
	if err := checkStretch(s.format); err != nil {
		return nil, fail("", err)
	}
	if err := s.computeFingerprint(); err != nil {
		return nil, fail("", err)
	}

	r.order = append(r.order, s)
	r.byName[name] = s
	r.byFP[s.fingerprint] = s
	if t != nil {
		r.byType[t] = s
	}
	return s, nil
}

// resolveKind tries, in order, a schema of this registry, an atom and
// a custom-format crease. Callers hold r.mu.
func (r *Registry) resolveKind(token string, creases Creases) (FieldKind, error) {
	if nested, ok := r.byName[token]; ok {
		return Nested(nested), nil
	}
	a, atomErr := atom.Parse(token)
	if atomErr == nil {
		return Primitive(a), nil
	}
	custom, found, err := creases.customFormat(token)
	if found {
		if err != nil {
			return FieldKind{}, err
		}
		return Primitive(custom), nil
	}
	return FieldKind{}, wrap(ErrInvalidAtom, atomErr)
}

// checkStretch rejects formats a reader could not split: a width-less
// hex, oct, bin or bits atom takes the remaining stream, which only
// works when it is the only atom without a known width.
func checkStretch(f atom.Format) error {
	stretchy, variable := 0, false
	for _, a := range f {
		switch {
		case a.IsVariable():
			variable = true
		case !a.Fixed():
			stretchy++
		}
	}
	if stretchy > 1 || stretchy == 1 && variable {
		return fmt.Errorf("%w: more than one field without a known width", ErrInvalidAtom)
	}
	return nil
}
