package bitfold

import (
	"fmt"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/rawbytedev/bitfold/pkg/atom"
)

// FieldKind is either a primitive atom or a nested schema.
type FieldKind struct {
	atom   atom.Atom
	nested *Schema
}

func Primitive(a atom.Atom) FieldKind { return FieldKind{atom: a} }

func Nested(s *Schema) FieldKind { return FieldKind{nested: s} }

func (k FieldKind) IsNested() bool { return k.nested != nil }

// Atom returns the primitive atom; it is the zero Atom for nested fields.
func (k FieldKind) Atom() atom.Atom { return k.atom }

// Schema returns the nested schema or nil.
func (k FieldKind) Schema() *Schema { return k.nested }

func (k FieldKind) String() string {
	if k.nested != nil {
		return k.nested.name
	}
	return k.atom.String()
}

// FieldSpec is one named field of a layout. Token is the format as it
// was written in the layout, which is what format-keyed creases match.
type FieldSpec struct {
	Name  string
	Token string
	Kind  FieldKind
}

// Schema is the compiled, immutable layout of one record type.
type Schema struct {
	name        string
	registry    string
	fields      []FieldSpec
	names       []string
	format      atom.Format
	leaves      []string
	flatCount   int
	fingerprint [32]byte
	creases     creaseTable
	binding     binding
}

func (s *Schema) Name() string { return s.name }

// Registry returns the name of the registry that compiled s.
func (s *Schema) Registry() string { return s.registry }

func (s *Schema) Fields() []FieldSpec {
	out := make([]FieldSpec, len(s.fields))
	copy(out, s.fields)
	return out
}

// Format returns the fully expanded primitive format.
func (s *Schema) Format() string { return s.format.String() }

// Atoms returns the fully expanded primitive format, one atom per leaf.
func (s *Schema) Atoms() atom.Format {
	out := make(atom.Format, len(s.format))
	copy(out, s.format)
	return out
}

// Leaves returns the dotted path of every primitive leaf, in format order.
func (s *Schema) Leaves() []string {
	out := make([]string, len(s.leaves))
	copy(out, s.leaves)
	return out
}

// FlatCount is the number of primitive atoms after nested expansion.
func (s *Schema) FlatCount() int { return s.flatCount }

// BitLen is the encoded length in bits, or -1 when the layout holds a
// variable-length or width-less atom.
func (s *Schema) BitLen() int { return s.format.BitLen() }

// Fingerprint identifies the compiled layout: schema name, leaf paths
// and expanded format.
func (s *Schema) Fingerprint() [32]byte { return s.fingerprint }

func (s *Schema) String() string {
	parts := make([]string, len(s.fields))
	for i, f := range s.fields {
		parts[i] = f.Name + "=" + f.Kind.String()
	}
	return fmt.Sprintf("%s{%s}", s.name, strings.Join(parts, ", "))
}

var fingerprintKey = [32]byte{
	'b', 'i', 't', 'f', 'o', 'l', 'd', '.', 's', 'c', 'h', 'e', 'm', 'a',
}

func (s *Schema) computeFingerprint() error {
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		return err
	}
	hasher.Write([]byte(s.name))
	for i, leaf := range s.leaves {
		hasher.Write([]byte{0})
		hasher.Write([]byte(leaf))
		hasher.Write([]byte{'='})
		hasher.Write([]byte(s.format[i].String()))
	}
	copy(s.fingerprint[:], hasher.Sum(nil))
	return nil
}

// compile expands fields into the flat format, leaf paths and count.
func (s *Schema) compile() {
	for _, f := range s.fields {
		s.names = append(s.names, f.Name)
		if n := f.Kind.nested; n != nil {
			s.format = append(s.format, n.format...)
			for _, leaf := range n.leaves {
				s.leaves = append(s.leaves, f.Name+"."+leaf)
			}
			s.flatCount += n.flatCount
			continue
		}
		s.format = append(s.format, f.Kind.atom)
		s.leaves = append(s.leaves, f.Name)
		s.flatCount++
	}
}

// parseLayout splits "name=atom, name=atom" into trimmed pairs.
func parseLayout(layout string) ([][2]string, *SchemaError) {
	if strings.TrimSpace(layout) == "" {
		return nil, &SchemaError{Err: ErrEmptyLayout}
	}
	items := strings.Split(layout, ",")
	pairs := make([][2]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		name, token, ok := strings.Cut(item, "=")
		name, token = strings.TrimSpace(name), strings.TrimSpace(token)
		if !ok || name == "" || token == "" {
			return nil, &SchemaError{Token: item, Err: fmt.Errorf("%w: expected name=format", ErrInvalidAtom)}
		}
		if seen[name] {
			return nil, &SchemaError{Token: item, Err: fmt.Errorf("%w: duplicate field %q", ErrInvalidAtom, name)}
		}
		seen[name] = true
		pairs = append(pairs, [2]string{name, token})
	}
	return pairs, nil
}
