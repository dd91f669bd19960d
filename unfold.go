package bitfold

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/rawbytedev/bitfold/pkg/bitstream"
)

// Unfold decodes b from its first bit. target selects the schema: a
// schema name, a *Schema of this registry, a reflect.Type, or a pointer
// to a registered type, which is repopulated in place and returned.
func (r *Registry) Unfold(target any, b bitstream.Bits) (any, error) {
	return r.UnfoldFrom(target, bitstream.NewReader(b))
}

// UnfoldFrom decodes the next record from rd and leaves rd positioned
// after it, so concatenated records can be read one after another. On
// error rd is not moved.
func (r *Registry) UnfoldFrom(target any, rd *bitstream.Reader) (any, error) {
	s, existing, err := r.resolveTarget(target)
	if err != nil {
		return nil, &UnfoldError{Schema: targetName(target), Err: err}
	}
	return s.unfold(existing, rd)
}

// UnfoldAll decodes records of one schema until rd is exhausted. Zero
// padding after the last record, as left by Bits.Bytes, is read as a
// further record and usually fails with bitstream.ErrUnderflow; trim
// the input to its bit length first.
func (r *Registry) UnfoldAll(target any, rd *bitstream.Reader) ([]any, error) {
	s, _, err := r.resolveTarget(target)
	if err != nil {
		return nil, &UnfoldError{Schema: targetName(target), Err: err}
	}
	var out []any
	for rd.Remaining() > 0 {
		v, err := s.unfold(nil, rd)
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Unfold decodes b with Default().
func Unfold(target any, b bitstream.Bits) (any, error) { return global.Unfold(target, b) }

// UnfoldAs decodes b into a new T using the schema bound to T.
func UnfoldAs[T any](r *Registry, b bitstream.Bits) (*T, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	s, err := r.LookupType(t)
	if err != nil {
		return nil, &UnfoldError{Schema: t.String(), Err: err}
	}
	v, err := s.unfold(nil, bitstream.NewReader(b))
	if err != nil {
		return nil, err
	}
	out, ok := v.(*T)
	if !ok {
		return nil, &UnfoldError{Schema: s.name, Err: fmt.Errorf("%w: factory built %T, want *%s", ErrDecode, v, t)}
	}
	return out, nil
}

func (r *Registry) resolveTarget(target any) (*Schema, any, error) {
	switch t := target.(type) {
	case string:
		s, err := r.Lookup(t)
		return s, nil, err
	case *Schema:
		if t == nil {
			break
		}
		if s, err := r.Lookup(t.name); err != nil || s != t {
			return nil, nil, fmt.Errorf("%w: schema %q belongs to registry %q", ErrUnknownSchema, t.name, t.registry)
		}
		return t, nil, nil
	case reflect.Type:
		s, err := r.LookupType(t)
		return s, nil, err
	case nil:
	default:
		s, err := r.LookupType(reflect.TypeOf(target))
		if err != nil {
			return nil, nil, err
		}
		if !s.binding.accepts(target) {
			return nil, nil, fmt.Errorf("%w: %T is not a pointer to %s", ErrUnknownSchema, target, s.name)
		}
		return s, target, nil
	}
	return nil, nil, fmt.Errorf("%w: no target given", ErrUnknownSchema)
}

func targetName(target any) string {
	switch t := target.(type) {
	case string:
		return t
	case *Schema:
		if t != nil {
			return t.name
		}
	case reflect.Type:
		return t.String()
	}
	return fmt.Sprintf("%T", target)
}

// Unfold decodes b into a new instance, or into existing when it is
// non-nil.
func (s *Schema) Unfold(existing any, b bitstream.Bits) (any, error) {
	if existing != nil && !s.binding.accepts(existing) {
		return nil, &UnfoldError{Schema: s.name, Err: fmt.Errorf("%w: cannot repopulate %T", ErrUnknownSchema, existing)}
	}
	return s.unfold(existing, bitstream.NewReader(b))
}

func (s *Schema) unfold(existing any, rd *bitstream.Reader) (any, error) {
	start := rd.Pos()
	flat, err := rd.ReadList(s.format)
	if err != nil {
		ue := &UnfoldError{Schema: s.name, Err: wrap(ErrDecode, err)}
		var ve *bitstream.ValueError
		if errors.As(err, &ve) && ve.Index < len(s.leaves) {
			ue.Field = s.leaves[ve.Index]
		}
		return nil, ue
	}
	v, _, err := s.build(s.name, "", existing, flat)
	if err != nil {
		_ = rd.Seek(start)
		return nil, err
	}
	return v, nil
}

// build consumes this schema's share of flat and returns the instance
// and the number of values used.
func (s *Schema) build(root, prefix string, existing any, flat []any) (any, int, error) {
	values := make(Values, len(s.fields))
	plain := s.creases.empty()
	pos := 0
	for _, f := range s.fields {
		if n := f.Kind.nested; n != nil {
			v, used, err := n.build(root, prefix+f.Name+".", nil, flat[pos:])
			if err != nil {
				return nil, 0, err
			}
			values[f.Name] = v
			pos += used
			continue
		}
		v := flat[pos]
		pos++
		if !plain {
			if c, ok := s.creases.resolve(f.Name, f.Token); ok {
				var err error
				if v, err = c.Unfold(v); err != nil {
					return nil, 0, &UnfoldError{Schema: root, Field: prefix + f.Name, Err: wrap(ErrDecode, err)}
				}
			}
		}
		values[f.Name] = v
	}
	inst, err := s.binding.build(existing, values, s.names)
	if err != nil {
		if !errors.Is(err, ErrMissingValue) && !errors.Is(err, ErrDecode) {
			err = wrap(ErrDecode, err)
		}
		return nil, 0, &UnfoldError{Schema: root, Field: strings.TrimSuffix(prefix, "."), Err: err}
	}
	return inst, pos, nil
}
