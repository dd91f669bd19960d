package bitfold

import (
	"errors"
	"fmt"

	"github.com/rawbytedev/bitfold/pkg/bitstream"
)

// Fold encodes instance with the schema bound to its Go type.
func (r *Registry) Fold(instance any) (bitstream.Bits, error) {
	s, err := r.schemaOf(instance)
	if err != nil {
		return bitstream.Bits{}, &FoldError{Schema: fmt.Sprintf("%T", instance), Err: err}
	}
	return s.Fold(instance)
}

// FoldAs encodes instance with the schema registered under name.
func (r *Registry) FoldAs(name string, instance any) (bitstream.Bits, error) {
	s, err := r.Lookup(name)
	if err != nil {
		return bitstream.Bits{}, &FoldError{Schema: name, Err: err}
	}
	return s.Fold(instance)
}

// Fold encodes instance with Default().
func Fold(instance any) (bitstream.Bits, error) { return global.Fold(instance) }

// Fold encodes instance, which must match the schema's binding. No
// bits are returned on error.
func (s *Schema) Fold(instance any) (bitstream.Bits, error) {
	values, err := s.flatten(s.name, "", instance, make([]any, 0, s.flatCount))
	if err != nil {
		return bitstream.Bits{}, err
	}
	b, err := bitstream.Pack(s.format, values)
	if err != nil {
		fe := &FoldError{Schema: s.name, Err: wrap(ErrEncode, err)}
		var ve *bitstream.ValueError
		if errors.As(err, &ve) && ve.Index < len(s.leaves) {
			fe.Field = s.leaves[ve.Index]
			fe.Atom = ve.Atom.String()
			fe.Value = ve.Value
		}
		return bitstream.Bits{}, fe
	}
	return b, nil
}

// flatten appends the primitive values of instance in format order.
func (s *Schema) flatten(root, prefix string, instance any, out []any) ([]any, error) {
	plain := s.creases.empty()
	for _, f := range s.fields {
		v, err := s.binding.get(instance, f.Name)
		if err != nil {
			return nil, &FoldError{Schema: root, Field: prefix + f.Name, Err: err}
		}
		if n := f.Kind.nested; n != nil {
			if out, err = n.flatten(root, prefix+f.Name+".", v, out); err != nil {
				return nil, err
			}
			continue
		}
		if !plain {
			if c, ok := s.creases.resolve(f.Name, f.Token); ok {
				if v, err = c.Fold(v); err != nil {
					return nil, &FoldError{Schema: root, Field: prefix + f.Name, Err: wrap(ErrEncode, err)}
				}
			}
		}
		out = append(out, v)
	}
	return out, nil
}
