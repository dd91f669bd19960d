package bitfold

import (
	"fmt"
	"reflect"

	"github.com/rawbytedev/bitfold/pkg/frame"
)

// Seal folds instance and wraps the bits in a frame stamped with the
// schema fingerprint.
func (r *Registry) Seal(instance any, c frame.Compression) ([]byte, error) {
	s, err := r.schemaOf(instance)
	if err != nil {
		return nil, &FoldError{Schema: fmt.Sprintf("%T", instance), Err: err}
	}
	return s.Seal(instance, c)
}

func (s *Schema) Seal(instance any, c frame.Compression) ([]byte, error) {
	b, err := s.Fold(instance)
	if err != nil {
		return nil, err
	}
	data, err := frame.Encode(s.fingerprint, b, c)
	if err != nil {
		return nil, &FoldError{Schema: s.name, Err: wrap(ErrEncode, err)}
	}
	return data, nil
}

// Open verifies a sealed frame and unfolds it. A nil target picks the
// schema by fingerprint; otherwise target is resolved as in Unfold and
// must match the fingerprint.
func (r *Registry) Open(target any, data []byte) (any, error) {
	f, err := frame.Decode(data)
	if err != nil {
		return nil, &UnfoldError{Schema: targetName(target), Err: wrap(ErrDecode, err)}
	}
	if target == nil {
		s, err := r.LookupFingerprint(f.Fingerprint)
		if err != nil {
			return nil, &UnfoldError{Schema: "?", Err: err}
		}
		return s.Unfold(nil, f.Bits)
	}
	s, existing, err := r.resolveTarget(target)
	if err != nil {
		return nil, &UnfoldError{Schema: targetName(target), Err: err}
	}
	if s.fingerprint != f.Fingerprint {
		return nil, &UnfoldError{Schema: s.name, Err: ErrSchemaMismatch}
	}
	return s.Unfold(existing, f.Bits)
}

func (r *Registry) schemaOf(instance any) (*Schema, error) {
	if _, ok := asRecord(instance); ok {
		return nil, fmt.Errorf("%w: records need their schema named", ErrUnknownSchema)
	}
	return r.LookupType(reflect.TypeOf(instance))
}
