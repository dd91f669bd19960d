package bitfold

import (
	"errors"
	"fmt"
)

var (
	// Registration.
	ErrInvalidName     = errors.New("invalid schema name")
	ErrDuplicateSchema = errors.New("schema already registered")
	ErrEmptyLayout     = errors.New("layout has no fields")
	ErrInvalidAtom     = errors.New("invalid field format")
	ErrInvalidCrease   = errors.New("invalid crease")

	// Lookup.
	ErrUnknownSchema = errors.New("unknown schema")

	// Fold.
	ErrMissingAttribute = errors.New("missing attribute")
	ErrEncode           = errors.New("encode failed")

	// Unfold.
	ErrDecode         = errors.New("decode failed")
	ErrMissingValue   = errors.New("missing value")
	ErrSchemaMismatch = errors.New("frame was folded with a different schema")
)

// SchemaError is returned by registration. Token is the offending
// field pair, atom or crease key when there is one.
type SchemaError struct {
	Registry string
	Schema   string
	Token    string
	Err      error
}

func (e *SchemaError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("bitfold: register %q in %q: %v", e.Schema, e.Registry, e.Err)
	}
	return fmt.Sprintf("bitfold: register %q in %q: %q: %v", e.Schema, e.Registry, e.Token, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// FoldError is returned by Fold. Field is the dotted path of the leaf
// or attribute that failed; Atom and Value are set for codec failures.
type FoldError struct {
	Schema string
	Field  string
	Atom   string
	Value  any
	Err    error
}

func (e *FoldError) Error() string {
	switch {
	case e.Field == "":
		return fmt.Sprintf("bitfold: fold %s: %v", e.Schema, e.Err)
	case e.Atom == "":
		return fmt.Sprintf("bitfold: fold %s.%s: %v", e.Schema, e.Field, e.Err)
	}
	return fmt.Sprintf("bitfold: fold %s.%s (%s = %v): %v", e.Schema, e.Field, e.Atom, e.Value, e.Err)
}

func (e *FoldError) Unwrap() error { return e.Err }

// UnfoldError is returned by Unfold.
type UnfoldError struct {
	Schema string
	Field  string
	Err    error
}

func (e *UnfoldError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("bitfold: unfold %s: %v", e.Schema, e.Err)
	}
	return fmt.Sprintf("bitfold: unfold %s.%s: %v", e.Schema, e.Field, e.Err)
}

func (e *UnfoldError) Unwrap() error { return e.Err }

// MissingValue is the error a factory returns when values lacks field.
func MissingValue(field string) error {
	return fmt.Errorf("%w for attribute %q", ErrMissingValue, field)
}

func wrap(kind, cause error) error {
	return fmt.Errorf("%w: %w", kind, cause)
}
