package bitfold

import (
	"fmt"
	"reflect"
)

// Record is a map-backed instance for schemas registered at runtime,
// for example from a layout document. Nested fields hold a Record too.
type Record map[string]any

// RegisterRecord compiles layout as a schema whose instances are
// Records. Record schemas are folded with FoldAs and are never found by
// Go type.
func (r *Registry) RegisterRecord(name, layout string, creases Creases) (*Schema, error) {
	return r.register(name, layout, creases, recordBinding{})
}

type recordBinding struct{}

func (recordBinding) goType() reflect.Type { return nil }

func (recordBinding) accepts(instance any) bool {
	switch v := instance.(type) {
	case *Record:
		return v != nil
	case Record:
		return v != nil
	}
	return false
}

func asRecord(instance any) (Record, bool) {
	switch v := instance.(type) {
	case Record:
		return v, v != nil
	case *Record:
		if v == nil {
			return nil, false
		}
		return *v, *v != nil
	case map[string]any:
		return v, v != nil
	}
	return nil, false
}

func (recordBinding) get(instance any, field string) (any, error) {
	rec, ok := asRecord(instance)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a record", ErrMissingAttribute, instance)
	}
	v, ok := rec[field]
	if !ok {
		return nil, fmt.Errorf("%w: record has no attribute %q", ErrMissingAttribute, field)
	}
	return v, nil
}

// build writes into existing only after every field was found.
func (recordBinding) build(existing any, values Values, order []string) (any, error) {
	for _, name := range order {
		if _, ok := values[name]; !ok {
			return nil, MissingValue(name)
		}
	}
	if p, ok := existing.(*Record); ok && p != nil {
		if *p == nil {
			*p = make(Record, len(order))
		}
		for _, name := range order {
			(*p)[name] = values[name]
		}
		return *p, nil
	}
	if rec, ok := existing.(Record); ok && rec != nil {
		for _, name := range order {
			rec[name] = values[name]
		}
		return rec, nil
	}
	out := make(Record, len(order))
	for _, name := range order {
		out[name] = values[name]
	}
	return out, nil
}
