package bitfold

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/rawbytedev/bitfold/internal/common"
	"github.com/rawbytedev/bitfold/pkg/bitstream"
)

// Values holds the decoded value of every top-level field of a schema,
// keyed by field name. Nested fields hold the already built instance.
type Values map[string]any

// Field reads and writes one layout field of a T.
type Field[T any] struct {
	Get func(*T) any
	Set func(*T, any) error
}

// Fields maps layout field names to their accessors.
type Fields[T any] map[string]Field[T]

// Bind builds a Field from a pointer to a struct field. Decoded values
// are converted to V with range checks: a uint64 decoded from "uint:10"
// lands in an int field, a value that does not fit is rejected.
func Bind[T, V any](ptr func(*T) *V) Field[T] {
	return Field[T]{
		Get: func(t *T) any { return *ptr(t) },
		Set: func(t *T, v any) error {
			x, err := assign[V](v)
			if err != nil {
				return err
			}
			*ptr(t) = x
			return nil
		},
	}
}

// Factory builds or repopulates a T from decoded values. existing is
// nil unless the caller unfolds into an instance.
type Factory[T any] func(existing *T, values Values) (*T, error)

type registerConfig[T any] struct {
	creases Creases
	factory Factory[T]
}

type RegisterOption[T any] func(*registerConfig[T])

func WithCreases[T any](cs Creases) RegisterOption[T] {
	return func(c *registerConfig[T]) { c.creases = cs }
}

// WithFactory replaces the default factory, which calls every setter.
func WithFactory[T any](f Factory[T]) RegisterOption[T] {
	return func(c *registerConfig[T]) { c.factory = f }
}

// binding connects a schema to the values it folds and unfolds.
type binding interface {
	goType() reflect.Type
	// accepts reports whether instance is a repopulation target.
	accepts(instance any) bool
	get(instance any, field string) (any, error)
	build(existing any, values Values, order []string) (any, error)
}

// Register compiles layout as the schema name for T. fields must cover
// every field of the layout for Fold to succeed; setters are only
// needed by the default factory.
func Register[T any](r *Registry, name, layout string, fields Fields[T], opts ...RegisterOption[T]) (*Schema, error) {
	var cfg registerConfig[T]
	for _, opt := range opts {
		opt(&cfg)
	}
	return r.register(name, layout, cfg.creases, &typedBinding[T]{fields: fields, factory: cfg.factory})
}

// MustRegister is Register that panics on error, for package-level
// schema declarations.
func MustRegister[T any](r *Registry, name, layout string, fields Fields[T], opts ...RegisterOption[T]) *Schema {
	s, err := Register(r, name, layout, fields, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

type typedBinding[T any] struct {
	fields  Fields[T]
	factory Factory[T]
}

func (b *typedBinding[T]) goType() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

func (b *typedBinding[T]) accepts(instance any) bool {
	p, ok := instance.(*T)
	return ok && p != nil
}

func (b *typedBinding[T]) get(instance any, field string) (any, error) {
	var p *T
	switch v := instance.(type) {
	case *T:
		p = v
	case T:
		p = &v
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %T is not a %s", ErrMissingAttribute, instance, b.goType())
	}
	f, ok := b.fields[field]
	if !ok || f.Get == nil {
		return nil, fmt.Errorf("%w: %s has no attribute %q", ErrMissingAttribute, b.goType(), field)
	}
	return f.Get(p), nil
}

func (b *typedBinding[T]) build(existing any, values Values, order []string) (any, error) {
	dst, _ := existing.(*T)
	if b.factory == nil {
		return b.setAll(dst, values, order)
	}
	out, err := b.factory(dst, values)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("%w: factory for %s returned nil", ErrDecode, b.goType())
	}
	return out, nil
}

// setAll fills a copy so that dst is untouched when a setter fails.
func (b *typedBinding[T]) setAll(dst *T, values Values, order []string) (*T, error) {
	var tmp T
	if dst != nil {
		tmp = *dst
	}
	for _, name := range order {
		v, ok := values[name]
		if !ok {
			return nil, MissingValue(name)
		}
		f := b.fields[name]
		if f.Set == nil {
			return nil, fmt.Errorf("%w: %s has no setter for %q", ErrDecode, b.goType(), name)
		}
		if err := f.Set(&tmp, v); err != nil {
			return nil, fmt.Errorf("%w: set %q: %w", ErrDecode, name, err)
		}
	}
	if dst == nil {
		return &tmp, nil
	}
	*dst = tmp
	return dst, nil
}

// assign converts a decoded value to V.
func assign[V any](v any) (V, error) {
	var out V
	switch x := v.(type) {
	case V:
		return x, nil
	case *V:
		if x != nil {
			return *x, nil
		}
	}
	var err error
	switch p := any(&out).(type) {
	case *int:
		*p, err = signed[int](v)
	case *int8:
		*p, err = signed[int8](v)
	case *int16:
		*p, err = signed[int16](v)
	case *int32:
		*p, err = signed[int32](v)
	case *int64:
		*p, err = signed[int64](v)
	case *uint:
		*p, err = unsigned[uint](v)
	case *uint8:
		*p, err = unsigned[uint8](v)
	case *uint16:
		*p, err = unsigned[uint16](v)
	case *uint32:
		*p, err = unsigned[uint32](v)
	case *uint64:
		*p, err = unsigned[uint64](v)
	case *float32:
		var f float64
		f, err = common.ToFloat64(v)
		*p = float32(f)
	case *float64:
		*p, err = common.ToFloat64(v)
	case *bool:
		b, ok := v.(bool)
		if !ok {
			err = fmt.Errorf("%w: %T is not a bool", bitstream.ErrValueType, v)
		}
		*p = b
	case *string:
		switch s := v.(type) {
		case string:
			*p = s
		case fmt.Stringer:
			*p = s.String()
		default:
			err = fmt.Errorf("%w: %T is not a string", bitstream.ErrValueType, v)
		}
	default:
		err = fmt.Errorf("%w: cannot assign %T to %T", bitstream.ErrValueType, v, out)
	}
	if err != nil {
		var zero V
		return zero, err
	}
	return out, nil
}

func signed[I int | int8 | int16 | int32 | int64](v any) (I, error) {
	n, err := common.IntegralInt64(v)
	if err != nil {
		return 0, numberErr(err)
	}
	if int64(I(n)) != n {
		return 0, fmt.Errorf("%w: %d does not fit %T", bitstream.ErrRange, n, I(0))
	}
	return I(n), nil
}

func unsigned[U uint | uint8 | uint16 | uint32 | uint64](v any) (U, error) {
	n, err := common.ToUint64(v)
	if err != nil {
		return 0, numberErr(err)
	}
	if uint64(U(n)) != n {
		return 0, fmt.Errorf("%w: %d does not fit %T", bitstream.ErrRange, n, U(0))
	}
	return U(n), nil
}

func numberErr(err error) error {
	if errors.Is(err, common.ErrNegative) || errors.Is(err, common.ErrOverflow) {
		return fmt.Errorf("%w: %w", bitstream.ErrRange, err)
	}
	return fmt.Errorf("%w: %w", bitstream.ErrValueType, err)
}
