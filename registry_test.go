package bitfold

import (
	"bytes"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/bitfold/pkg/atom"
)

type Address struct {
	HouseNumber int
}

type Person struct {
	Age     int
	Address Address
	Alive   bool
}

func addressFields() Fields[Address] {
	return Fields[Address]{
		"house_number": Bind(func(a *Address) *int { return &a.HouseNumber }),
	}
}

func personFields() Fields[Person] {
	return Fields[Person]{
		"age":     Bind(func(p *Person) *int { return &p.Age }),
		"address": Bind(func(p *Person) *Address { return &p.Address }),
		"alive":   Bind(func(p *Person) *bool { return &p.Alive }),
	}
}

func newPersonRegistry(t testing.TB, opts ...Options) *Registry {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	r := NewRegistry(t.Name(), o)
	_, err := Register(r, "Address", "house_number=uint:7", addressFields())
	require.NoError(t, err)
	_, err = Register(r, "Person", "age=uint:10, address=Address, alive=bool", personFields())
	require.NoError(t, err)
	return r
}

func TestRegisterNested(t *testing.T) {
	r := newPersonRegistry(t)
	s, err := r.Lookup("Person")
	require.NoError(t, err)

	assert.Equal(t, "Person", s.Name())
	assert.Equal(t, t.Name(), s.Registry())
	assert.Equal(t, 3, s.FlatCount())
	assert.Equal(t, 18, s.BitLen())
	assert.Equal(t, "uint:10, uint:7, bool", s.Format())
	assert.Equal(t, []string{"age", "address.house_number", "alive"}, s.Leaves())
	assert.Equal(t, "Person{age=uint:10, address=Address, alive=bool}", s.String())

	fields := s.Fields()
	require.Len(t, fields, 3)
	assert.False(t, fields[0].Kind.IsNested())
	assert.Equal(t, atom.Atom{Type: atom.Uint, Width: 10}, fields[0].Kind.Atom())
	require.True(t, fields[1].Kind.IsNested())
	assert.Equal(t, "Address", fields[1].Kind.Schema().Name())
	assert.Equal(t, "bool", fields[2].Token)
}

func TestRegisterVariableLength(t *testing.T) {
	r := NewRegistry("var", Options{})
	s, err := r.RegisterRecord("Rec", "a=ue, b=uint:3", nil)
	require.NoError(t, err)
	assert.Equal(t, -1, s.BitLen())
	assert.Equal(t, 2, s.FlatCount())
}

func TestRegisterErrors(t *testing.T) {
	counting := Crease{
		Fold:   func(v any) (any, error) { return v, nil },
		Unfold: func(v any) (any, error) { return v, nil },
	}
	cases := []struct {
		name    string
		schema  string
		layout  string
		creases Creases
		want    error
		token   string
	}{
		{"empty name", "", "a=bool", nil, ErrInvalidName, ""},
		{"padded name", " Rec", "a=bool", nil, ErrInvalidName, ""},
		{"duplicate", "Taken", "a=bool", nil, ErrDuplicateSchema, ""},
		{"empty layout", "Rec", "  ", nil, ErrEmptyLayout, ""},
		{"no equals", "Rec", "a=bool, b", nil, ErrInvalidAtom, "b"},
		{"empty field name", "Rec", "=bool", nil, ErrInvalidAtom, "=bool"},
		{"duplicate field", "Rec", "a=bool, a=uint:2", nil, ErrInvalidAtom, "a=uint:2"},
		{"bad atom", "Rec", "a=uint", nil, ErrInvalidAtom, "a=uint"},
		{"unknown schema", "Rec", "a=Missing", nil, ErrInvalidAtom, "a=Missing"},
		{"width on bool", "Rec", "a=bool:1", nil, ErrInvalidAtom, "a=bool:1"},
		{"two width-less", "Rec", "a=hex, b=bits", nil, ErrInvalidAtom, ""},
		{"width-less with ue", "Rec", "a=bin, b=ue", nil, ErrInvalidAtom, ""},
		{"crease without unfold", "Rec", "a=bool", Creases{"a": {Fold: counting.Fold}}, ErrInvalidCrease, "a"},
		{"crease without fold", "Rec", "a=bool", Creases{"bool": {Unfold: counting.Unfold}}, ErrInvalidCrease, "bool"},
		{"custom format missing", "Rec", "a=percent", Creases{"percent": counting}, ErrInvalidCrease, "a=percent"},
		{
			"custom format invalid", "Rec", "a=percent",
			Creases{"percent": {Fold: counting.Fold, Unfold: counting.Unfold, Format: "uint:99"}},
			ErrInvalidCrease, "a=percent",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := NewRegistry("errors", Options{})
			_, err := r.RegisterRecord("Taken", "x=bool", nil)
			require.NoError(t, err)

			_, err = r.RegisterRecord(c.schema, c.layout, c.creases)
			require.ErrorIs(t, err, c.want)
			var se *SchemaError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, "errors", se.Registry)
			assert.Equal(t, c.token, se.Token)
			assert.Len(t, r.Schemas(), 1)
		})
	}
}

func TestRegisterTypeTwice(t *testing.T) {
	r := newPersonRegistry(t)
	_, err := Register(r, "Other", "house_number=uint:8", addressFields())
	require.ErrorIs(t, err, ErrDuplicateSchema)
	assert.Contains(t, err.Error(), "Address")

	_, err = Register(r, "Person", "a=bool", Fields[struct{ A bool }]{})
	require.ErrorIs(t, err, ErrDuplicateSchema)
}

func TestMustRegisterPanics(t *testing.T) {
	r := NewRegistry("must", Options{})
	require.Panics(t, func() {
		MustRegister(r, "Address", "house_number=uint", addressFields())
	})
	require.NotPanics(t, func() {
		MustRegister(r, "Address", "house_number=uint:7", addressFields())
	})
}

func TestLookups(t *testing.T) {
	r := newPersonRegistry(t)

	s, err := r.LookupType(reflect.TypeOf((**Person)(nil)).Elem())
	require.NoError(t, err)
	assert.Equal(t, "Person", s.Name())
	s, err = r.LookupType(reflect.TypeOf((*Address)(nil)).Elem())
	require.NoError(t, err)
	assert.Equal(t, "Address", s.Name())

	_, err = r.Lookup("Nope")
	require.ErrorIs(t, err, ErrUnknownSchema)
	_, err = r.LookupType(reflect.TypeOf((*string)(nil)).Elem())
	require.ErrorIs(t, err, ErrUnknownSchema)

	var names []string
	for _, s := range r.Schemas() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"Address", "Person"}, names)
}

func TestIndependentRegistries(t *testing.T) {
	a := newPersonRegistry(t)
	b := NewRegistry("other", Options{})

	_, err := b.Lookup("Person")
	require.ErrorIs(t, err, ErrUnknownSchema)
	_, err = b.Fold(Person{})
	require.ErrorIs(t, err, ErrUnknownSchema)

	// Same type and name register fine in a second registry.
	_, err = Register(b, "Address", "house_number=uint:16", addressFields())
	require.NoError(t, err)
	sa, _ := a.Lookup("Address")
	sb, _ := b.Lookup("Address")
	assert.NotEqual(t, sa.Format(), sb.Format())

	// A schema from one registry is not usable as a target in another.
	_, err = b.Unfold(sa, mustFold(t, a, Address{HouseNumber: 1}))
	require.ErrorIs(t, err, ErrUnknownSchema)
}

func TestFingerprint(t *testing.T) {
	a := newPersonRegistry(t)
	b := newPersonRegistry(t)
	pa, _ := a.Lookup("Person")
	pb, _ := b.Lookup("Person")
	assert.Equal(t, pa.Fingerprint(), pb.Fingerprint())

	c := NewRegistry("c", Options{})
	pc, err := c.RegisterRecord("Person", "age=uint:10, house_number=uint:7, alive=bool", nil)
	require.NoError(t, err)
	assert.Equal(t, pa.Format(), pc.Format())
	assert.NotEqual(t, pa.Fingerprint(), pc.Fingerprint())
}

func TestRegistryLogs(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)
	r := newPersonRegistry(t, Options{Logger: &log})
	out := buf.String()
	assert.Contains(t, out, `"schema":"Person"`)
	assert.Contains(t, out, `"flat_count":3`)
	assert.Contains(t, out, `"registry":"`+r.Name()+`"`)

	buf.Reset()
	_, err := r.RegisterRecord("Person", "a=bool", nil)
	require.Error(t, err)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestConcurrentRegister(t *testing.T) {
	r := NewRegistry("concurrent", Options{})
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.RegisterRecord(fmt.Sprintf("Rec%d", i), "a=uint:8, b=bool", nil)
			assert.NoError(t, err)
			_, _ = r.Lookup("Rec0")
		}(i)
	}
	wg.Wait()
	assert.Len(t, r.Schemas(), 32)
}

func TestDefaultRegistry(t *testing.T) {
	assert.Equal(t, "global", Default().Name())
	assert.Same(t, Default(), Default())
}
