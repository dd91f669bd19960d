package bitfold

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/bitfold/pkg/bitstream"
)

func mustFold(t testing.TB, r *Registry, instance any) bitstream.Bits {
	b, err := r.Fold(instance)
	require.NoError(t, err)
	return b
}

func bin(t testing.TB, s string) bitstream.Bits {
	b, err := bitstream.FromBinary(s)
	require.NoError(t, err)
	return b
}

func TestFoldPerson(t *testing.T) {
	r := newPersonRegistry(t)
	p := Person{Age: 20, Address: Address{HouseNumber: 3}, Alive: true}

	b := mustFold(t, r, p)
	assert.Equal(t, 18, b.Len())
	want := bin(t, "0000010100_0000011_1")
	assert.True(t, want.Equal(b), "got %s", b)

	// Pointers fold the same way.
	assert.True(t, b.Equal(mustFold(t, r, &p)))

	byName, err := r.FoldAs("Person", p)
	require.NoError(t, err)
	assert.True(t, b.Equal(byName))
}

func TestFoldOverflow(t *testing.T) {
	r := NewRegistry("overflow", Options{})
	_, err := r.RegisterRecord("Byte", "b=uint:8", nil)
	require.NoError(t, err)

	b, err := r.FoldAs("Byte", Record{"b": 255})
	require.NoError(t, err)
	assert.Equal(t, 8, b.Len())

	_, err = r.FoldAs("Byte", Record{"b": 256})
	require.ErrorIs(t, err, ErrEncode)
	require.ErrorIs(t, err, bitstream.ErrRange)
	var fe *FoldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Byte", fe.Schema)
	assert.Equal(t, "b", fe.Field)
	assert.Equal(t, "uint:8", fe.Atom)
	assert.Equal(t, 256, fe.Value)

	_, err = r.FoldAs("Byte", Record{"b": "NotANumber"})
	require.ErrorIs(t, err, ErrEncode)
	require.ErrorIs(t, err, bitstream.ErrValueType)
}

func TestFoldNestedOverflowNamesLeaf(t *testing.T) {
	r := newPersonRegistry(t)
	_, err := r.Fold(Person{Age: 1, Address: Address{HouseNumber: 128}})
	var fe *FoldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Person", fe.Schema)
	assert.Equal(t, "address.house_number", fe.Field)
	require.ErrorIs(t, err, bitstream.ErrRange)
}

func TestFoldMissingAttribute(t *testing.T) {
	r := NewRegistry("missing", Options{})
	fields := personFields()
	_, err := Register(r, "Address", "house_number=uint:7", addressFields())
	require.NoError(t, err)
	delete(fields, "alive")
	_, err = Register(r, "Person", "age=uint:10, address=Address, alive=bool", fields)
	require.NoError(t, err)

	_, err = r.Fold(Person{Age: 1})
	require.ErrorIs(t, err, ErrMissingAttribute)
	var fe *FoldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "alive", fe.Field)

	_, err = r.FoldAs("Person", "not a person")
	require.ErrorIs(t, err, ErrMissingAttribute)

	_, err = r.RegisterRecord("Rec", "a=bool, b=bool", nil)
	require.NoError(t, err)
	_, err = r.FoldAs("Rec", Record{"a": true})
	require.ErrorIs(t, err, ErrMissingAttribute)
	assert.Contains(t, err.Error(), `"b"`)
}

func TestFoldUnknown(t *testing.T) {
	r := newPersonRegistry(t)
	_, err := r.Fold(struct{}{})
	require.ErrorIs(t, err, ErrUnknownSchema)
	_, err = r.Fold(Record{"a": 1})
	require.ErrorIs(t, err, ErrUnknownSchema)
	_, err = r.FoldAs("Nope", Person{})
	require.ErrorIs(t, err, ErrUnknownSchema)
}

type creaseCounter struct {
	folds, unfolds int
}

func (c *creaseCounter) crease() Crease {
	return Crease{
		Fold:   func(v any) (any, error) { c.folds++; return v, nil },
		Unfold: func(v any) (any, error) { c.unfolds++; return v, nil },
	}
}

func TestCreasePrecedence(t *testing.T) {
	var byName, byFormat, onNested creaseCounter
	r := NewRegistry("creases", Options{})
	_, err := r.RegisterRecord("Inner", "n=uint:8", nil)
	require.NoError(t, err)
	_, err = r.RegisterRecord("Pair", "a=uint:8, b=uint:8, inner=Inner", Creases{
		"a":      byName.crease(),
		"uint:8": byFormat.crease(),
		"inner":  onNested.crease(),
	})
	require.NoError(t, err)

	b, err := r.FoldAs("Pair", Record{"a": 1, "b": 2, "inner": Record{"n": 3}})
	require.NoError(t, err)
	assert.Equal(t, creaseCounter{folds: 1}, byName)
	assert.Equal(t, creaseCounter{folds: 1}, byFormat)
	assert.Equal(t, creaseCounter{}, onNested)

	_, err = r.Unfold("Pair", b)
	require.NoError(t, err)
	assert.Equal(t, creaseCounter{folds: 1, unfolds: 1}, byName)
	assert.Equal(t, creaseCounter{folds: 1, unfolds: 1}, byFormat)
	assert.Equal(t, creaseCounter{}, onNested)
}

func TestCreaseKeyIsNameAndFormat(t *testing.T) {
	var lvl creaseCounter
	custom := lvl.crease()
	custom.Format = "uint:4"
	r := NewRegistry("name-and-format", Options{})
	_, err := r.RegisterRecord("Level", "lvl=uint:4, other=lvl", Creases{"lvl": custom})
	require.NoError(t, err)
	b, err := r.FoldAs("Level", Record{"lvl": 1, "other": 2})
	require.NoError(t, err)
	assert.True(t, bin(t, "0001_0010").Equal(b), "got %s", b)
	assert.Equal(t, creaseCounter{folds: 2}, lvl)
	_, err = r.Unfold("Level", b)
	require.NoError(t, err)
	assert.Equal(t, creaseCounter{folds: 2, unfolds: 2}, lvl)

	var flag creaseCounter
	_, err = r.RegisterRecord("Flag", "bool=uint:1, flag=bool", Creases{"bool": flag.crease()})
	require.NoError(t, err)
	_, err = r.FoldAs("Flag", Record{"bool": 1, "flag": true})
	require.NoError(t, err)
	assert.Equal(t, creaseCounter{folds: 2}, flag)
}

func TestCreaseTransforms(t *testing.T) {
	offset := Crease{
		Fold:   func(v any) (any, error) { return v.(int) - 18, nil },
		Unfold: func(v any) (any, error) { return int(v.(uint64)) + 18, nil },
	}
	r := NewRegistry("offset", Options{})
	_, err := Register(r, "Address", "house_number=uint:7", addressFields())
	require.NoError(t, err)
	_, err = Register(r, "Person", "age=uint:10, address=Address, alive=bool", personFields(),
		WithCreases[Person](Creases{"age": offset}))
	require.NoError(t, err)

	b := mustFold(t, r, Person{Age: 20})
	assert.True(t, bin(t, "0000000010_0000000_0").Equal(b), "got %s", b)
	p, err := UnfoldAs[Person](r, b)
	require.NoError(t, err)
	assert.Equal(t, 20, p.Age)
}

func TestCreaseErrors(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry("boom", Options{})
	_, err := r.RegisterRecord("Rec", "a=uint:8", Creases{"a": {
		Fold:   func(any) (any, error) { return nil, boom },
		Unfold: func(any) (any, error) { return nil, boom },
	}})
	require.NoError(t, err)

	_, err = r.FoldAs("Rec", Record{"a": 1})
	require.ErrorIs(t, err, ErrEncode)
	require.ErrorIs(t, err, boom)

	_, err = r.Unfold("Rec", bin(t, "00000001"))
	require.ErrorIs(t, err, ErrDecode)
	require.ErrorIs(t, err, boom)
	var ue *UnfoldError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "a", ue.Field)
}

func TestCustomFormat(t *testing.T) {
	percent := Crease{
		Format: "uint:7",
		Fold:   func(v any) (any, error) { return uint64(math.Round(v.(float64) * 100)), nil },
		Unfold: func(v any) (any, error) { return float64(v.(uint64)) / 100, nil },
	}
	r := NewRegistry("custom", Options{})
	s, err := r.RegisterRecord("Battery", "level=percent, charging=bool", Creases{"percent": percent})
	require.NoError(t, err)
	assert.Equal(t, "uint:7, bool", s.Format())
	assert.Equal(t, "percent", s.Fields()[0].Token)
	assert.Equal(t, 8, s.BitLen())

	b, err := r.FoldAs("Battery", Record{"level": 0.42, "charging": true})
	require.NoError(t, err)
	assert.True(t, bin(t, "0101010_1").Equal(b), "got %s", b)

	v, err := r.Unfold("Battery", b)
	require.NoError(t, err)
	assert.Equal(t, Record{"level": 0.42, "charging": true}, v)
}

func TestPackageLevelFold(t *testing.T) {
	type Flag struct{ On bool }
	_, err := Register(Default(), "PackageLevelFlag", "on=bool", Fields[Flag]{
		"on": Bind(func(f *Flag) *bool { return &f.On }),
	})
	require.NoError(t, err)

	b, err := Fold(Flag{On: true})
	require.NoError(t, err)
	assert.Equal(t, "0b1", b.String())

	v, err := Unfold("PackageLevelFlag", b)
	require.NoError(t, err)
	assert.Equal(t, &Flag{On: true}, v)
}
