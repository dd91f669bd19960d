// Package atom parses primitive bit-format tokens of the form
// "type" or "type:width", and comma-separated formats built from them.
package atom

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalid = errors.New("invalid format atom")

// Type is the name part of an atom.
type Type string

const (
	Int     Type = "int"
	Uint    Type = "uint"
	IntBE   Type = "intbe"
	UintBE  Type = "uintbe"
	IntLE   Type = "intle"
	UintLE  Type = "uintle"
	IntNE   Type = "intne"
	UintNE  Type = "uintne"
	Float   Type = "float"
	FloatBE Type = "floatbe"
	FloatLE Type = "floatle"
	FloatNE Type = "floatne"
	Hex     Type = "hex"
	Oct     Type = "oct"
	Bin     Type = "bin"
	Bits    Type = "bits"
	Bool    Type = "bool"
	UE      Type = "ue"
	SE      Type = "se"
	UIE     Type = "uie"
	SIE     Type = "sie"
)

type widthRule uint8

const (
	widthRequired widthRule = iota
	widthOptional
	widthForbidden
)

var rules = map[Type]widthRule{
	Int: widthRequired, Uint: widthRequired,
	IntBE: widthRequired, UintBE: widthRequired,
	IntLE: widthRequired, UintLE: widthRequired,
	IntNE: widthRequired, UintNE: widthRequired,
	Float: widthRequired, FloatBE: widthRequired,
	FloatLE: widthRequired, FloatNE: widthRequired,
	Hex: widthOptional, Oct: widthOptional,
	Bin: widthOptional, Bits: widthOptional,
	Bool: widthForbidden, UE: widthForbidden, SE: widthForbidden,
	UIE: widthForbidden, SIE: widthForbidden,
}

// Atom is one primitive bit-format token. Width is 0 when the token
// carries no width.
type Atom struct {
	Type  Type
	Width int
}

// Parse validates token and decomposes it.
func Parse(token string) (Atom, error) {
	token = strings.TrimSpace(token)
	name, width, hasWidth := strings.Cut(token, ":")
	rule, ok := rules[Type(name)]
	if !ok {
		return Atom{}, invalid(token, "unknown type")
	}
	a := Atom{Type: Type(name)}
	if hasWidth {
		if rule == widthForbidden {
			return Atom{}, invalid(token, "type takes no width")
		}
		w, err := strconv.Atoi(width)
		if err != nil || w <= 0 || strings.HasPrefix(width, "+") {
			return Atom{}, invalid(token, "width must be a positive integer")
		}
		a.Width = w
	} else if rule == widthRequired {
		return Atom{}, invalid(token, "type requires a width")
	}
	if err := a.checkWidth(); err != nil {
		return Atom{}, invalid(token, err.Error())
	}
	return a, nil
}

// Valid reports whether token is a well-formed atom.
func Valid(token string) bool {
	_, err := Parse(token)
	return err == nil
}

// MustParse is Parse for tokens known at compile time.
func MustParse(token string) Atom {
	a, err := Parse(token)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Atom) checkWidth() error {
	w := a.Width
	switch {
	case a.IsInteger():
		if w > 64 {
			return errors.New("integer width exceeds 64 bits")
		}
		if a.Type != Int && a.Type != Uint && w%8 != 0 {
			return errors.New("byte-ordered width must be a multiple of 8")
		}
	case a.IsFloat():
		if w != 32 && w != 64 {
			return errors.New("float width must be 32 or 64")
		}
	case a.Type == Hex:
		if w%4 != 0 {
			return errors.New("hex width must be a multiple of 4")
		}
	case a.Type == Oct:
		if w%3 != 0 {
			return errors.New("oct width must be a multiple of 3")
		}
	}
	return nil
}

func (a Atom) IsInteger() bool {
	switch a.Type {
	case Int, Uint, IntBE, UintBE, IntLE, UintLE, IntNE, UintNE:
		return true
	}
	return false
}

func (a Atom) IsSigned() bool {
	switch a.Type {
	case Int, IntBE, IntLE, IntNE, SE, SIE:
		return true
	}
	return false
}

func (a Atom) IsFloat() bool {
	switch a.Type {
	case Float, FloatBE, FloatLE, FloatNE:
		return true
	}
	return false
}

// IsVariable reports whether the encoded width depends on the value
// (the exp-Golomb families).
func (a Atom) IsVariable() bool {
	switch a.Type {
	case UE, SE, UIE, SIE:
		return true
	}
	return false
}

// Fixed reports whether the atom always encodes to Width bits
// (bool counts as one bit).
func (a Atom) Fixed() bool {
	return !a.IsVariable() && (a.Width > 0 || a.Type == Bool)
}

// Bits returns the encoded width for fixed atoms and -1 otherwise.
func (a Atom) Bits() int {
	if a.Type == Bool {
		return 1
	}
	if !a.Fixed() {
		return -1
	}
	return a.Width
}

func (a Atom) String() string {
	if a.Width == 0 {
		return string(a.Type)
	}
	return string(a.Type) + ":" + strconv.Itoa(a.Width)
}

// Format is an ordered list of atoms.
type Format []Atom

// ParseFormat parses a comma-separated list of atoms.
func ParseFormat(s string) (Format, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	f := make(Format, 0, len(parts))
	for _, p := range parts {
		a, err := Parse(p)
		if err != nil {
			return nil, err
		}
		f = append(f, a)
	}
	return f, nil
}

// BitLen returns the summed width of f, or -1 if any atom is not fixed.
func (f Format) BitLen() int {
	n := 0
	for _, a := range f {
		b := a.Bits()
		if b < 0 {
			return -1
		}
		n += b
	}
	return n
}

func (f Format) String() string {
	parts := make([]string, len(f))
	for i, a := range f {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

func invalid(token, reason string) error {
	return fmt.Errorf("%w %q: %s", ErrInvalid, token, reason)
}
