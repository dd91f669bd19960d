// Package bitstream provides bit-granularity containers, writers and
// readers, following the MSB pattern where the most-significant bit of
// each byte is written/read first, and packs value lists against atom
// formats.
package bitstream

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
)

// Bits is an immutable, bit-addressable sequence. Bits past Len in the
// last byte are always zero.
type Bits struct {
	data []byte
	n    int
}

// New returns the first n bits of data.
func New(data []byte, n int) (Bits, error) {
	if n < 0 || n > len(data)*8 {
		return Bits{}, errors.New("bitstream: bit length out of range")
	}
	buf := make([]byte, (n+7)/8)
	copy(buf, data)
	if rem := n % 8; rem != 0 {
		buf[len(buf)-1] &= 0xFF << (8 - rem)
	}
	return Bits{data: buf, n: n}, nil
}

// FromBytes returns all bits of b.
func FromBytes(b []byte) Bits {
	buf := make([]byte, len(b))
	copy(buf, b)
	return Bits{data: buf, n: len(b) * 8}
}

// FromBinary parses a string of '0' and '1' characters. An optional
// "0b" prefix and '_' separators are allowed.
func FromBinary(s string) (Bits, error) {
	s = strings.TrimPrefix(s, "0b")
	var w Writer
	for _, c := range s {
		switch c {
		case '0':
			w.WriteBit(false)
		case '1':
			w.WriteBit(true)
		case '_':
		default:
			return Bits{}, errors.New("bitstream: invalid binary digit")
		}
	}
	return w.Bits(), nil
}

// Len returns the length in bits.
func (b Bits) Len() int { return b.n }

// Bytes returns a copy of the bits, zero-padded to a whole byte.
func (b Bits) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Bit reports bit i, counting from the first written bit.
func (b Bits) Bit(i int) bool {
	return b.data[i/8]>>(7-i%8)&1 == 1
}

// Slice returns bits [from, to).
func (b Bits) Slice(from, to int) (Bits, error) {
	if from < 0 || to < from || to > b.n {
		return Bits{}, errors.New("bitstream: slice out of range")
	}
	r := Reader{bits: b, pos: from}
	return r.ReadSlice(to - from)
}

func (b Bits) Equal(o Bits) bool {
	return b.n == o.n && bytes.Equal(b.data, o.data)
}

// String renders the bits as 0x-prefixed hex when the length is a
// multiple of four and as 0b-prefixed binary otherwise.
func (b Bits) String() string {
	if b.n%4 == 0 {
		h := hex.EncodeToString(b.data)
		return "0x" + h[:b.n/4]
	}
	var sb strings.Builder
	sb.Grow(b.n + 2)
	sb.WriteString("0b")
	for i := 0; i < b.n; i++ {
		if b.Bit(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// Concat joins bit sequences without padding.
func Concat(parts ...Bits) Bits {
	var w Writer
	for _, p := range parts {
		w.WriteFrom(p)
	}
	return w.Bits()
}
