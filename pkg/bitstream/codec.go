package bitstream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strings"

	"github.com/rawbytedev/bitfold/internal/common"
	"github.com/rawbytedev/bitfold/pkg/atom"
)

var (
	// ErrRange and ErrValueType are value violations; ErrFormat and
	// ErrUnderflow are structural.
	ErrRange     = errors.New("value out of range")
	ErrValueType = errors.New("wrong value type")
	ErrFormat    = errors.New("malformed format")
	ErrUnderflow = errors.New("read underflow")
)

var nativeLittle = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

// ValueError reports the value that failed to pack or unpack.
type ValueError struct {
	Index int
	Atom  atom.Atom
	Value any
	Err   error
}

func (e *ValueError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("bitstream: atom #%d %s: %v", e.Index, e.Atom, e.Err)
	}
	return fmt.Sprintf("bitstream: value %v (#%d) for %s: %v", e.Value, e.Index, e.Atom, e.Err)
}

func (e *ValueError) Unwrap() error { return e.Err }

// Pack encodes values against f into one contiguous bit sequence.
func Pack(f atom.Format, values []any) (Bits, error) {
	if len(f) != len(values) {
		return Bits{}, fmt.Errorf("%w: %d atoms for %d values", ErrFormat, len(f), len(values))
	}
	var w Writer
	for i, a := range f {
		if err := packOne(&w, a, values[i]); err != nil {
			return Bits{}, &ValueError{Index: i, Atom: a, Value: values[i], Err: err}
		}
	}
	return w.Bits(), nil
}

// Unpack decodes b from its first bit against f.
func Unpack(f atom.Format, b Bits) ([]any, error) {
	return NewReader(b).ReadList(f)
}

// ReadList decodes the next len(f) values. On failure the read
// position is left where it was.
func (r *Reader) ReadList(f atom.Format) ([]any, error) {
	stretch, err := r.stretchWidth(f)
	if err != nil {
		return nil, err
	}
	start := r.pos
	out := make([]any, len(f))
	for i, a := range f {
		if !a.Fixed() && !a.IsVariable() {
			a.Width = stretch
		}
		v, err := readOne(r, a)
		if err != nil {
			r.pos = start
			return nil, &ValueError{Index: i, Atom: f[i], Err: err}
		}
		out[i] = v
	}
	return out, nil
}

// stretchWidth sizes the single width-less hex/oct/bin/bits atom so it
// consumes whatever the fixed atoms leave.
func (r *Reader) stretchWidth(f atom.Format) (int, error) {
	stretchy, variable, fixed := 0, false, 0
	for _, a := range f {
		switch {
		case a.IsVariable():
			variable = true
		case a.Fixed():
			fixed += a.Bits()
		default:
			stretchy++
		}
	}
	if stretchy == 0 {
		return 0, nil
	}
	if stretchy > 1 || variable {
		return 0, fmt.Errorf("%w: width-less atom is ambiguous in %q", ErrFormat, f.String())
	}
	w := r.Remaining() - fixed
	if w < 0 {
		return 0, underflow(r.pos, fixed, r.Remaining())
	}
	return w, nil
}

func packOne(w *Writer, a atom.Atom, v any) error {
	switch {
	case a.IsInteger():
		raw, err := integerBits(a, v)
		if err != nil {
			return err
		}
		w.WriteBits(ordered(a, raw), a.Width)
	case a.IsFloat():
		f, err := common.ToFloat64(v)
		if err != nil {
			return fmt.Errorf("%w: %T is not a number", ErrValueType, v)
		}
		var raw uint64
		if a.Width == 32 {
			if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
				return fmt.Errorf("%w: %v overflows float32", ErrRange, f)
			}
			raw = uint64(math.Float32bits(float32(f)))
		} else {
			raw = math.Float64bits(f)
		}
		w.WriteBits(ordered(a, raw), a.Width)
	case a.Type == atom.Bool:
		b, err := boolValue(v)
		if err != nil {
			return err
		}
		w.WriteBit(b)
	case a.Type == atom.UE:
		u, err := common.ToUint64(v)
		if err != nil {
			return numberErr(v, err)
		}
		return writeUE(w, u)
	case a.Type == atom.SE:
		i, err := common.ToInt64(v)
		if err != nil {
			return numberErr(v, err)
		}
		var u uint64
		switch {
		case i > 0:
			u = uint64(i)*2 - 1
		case i == math.MinInt64:
			return fmt.Errorf("%w: %d has no se code", ErrRange, i)
		default:
			u = uint64(-i) * 2
		}
		return writeUE(w, u)
	case a.Type == atom.UIE:
		u, err := common.ToUint64(v)
		if err != nil {
			return numberErr(v, err)
		}
		return writeUIE(w, u)
	case a.Type == atom.SIE:
		i, err := common.ToInt64(v)
		if err != nil {
			return numberErr(v, err)
		}
		mag := uint64(i)
		if i < 0 {
			mag = -mag
		}
		if err := writeUIE(w, mag); err != nil {
			return err
		}
		if i != 0 {
			w.WriteBit(i < 0)
		}
	case a.Type == atom.Hex, a.Type == atom.Oct, a.Type == atom.Bin:
		return writeDigits(w, a, v)
	case a.Type == atom.Bits:
		b, err := bitsValue(v)
		if err != nil {
			return err
		}
		if a.Width > 0 && b.Len() != a.Width {
			return fmt.Errorf("%w: %d bits for width %d", ErrRange, b.Len(), a.Width)
		}
		w.WriteFrom(b)
	default:
		return fmt.Errorf("%w: unsupported atom %s", ErrFormat, a)
	}
	return nil
}

func readOne(r *Reader, a atom.Atom) (any, error) {
	switch {
	case a.IsInteger():
		raw, err := r.ReadBits(a.Width)
		if err != nil {
			return nil, err
		}
		raw = ordered(a, raw)
		if a.IsSigned() {
			return signExtend(raw, a.Width), nil
		}
		return raw, nil
	case a.IsFloat():
		raw, err := r.ReadBits(a.Width)
		if err != nil {
			return nil, err
		}
		raw = ordered(a, raw)
		if a.Width == 32 {
			return float64(math.Float32frombits(uint32(raw))), nil
		}
		return math.Float64frombits(raw), nil
	case a.Type == atom.Bool:
		return r.ReadBit()
	case a.Type == atom.UE:
		return readUE(r)
	case a.Type == atom.SE:
		u, err := readUE(r)
		if err != nil {
			return nil, err
		}
		if u%2 == 1 {
			return int64(u/2) + 1, nil
		}
		return -int64(u / 2), nil
	case a.Type == atom.UIE:
		return readUIE(r)
	case a.Type == atom.SIE:
		mag, err := readUIE(r)
		if err != nil {
			return nil, err
		}
		if mag == 0 {
			return int64(0), nil
		}
		neg, err := r.ReadBit()
		if err != nil {
			return nil, err
		}
		if neg {
			if mag > 1<<63 {
				return nil, fmt.Errorf("%w: sie magnitude %d", ErrRange, mag)
			}
			return int64(-mag), nil
		}
		if mag > math.MaxInt64 {
			return nil, fmt.Errorf("%w: sie magnitude %d", ErrRange, mag)
		}
		return int64(mag), nil
	case a.Type == atom.Hex, a.Type == atom.Oct, a.Type == atom.Bin:
		return readDigits(r, a)
	case a.Type == atom.Bits:
		return r.ReadSlice(a.Width)
	}
	return nil, fmt.Errorf("%w: unsupported atom %s", ErrFormat, a)
}

func integerBits(a atom.Atom, v any) (uint64, error) {
	n := a.Width
	if a.IsSigned() {
		i, err := common.ToInt64(v)
		if err != nil {
			return 0, numberErr(v, err)
		}
		if n < 64 {
			lo, hi := -int64(1)<<uint(n-1), int64(1)<<uint(n-1)-1
			if i < lo || i > hi {
				return 0, fmt.Errorf("%w: %d does not fit in %d signed bits", ErrRange, i, n)
			}
		}
		return uint64(i), nil
	}
	u, err := common.ToUint64(v)
	if err != nil {
		return 0, numberErr(v, err)
	}
	if n < 64 && u >= 1<<uint(n) {
		return 0, fmt.Errorf("%w: %d does not fit in %d bits", ErrRange, u, n)
	}
	return u, nil
}

// ordered converts between big-endian bit order and the atom's byte
// order. It is its own inverse.
func ordered(a atom.Atom, raw uint64) uint64 {
	little := false
	switch a.Type {
	case atom.IntLE, atom.UintLE, atom.FloatLE:
		little = true
	case atom.IntNE, atom.UintNE, atom.FloatNE:
		little = nativeLittle
	}
	if !little {
		return raw
	}
	if a.Width < 64 {
		raw &= 1<<uint(a.Width) - 1
	}
	return bits.ReverseBytes64(raw) >> uint(64-a.Width)
}

func signExtend(raw uint64, n int) int64 {
	if n < 64 && raw&(1<<uint(n-1)) != 0 {
		raw |= ^uint64(0) << uint(n)
	}
	return int64(raw)
}

func boolValue(v any) (bool, error) {
	if b, ok := v.(bool); ok {
		return b, nil
	}
	i, err := common.ToInt64(v)
	if err != nil {
		return false, fmt.Errorf("%w: %T is not a bool", ErrValueType, v)
	}
	switch i {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: %d is not 0 or 1", ErrRange, i)
}

func bitsValue(v any) (Bits, error) {
	switch b := v.(type) {
	case Bits:
		return b, nil
	case *Bits:
		if b == nil {
			return Bits{}, fmt.Errorf("%w: nil bits", ErrValueType)
		}
		return *b, nil
	case []byte:
		return FromBytes(b), nil
	}
	return Bits{}, fmt.Errorf("%w: %T is not bits", ErrValueType, v)
}

func writeUE(w *Writer, u uint64) error {
	if u == math.MaxUint64 {
		return fmt.Errorf("%w: %d has no exp-Golomb code", ErrRange, u)
	}
	x := u + 1
	n := bits.Len64(x)
	w.WriteZeros(n - 1)
	w.WriteBits(x, n)
	return nil
}

func readUE(r *Reader) (uint64, error) {
	zeros := 0
	for {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if bit {
			break
		}
		zeros++
		if zeros > 63 {
			return 0, fmt.Errorf("%w: exp-Golomb code exceeds 64 bits", ErrRange)
		}
	}
	rest, err := r.ReadBits(zeros)
	if err != nil {
		return 0, err
	}
	return (1<<uint(zeros) | rest) - 1, nil
}

func writeUIE(w *Writer, u uint64) error {
	if u == math.MaxUint64 {
		return fmt.Errorf("%w: %d has no interleaved exp-Golomb code", ErrRange, u)
	}
	x := u + 1
	for i := bits.Len64(x) - 2; i >= 0; i-- {
		w.WriteBit(false)
		w.WriteBit(x>>uint(i)&1 == 1)
	}
	w.WriteBit(true)
	return nil
}

func readUIE(r *Reader) (uint64, error) {
	x := uint64(1)
	for {
		stop, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if stop {
			return x - 1, nil
		}
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if x>>63 != 0 {
			return 0, fmt.Errorf("%w: interleaved exp-Golomb code exceeds 64 bits", ErrRange)
		}
		x <<= 1
		if bit {
			x |= 1
		}
	}
}

func digitShape(t atom.Type) (bitsPer int, prefix, alphabet string) {
	switch t {
	case atom.Hex:
		return 4, "0x", "0123456789abcdef"
	case atom.Oct:
		return 3, "0o", "01234567"
	default:
		return 1, "0b", "01"
	}
}

func writeDigits(w *Writer, a atom.Atom, v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("%w: %T is not a %s string", ErrValueType, v, a.Type)
	}
	per, prefix, alphabet := digitShape(a.Type)
	s = strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(s, prefix), strings.ToUpper(prefix)))
	s = strings.ReplaceAll(s, "_", "")
	if a.Width > 0 && len(s)*per != a.Width {
		return fmt.Errorf("%w: %d %s digits for width %d", ErrRange, len(s), a.Type, a.Width)
	}
	for i := 0; i < len(s); i++ {
		d := strings.IndexByte(alphabet, s[i])
		if d < 0 {
			return fmt.Errorf("%w: %q is not a %s digit", ErrValueType, s[i], a.Type)
		}
		w.WriteBits(uint64(d), per)
	}
	return nil
}

func readDigits(r *Reader, a atom.Atom) (string, error) {
	per, _, alphabet := digitShape(a.Type)
	if a.Width%per != 0 {
		return "", fmt.Errorf("%w: %d bits is not a whole number of %s digits", ErrFormat, a.Width, a.Type)
	}
	if a.Width > r.Remaining() {
		return "", underflow(r.pos, a.Width, r.Remaining())
	}
	var sb strings.Builder
	sb.Grow(a.Width / per)
	for i := 0; i < a.Width/per; i++ {
		d, _ := r.ReadBits(per)
		sb.WriteByte(alphabet[d])
	}
	return sb.String(), nil
}

func numberErr(v any, err error) error {
	if errors.Is(err, common.ErrNotNumber) {
		return fmt.Errorf("%w: %T is not an integer", ErrValueType, v)
	}
	return fmt.Errorf("%w: %v", ErrRange, err)
}
