package bitstream

import "fmt"

// Reader reads sequentially from a Bits value.
type Reader struct {
	bits Bits
	pos  int
}

func NewReader(b Bits) *Reader {
	return &Reader{bits: b}
}

// Pos returns the current bit position.
func (r *Reader) Pos() int { return r.pos }

func (r *Reader) Remaining() int { return r.bits.n - r.pos }

// Seek moves the read position to pos.
func (r *Reader) Seek(pos int) error {
	if pos < 0 || pos > r.bits.n {
		return fmt.Errorf("bitstream: seek to %d outside [0, %d]", pos, r.bits.n)
	}
	r.pos = pos
	return nil
}

func (r *Reader) ReadBit() (bool, error) {
	v, err := r.ReadBits(1)
	return v == 1, err
}

// ReadBits reads width bits (at most 64) as an unsigned integer.
func (r *Reader) ReadBits(width int) (uint64, error) {
	if width < 0 || width > 64 {
		return 0, fmt.Errorf("%w: cannot read %d bits at once", ErrFormat, width)
	}
	if width > r.Remaining() {
		return 0, underflow(r.pos, width, r.Remaining())
	}
	var v uint64
	for width > 0 {
		off := r.pos % 8
		avail := 8 - off
		take := min(avail, width)
		chunk := uint64(r.bits.data[r.pos/8]>>uint(avail-take)) & (1<<uint(take) - 1)
		v = v<<uint(take) | chunk
		r.pos += take
		width -= take
	}
	return v, nil
}

// ReadSlice reads the next n bits as a Bits value.
func (r *Reader) ReadSlice(n int) (Bits, error) {
	if n < 0 {
		return Bits{}, fmt.Errorf("%w: negative length %d", ErrFormat, n)
	}
	if n > r.Remaining() {
		return Bits{}, underflow(r.pos, n, r.Remaining())
	}
	if r.pos%8 == 0 {
		b, _ := New(r.bits.data[r.pos/8:], n)
		r.pos += n
		return b, nil
	}
	var w Writer
	for n > 0 {
		take := min(n, 64)
		v, _ := r.ReadBits(take)
		w.WriteBits(v, take)
		n -= take
	}
	return w.Bits(), nil
}

func underflow(pos, want, have int) error {
	return fmt.Errorf("%w: need %d bits at position %d, %d remain", ErrUnderflow, want, pos, have)
}
