package bitstream

// Writer accumulates bits. The zero value is ready to use.
type Writer struct {
	buf []byte
	n   int
}

func (w *Writer) Len() int { return w.n }

func (w *Writer) Reset() {
	w.buf = w.buf[:0]
	w.n = 0
}

func (w *Writer) WriteBit(bit bool) {
	if bit {
		w.WriteBits(1, 1)
	} else {
		w.WriteBits(0, 1)
	}
}

// WriteBits appends the low width bits of v, most significant first.
// width must be in [0, 64].
func (w *Writer) WriteBits(v uint64, width int) {
	if width <= 0 {
		return
	}
	if width < 64 {
		v &= 1<<uint(width) - 1
	}
	for width > 0 {
		off := w.n % 8
		if off == 0 {
			w.buf = append(w.buf, 0)
		}
		free := 8 - off
		take := min(free, width)
		chunk := (v >> uint(width-take)) & (1<<uint(take) - 1)
		w.buf[len(w.buf)-1] |= byte(chunk << uint(free-take))
		w.n += take
		width -= take
	}
}

// WriteZeros appends n zero bits.
func (w *Writer) WriteZeros(n int) {
	for n > 0 {
		take := min(n, 64)
		w.WriteBits(0, take)
		n -= take
	}
}

// WriteFrom appends every bit of b.
func (w *Writer) WriteFrom(b Bits) {
	if w.n%8 == 0 {
		w.buf = append(w.buf, b.data...)
		w.n += b.n
		return
	}
	r := Reader{bits: b}
	for r.Remaining() > 0 {
		take := min(r.Remaining(), 64)
		v, _ := r.ReadBits(take)
		w.WriteBits(v, take)
	}
}

// Bits returns a snapshot of everything written so far.
func (w *Writer) Bits() Bits {
	data := make([]byte, len(w.buf))
	copy(data, w.buf)
	return Bits{data: data, n: w.n}
}
