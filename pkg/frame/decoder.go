package frame

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/rawbytedev/bitfold/internal/common"
	"github.com/rawbytedev/bitfold/pkg/bitstream"
)

// Decode verifies and unwraps one frame. data must hold exactly one
// frame.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if len(data) < len(Magic) || string(data[:len(Magic)]) != Magic {
		return f, ErrMagic
	}
	if len(data) < headerSize+2+crcSize {
		return f, fmt.Errorf("%w: %d bytes", ErrTruncated, len(data))
	}
	body := data[len(Magic) : len(data)-crcSize]
	want := binary.LittleEndian.Uint32(data[len(data)-crcSize:])
	if got := crc32.ChecksumIEEE(body); got != want {
		return f, fmt.Errorf("%w: got %08x, want %08x", ErrChecksum, got, want)
	}

	f.Version, f.Flags, f.Compression = data[2], data[3], Compression(data[4])
	if f.Version != Version {
		return f, fmt.Errorf("%w: %d", ErrVersion, f.Version)
	}
	copy(f.Fingerprint[:], data[5:headerSize])

	rest := data[headerSize : len(data)-crcSize]
	nbits, n := common.ReadVarUint(rest)
	if n == 0 {
		return f, fmt.Errorf("%w: bit length", ErrTruncated)
	}
	rest = rest[n:]
	size, n := common.ReadVarUint(rest)
	if n == 0 {
		return f, fmt.Errorf("%w: payload length", ErrTruncated)
	}
	rest = rest[n:]
	if size > MaxPayload {
		return f, fmt.Errorf("%w: payload of %d bytes exceeds %d", ErrTruncated, size, MaxPayload)
	}
	if size != (nbits+7)/8 {
		return f, fmt.Errorf("%w: %d bits do not fit %d bytes", ErrTruncated, nbits, size)
	}

	raw, err := decompress(f.Compression, rest, int(size))
	if err != nil {
		return f, err
	}
	f.Bits, err = bitstream.New(raw, int(nbits))
	if err != nil {
		return f, fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	return f, nil
}
