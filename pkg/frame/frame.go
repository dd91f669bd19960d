// Package frame wraps one folded record in a self-checking envelope:
//
//	"BF" | version | flags | compression | fingerprint[32] |
//	varint bit length | varint payload length | payload | crc32
//
// The CRC-32 (IEEE, little endian) covers everything between the magic
// and the checksum. The payload holds the record bytes, compressed when
// that makes them smaller.
package frame

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rawbytedev/bitfold/pkg/bitstream"
)

const (
	Magic   = "BF"
	Version = 1

	// MaxPayload bounds the decompressed record size Decode accepts.
	MaxPayload = 64 << 20

	// headerSize is magic, version, flags, compression and fingerprint.
	headerSize = 2 + 1 + 1 + 1 + 32
	crcSize    = 4
)

var (
	ErrMagic       = errors.New("frame: bad magic")
	ErrVersion     = errors.New("frame: unsupported version")
	ErrTruncated   = errors.New("frame: truncated")
	ErrChecksum    = errors.New("frame: checksum mismatch")
	ErrCompression = errors.New("frame: compression")
)

type Compression uint8

const (
	None Compression = iota
	Zstd
	LZ4
)

func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	}
	return fmt.Sprintf("compression(%d)", uint8(c))
}

// ParseCompression accepts the names printed by String.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return None, nil
	case "zstd":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	}
	return None, fmt.Errorf("%w: unknown algorithm %q", ErrCompression, s)
}

// Frame is a decoded envelope.
type Frame struct {
	Version     uint8
	Flags       uint8
	Compression Compression
	Fingerprint [32]byte
	Bits        bitstream.Bits
}
