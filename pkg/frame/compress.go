package frame

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

var errIncompressible = errors.New("incompressible")

// zstd encoders and decoders are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		panic("frame: zstd encoder: " + err.Error())
	}
	// DecodeAll stops at cap(dst), which decompress sets to the
	// declared size.
	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(MaxPayload),
		zstd.WithDecodeAllCapLimit(true))
	if err != nil {
		panic("frame: zstd decoder: " + err.Error())
	}
}

// compress returns errIncompressible when c would not shrink data.
func compress(c Compression, data []byte) ([]byte, error) {
	if c != None && len(data) == 0 {
		return nil, errIncompressible
	}
	switch c {
	case None:
		return data, nil
	case Zstd:
		out := zstdEncoder.EncodeAll(data, nil)
		if len(out) >= len(data) {
			return nil, errIncompressible
		}
		return out, nil
	case LZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %w", ErrCompression, err)
		}
		if n == 0 || n >= len(data) {
			return nil, errIncompressible
		}
		return dst[:n], nil
	}
	return nil, fmt.Errorf("%w: unknown algorithm %d", ErrCompression, c)
}

func decompress(c Compression, payload []byte, size int) ([]byte, error) {
	switch c {
	case None:
		if len(payload) != size {
			return nil, fmt.Errorf("%w: stored %d bytes, header says %d", ErrTruncated, len(payload), size)
		}
		return payload, nil
	case Zstd:
		out, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %w", ErrCompression, err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("%w: zstd produced %d bytes, want %d", ErrCompression, len(out), size)
		}
		return out, nil
	case LZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("%w: lz4: %w", ErrCompression, err)
		}
		if n != size {
			return nil, fmt.Errorf("%w: lz4 produced %d bytes, want %d", ErrCompression, n, size)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: unknown algorithm %d", ErrCompression, c)
}
