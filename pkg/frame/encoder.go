package frame

import (
	"encoding/binary"
	"errors"
	"hash/crc32"

	"github.com/rawbytedev/bitfold/internal/common"
	"github.com/rawbytedev/bitfold/pkg/bitstream"
)

// Encode wraps b. A payload that c cannot shrink is stored uncompressed
// and the frame records None.
func Encode(fp [32]byte, b bitstream.Bits, c Compression) ([]byte, error) {
	raw := b.Bytes()
	payload, err := compress(c, raw)
	if errors.Is(err, errIncompressible) {
		c, payload = None, raw
	} else if err != nil {
		return nil, err
	}

	out := make([]byte, 0, headerSize+2*binary.MaxVarintLen64+len(payload)+crcSize)
	out = append(out, Magic...)
	out = append(out, Version, 0, byte(c))
	out = append(out, fp[:]...)
	out = common.WriteVarUint(out, uint64(b.Len()))
	out = common.WriteVarUint(out, uint64(len(raw)))
	out = append(out, payload...)

	crc := crc32.ChecksumIEEE(out[len(Magic):])
	return binary.LittleEndian.AppendUint32(out, crc), nil
}
