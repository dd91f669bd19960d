package frame

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawbytedev/bitfold/internal/common"
	"github.com/rawbytedev/bitfold/pkg/bitstream"
)

func fingerprint(b byte) [32]byte {
	var fp [32]byte
	for i := range fp {
		fp[i] = b + byte(i)
	}
	return fp
}

func TestRoundTrip(t *testing.T) {
	odd, err := bitstream.New([]byte{0xDE, 0xAD, 0xC0}, 18)
	require.NoError(t, err)
	long := bitstream.FromBytes(bytes.Repeat([]byte("bitfold "), 64))

	for _, c := range []Compression{None, Zstd, LZ4} {
		for _, b := range []bitstream.Bits{{}, odd, long} {
			data, err := Encode(fingerprint(7), b, c)
			require.NoError(t, err, c)
			assert.Equal(t, Magic, string(data[:2]))

			f, err := Decode(data)
			require.NoError(t, err, c)
			assert.Equal(t, fingerprint(7), f.Fingerprint)
			assert.Equal(t, uint8(Version), f.Version)
			assert.True(t, b.Equal(f.Bits), "%s: %s != %s", c, b, f.Bits)
		}
	}
}

func TestCompressionPicksSmaller(t *testing.T) {
	long := bitstream.FromBytes(bytes.Repeat([]byte{0xAB}, 4096))
	for _, c := range []Compression{Zstd, LZ4} {
		data, err := Encode(fingerprint(1), long, c)
		require.NoError(t, err)
		assert.Less(t, len(data), 4096)
		f, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, c, f.Compression)
	}

	tiny, _ := bitstream.New([]byte{0x80}, 3)
	data, err := Encode(fingerprint(1), tiny, Zstd)
	require.NoError(t, err)
	f, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, None, f.Compression)
}

func TestDecodeErrors(t *testing.T) {
	b, _ := bitstream.New([]byte{0xFF, 0x00}, 12)
	data, err := Encode(fingerprint(3), b, None)
	require.NoError(t, err)

	_, err = Decode([]byte("XX"))
	require.ErrorIs(t, err, ErrMagic)

	_, err = Decode(data[:10])
	require.ErrorIs(t, err, ErrTruncated)

	flipped := append([]byte(nil), data...)
	flipped[len(flipped)-6] ^= 0x01
	_, err = Decode(flipped)
	require.ErrorIs(t, err, ErrChecksum)

	short := append([]byte(nil), data[:len(data)-5]...)
	_, err = Decode(short)
	require.Error(t, err)
}

func TestDecodeStopsAtDeclaredSize(t *testing.T) {
	fp := fingerprint(1)
	out := append([]byte(Magic), Version, 0, byte(Zstd))
	out = append(out, fp[:]...)
	out = common.WriteVarUint(out, 64)
	out = common.WriteVarUint(out, 8)
	out = append(out, zstdEncoder.EncodeAll(make([]byte, 1<<20), nil)...)
	out = binary.LittleEndian.AppendUint32(out, crc32.ChecksumIEEE(out[len(Magic):]))

	_, err := Decode(out)
	require.ErrorIs(t, err, ErrCompression)
	require.ErrorIs(t, err, zstd.ErrDecoderSizeExceeded)
}

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]Compression{"": None, "none": None, "ZSTD": Zstd, " lz4 ": LZ4} {
		c, err := ParseCompression(name)
		require.NoError(t, err)
		assert.Equal(t, want, c)
	}
	_, err := ParseCompression("gzip")
	require.ErrorIs(t, err, ErrCompression)
	assert.Equal(t, "lz4", LZ4.String())
}

func FuzzDecodeNeverPanics(f *testing.F) {
	b, _ := bitstream.New([]byte{0x12, 0x34}, 16)
	seed, _ := Encode(fingerprint(0), b, LZ4)
	f.Add(seed)
	f.Add([]byte("BF"))
	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = Decode(data)
	})
}

func BenchmarkEncodeZstd(b *testing.B) {
	bits := bitstream.FromBytes(bytes.Repeat([]byte("record"), 100))
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = Encode(fingerprint(0), bits, Zstd)
	}
}
