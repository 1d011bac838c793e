package common

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/nimda/routeros-brute/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLengthRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 0x7F, 0x80, 0x3FFF, 0x4000, 0x1FFFFF, 0x200000, 0xFFFFFFF, 0x10000000, 0xFFFFFFFF}
	for _, n := range values {
		encoded := EncodeLength(n)
		decoded, err := DecodeLength(bytes.NewReader(encoded))
		require.NoError(t, err, "n=0x%X", n)
		assert.Equal(t, n, decoded, "n=0x%X", n)
	}
}

func TestEncodeLengthSizes(t *testing.T) {
	assert.Len(t, EncodeLength(0x7F), 1)
	assert.Len(t, EncodeLength(200), 2)
	assert.Len(t, EncodeLength(0x4000), 3)
	assert.Len(t, EncodeLength(0x200000), 4)

	big := EncodeLength(0x10000000)
	require.Len(t, big, 5)
	assert.Equal(t, byte(0xF0), big[0])
}

func TestEncodeLengthBytes(t *testing.T) {
	tests := []struct {
		n    uint32
		want []byte
	}{
		{10, []byte{0x0A}},
		{200, []byte{0x80, 0xC8}},
		{0x3FFF, []byte{0xBF, 0xFF}},
		{0x4000, []byte{0xC0, 0x40, 0x00}},
		{0x1FFFFF, []byte{0xDF, 0xFF, 0xFF}},
		{0x200000, []byte{0xE0, 0x20, 0x00, 0x00}},
		{0xFFFFFFF, []byte{0xEF, 0xFF, 0xFF, 0xFF}},
		{0x10000000, []byte{0xF0, 0x10, 0x00, 0x00, 0x00}},
		{0xFFFFFFFF, []byte{0xF0, 0xFF, 0xFF, 0xFF, 0xFF}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EncodeLength(tt.n), "n=0x%X", tt.n)
	}
}

func TestDecodeLengthConsumesExactPrefix(t *testing.T) {
	r := bytes.NewReader([]byte{0x80, 0xC8, 0xAA})
	n, err := DecodeLength(r)
	require.NoError(t, err)
	assert.Equal(t, uint32(200), n)
	assert.Equal(t, 1, r.Len())
}

func TestDecodeLengthShortRead(t *testing.T) {
	_, err := DecodeLength(bytes.NewReader([]byte{0xC0, 0x40}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = DecodeLength(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeLengthReservedPrefix(t *testing.T) {
	for _, b := range []byte{0xF8, 0xFF} {
		_, err := DecodeLength(bytes.NewReader([]byte{b, 0, 0, 0, 0}))
		var protoErr *utils.ProtocolError
		assert.True(t, errors.As(err, &protoErr), "prefix 0x%02X", b)
	}
}

func TestCheckWordLength(t *testing.T) {
	assert.NoError(t, CheckWordLength(MaxWordLength))

	err := CheckWordLength(MaxWordLength + 1)
	var tooLong *utils.WordTooLongError
	require.True(t, errors.As(err, &tooLong))
	assert.Equal(t, uint64(1<<32), tooLong.Length)
}

func TestWordRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	long := bytes.Repeat([]byte("x"), 0x4001)

	require.NoError(t, WriteWord(&buf, []byte("/login")))
	require.NoError(t, WriteWord(&buf, long))
	require.NoError(t, WriteWord(&buf, nil))

	w, err := ReadWord(&buf)
	require.NoError(t, err)
	assert.Equal(t, "/login", string(w))

	w, err = ReadWord(&buf)
	require.NoError(t, err)
	assert.Equal(t, long, w)

	w, err = ReadWord(&buf)
	require.NoError(t, err)
	assert.NotNil(t, w)
	assert.Empty(t, w)
}

func TestReadWordTruncatedBody(t *testing.T) {
	_, err := ReadWord(bytes.NewReader([]byte{0x05, 'a', 'b'}))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

// chunkReader hands out one byte per Read to exercise partial reads.
type chunkReader struct {
	data []byte
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	p[0] = c.data[0]
	c.data = c.data[1:]
	return 1, nil
}

func TestReadWordPartialReads(t *testing.T) {
	encoded, err := EncodeSentence("=name=admin")
	require.NoError(t, err)

	words, err := ReadSentence(&chunkReader{data: encoded})
	require.NoError(t, err)
	require.Len(t, words, 1)
	assert.Equal(t, "=name=admin", string(words[0]))
}
