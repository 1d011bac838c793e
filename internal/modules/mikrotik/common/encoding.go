package common

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/nimda/routeros-brute/pkg/utils"
)

// MaxWordLength is the largest word length the length prefix can carry.
const MaxWordLength = 1<<32 - 1

// AppendLength appends the RouterOS variable-length encoding of n to buf.
//
//	0x00000000-0x0000007F  1 byte   0xxxxxxx
//	0x00000080-0x00003FFF  2 bytes  10xxxxxx ...
//	0x00004000-0x001FFFFF  3 bytes  110xxxxx ...
//	0x00200000-0x0FFFFFFF  4 bytes  1110xxxx ...
//	0x10000000-0xFFFFFFFF  5 bytes  11110000 + 4 raw bytes
func AppendLength(buf []byte, n uint32) []byte {
	switch {
	case n < 0x80:
		return append(buf, byte(n))
	case n < 0x4000:
		n |= 0x8000
		return append(buf, byte(n>>8), byte(n))
	case n < 0x200000:
		n |= 0xC00000
		return append(buf, byte(n>>16), byte(n>>8), byte(n))
	case n < 0x10000000:
		n |= 0xE0000000
		return append(buf, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	default:
		return append(buf, 0xF0, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
}

// EncodeLength returns the encoded length prefix for n.
func EncodeLength(n uint32) []byte {
	return AppendLength(make([]byte, 0, 5), n)
}

// DecodeLength reads one length prefix from r. A prefix cut short by the peer
// is reported as io.ErrUnexpectedEOF; a reserved first byte is a protocol error.
func DecodeLength(r io.Reader) (uint32, error) {
	var b [5]byte
	if _, err := io.ReadFull(r, b[:1]); err != nil {
		return 0, err
	}

	first := b[0]
	var extra int
	var mask byte
	switch {
	case first&0x80 == 0x00:
		return uint32(first), nil
	case first&0xC0 == 0x80:
		extra, mask = 1, 0x3F
	case first&0xE0 == 0xC0:
		extra, mask = 2, 0x1F
	case first&0xF0 == 0xE0:
		extra, mask = 3, 0x0F
	case first == 0xF0:
		extra, mask = 4, 0x00
	default:
		return 0, utils.NewProtocolError(fmt.Sprintf("malformed length prefix 0x%02X", first))
	}

	if _, err := io.ReadFull(r, b[1:1+extra]); err != nil {
		return 0, unexpected(err)
	}

	n := uint32(first & mask)
	for _, c := range b[1 : 1+extra] {
		n = n<<8 | uint32(c)
	}
	return n, nil
}

// CheckWordLength rejects lengths the prefix cannot represent.
func CheckWordLength(n uint64) error {
	if n > MaxWordLength {
		return &utils.WordTooLongError{Length: n}
	}
	return nil
}

// AppendWord appends a length-prefixed word to buf.
func AppendWord(buf []byte, word []byte) ([]byte, error) {
	if err := CheckWordLength(uint64(len(word))); err != nil {
		return buf, err
	}
	buf = AppendLength(buf, uint32(len(word)))
	return append(buf, word...), nil
}

// AppendLengthPrefixed adds a length-prefixed string word to the buffer.
func AppendLengthPrefixed(buf []byte, word string) ([]byte, error) {
	return AppendWord(buf, []byte(word))
}

// WriteWord writes a single length-prefixed word to w in one write.
func WriteWord(w io.Writer, word []byte) error {
	buf, err := AppendWord(make([]byte, 0, len(word)+5), word)
	if err != nil {
		return err
	}
	_, err = w.Write(buf)
	return err
}

// ReadWord reads one word from r. A zero-length word is the sentence
// terminator and comes back as an empty, non-nil slice.
func ReadWord(r io.Reader) ([]byte, error) {
	n, err := DecodeLength(r)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []byte{}, nil
	}

	// Grow with the data actually received rather than trusting the prefix.
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, int64(n)); err != nil {
		return nil, unexpected(err)
	}
	return buf.Bytes(), nil
}

func unexpected(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
