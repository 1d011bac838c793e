package common

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
)

func TestSentenceRoundTrip(t *testing.T) {
	sentence := []string{"/login", "=name=admin", "=password=test123"}

	encoded, err := EncodeSentence(sentence...)
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), encoded[len(encoded)-1])

	sentences, err := DecodeSentences(encoded)
	require.NoError(t, err)
	require.Len(t, sentences, 1)
	assert.Equal(t, sentence, sentences[0])
}

func TestEmptySentence(t *testing.T) {
	words, err := ReadSentence(bytes.NewReader([]byte{0x00}))
	require.NoError(t, err)
	assert.Empty(t, words)
}

func TestReadSentenceClosedBeforeTerminator(t *testing.T) {
	encoded, err := EncodeSentence("!done")
	require.NoError(t, err)

	_, err = ReadSentence(bytes.NewReader(encoded[:len(encoded)-1]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecodeMultipleSentences(t *testing.T) {
	first, err := EncodeSentence("!trap", "=message=invalid user name or password (6)")
	require.NoError(t, err)
	second, err := EncodeSentence("!done")
	require.NoError(t, err)

	sentences, err := DecodeSentences(append(first, second...))
	require.NoError(t, err)
	require.Len(t, sentences, 2)
	assert.Equal(t, "!trap", sentences[0][0])
	assert.Equal(t, []string{"!done"}, sentences[1])
}

func TestConnSendReceive(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := NewConn(client, "pipe", time.Second, nil)
	peer := NewConn(server, "pipe", time.Second, nil)

	go func() {
		_ = c.Send("/login", "=name=admin")
	}()

	words, err := peer.Receive()
	require.NoError(t, err)
	assert.Equal(t, []string{"/login", "=name=admin"}, words)
}

func TestConnReceiveTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := NewConn(client, "pipe", 20*time.Millisecond, nil)
	_, err := c.Receive()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection error (pipe, read)")
}

func TestCharsetTranscoding(t *testing.T) {
	enc, err := LookupCharset("cp1252")
	require.NoError(t, err)
	assert.Equal(t, charmap.Windows1252, enc)

	raw, err := EncodeText(enc, "senhaç")
	require.NoError(t, err)
	assert.Equal(t, []byte{'s', 'e', 'n', 'h', 'a', 0xE7}, raw)
	assert.Equal(t, "senhaç", DecodeText(enc, raw))

	none, err := LookupCharset("")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = LookupCharset("ebcdic")
	assert.Error(t, err)
}
