package common

import (
	"bufio"
	"errors"
	"net"
	"time"

	"golang.org/x/text/encoding"

	"github.com/nimda/routeros-brute/pkg/utils"
	zlog "github.com/rs/zerolog/log"
)

// Conn speaks sentences over a single connection. Every Send and Receive
// refreshes the deadline so a silent peer surfaces as a timeout.
type Conn struct {
	conn    net.Conn
	reader  *bufio.Reader
	target  string
	timeout time.Duration
	charset encoding.Encoding
}

// NewConn wraps an established connection.
func NewConn(conn net.Conn, target string, timeout time.Duration, charset encoding.Encoding) *Conn {
	return &Conn{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		target:  target,
		timeout: timeout,
		charset: charset,
	}
}

// Send writes one sentence. Words are transcoded to the configured charset.
func (c *Conn) Send(words ...string) error {
	raw := make([][]byte, len(words))
	for i, w := range words {
		b, err := EncodeText(c.charset, w)
		if err != nil {
			return err
		}
		raw[i] = b
	}
	return c.SendRaw(raw...)
}

// SendRaw writes one sentence of already-encoded words.
func (c *Conn) SendRaw(words ...[]byte) error {
	buf, err := AppendSentence(nil, words...)
	if err != nil {
		return err
	}
	if err := c.refreshDeadline(); err != nil {
		return err
	}
	if _, err := c.conn.Write(buf); err != nil {
		return utils.NewConnectionOpError(c.target, "write", err)
	}
	zlog.Trace().Str("target", c.target).Int("words", len(words)).Int("bytes", len(buf)).Msg("Sentence sent")
	return nil
}

// Receive reads one sentence and returns its words as text.
func (c *Conn) Receive() ([]string, error) {
	if err := c.refreshDeadline(); err != nil {
		return nil, err
	}
	raw, err := ReadSentence(c.reader)
	if err != nil {
		var protoErr *utils.ProtocolError
		if errors.As(err, &protoErr) {
			return nil, err
		}
		return nil, utils.NewConnectionOpError(c.target, "read", err)
	}
	words := make([]string, len(raw))
	for i, w := range raw {
		words[i] = DecodeText(c.charset, w)
	}
	zlog.Trace().Str("target", c.target).Strs("words", words).Msg("Sentence received")
	return words, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) refreshDeadline() error {
	if c.timeout <= 0 {
		return nil
	}
	if err := c.conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return utils.NewConnectionOpError(c.target, "deadline", err)
	}
	return nil
}
