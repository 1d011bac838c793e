package api

import (
	"crypto/tls"
	"time"

	"golang.org/x/text/encoding"

	"github.com/nimda/routeros-brute/internal/interfaces"
	"github.com/nimda/routeros-brute/internal/modules/mikrotik/common"
)

// Option is a functional option for configuring Client.
type Option func(*Client)

// WithPort sets the port number.
func WithPort(port int) Option {
	return func(c *Client) {
		c.port = port
	}
}

// WithTimeout bounds dialing and every socket read/write.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithTLS wraps the connection in TLS (api-ssl).
func WithTLS(cfg *tls.Config) Option {
	return func(c *Client) {
		c.useTLS = true
		c.tlsConfig = cfg
	}
}

// WithCharset transcodes words before they hit the wire.
func WithCharset(enc encoding.Encoding) Option {
	return func(c *Client) {
		c.charset = enc
	}
}

// WithDialer replaces the network dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) {
		c.dialer = d
	}
}

// NewClientFromConfig builds a client from a ClientConfig.
func NewClientFromConfig(cfg interfaces.ClientConfig) (*Client, error) {
	charset, err := common.LookupCharset(cfg.Charset)
	if err != nil {
		return nil, &interfaces.ValidationError{Field: "charset", Message: err.Error()}
	}

	opts := []Option{WithCharset(charset)}
	if cfg.Timeout > 0 {
		opts = append(opts, WithTimeout(cfg.Timeout))
	}
	port := cfg.Port
	if cfg.TLS {
		opts = append(opts, WithTLS(&tls.Config{InsecureSkipVerify: !cfg.VerifyTLS})) //nolint:gosec // opt-in verification
		if port == 0 {
			port = DefaultTLSPort
		}
	}
	if port == 0 {
		port = DefaultPort
	}
	opts = append(opts, WithPort(port))

	return NewClient(cfg.Target, opts...), nil
}
