package api

import (
	"context"
	"crypto/md5"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/text/encoding"

	"github.com/nimda/routeros-brute/internal/interfaces"
	"github.com/nimda/routeros-brute/internal/modules/mikrotik/common"
	"github.com/nimda/routeros-brute/pkg/utils"
	zlog "github.com/rs/zerolog/log"
)

const (
	// DefaultPort is the plain RouterOS API port.
	DefaultPort = 8728
	// DefaultTLSPort is the api-ssl port.
	DefaultTLSPort = 8729
)

// Dialer opens the raw transport. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Client logs in to the RouterOS binary API. Every Login opens a fresh
// connection and closes it afterwards; the router keeps per-session login
// state that must not leak between attempts.
type Client struct {
	target    string
	port      int
	timeout   time.Duration
	useTLS    bool
	tlsConfig *tls.Config
	charset   encoding.Encoding
	dialer    Dialer
}

// NewClient creates a new RouterOS API client
func NewClient(target string, opts ...Option) *Client {
	c := &Client{
		target:  target,
		port:    DefaultPort,
		timeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = &net.Dialer{Timeout: c.timeout}
	}
	return c
}

// Service returns the service name
func (c *Client) Service() string {
	if c.useTLS {
		return "api-ssl"
	}
	return "api"
}

// Target returns the target host
func (c *Client) Target() string {
	return c.target
}

// Address returns host:port
func (c *Client) Address() string {
	return net.JoinHostPort(c.target, strconv.Itoa(c.port))
}

// Login runs the login exchange on a new connection.
func (c *Client) Login(ctx context.Context, username, password string) (interfaces.Outcome, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return interfaces.OutcomeError, err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			zlog.Trace().Err(err).Str("target", c.target).Msg("Error closing api connection")
		}
	}()

	zlog.Trace().
		Str("target", c.target).
		Str("username", username).
		Str("password", password).
		Msg("Trying:")

	return c.login(conn, username, password)
}

func (c *Client) dial(ctx context.Context) (*common.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.dialer.DialContext(dialCtx, "tcp", c.Address())
	if err != nil {
		return nil, utils.NewConnectionOpError(c.target, "dial", err)
	}

	if c.useTLS {
		cfg := c.tlsConfig
		if cfg == nil {
			cfg = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // routers ship self-signed certificates
		}
		if cfg.ServerName == "" && !cfg.InsecureSkipVerify {
			cfg = cfg.Clone()
			cfg.ServerName = c.target
		}
		tlsConn := tls.Client(raw, cfg)
		if err := tlsConn.HandshakeContext(dialCtx); err != nil {
			_ = raw.Close()
			return nil, utils.NewConnectionOpError(c.target, "tls handshake", err)
		}
		raw = tlsConn
	}

	return common.NewConn(raw, c.target, c.timeout, c.charset), nil
}

// login drives Start -> SentPlainLogin -> {Done | ChallengeReceived -> SentChallengeResponse -> Done}.
func (c *Client) login(conn *common.Conn, username, password string) (interfaces.Outcome, error) {
	if err := conn.Send("/login", "=name="+username, "=password="+password); err != nil {
		return interfaces.OutcomeError, err
	}

	reply, err := c.readReply(conn)
	if err != nil {
		return interfaces.OutcomeError, err
	}

	switch reply.Kind {
	case ReplyPlainSuccess:
		return interfaces.OutcomeSuccess, nil
	case ReplyChallenge:
		zlog.Trace().Str("target", c.target).Msg("Router requested legacy challenge login")
		return c.respondToChallenge(conn, username, password, reply.Challenge)
	case ReplyTrap, ReplyRejected:
		zlog.Trace().Str("target", c.target).Str("reply", reply.Kind.String()).Str("message", reply.Message).Msg("Login rejected")
		return interfaces.OutcomeFailure, nil
	default:
		return interfaces.OutcomeError, utils.NewProtocolError("unexpected login reply", reply.Words...)
	}
}

func (c *Client) respondToChallenge(conn *common.Conn, username, password string, challenge []byte) (interfaces.Outcome, error) {
	pass, err := common.EncodeText(c.charset, password)
	if err != nil {
		return interfaces.OutcomeError, err
	}

	if err := conn.Send("/login", "=name="+username, "=response="+ChallengeResponse(pass, challenge)); err != nil {
		return interfaces.OutcomeError, err
	}

	reply, err := c.readReply(conn)
	if err != nil {
		return interfaces.OutcomeError, err
	}
	if reply.IsRejection() {
		return interfaces.OutcomeFailure, nil
	}
	if containsWord(reply.Words, "!done") {
		return interfaces.OutcomeSuccess, nil
	}
	return interfaces.OutcomeError, utils.NewProtocolError("unexpected challenge reply", reply.Words...)
}

// readReply returns the first non-empty sentence, classified.
func (c *Client) readReply(conn *common.Conn) (Reply, error) {
	for {
		words, err := conn.Receive()
		if err != nil {
			return Reply{}, err
		}
		if len(words) == 0 {
			continue
		}
		return ClassifyReply(words)
	}
}

// ChallengeResponse computes "00" + hex(MD5(0x00 || password || challenge)).
func ChallengeResponse(password, challenge []byte) string {
	h := md5.New()
	h.Write([]byte{0x00})
	h.Write(password)
	h.Write(challenge)
	return "00" + hex.EncodeToString(h.Sum(nil))
}

// String implements fmt.Stringer
func (c *Client) String() string {
	return fmt.Sprintf("%s://%s", c.Service(), c.Address())
}

// Ensure Client implements the LoginClient interface
var _ interfaces.LoginClient = (*Client)(nil)
