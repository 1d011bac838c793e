package webfig

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nimda/routeros-brute/internal/interfaces"
	"github.com/nimda/routeros-brute/pkg/utils"
	zlog "github.com/rs/zerolog/log"
)

const (
	// DefaultPort is the plain HTTP port WebFig listens on.
	DefaultPort = 80
	// DefaultTLSPort is the HTTPS port.
	DefaultTLSPort = 443

	proxyPath = "/jsproxy"
	maxBody   = 1 << 20
)

// Client tests credentials against the WebFig jsproxy endpoint. Every
// attempt negotiates a new encrypted session.
type Client struct {
	target     string
	url        string
	httpClient *http.Client
}

// NewClient creates a WebFig login client from a ClientConfig
func NewClient(cfg interfaces.ClientConfig) *Client {
	scheme := "http"
	port := cfg.Port
	if cfg.TLS {
		scheme = "https"
		if port == 0 {
			port = DefaultTLSPort
		}
	}
	if port == 0 {
		port = DefaultPort
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	target := strings.TrimRight(cfg.Target, "/")
	return &Client{
		target: target,
		url:    fmt.Sprintf("%s://%s%s", scheme, net.JoinHostPort(target, strconv.Itoa(port)), proxyPath),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DisableKeepAlives:   true,
				TLSClientConfig:     &tls.Config{InsecureSkipVerify: !cfg.VerifyTLS}, //nolint:gosec // self-signed router certificates
				TLSHandshakeTimeout: timeout,
				DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
			},
		},
	}
}

// Service returns the service name
func (c *Client) Service() string {
	return "webfig"
}

// Target returns the target
func (c *Client) Target() string {
	return c.target
}

// Login negotiates a session and submits the credential. A reply carrying
// a session token is success, any other well-formed reply is a rejection.
func (c *Client) Login(ctx context.Context, username, password string) (interfaces.Outcome, error) {
	zlog.Trace().Str("url", c.url).Str("username", username).Msg("Testing WebFig credentials")

	sess, err := c.negotiate(ctx)
	if err != nil {
		return interfaces.OutcomeError, err
	}

	msg := NewMessage()
	msg.SetString(FieldUsername, []byte(username))
	msg.SetString(FieldPassword, []byte(password))

	body, status, err := c.post(ctx, "msg", sess.Seal(msg))
	if err != nil {
		return interfaces.OutcomeError, err
	}
	switch status {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return interfaces.OutcomeFailure, nil
	default:
		return interfaces.OutcomeError, utils.NewProtocolError("unexpected webfig status " + strconv.Itoa(status))
	}

	reply, err := sess.Open(body)
	if err != nil {
		return interfaces.OutcomeError, err
	}
	if _, ok := reply.Lookup(FieldSessionToken); ok {
		return interfaces.OutcomeSuccess, nil
	}
	if code, ok := reply.U32s[FieldErrorCode]; ok {
		zlog.Trace().Uint32("code", code).Msg("WebFig login rejected")
	}
	return interfaces.OutcomeFailure, nil
}

func (c *Client) negotiate(ctx context.Context) (*Session, error) {
	keys, err := GenerateKeys()
	if err != nil {
		return nil, err
	}
	hello, err := EncodeHandshake(append(make([]byte, 8), keys.WirePublic()...))
	if err != nil {
		return nil, err
	}

	body, status, err := c.post(ctx, "application/octet-stream", hello)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, utils.NewProtocolError("webfig handshake status " + strconv.Itoa(status))
	}
	raw, err := DecodeHandshake(body)
	if err != nil {
		return nil, err
	}
	if len(raw) != handshakeSize {
		return nil, utils.NewProtocolError(fmt.Sprintf("unexpected webfig handshake size %d", len(raw)))
	}

	shared, err := keys.Shared(raw[8:])
	if err != nil {
		return nil, err
	}
	return NewSession(binary.BigEndian.Uint32(raw[0:4]), shared, false)
}

func (c *Client) post(ctx context.Context, contentType string, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, utils.NewConnectionOpError(c.target, "http", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zlog.Trace().Err(err).Msg("Error closing webfig response body")
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, 0, utils.NewConnectionOpError(c.target, "http body", err)
	}
	return body, resp.StatusCode, nil
}

// Factory creates WebFig clients bound to one configuration
type Factory struct {
	cfg interfaces.ClientConfig
}

// CreateClient creates a new WebFig client
func (f *Factory) CreateClient() (interfaces.LoginClient, error) {
	return NewClient(f.cfg), nil
}

// Service returns the service name
func (f *Factory) Service() string {
	return "webfig"
}

func init() {
	_ = interfaces.Register(interfaces.ServiceInfo{
		Name:        "webfig",
		Description: "MikroTik WebFig jsproxy (curve25519 + RC4 session)",
		DefaultPort: DefaultPort,
		NewFactory: func(cfg interfaces.ClientConfig) interfaces.ClientFactory {
			return &Factory{cfg: cfg}
		},
	})
}

var _ interfaces.LoginClient = (*Client)(nil)
var _ interfaces.ClientFactory = (*Factory)(nil)
