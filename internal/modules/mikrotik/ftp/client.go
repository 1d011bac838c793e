package ftp

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/nimda/routeros-brute/internal/interfaces"
	"github.com/nimda/routeros-brute/pkg/utils"
	zlog "github.com/rs/zerolog/log"
)

// DefaultPort is the RouterOS FTP control port.
const DefaultPort = 21

// Client tests credentials against the router's FTP service, which shares
// the router user database with the API.
type Client struct {
	target    string
	port      int
	timeout   time.Duration
	tlsConfig *tls.Config
}

// NewClient creates an FTP login client. cfg.TLS switches to explicit FTPS
// (AUTH TLS) on the same port.
func NewClient(cfg interfaces.ClientConfig) *Client {
	c := &Client{target: cfg.Target, port: cfg.Port, timeout: cfg.Timeout}
	if c.port == 0 {
		c.port = DefaultPort
	}
	if c.timeout <= 0 {
		c.timeout = 5 * time.Second
	}
	if cfg.TLS {
		c.tlsConfig = &tls.Config{ServerName: cfg.Target, InsecureSkipVerify: !cfg.VerifyTLS} //nolint:gosec // self-signed router certificates
	}
	return c
}

// Service returns the service name
func (c *Client) Service() string {
	return "ftp"
}

// Target returns the target
func (c *Client) Target() string {
	return c.target
}

// Login opens a control connection and sends USER/PASS.
func (c *Client) Login(ctx context.Context, username, password string) (interfaces.Outcome, error) {
	addr := net.JoinHostPort(c.target, strconv.Itoa(c.port))
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(c.timeout),
	}
	if c.tlsConfig != nil {
		opts = append(opts, ftp.DialWithExplicitTLS(c.tlsConfig))
	}

	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		var protoErr *textproto.Error
		if errors.As(err, &protoErr) {
			// 421 and friends: the router refused the session, not the credential
			return interfaces.OutcomeError, utils.NewConnectionOpError(c.target, "ftp greeting", err)
		}
		return interfaces.OutcomeError, utils.NewConnectionOpError(c.target, "dial", err)
	}
	defer func() {
		if err := conn.Quit(); err != nil {
			zlog.Trace().Err(err).Str("target", c.target).Msg("Error closing ftp connection")
		}
	}()

	err = conn.Login(username, password)
	if err == nil {
		return interfaces.OutcomeSuccess, nil
	}
	return classify(c.target, err)
}

// classify maps a USER/PASS error. 5xx replies reject the credential, 4xx
// replies are temporary refusals and everything else is transport trouble.
func classify(target string, err error) (interfaces.Outcome, error) {
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		switch {
		case protoErr.Code >= 500:
			zlog.Trace().Int("code", protoErr.Code).Str("msg", protoErr.Msg).Msg("FTP login rejected")
			return interfaces.OutcomeFailure, nil
		case protoErr.Code >= 400:
			return interfaces.OutcomeError, utils.NewConnectionOpError(target, "ftp login", err)
		default:
			return interfaces.OutcomeError, utils.NewProtocolError("unexpected ftp reply " + strconv.Itoa(protoErr.Code) + " " + protoErr.Msg)
		}
	}

	// USER answered with something other than 230/331 comes back as bare text
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "login incorrect") || strings.Contains(msg, "not logged in") {
		return interfaces.OutcomeFailure, nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, net.ErrClosed) || strings.Contains(msg, "eof") {
		return interfaces.OutcomeError, utils.NewConnectionOpError(target, "ftp login", err)
	}
	return interfaces.OutcomeError, utils.NewProtocolError("unexpected ftp reply: " + err.Error())
}

// Factory creates FTP clients bound to one configuration
type Factory struct {
	cfg interfaces.ClientConfig
}

// CreateClient creates a new FTP client
func (f *Factory) CreateClient() (interfaces.LoginClient, error) {
	return NewClient(f.cfg), nil
}

// Service returns the service name
func (f *Factory) Service() string {
	return "ftp"
}

func init() {
	_ = interfaces.Register(interfaces.ServiceInfo{
		Name:        "ftp",
		Description: "MikroTik RouterOS FTP server (USER/PASS)",
		DefaultPort: DefaultPort,
		NewFactory: func(cfg interfaces.ClientConfig) interfaces.ClientFactory {
			return &Factory{cfg: cfg}
		},
	})
}

var _ interfaces.LoginClient = (*Client)(nil)
var _ interfaces.ClientFactory = (*Factory)(nil)
