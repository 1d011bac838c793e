package rest

import (
	"context"
	"crypto/tls"
	"encoding/json"
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
	// DefaultPort is the plain HTTP port of the REST API.
	DefaultPort = 80
	// DefaultTLSPort is the HTTPS port of the REST API.
	DefaultTLSPort = 443

	identityPath = "/rest/system/identity"
)

// Client tests credentials against the RouterOS v7 REST API with Basic
// Authentication. Keep-alives are disabled so each attempt gets its own
// connection, like the binary API client.
type Client struct {
	target     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a REST login client from a ClientConfig
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
	transport := &http.Transport{
		DisableKeepAlives:   true,
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: !cfg.VerifyTLS}, //nolint:gosec // routers ship self-signed certificates
		TLSHandshakeTimeout: timeout,
		DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
	}

	return &Client{
		target:  target,
		baseURL: fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(target, strconv.Itoa(port))),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// Service returns the service name
func (c *Client) Service() string {
	return "rest"
}

// Target returns the target
func (c *Client) Target() string {
	return c.target
}

// Login performs one authenticated request against the identity endpoint.
// 200 with a JSON body is success, 401/403 is a rejection.
func (c *Client) Login(ctx context.Context, username, password string) (interfaces.Outcome, error) {
	testURL := c.baseURL + identityPath
	zlog.Trace().Str("url", testURL).Str("username", username).Msg("Testing REST API credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, testURL, nil)
	if err != nil {
		return interfaces.OutcomeError, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(username, password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return interfaces.OutcomeError, utils.NewConnectionOpError(c.target, "http", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			zlog.Trace().Err(err).Msg("Error closing REST response body")
		}
	}()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return interfaces.OutcomeFailure, nil
	case http.StatusOK:
	default:
		return interfaces.OutcomeError, utils.NewProtocolError("unexpected REST status " + strconv.Itoa(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return interfaces.OutcomeError, utils.NewConnectionOpError(c.target, "http body", err)
	}

	var identity map[string]interface{}
	if err := json.Unmarshal(body, &identity); err != nil {
		return interfaces.OutcomeError, utils.NewProtocolError("invalid REST API response format")
	}
	zlog.Trace().Interface("identity", identity).Msg("REST API credentials accepted")
	return interfaces.OutcomeSuccess, nil
}

// Factory creates REST clients bound to one configuration
type Factory struct {
	cfg interfaces.ClientConfig
}

// CreateClient creates a new REST client
func (f *Factory) CreateClient() (interfaces.LoginClient, error) {
	return NewClient(f.cfg), nil
}

// Service returns the service name
func (f *Factory) Service() string {
	return "rest"
}

func init() {
	_ = interfaces.Register(interfaces.ServiceInfo{
		Name:        "rest",
		Description: "MikroTik RouterOS v7 REST API (HTTP basic auth)",
		DefaultPort: DefaultPort,
		NewFactory: func(cfg interfaces.ClientConfig) interfaces.ClientFactory {
			return &Factory{cfg: cfg}
		},
	})
}

var _ interfaces.LoginClient = (*Client)(nil)
var _ interfaces.ClientFactory = (*Factory)(nil)
