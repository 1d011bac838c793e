package rest

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/nimda/routeros-brute/internal/interfaces"
	"github.com/nimda/routeros-brute/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentityServer(t *testing.T, status int) (*httptest.Server, interfaces.ClientConfig) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" || r.URL.Path != identityPath {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"name":"MikroTik"}`))
	}))
	t.Cleanup(srv.Close)

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	cfg := interfaces.NewClientConfig(host)
	cfg.Port, _ = strconv.Atoi(port)
	return srv, *cfg
}

func TestRestLogin(t *testing.T) {
	_, cfg := newIdentityServer(t, http.StatusOK)
	client := NewClient(cfg)

	outcome, err := client.Login(context.Background(), "admin", "secret")
	require.NoError(t, err)
	assert.Equal(t, interfaces.OutcomeSuccess, outcome)

	outcome, err = client.Login(context.Background(), "admin", "wrong")
	require.NoError(t, err)
	assert.Equal(t, interfaces.OutcomeFailure, outcome)
}

func TestRestUnexpectedStatus(t *testing.T) {
	_, cfg := newIdentityServer(t, http.StatusInternalServerError)
	outcome, err := NewClient(cfg).Login(context.Background(), "admin", "secret")
	assert.Equal(t, interfaces.OutcomeError, outcome)
	var protoErr *utils.ProtocolError
	assert.ErrorAs(t, err, &protoErr)
}

func TestRestUnreachable(t *testing.T) {
	srv, cfg := newIdentityServer(t, http.StatusOK)
	srv.Close()

	outcome, err := NewClient(cfg).Login(context.Background(), "admin", "secret")
	assert.Equal(t, interfaces.OutcomeError, outcome)
	assert.True(t, utils.IsTransportError(err))
}

func TestRestDefaults(t *testing.T) {
	cfg := interfaces.NewClientConfig("192.168.88.1/")
	assert.Equal(t, "http://192.168.88.1:80", NewClient(*cfg).baseURL)

	cfg.TLS = true
	assert.Equal(t, "https://192.168.88.1:443", NewClient(*cfg).baseURL)
}
