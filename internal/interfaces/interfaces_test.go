package interfaces

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFactory struct{ name string }

func (s *stubFactory) CreateClient() (LoginClient, error) { return nil, nil }
func (s *stubFactory) Service() string                    { return s.name }

func TestServiceRegistry(t *testing.T) {
	r := NewServiceRegistry()
	info := ServiceInfo{
		Name:        "api",
		DefaultPort: 8728,
		NewFactory:  func(cfg ClientConfig) ClientFactory { return &stubFactory{name: "api"} },
	}

	require.NoError(t, r.Register(info))
	assert.Error(t, r.Register(info), "duplicate registration must fail")
	assert.Error(t, r.Register(ServiceInfo{Name: "x"}), "nil factory must fail")

	got, ok := r.Get("api")
	require.True(t, ok)
	assert.Equal(t, 8728, got.DefaultPort)

	infos, err := r.Resolve([]string{" api "})
	require.NoError(t, err)
	assert.Len(t, infos, 1)

	_, err = r.Resolve([]string{"telnet"})
	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestValidateWorkers(t *testing.T) {
	assert.NoError(t, ValidateWorkers(1))
	assert.NoError(t, ValidateWorkers(MaxWorkers))
	assert.Error(t, ValidateWorkers(0))
	assert.Error(t, ValidateWorkers(MaxWorkers+1))
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "users.txt")
	require.NoError(t, os.WriteFile(path, []byte("admin\n"), 0o600))

	assert.NoError(t, ValidateFile("users", path))
	assert.Error(t, ValidateFile("users", dir))

	err := ValidateFile("combo", filepath.Join(dir, "missing.txt"))
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "combo", vErr.Field)
}

func TestValidateTarget(t *testing.T) {
	assert.NoError(t, ValidateTarget("192.168.88.1"))
	assert.NoError(t, ValidateTarget("router.lan"))
	assert.Error(t, ValidateTarget("  "))
	assert.Error(t, ValidateTarget("https://192.168.88.1"))
}

func TestClientConfigValidate(t *testing.T) {
	cfg := NewClientConfig("192.168.88.1")
	assert.Error(t, cfg.Validate(), "port is unset")

	cfg.Port = 8728
	assert.NoError(t, cfg.Validate())

	cfg.Timeout = 0
	assert.Error(t, cfg.Validate())
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "failure", OutcomeFailure.String())
	assert.Equal(t, "error", OutcomeError.String())
}
