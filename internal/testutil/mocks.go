package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/nimda/routeros-brute/internal/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockClient is a testify mock of interfaces.LoginClient
type MockClient struct {
	mock.Mock
	service string
	target  string
}

// NewMockClient creates a new mock client for the given service
func NewMockClient(service, target string) *MockClient {
	return &MockClient{service: service, target: target}
}

// Login records the call and returns the configured outcome
func (m *MockClient) Login(ctx context.Context, username, password string) (interfaces.Outcome, error) {
	args := m.Called(ctx, username, password)
	return args.Get(0).(interfaces.Outcome), args.Error(1)
}

// Service returns the service name
func (m *MockClient) Service() string {
	return m.service
}

// Target returns the target
func (m *MockClient) Target() string {
	return m.target
}

// MockClientFactory is a mock factory for creating login clients
type MockClientFactory struct {
	mock.Mock
}

// CreateClient returns the configured client
func (f *MockClientFactory) CreateClient() (interfaces.LoginClient, error) {
	args := f.Called()
	client, _ := args.Get(0).(interfaces.LoginClient)
	return client, args.Error(1)
}

// Service returns the service name
func (f *MockClientFactory) Service() string {
	args := f.Called()
	if len(args) == 0 {
		return "mock"
	}
	return args.String(0)
}

// LoginFunc decides the outcome of one attempt. call is the 1-based global
// call number across all workers.
type LoginFunc func(call int64, username, password string) (interfaces.Outcome, error)

// FakeClient is a lightweight client without testify/mock bookkeeping, safe
// for the engine's concurrent workers. It records every attempted combo.
type FakeClient struct {
	service string
	fn      LoginFunc
	calls   atomic.Int64

	mu       sync.Mutex
	attempts map[string]int
}

// NewFakeClient creates a fake client driven by fn
func NewFakeClient(service string, fn LoginFunc) *FakeClient {
	return &FakeClient{
		service:  service,
		fn:       fn,
		attempts: make(map[string]int),
	}
}

// Login records the attempt and delegates to fn
func (f *FakeClient) Login(ctx context.Context, username, password string) (interfaces.Outcome, error) {
	call := f.calls.Add(1)
	f.mu.Lock()
	f.attempts[username+":"+password]++
	f.mu.Unlock()
	return f.fn(call, username, password)
}

// Service returns the service name
func (f *FakeClient) Service() string {
	return f.service
}

// Target returns a fixed fake target
func (f *FakeClient) Target() string {
	return "fake-target"
}

// Calls returns the number of Login calls
func (f *FakeClient) Calls() int64 {
	return f.calls.Load()
}

// Attempts returns a copy of combo -> attempt count
func (f *FakeClient) Attempts() map[string]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]int, len(f.attempts))
	for k, v := range f.attempts {
		out[k] = v
	}
	return out
}

// SharedFactory hands out the same client to every worker.
type SharedFactory struct {
	Client interfaces.LoginClient
}

// CreateClient returns the shared client
func (s *SharedFactory) CreateClient() (interfaces.LoginClient, error) {
	return s.Client, nil
}

// Service returns the shared client's service
func (s *SharedFactory) Service() string {
	return s.Client.Service()
}

// AlwaysFail rejects every credential.
func AlwaysFail(int64, string, string) (interfaces.Outcome, error) {
	return interfaces.OutcomeFailure, nil
}

// SucceedOnCall accepts exactly the n-th call.
func SucceedOnCall(n int64) LoginFunc {
	return func(call int64, _, _ string) (interfaces.Outcome, error) {
		if call == n {
			return interfaces.OutcomeSuccess, nil
		}
		return interfaces.OutcomeFailure, nil
	}
}

// AcceptPassword accepts a single user/password pair.
func AcceptPassword(user, password string) LoginFunc {
	return func(_ int64, u, p string) (interfaces.Outcome, error) {
		if u == user && p == password {
			return interfaces.OutcomeSuccess, nil
		}
		return interfaces.OutcomeFailure, nil
	}
}

// Ensure interfaces are implemented
var _ interfaces.LoginClient = (*MockClient)(nil)
var _ interfaces.ClientFactory = (*MockClientFactory)(nil)
var _ interfaces.LoginClient = (*FakeClient)(nil)
var _ interfaces.ClientFactory = (*SharedFactory)(nil)
