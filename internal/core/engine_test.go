package core

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nimda/routeros-brute/internal/credentials"
	"github.com/nimda/routeros-brute/internal/interfaces"
	"github.com/nimda/routeros-brute/internal/resilience"
	"github.com/nimda/routeros-brute/internal/testutil"
	"github.com/nimda/routeros-brute/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func makeCombos(n int) []credentials.Credential {
	combos := make([]credentials.Credential, n)
	for i := range combos {
		combos[i] = credentials.Credential{Username: "admin", Password: fmt.Sprintf("pass%03d", i)}
	}
	return combos
}

func factoriesFor(clients ...interfaces.LoginClient) []interfaces.ClientFactory {
	out := make([]interfaces.ClientFactory, len(clients))
	for i, c := range clients {
		out[i] = &testutil.SharedFactory{Client: c}
	}
	return out
}

func TestEngineTestsEveryComboOnce(t *testing.T) {
	client := testutil.NewFakeClient("api", testutil.AlwaysFail)
	combos := makeCombos(100)

	var events atomic.Int64
	engine := NewEngine(factoriesFor(client), combos,
		WithWorkers(4),
		WithEventHandler(func(Event) { events.Add(1) }),
	)
	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	attempts := client.Attempts()
	assert.Len(t, attempts, 100)
	for _, c := range combos {
		assert.Equal(t, 1, attempts[c.String()], c.String())
	}
	assert.Equal(t, int64(100), client.Calls())
	assert.Equal(t, int64(100), events.Load())

	assert.Equal(t, 100, summary.Total)
	assert.Equal(t, 100, summary.Tested)
	assert.Equal(t, 100, summary.Failures)
	assert.Equal(t, 100, summary.Watermark)
	assert.Empty(t, summary.Successes)
	assert.False(t, summary.Interrupted)
	assert.False(t, summary.LikelyUnreachable())
}

func TestEngineStopOnSuccess(t *testing.T) {
	client := testutil.NewFakeClient("api", testutil.SucceedOnCall(5))
	combos := makeCombos(50)

	engine := NewEngine(factoriesFor(client), combos,
		WithWorkers(4),
		WithStopOnSuccess(true),
	)
	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Successes, 1)
	assert.Equal(t, []string{"api"}, summary.Successes[0].Services)
	assert.GreaterOrEqual(t, client.Calls(), int64(5))
	assert.LessOrEqual(t, client.Calls(), int64(len(combos)))
	assert.True(t, summary.Stopped)
	assert.False(t, summary.Interrupted)
}

func TestEngineExhaustiveFindsAll(t *testing.T) {
	client := testutil.NewFakeClient("api", func(_ int64, _, p string) (interfaces.Outcome, error) {
		if p == "pass003" || p == "pass017" {
			return interfaces.OutcomeSuccess, nil
		}
		return interfaces.OutcomeFailure, nil
	})

	engine := NewEngine(factoriesFor(client), makeCombos(20), WithWorkers(3))
	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, summary.Successes, 2)
	assert.Equal(t, 20, summary.Tested)
	assert.Equal(t, 18, summary.Failures)
	assert.Len(t, engine.Successes(), 2)
	assert.Equal(t, 1.0, engine.Progress())

	stats := engine.Stats()
	assert.Equal(t, 20, stats["total_combinations"])
	assert.Equal(t, 0, stats["remaining"])
	assert.Equal(t, int64(20), stats["tested"])
}

func TestEngineStartIndexSkipsTested(t *testing.T) {
	client := testutil.NewFakeClient("api", testutil.AlwaysFail)
	combos := makeCombos(10)

	engine := NewEngine(factoriesFor(client), combos, WithWorkers(2), WithStartIndex(6))
	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	attempts := client.Attempts()
	assert.Len(t, attempts, 4)
	for _, c := range combos[:6] {
		assert.NotContains(t, attempts, c.String())
	}
	assert.Equal(t, 4, summary.Tested)
	assert.Equal(t, 10, summary.Watermark)
}

func TestEnginePriorSuccessesInSummary(t *testing.T) {
	combos := makeCombos(10)
	found := time.Now().Add(-time.Hour)
	prior := []Success{
		{Credential: combos[1], Services: []string{"rest"}, FoundAt: found},
		{Credential: credentials.Credential{Username: "root", Password: "toor"}, Services: []string{"api"}, FoundAt: found},
	}
	client := testutil.NewFakeClient("api", func(_ int64, _, p string) (interfaces.Outcome, error) {
		if p == "pass001" || p == "pass007" {
			return interfaces.OutcomeSuccess, nil
		}
		return interfaces.OutcomeFailure, nil
	})

	engine := NewEngine(factoriesFor(client), combos,
		WithWorkers(2),
		WithStartIndex(1),
		WithPriorSuccesses(prior),
	)
	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Successes, 3)
	assert.Equal(t, combos[1], summary.Successes[0].Credential)
	assert.Equal(t, []string{"rest", "api"}, summary.Successes[0].Services)
	assert.Equal(t, found, summary.Successes[0].FoundAt)
	assert.Equal(t, "toor", summary.Successes[1].Credential.Password)
	assert.Equal(t, combos[7], summary.Successes[2].Credential)
	assert.Len(t, engine.Successes(), 2)
	assert.Equal(t, []string{"rest"}, prior[0].Services)
}

func TestEnginePriorSuccessesDoNotStopRun(t *testing.T) {
	client := testutil.NewFakeClient("api", testutil.AlwaysFail)
	combos := makeCombos(8)

	summary, err := NewEngine(factoriesFor(client), combos,
		WithWorkers(2),
		WithStopOnSuccess(true),
		WithPriorSuccesses([]Success{{Credential: combos[0], Services: []string{"api"}}}),
	).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, summary.Stopped)
	assert.Equal(t, 8, summary.Tested)
	require.Len(t, summary.Successes, 1)
	assert.False(t, summary.LikelyUnreachable())
}

func TestEngineCancellationLetsInFlightFinish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	started := make(chan struct{}, 10)

	client := testutil.NewFakeClient("api", func(int64, string, string) (interfaces.Outcome, error) {
		started <- struct{}{}
		<-release
		return interfaces.OutcomeFailure, nil
	})

	engine := NewEngine(factoriesFor(client), makeCombos(100), WithWorkers(2))
	done := make(chan *Summary, 1)
	go func() {
		summary, err := engine.Run(ctx)
		assert.NoError(t, err)
		done <- summary
	}()

	<-started
	<-started
	cancel()
	close(release)

	select {
	case summary := <-done:
		assert.Equal(t, 2, summary.Tested)
		assert.Equal(t, 2, summary.Failures)
		assert.True(t, summary.Interrupted)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop after cancellation")
	}
}

func TestEngineCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := testutil.NewFakeClient("api", func(int64, string, string) (interfaces.Outcome, error) {
		cancel()
		return interfaces.OutcomeFailure, nil
	})

	engine := NewEngine(factoriesFor(client), makeCombos(10), WithWorkers(1), WithDelay(time.Hour))
	start := time.Now()
	summary, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, summary.Tested)
}

func TestEngineTransportErrorsHint(t *testing.T) {
	client := testutil.NewFakeClient("api", func(int64, string, string) (interfaces.Outcome, error) {
		return interfaces.OutcomeError, utils.NewConnectionOpError("10.0.0.1:8728", "dial", io.EOF)
	})

	engine := NewEngine(factoriesFor(client), makeCombos(8), WithWorkers(2))
	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8, summary.Errors)
	assert.Equal(t, 8, summary.TransportErrors)
	assert.Equal(t, 0, summary.Failures)
	assert.True(t, summary.LikelyUnreachable())
}

func TestEngineProtocolErrorIsNotTransport(t *testing.T) {
	client := testutil.NewFakeClient("api", func(int64, string, string) (interfaces.Outcome, error) {
		return interfaces.OutcomeError, utils.NewProtocolError("unexpected reply")
	})

	engine := NewEngine(factoriesFor(client), makeCombos(4), WithWorkers(2))
	summary, err := engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Errors)
	assert.Equal(t, 0, summary.TransportErrors)
	assert.False(t, summary.LikelyUnreachable())
}

func TestEngineRetriesTransientErrors(t *testing.T) {
	client := testutil.NewFakeClient("api", func(call int64, _, _ string) (interfaces.Outcome, error) {
		if call%2 == 1 {
			return interfaces.OutcomeError, utils.NewConnectionOpError("h", "read", io.ErrUnexpectedEOF)
		}
		return interfaces.OutcomeFailure, nil
	})

	retry := resilience.DefaultRetryPolicy()
	retry.InitialDelay = time.Millisecond
	engine := NewEngine(factoriesFor(client), makeCombos(5),
		WithWorkers(1),
		WithResilience(func(string) *resilience.Wrapper { return resilience.NewWrapper(retry, nil) }),
	)
	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(10), client.Calls())
	assert.Equal(t, 5, summary.Failures)
	assert.Equal(t, 0, summary.Errors)
}

func TestEngineOpenCircuitCountsAsFailure(t *testing.T) {
	client := testutil.NewFakeClient("api", func(int64, string, string) (interfaces.Outcome, error) {
		return interfaces.OutcomeError, utils.NewConnectionOpError("h", "dial", io.EOF)
	})

	retry := resilience.RetryPolicy{MaxAttempts: 1}
	engine := NewEngine(factoriesFor(client), makeCombos(6),
		WithWorkers(1),
		WithResilience(func(service string) *resilience.Wrapper {
			return resilience.NewWrapper(retry, resilience.NewCircuitBreaker(service, 2, 1, time.Hour))
		}),
	)
	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), client.Calls())
	assert.Equal(t, 2, summary.Errors)
	assert.Equal(t, 4, summary.Failures)
	assert.Equal(t, 6, summary.TransportErrors)
	assert.True(t, summary.LikelyUnreachable())
}

func TestEngineMultipleServices(t *testing.T) {
	api := testutil.NewFakeClient("api", testutil.AcceptPassword("admin", "pass002"))
	rest := testutil.NewFakeClient("rest", func(_ int64, _, p string) (interfaces.Outcome, error) {
		if p == "pass002" || p == "pass004" {
			return interfaces.OutcomeSuccess, nil
		}
		return interfaces.OutcomeFailure, nil
	})

	var mu sync.Mutex
	services := map[string][]string{}
	engine := NewEngine(factoriesFor(api, rest), makeCombos(6),
		WithWorkers(2),
		WithEventHandler(func(ev Event) {
			mu.Lock()
			services[ev.Credential.Password] = ev.Services
			mu.Unlock()
		}),
	)
	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, summary.Successes, 2)
	assert.Equal(t, []string{"api", "rest"}, services["pass002"])
	assert.Equal(t, []string{"rest"}, services["pass004"])
	assert.Equal(t, int64(6), api.Calls())
	assert.Equal(t, int64(6), rest.Calls())
}

func TestEngineUsesMockClient(t *testing.T) {
	client := testutil.NewMockClient("api", "10.0.0.1")
	client.On("Login", mock.Anything, "admin", "admin").Return(interfaces.OutcomeSuccess, nil).Once()
	client.On("Login", mock.Anything, "admin", "").Return(interfaces.OutcomeFailure, nil).Once()

	factory := &testutil.MockClientFactory{}
	factory.On("Service").Return("api")
	factory.On("CreateClient").Return(client, nil)

	combos := []credentials.Credential{{Username: "admin", Password: ""}, {Username: "admin", Password: "admin"}}
	engine := NewEngine([]interfaces.ClientFactory{factory}, combos, WithWorkers(1))
	summary, err := engine.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Successes, 1)
	assert.Equal(t, "admin", summary.Successes[0].Credential.Password)
	client.AssertExpectations(t)
}

func TestEngineWorkerCap(t *testing.T) {
	engine := NewEngine(nil, nil, WithWorkers(100))
	assert.Equal(t, interfaces.MaxWorkers, engine.workers)

	engine = NewEngine(nil, nil, WithWorkers(0))
	assert.Equal(t, 1, engine.workers)
}

func TestEngineRequiresServices(t *testing.T) {
	engine := NewEngine(nil, makeCombos(1))
	_, err := engine.Run(context.Background())
	assert.Error(t, err)
}

func TestEngineFeedsMetrics(t *testing.T) {
	client := testutil.NewFakeClient("api", testutil.AcceptPassword("admin", "pass001"))
	stats := NewStatsTracker(3, 0, 0, nil)

	engine := NewEngine(factoriesFor(client), makeCombos(3), WithWorkers(2), WithMetrics(stats))
	_, err := engine.Run(context.Background())
	require.NoError(t, err)

	snap := stats.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "api", snap[0].Service)
	assert.Equal(t, int64(3), snap[0].Attempts)
	assert.Equal(t, int64(1), snap[0].Successes)
	assert.Equal(t, int64(2), snap[0].Failures)
}
