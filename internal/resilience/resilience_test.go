package resilience

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/nimda/routeros-brute/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSleep(p RetryPolicy) RetryPolicy {
	p.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return p
}

func TestRetryDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: time.Second, MaxDelay: 5 * time.Second, Base: 2}
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 5*time.Second, p.Delay(4))
	assert.Equal(t, 5*time.Second, p.Delay(40))
}

func TestRetryStopsOnSuccess(t *testing.T) {
	p := noSleep(DefaultRetryPolicy())
	calls := 0
	v, err := Retry(context.Background(), p, func() (int, error) {
		calls++
		if calls < 2 {
			return 0, io.EOF
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 2, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	p := noSleep(DefaultRetryPolicy())
	calls := 0
	_, err := Retry(context.Background(), p, func() (int, error) {
		calls++
		return 0, io.EOF
	})
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 3, calls)
}

func TestRetrySkipsNonRetryable(t *testing.T) {
	p := noSleep(DefaultRetryPolicy())
	p.Retryable = utils.IsTransient
	calls := 0
	_, err := Retry(context.Background(), p, func() (int, error) {
		calls++
		return 0, utils.NewProtocolError("bad reply")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := DefaultRetryPolicy()
	p.InitialDelay = time.Hour
	calls := 0
	done := make(chan error, 1)
	go func() {
		_, err := Retry(ctx, p, func() (int, error) {
			calls++
			return 0, io.EOF
		})
		done <- err
	}()
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, io.EOF)
		assert.Equal(t, 1, calls)
	case <-time.After(2 * time.Second):
		t.Fatal("retry ignored cancellation")
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(threshold int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	cb := NewCircuitBreaker("test", threshold, 2, time.Minute)
	cb.now = clock.now
	return cb, clock
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3)
	fail := func() (bool, error) { return false, io.EOF }

	for i := 0; i < 3; i++ {
		_, err := Execute(cb, fail)
		assert.ErrorIs(t, err, io.EOF)
	}
	assert.Equal(t, StateOpen, cb.State())

	invoked := false
	_, err := Execute(cb, func() (bool, error) {
		invoked = true
		return true, nil
	})
	assert.ErrorIs(t, err, utils.ErrCircuitOpen)
	assert.False(t, invoked)
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	cb, _ := newTestBreaker(3)
	cb.Record(io.EOF)
	cb.Record(io.EOF)
	cb.Record(nil)
	cb.Record(io.EOF)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(1)
	cb.Record(io.EOF)
	require.Equal(t, StateOpen, cb.State())

	clock.advance(30 * time.Second)
	assert.ErrorIs(t, cb.Allow(), utils.ErrCircuitOpen)

	clock.advance(31 * time.Second)
	require.NoError(t, cb.Allow())
	assert.Equal(t, StateHalfOpen, cb.State())

	cb.Record(nil)
	assert.Equal(t, StateHalfOpen, cb.State())
	cb.Record(nil)
	assert.Equal(t, StateClosed, cb.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(1)
	cb.Record(io.EOF)
	clock.advance(time.Minute)
	require.NoError(t, cb.Allow())
	cb.Record(io.EOF)
	assert.Equal(t, StateOpen, cb.State())
}

func TestWrapperIgnoresNonTransient(t *testing.T) {
	cb, _ := newTestBreaker(1)
	w := NewWrapper(noSleep(DefaultRetryPolicy()), cb)

	_, err := Call(context.Background(), w, func() (bool, error) {
		return false, utils.NewProtocolError("garbage")
	})
	require.Error(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestWrapperOpenCircuitStopsRetries(t *testing.T) {
	cb, _ := newTestBreaker(2)
	w := NewWrapper(noSleep(DefaultRetryPolicy()), cb)

	calls := 0
	_, err := Call(context.Background(), w, func() (bool, error) {
		calls++
		return false, utils.NewConnectionError("10.0.0.1", io.EOF)
	})
	assert.True(t, errors.Is(err, utils.ErrCircuitOpen))
	assert.Equal(t, 2, calls)
	assert.Equal(t, StateOpen, cb.State())
}

func TestNilWrapperRunsOnce(t *testing.T) {
	calls := 0
	v, err := Call(context.Background(), nil, func() (int, error) {
		calls++
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, 1, calls)
}
