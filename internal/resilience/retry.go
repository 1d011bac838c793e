// Package resilience holds the retry and circuit breaker decorators applied
// around login attempts.
package resilience

import (
	"context"
	"math"
	"time"

	zlog "github.com/rs/zerolog/log"
)

// RetryPolicy retries an operation with exponential backoff.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Base         float64
	// Retryable selects the errors worth another attempt. nil retries every error.
	Retryable func(error) bool

	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns 3 attempts, 1s initial delay doubling up to 60s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		Base:         2,
	}
}

// Delay returns the pause after the given failed attempt (counted from 1):
// min(InitialDelay * Base^(attempt-1), MaxDelay).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.Base
	if base <= 0 {
		base = 2
	}
	d := float64(p.InitialDelay) * math.Pow(base, float64(attempt-1))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Retry runs op until it succeeds, returns a non-retryable error, or the
// attempts are exhausted; the last error is returned. Cancelling ctx stops
// further attempts but never interrupts a running op.
func Retry[T any](ctx context.Context, p RetryPolicy, op func() (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = op()
		if err == nil {
			return result, nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return result, err
		}
		if attempt == attempts {
			break
		}

		delay := p.Delay(attempt)
		zlog.Debug().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", attempts).
			Dur("backoff", delay).
			Msg("Retrying after transient error")
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return result, err
		}
	}
	return result, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
