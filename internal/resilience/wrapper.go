package resilience

import (
	"context"

	"github.com/nimda/routeros-brute/pkg/utils"
)

// Wrapper composes retry around a circuit breaker: every try passes through
// the breaker, so each transport failure counts, and an open circuit ends the
// retries at once. Either part may be nil.
type Wrapper struct {
	Retry   *RetryPolicy
	Breaker *CircuitBreaker
}

// NewWrapper builds a wrapper whose retry and breaker only react to transient
// (transport) errors.
func NewWrapper(retry RetryPolicy, breaker *CircuitBreaker) *Wrapper {
	retry.Retryable = utils.IsTransient
	if breaker != nil {
		breaker.WithFailurePredicate(utils.IsTransient)
	}
	return &Wrapper{Retry: &retry, Breaker: breaker}
}

// Call runs op under the configured policies.
func Call[T any](ctx context.Context, w *Wrapper, op func() (T, error)) (T, error) {
	if w == nil {
		return op()
	}
	guarded := op
	if w.Breaker != nil {
		guarded = func() (T, error) { return Execute(w.Breaker, op) }
	}
	if w.Retry == nil {
		return guarded()
	}
	return Retry(ctx, *w.Retry, guarded)
}
