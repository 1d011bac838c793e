package resilience

import (
	"sync"
	"time"

	"github.com/nimda/routeros-brute/pkg/utils"
	zlog "github.com/rs/zerolog/log"
)

// State is the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreaker stops calling a failing operation after FailureThreshold
// consecutive failures until Timeout has passed. One breaker is shared by all
// workers attacking the same service.
type CircuitBreaker struct {
	name             string
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	// isFailure decides which errors count against the circuit.
	isFailure func(error) bool
	now       func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(name string, failureThreshold, successThreshold int, timeout time.Duration) *CircuitBreaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	if successThreshold < 1 {
		successThreshold = 1
	}
	return &CircuitBreaker{
		name:             name,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		isFailure:        func(err error) bool { return err != nil },
		now:              time.Now,
	}
}

// WithFailurePredicate sets which errors count as failures.
func (cb *CircuitBreaker) WithFailurePredicate(fn func(error) bool) *CircuitBreaker {
	cb.isFailure = fn
	return cb
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Allow reports whether a call may proceed, moving Open to HalfOpen once the
// timeout has elapsed. A rejected call gets utils.ErrCircuitOpen.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != StateOpen {
		return nil
	}
	if cb.now().Sub(cb.openedAt) >= cb.timeout {
		cb.state = StateHalfOpen
		cb.successes = 0
		zlog.Info().Str("breaker", cb.name).Msg("Circuit half-open, probing")
		return nil
	}
	return utils.ErrCircuitOpen
}

// Record feeds the result of an allowed call back into the breaker.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil && cb.isFailure(err) {
		cb.onFailure()
		return
	}
	cb.onSuccess()
}

func (cb *CircuitBreaker) onSuccess() {
	cb.failures = 0
	if cb.state != StateHalfOpen {
		return
	}
	cb.successes++
	if cb.successes >= cb.successThreshold {
		cb.state = StateClosed
		cb.successes = 0
		zlog.Info().Str("breaker", cb.name).Msg("Circuit closed")
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.successes = 0
	if cb.state == StateHalfOpen {
		cb.trip()
		return
	}
	cb.failures++
	if cb.failures >= cb.failureThreshold {
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	zlog.Warn().
		Str("breaker", cb.name).
		Int("failures", cb.failures).
		Dur("cooldown", cb.timeout).
		Msg("Circuit opened")
}

// Reset returns the breaker to closed with cleared counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.successes = 0
	cb.openedAt = time.Time{}
}

// Execute runs op through the breaker.
func Execute[T any](cb *CircuitBreaker, op func() (T, error)) (T, error) {
	if err := cb.Allow(); err != nil {
		var zero T
		return zero, err
	}
	result, err := op()
	cb.Record(err)
	return result, err
}
