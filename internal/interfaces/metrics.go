package interfaces

import "time"

// Metrics defines the interface for collecting attempt metrics.
// Calls come from many workers at once.
type Metrics interface {
	// IncAttempts increments the number of login attempts.
	IncAttempts(service string)

	// IncSuccess increments the number of accepted credentials.
	IncSuccess(service string)

	// IncFailure increments the number of rejected credentials.
	IncFailure(service string)

	// IncError increments the number of attempts that ended in an error.
	IncError(service string)

	// ObserveLatency records the latency of a login attempt.
	ObserveLatency(service string, duration time.Duration)
}

// NoopMetrics is a no-op implementation of Metrics.
type NoopMetrics struct{}

func (n *NoopMetrics) IncAttempts(service string)                            {}
func (n *NoopMetrics) IncSuccess(service string)                             {}
func (n *NoopMetrics) IncFailure(service string)                             {}
func (n *NoopMetrics) IncError(service string)                               {}
func (n *NoopMetrics) ObserveLatency(service string, duration time.Duration) {}
