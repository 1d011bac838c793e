package core

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"
)

type serviceStats struct {
	attempts  int64
	successes int64
	failures  int64
	errors    int64
	latency   time.Duration
}

// StatsTracker collects per-service attempt metrics and periodically writes a
// progress report. It implements interfaces.Metrics.
type StatsTracker struct {
	mu             sync.RWMutex
	startTime      time.Time
	totalCombos    int
	startIndex     int
	services       map[string]*serviceStats
	outputInterval time.Duration
	output         io.Writer
	progress       func() int
	stopChan       chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
}

// NewStatsTracker creates a tracker for a run over totalCombos combos, of
// which startIndex were tested by an earlier run. progress reports how many
// combos this run has tested; it may be nil.
func NewStatsTracker(totalCombos, startIndex int, outputInterval time.Duration, progress func() int) *StatsTracker {
	return &StatsTracker{
		startTime:      time.Now(),
		totalCombos:    totalCombos,
		startIndex:     startIndex,
		services:       make(map[string]*serviceStats),
		outputInterval: outputInterval,
		output:         os.Stderr,
		progress:       progress,
		stopChan:       make(chan struct{}),
	}
}

// SetOutput redirects progress reports
func (st *StatsTracker) SetOutput(w io.Writer) {
	st.output = w
}

// SetProgressFunc sets the tested-count source used by reports
func (st *StatsTracker) SetProgressFunc(fn func() int) {
	st.mu.Lock()
	st.progress = fn
	st.mu.Unlock()
}

func (st *StatsTracker) service(name string) *serviceStats {
	s, ok := st.services[name]
	if !ok {
		s = &serviceStats{}
		st.services[name] = s
	}
	return s
}

func (st *StatsTracker) IncAttempts(service string) {
	st.mu.Lock()
	st.service(service).attempts++
	st.mu.Unlock()
}

func (st *StatsTracker) IncSuccess(service string) {
	st.mu.Lock()
	st.service(service).successes++
	st.mu.Unlock()
}

func (st *StatsTracker) IncFailure(service string) {
	st.mu.Lock()
	st.service(service).failures++
	st.mu.Unlock()
}

func (st *StatsTracker) IncError(service string) {
	st.mu.Lock()
	st.service(service).errors++
	st.mu.Unlock()
}

func (st *StatsTracker) ObserveLatency(service string, d time.Duration) {
	st.mu.Lock()
	st.service(service).latency += d
	st.mu.Unlock()
}

// ServiceSnapshot is a copy of one service's counters
type ServiceSnapshot struct {
	Service        string
	Attempts       int64
	Successes      int64
	Failures       int64
	Errors         int64
	AverageLatency time.Duration
}

// Snapshot returns the counters of every service, sorted by name
func (st *StatsTracker) Snapshot() []ServiceSnapshot {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]ServiceSnapshot, 0, len(st.services))
	for name, s := range st.services {
		snap := ServiceSnapshot{
			Service:   name,
			Attempts:  s.attempts,
			Successes: s.successes,
			Failures:  s.failures,
			Errors:    s.errors,
		}
		if s.attempts > 0 {
			snap.AverageLatency = s.latency / time.Duration(s.attempts)
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out
}

// Start begins the report loop
func (st *StatsTracker) Start(ctx context.Context) {
	if st.outputInterval == 0 {
		return
	}

	st.wg.Add(1)
	go st.outputLoop(ctx)
}

// Stop stops the report loop
func (st *StatsTracker) Stop() {
	st.stopOnce.Do(func() { close(st.stopChan) })
	st.wg.Wait()
}

func (st *StatsTracker) outputLoop(ctx context.Context) {
	defer st.wg.Done()

	ticker := time.NewTicker(st.outputInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			st.WriteReport()

		case <-st.stopChan:
			return

		case <-ctx.Done():
			return
		}
	}
}

// WriteReport writes one progress report
func (st *StatsTracker) WriteReport() {
	st.mu.RLock()
	elapsed := time.Since(st.startTime)
	progress := st.progress
	st.mu.RUnlock()

	tested := 0
	if progress != nil {
		tested = progress()
	}

	var perSecond float64
	if elapsed.Seconds() > 0 {
		perSecond = float64(tested) / elapsed.Seconds()
	}

	done := st.startIndex + tested
	remaining := st.totalCombos - done
	if remaining < 0 {
		remaining = 0
	}
	var timeLeft time.Duration
	if perSecond > 0 {
		timeLeft = time.Duration(float64(remaining)/perSecond) * time.Second
	}

	w := st.output
	fmt.Fprintf(w, "\n=== Progress Report ===\n")
	fmt.Fprintf(w, "Speed:                %.1f attempts/minute (%.2f attempts/second)\n", perSecond*60, perSecond)
	fmt.Fprintf(w, "Combinations:         %d/%d tested\n", done, st.totalCombos)
	fmt.Fprintf(w, "Elapsed:              %s\n", FormatDuration(elapsed))
	if timeLeft > 0 {
		fmt.Fprintf(w, "Estimated time left:  %s\n", FormatDuration(timeLeft))
	}
	for _, s := range st.Snapshot() {
		fmt.Fprintf(w, "%-21s %d attempts, %d ok, %d rejected, %d errors, avg %s\n",
			s.Service+":", s.Attempts, s.Successes, s.Failures, s.Errors, s.AverageLatency.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "======================\n\n")
}

// FormatDuration formats a duration in a human-readable format
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % 60
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}
