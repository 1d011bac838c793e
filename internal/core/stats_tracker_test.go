package core

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsTrackerSnapshot(t *testing.T) {
	st := NewStatsTracker(10, 0, 0, nil)
	st.IncAttempts("rest")
	st.IncAttempts("api")
	st.IncAttempts("api")
	st.IncSuccess("api")
	st.IncFailure("api")
	st.IncError("rest")
	st.ObserveLatency("api", 10*time.Millisecond)
	st.ObserveLatency("api", 30*time.Millisecond)

	snap := st.Snapshot()
	assert.Len(t, snap, 2)
	assert.Equal(t, "api", snap[0].Service)
	assert.Equal(t, int64(2), snap[0].Attempts)
	assert.Equal(t, 20*time.Millisecond, snap[0].AverageLatency)
	assert.Equal(t, "rest", snap[1].Service)
	assert.Equal(t, int64(1), snap[1].Errors)
}

func TestStatsTrackerReport(t *testing.T) {
	var buf bytes.Buffer
	st := NewStatsTracker(100, 40, 0, func() int { return 10 })
	st.SetOutput(&buf)
	st.IncAttempts("api")
	st.WriteReport()

	out := buf.String()
	assert.Contains(t, out, "=== Progress Report ===")
	assert.Contains(t, out, "50/100 tested")
	assert.Contains(t, out, "api:")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "3m 5s", FormatDuration(3*time.Minute+5*time.Second))
	assert.Equal(t, "2h 10m", FormatDuration(2*time.Hour+10*time.Minute))
	assert.Equal(t, "1d 3h", FormatDuration(27*time.Hour))
}
