package core

import (
	"sync"

	"github.com/nimda/routeros-brute/internal/credentials"
)

// ComboQueue is the shared work cursor over the combo list. Claims are
// handed out in order; completions may arrive in any order.
type ComboQueue struct {
	combos []credentials.Credential
	next   int
	mu     sync.Mutex

	// done tracks completions past the watermark
	done      map[int]struct{}
	watermark int
}

// NewComboQueue creates a queue starting at index start (for resumed runs)
func NewComboQueue(combos []credentials.Credential, start int) *ComboQueue {
	if start < 0 {
		start = 0
	}
	if start > len(combos) {
		start = len(combos)
	}
	return &ComboQueue{
		combos:    combos,
		next:      start,
		done:      make(map[int]struct{}),
		watermark: start,
	}
}

// Claim returns the next unclaimed combo, or ok=false when none are left
func (q *ComboQueue) Claim() (int, credentials.Credential, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.next >= len(q.combos) {
		return 0, credentials.Credential{}, false
	}
	idx := q.next
	q.next++
	return idx, q.combos[idx], true
}

// Complete marks a claimed index as finished and returns the watermark: the
// number of leading combos that are all finished.
func (q *ComboQueue) Complete(idx int) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if idx < q.watermark {
		return q.watermark
	}
	q.done[idx] = struct{}{}
	for {
		if _, ok := q.done[q.watermark]; !ok {
			break
		}
		delete(q.done, q.watermark)
		q.watermark++
	}
	return q.watermark
}

// Watermark returns the count of leading finished combos
func (q *ComboQueue) Watermark() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.watermark
}

// Progress returns the claimed fraction (0.0 to 1.0)
func (q *ComboQueue) Progress() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.combos) == 0 {
		return 0.0
	}
	return float64(q.next) / float64(len(q.combos))
}

// Total returns the total number of combos
func (q *ComboQueue) Total() int {
	return len(q.combos)
}

// Remaining returns the number of unclaimed combos
func (q *ComboQueue) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.combos) - q.next
}
