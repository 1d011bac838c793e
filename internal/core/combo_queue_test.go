package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComboQueueClaimsInOrder(t *testing.T) {
	q := NewComboQueue(makeCombos(3), 0)

	for want := 0; want < 3; want++ {
		idx, cred, ok := q.Claim()
		require.True(t, ok)
		assert.Equal(t, want, idx)
		assert.Equal(t, makeCombos(3)[want], cred)
	}
	_, _, ok := q.Claim()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Remaining())
	assert.Equal(t, 1.0, q.Progress())
}

func TestComboQueueWatermark(t *testing.T) {
	q := NewComboQueue(makeCombos(5), 0)
	for i := 0; i < 5; i++ {
		q.Claim()
	}

	assert.Equal(t, 0, q.Complete(2))
	assert.Equal(t, 0, q.Complete(1))
	assert.Equal(t, 3, q.Complete(0))
	assert.Equal(t, 3, q.Complete(0))
	assert.Equal(t, 3, q.Complete(4))
	assert.Equal(t, 5, q.Complete(3))
	assert.Equal(t, 5, q.Watermark())
}

func TestComboQueueStartIndex(t *testing.T) {
	q := NewComboQueue(makeCombos(4), 3)
	idx, _, ok := q.Claim()
	require.True(t, ok)
	assert.Equal(t, 3, idx)
	assert.Equal(t, 4, q.Complete(idx))

	q = NewComboQueue(makeCombos(4), 10)
	_, _, ok = q.Claim()
	assert.False(t, ok)
	assert.Equal(t, 4, q.Watermark())
}

func TestComboQueueConcurrentClaims(t *testing.T) {
	q := NewComboQueue(makeCombos(1000), 0)

	var mu sync.Mutex
	seen := make(map[int]int)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				idx, _, ok := q.Claim()
				if !ok {
					return
				}
				mu.Lock()
				seen[idx]++
				mu.Unlock()
				q.Complete(idx)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 1000)
	for idx, n := range seen {
		assert.Equal(t, 1, n, "index %d", idx)
	}
	assert.Equal(t, 1000, q.Watermark())
}
