package signal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingPushAndEviction(t *testing.T) {
	ring := NewRing(3)
	assert.Equal(t, 0, ring.Len())
	assert.Equal(t, 3, ring.Cap())

	_, ok := ring.Last()
	assert.False(t, ok, "Empty ring should have no last sample")

	ring.Push(FilteredSample{Timestamp: 1, Value: 10})
	ring.Push(FilteredSample{Timestamp: 2, Value: 20})
	assert.Equal(t, 2, ring.Len())

	last, ok := ring.Last()
	assert.True(t, ok)
	assert.Equal(t, int64(2), last.Timestamp)

	// Fill to capacity and push one more; the oldest is evicted
	ring.Push(FilteredSample{Timestamp: 3, Value: 30})
	ring.Push(FilteredSample{Timestamp: 4, Value: 40})

	assert.Equal(t, 3, ring.Len())
	assert.Equal(t, int64(2), ring.At(0).Timestamp, "Oldest retained sample should be the second pushed")
	assert.Equal(t, int64(4), ring.At(2).Timestamp)
}

func TestRingWindow(t *testing.T) {
	ring := NewRing(5)
	for i := 1; i <= 5; i++ {
		ring.Push(FilteredSample{Timestamp: int64(i), Value: float64(i * 10)})
	}

	// 1. Window smaller than the content returns the newest n, oldest first
	w := ring.Window(3, nil)
	assert.Len(t, w, 3)
	assert.Equal(t, int64(3), w[0].Timestamp)
	assert.Equal(t, int64(5), w[2].Timestamp)

	// 2. Window larger than the content returns everything
	w = ring.Window(10, w)
	assert.Len(t, w, 5)
	assert.Equal(t, int64(1), w[0].Timestamp)

	// 3. The dst slice is reused across calls
	w2 := ring.Window(2, w)
	assert.Len(t, w2, 2)
}

func TestRingReset(t *testing.T) {
	ring := NewRing(4)
	ring.Push(FilteredSample{Timestamp: 1, Value: 1})
	ring.Push(FilteredSample{Timestamp: 2, Value: 2})

	ring.Reset()
	assert.Equal(t, 0, ring.Len())
	assert.Equal(t, 4, ring.Cap(), "Reset should keep the backing capacity")

	ring.Push(FilteredSample{Timestamp: 9, Value: 9})
	assert.Equal(t, int64(9), ring.At(0).Timestamp)
}
