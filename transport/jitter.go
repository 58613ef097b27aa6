package transport

import (
	"sync"
	"sync/atomic"
)

const (
	// jitterWindow is the rolling sample count for the stats
	jitterWindow = 100

	// jitterToleranceMicros is how late (or early) a step may fire
	// before it counts as a missed callback
	jitterToleranceMicros = 5000
)

// JitterTracker keeps a rolling window of firing-accuracy samples plus a
// cumulative missed-callback counter. The window is cleared on Stop; the
// counter survives until ResetCounters so it stays useful as a health
// diagnostic across plays.
type JitterTracker struct {
	mu      sync.Mutex
	samples [jitterWindow]int64 // absolute deltas, FIFO ring
	count   int
	next    int
	missed  atomic.Uint64
}

func NewJitterTracker() *JitterTracker {
	return &JitterTracker{}
}

// Record stores |actual-expected| and bumps the missed counter when the
// delta exceeds the tolerance.
func (t *JitterTracker) Record(expectedMicros, actualMicros int64) {
	delta := actualMicros - expectedMicros
	if delta < 0 {
		delta = -delta
	}

	t.mu.Lock()
	t.samples[t.next] = delta
	t.next = (t.next + 1) % jitterWindow
	if t.count < jitterWindow {
		t.count++
	}
	t.mu.Unlock()

	if delta > jitterToleranceMicros {
		t.missed.Add(1)
	}
}

// Stats computes average and max jitter over the current window
func (t *JitterTracker) Stats() (averageMicros, maxMicros int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.count == 0 {
		return 0, 0
	}
	var sum, max int64
	for i := 0; i < t.count; i++ {
		d := t.samples[i]
		sum += d
		if d > max {
			max = d
		}
	}
	return sum / int64(t.count), max
}

// Missed returns the cumulative missed-callback count
func (t *JitterTracker) Missed() uint64 {
	return t.missed.Load()
}

// ResetCounters zeroes the cumulative missed count
func (t *JitterTracker) ResetCounters() {
	t.missed.Store(0)
}

// Clear drops the rolling window (called on stop). Counters are kept.
func (t *JitterTracker) Clear() {
	t.mu.Lock()
	t.count = 0
	t.next = 0
	t.mu.Unlock()
}
