package transport

import "testing"

func TestJitterStats(t *testing.T) {
	tr := NewJitterTracker()

	if avg, max := tr.Stats(); avg != 0 || max != 0 {
		t.Fatalf("empty tracker: avg=%d max=%d, want 0/0", avg, max)
	}

	tr.Record(1000, 1100) // +100
	tr.Record(1000, 800)  // -200, recorded as 200
	tr.Record(1000, 1000) // 0

	avg, max := tr.Stats()
	if max != 200 {
		t.Errorf("max = %d, want 200", max)
	}
	if avg != 100 {
		t.Errorf("avg = %d, want 100", avg)
	}
}

func TestJitterWindowEvictsOldest(t *testing.T) {
	tr := NewJitterTracker()
	for i := 0; i < jitterWindow; i++ {
		tr.Record(0, 10)
	}
	// A second full window replaces every old sample
	for i := 0; i < jitterWindow; i++ {
		tr.Record(0, 30)
	}
	avg, max := tr.Stats()
	if avg != 30 || max != 30 {
		t.Errorf("after eviction: avg=%d max=%d, want 30/30", avg, max)
	}
}

func TestMissedCounterIsCumulative(t *testing.T) {
	tr := NewJitterTracker()

	tr.Record(0, jitterToleranceMicros) // at tolerance, not over
	if got := tr.Missed(); got != 0 {
		t.Fatalf("missed = %d after in-tolerance sample, want 0", got)
	}

	tr.Record(0, jitterToleranceMicros+1)
	tr.Record(0, 20000)
	if got := tr.Missed(); got != 2 {
		t.Fatalf("missed = %d, want 2", got)
	}

	// Clear drops the window but never the counter
	tr.Clear()
	if got := tr.Missed(); got != 2 {
		t.Errorf("missed = %d after Clear, want 2", got)
	}
	if avg, max := tr.Stats(); avg != 0 || max != 0 {
		t.Errorf("stats after Clear: avg=%d max=%d, want 0/0", avg, max)
	}

	tr.ResetCounters()
	if got := tr.Missed(); got != 0 {
		t.Errorf("missed = %d after ResetCounters, want 0", got)
	}
}
