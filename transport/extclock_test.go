package transport

import (
	"math"
	"testing"
)

// feedQuarter sends one quarter note of pulses (24) at the spacing for
// the given bpm, starting at startMicros, and returns the next start.
func feedQuarter(cs *ClockSync, startMicros int64, bpm float64) int64 {
	interval := int64(microsPerMinute / bpm / PulsesPerQuarterNote)
	ts := startMicros
	for i := 0; i < PulsesPerQuarterNote; i++ {
		cs.Pulse(ClockPulse{TimestampMicros: ts})
		ts += interval
	}
	return ts
}

func TestTempoDetectionFromSteadyPulses(t *testing.T) {
	var detected float64
	cs := newClockSync(func(bpm float64) { detected = bpm }, nil)

	feedQuarter(cs, 1_000_000, 120)

	if !cs.Synced() {
		t.Fatal("not synced after a full quarter note of pulses")
	}
	if math.Abs(cs.DetectedTempo()-120) > 1 {
		t.Errorf("detected tempo %.2f, want 120 ±1", cs.DetectedTempo())
	}
	if math.Abs(detected-120) > 1 {
		t.Errorf("propagated tempo %.2f, want 120 ±1", detected)
	}
}

func TestTempoHysteresisSuppressesFlutter(t *testing.T) {
	var pushes int
	cs := newClockSync(func(float64) { pushes++ }, nil)

	// Steady 120, then a drift well under the 1 BPM gate
	next := feedQuarter(cs, 0, 120)
	feedQuarter(cs, next, 120.5)

	if pushes != 1 {
		t.Errorf("tempo pushed %d times, want 1 (hysteresis)", pushes)
	}
}

func TestTempoSmoothingFollowsLargeChange(t *testing.T) {
	var detected float64
	cs := newClockSync(func(bpm float64) { detected = bpm }, nil)

	next := feedQuarter(cs, 0, 120)
	for i := 0; i < 40; i++ {
		next = feedQuarter(cs, next, 160)
	}

	if math.Abs(detected-160) > 2 {
		t.Errorf("smoothed tempo %.2f after sustained 160, want ≈160", detected)
	}
}

func TestStepBoundaryEverySixPulses(t *testing.T) {
	var steps []uint64
	cs := newClockSync(nil, func(implied uint64, ts int64) {
		steps = append(steps, implied)
	})

	feedQuarter(cs, 0, 120)

	want := []uint64{0, 1, 2, 3}
	if len(steps) != len(want) {
		t.Fatalf("got %d step boundaries, want %d", len(steps), len(want))
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("boundary %d: implied step %d, want %d", i, steps[i], want[i])
		}
	}
}

func TestDegenerateElapsedRejected(t *testing.T) {
	cs := newClockSync(func(float64) { t.Error("tempo pushed from zero-elapsed pulses") }, nil)

	for i := 0; i < PulsesPerQuarterNote; i++ {
		cs.Pulse(ClockPulse{TimestampMicros: 5000}) // all identical
	}
	if cs.Synced() {
		t.Error("synced from degenerate pulse timing")
	}
}

func TestResetClearsSyncState(t *testing.T) {
	cs := newClockSync(nil, nil)
	feedQuarter(cs, 0, 120)

	cs.Reset()
	if cs.Synced() {
		t.Error("still synced after Reset")
	}
	if cs.DetectedTempo() != 0 {
		t.Errorf("detected tempo %.2f after Reset, want 0", cs.DetectedTempo())
	}
	if cs.LastPulseMicros() != 0 {
		t.Errorf("last pulse %d after Reset, want 0", cs.LastPulseMicros())
	}
}
