package transport

import "testing"

func TestStepDurationMatchesTempo(t *testing.T) {
	for bpm := 60; bpm <= 200; bpm++ {
		want := int64(microsPerMinute / float64(bpm) / stepsPerQuarterNote)
		if got := StepDurationMicros(float64(bpm)); got != want {
			t.Errorf("StepDurationMicros(%d) = %d, want %d", bpm, got, want)
		}
	}
}

func TestStepDurationClampsTempo(t *testing.T) {
	if got, want := StepDurationMicros(20), StepDurationMicros(MinTempoBPM); got != want {
		t.Errorf("below-range tempo: got %d, want %d", got, want)
	}
	if got, want := StepDurationMicros(999), StepDurationMicros(MaxTempoBPM); got != want {
		t.Errorf("above-range tempo: got %d, want %d", got, want)
	}
}

func TestClampPatternLength(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 8}, {8, 8}, {9, 16}, {16, 16}, {17, 24}, {24, 24}, {25, 32}, {32, 32}, {100, 32},
	}
	for _, c := range cases {
		if got := ClampPatternLength(c.in); got != c.want {
			t.Errorf("ClampPatternLength(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestSwingOffsetEvenStepsNeverSwing(t *testing.T) {
	dur := StepDurationMicros(120)
	for step := 0; step < 32; step += 2 {
		if got := SwingOffset(step, dur, MaxSwing); got != 0 {
			t.Errorf("even step %d: offset %d, want 0", step, got)
		}
	}
}

func TestSwingOffsetOddStepsScaleWithAmount(t *testing.T) {
	dur := StepDurationMicros(120)
	prev := int64(-1)
	for _, amount := range []float64{0, 0.1, 0.25, 0.5, 0.75} {
		got := SwingOffset(1, dur, amount)
		if got < 0 {
			t.Fatalf("amount %.2f: negative offset %d", amount, got)
		}
		if got <= prev && amount > 0 {
			t.Errorf("amount %.2f: offset %d not increasing (prev %d)", amount, got, prev)
		}
		prev = got
	}
	if got, want := SwingOffset(1, dur, MaxSwing), int64(float64(dur)*MaxSwing); got != want {
		t.Errorf("max swing offset = %d, want %d", got, want)
	}
	if got, want := SwingOffset(1, dur, 2.0), SwingOffset(1, dur, MaxSwing); got != want {
		t.Errorf("over-range swing not clamped: %d vs %d", got, want)
	}
}

func TestStepProgressClamps(t *testing.T) {
	if got := StepProgress(50, 0, 100); got != 0.5 {
		t.Errorf("mid-step progress = %f, want 0.5", got)
	}
	if got := StepProgress(-10, 0, 100); got != 0 {
		t.Errorf("before-step progress = %f, want 0", got)
	}
	if got := StepProgress(500, 0, 100); got != 1 {
		t.Errorf("past-step progress = %f, want 1", got)
	}
	if got := StepProgress(50, 0, 0); got != 0 {
		t.Errorf("zero-duration progress = %f, want 0", got)
	}
}
