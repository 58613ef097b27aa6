package transport

// Tempo and swing math. Everything here is a pure function over int64
// microseconds so the scheduler and the tests share one source of truth.

const (
	MinTempoBPM = 60.0
	MaxTempoBPM = 200.0
	MaxSwing    = 0.75

	// PulsesPerQuarterNote is the MIDI clock convention
	PulsesPerQuarterNote = 24

	// Steps are 16th notes: 4 per quarter, 6 clock pulses each
	stepsPerQuarterNote = 4
	pulsesPerStep       = PulsesPerQuarterNote / stepsPerQuarterNote

	microsPerMinute = 60_000_000
)

// ClampTempo limits bpm to the supported range
func ClampTempo(bpm float64) float64 {
	if bpm < MinTempoBPM {
		return MinTempoBPM
	}
	if bpm > MaxTempoBPM {
		return MaxTempoBPM
	}
	return bpm
}

// ClampSwing limits swing to [0, MaxSwing]
func ClampSwing(amount float64) float64 {
	if amount < 0 {
		return 0
	}
	if amount > MaxSwing {
		return MaxSwing
	}
	return amount
}

// ClampPatternLength snaps n to the nearest supported length (8/16/24/32)
func ClampPatternLength(n int) int {
	switch {
	case n <= 8:
		return 8
	case n <= 16:
		return 16
	case n <= 24:
		return 24
	default:
		return 32
	}
}

// StepDurationMicros returns the duration of one 16th-note step at the
// given tempo. Out-of-range tempos are clamped first.
func StepDurationMicros(bpm float64) int64 {
	bpm = ClampTempo(bpm)
	return int64(microsPerMinute / bpm / stepsPerQuarterNote)
}

// StepProgress returns how far now is into the current step, clamped to
// [0,1]. A non-positive duration yields 0.
func StepProgress(nowMicros, stepStartMicros, stepDurationMicros int64) float64 {
	if stepDurationMicros <= 0 {
		return 0
	}
	p := float64(nowMicros-stepStartMicros) / float64(stepDurationMicros)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// SwingOffset returns the delay added to a step's nominal start time.
// Only odd steps swing (classic 8th/16th shuffle); even steps are never
// delayed. The offset scales linearly with amount, up to MaxSwing of a
// full step duration. Deterministic, so swing changes only take effect
// when the next deadline is computed.
func SwingOffset(stepIndex int, stepDurationMicros int64, amount float64) int64 {
	if stepIndex%2 == 0 {
		return 0
	}
	return int64(float64(stepDurationMicros) * ClampSwing(amount))
}
