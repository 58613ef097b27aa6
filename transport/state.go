package transport

// Phase is the transport state machine phase
type Phase int

const (
	Stopped Phase = iota
	Playing
	Paused
)

func (p Phase) String() string {
	switch p {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// ClockSource selects what drives step firing
type ClockSource int

const (
	ClockInternal ClockSource = iota // free-running timer
	ClockExternal                    // incoming MIDI clock pulses
)

func (c ClockSource) String() string {
	if c == ClockExternal {
		return "external"
	}
	return "internal"
}

// Config holds the active playback parameters. Values are clamped on the
// way in, so a stored Config is always valid.
type Config struct {
	TempoBPM      float64
	Swing         float64
	PatternLength int
}

// ClockPulse is one external clock tick (24 per quarter note, MIDI
// clock convention). TimestampMicros is on the engine's monotonic scale.
type ClockPulse struct {
	Number          uint64
	TimestampMicros int64
}

// StepEvent is what subscribers receive on every step boundary.
// Timestamps strictly increase across consecutive events while playing.
type StepEvent struct {
	StepIndex       int
	TimestampMicros int64
}

// Snapshot is a read-only view of the transport for UI-facing callers
type Snapshot struct {
	Phase            Phase
	Step             int
	StepProgress     float64 // 0..1 within the current step
	TempoBPM         float64
	Swing            float64
	PatternLength    int
	ClockSource      ClockSource
	ExternallySynced bool
}

// TimingStats reports firing accuracy and clock health. Jitter figures
// are over the rolling sample window; MissedCallbacks and HandlerErrors
// are cumulative (see JitterTracker.ResetCounters).
type TimingStats struct {
	AverageJitterMicros   int64
	MaxJitterMicros       int64
	MissedCallbacks       uint64
	HandlerErrors         uint64
	RealTimeCapable       bool
	ClockSource           ClockSource
	ExternallySynced      bool
	DetectedExternalTempo float64
}
