package transport

import (
	"sync"

	"go-pulse/debug"
)

const (
	// tempoSmoothing is the EMA weight given to a newly detected tempo
	tempoSmoothing = 0.1

	// tempoHysteresisBPM gates how far the smoothed tempo must move
	// before it is pushed into the live transport
	tempoHysteresisBPM = 1.0

	// externalTimeoutMicros is how long the pulse stream may go silent
	// before the watchdog forces the internal clock back on
	externalTimeoutMicros = 2_000_000
)

// ClockSync derives tempo and step boundaries from an external MIDI
// clock pulse stream. It owns the pulse history; the engine only sees
// the two injected callbacks, which are invoked with no locks held.
//
// Pulses arrive on the MIDI input goroutine while the engine reads sync
// state from elsewhere, so all state lives behind one short mutex.
type ClockSync struct {
	mu         sync.Mutex
	buf        [PulsesPerQuarterNote]int64 // timestamps of the last quarter note of pulses
	n          int
	received   uint64 // pulses seen since last reset
	lastMicros int64
	synced     bool

	detectedBPM float64 // smoothed; 0 until first detection
	appliedBPM  float64 // last tempo actually pushed to the transport

	onTempo func(bpm float64)
	onStep  func(impliedStep uint64, timestampMicros int64)
}

func newClockSync(onTempo func(float64), onStep func(uint64, int64)) *ClockSync {
	return &ClockSync{onTempo: onTempo, onStep: onStep}
}

// Pulse ingests one external clock tick. Every pulsesPerStep-th pulse is
// a step boundary; every PulsesPerQuarterNote-th pulse triggers tempo
// detection over the buffered quarter note.
func (cs *ClockSync) Pulse(p ClockPulse) {
	var fireStep bool
	var impliedStep uint64
	var pushTempo float64

	cs.mu.Lock()
	cs.lastMicros = p.TimestampMicros
	cs.buf[cs.received%PulsesPerQuarterNote] = p.TimestampMicros
	cs.received++
	if cs.n < PulsesPerQuarterNote {
		cs.n++
	}

	// First pulse after (re)sync is the start of a step
	if (cs.received-1)%pulsesPerStep == 0 {
		fireStep = true
		impliedStep = (cs.received - 1) / pulsesPerStep
	}

	if cs.received%PulsesPerQuarterNote == 0 && cs.n == PulsesPerQuarterNote {
		// The next write slot holds the oldest buffered timestamp
		oldest := cs.buf[cs.received%PulsesPerQuarterNote]
		elapsed := p.TimestampMicros - oldest
		if elapsed > 0 {
			// The buffer spans 23 intervals of a 24-pulse quarter note
			quarter := elapsed * PulsesPerQuarterNote / (PulsesPerQuarterNote - 1)
			raw := ClampTempo(float64(microsPerMinute) / float64(quarter))
			if cs.detectedBPM == 0 {
				cs.detectedBPM = raw
			} else {
				cs.detectedBPM += tempoSmoothing * (raw - cs.detectedBPM)
			}
			cs.synced = true
			diff := cs.detectedBPM - cs.appliedBPM
			if diff < 0 {
				diff = -diff
			}
			if diff > tempoHysteresisBPM {
				cs.appliedBPM = cs.detectedBPM
				pushTempo = cs.detectedBPM
			}
		}
	}
	onTempo, onStep := cs.onTempo, cs.onStep
	cs.mu.Unlock()

	if pushTempo != 0 && onTempo != nil {
		debug.Log("extclock", "detected tempo %.2f bpm", pushTempo)
		onTempo(pushTempo)
	}
	if fireStep && onStep != nil {
		onStep(impliedStep, p.TimestampMicros)
	}
}

// LastPulseMicros returns the timestamp of the most recent pulse (0 if
// none since the last reset)
func (cs *ClockSync) LastPulseMicros() int64 {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.lastMicros
}

// Synced reports whether a full quarter note of pulses has been seen
func (cs *ClockSync) Synced() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.synced
}

// DetectedTempo returns the smoothed external tempo (0 until detected)
func (cs *ClockSync) DetectedTempo() float64 {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.detectedBPM
}

// Reset clears all synchronization state. Called on clock-source
// changes and on watchdog timeout.
func (cs *ClockSync) Reset() {
	cs.mu.Lock()
	cs.n = 0
	cs.received = 0
	cs.lastMicros = 0
	cs.synced = false
	cs.detectedBPM = 0
	cs.appliedBPM = 0
	cs.mu.Unlock()
}
