package transport

import (
	"runtime"
	"sync"
	"time"

	"go-pulse/debug"
)

// uiRefreshRate is how often UpdateChan is nudged for UI redraws
const uiRefreshRate = 60

// Engine is the sequencer transport: it owns the playback state machine
// and fires step events at jitter-bounded instants, driven either by an
// internal tempo clock or by external MIDI clock pulses.
//
// One goroutine per playback session owns timer arming and step firing;
// a long-lived monitor goroutine runs the external-clock watchdog and
// the UI refresh tick. All mutable state lives behind e.mu, and every
// critical section is short - dispatch to subscribers happens outside
// the lock. Handlers must not call back into the engine's control
// methods (Stop, Release) from inside a callback.
type Engine struct {
	mu           sync.Mutex
	cfg          Config
	stepDur      int64 // micros, derived from cfg.TempoBPM
	phase        Phase
	step         int
	patternStart int64 // micros, re-anchored at each downbeat and on tempo changes
	pausedAt     int64
	source       ClockSource
	extSince     int64 // when the external source was selected
	lastFire     int64 // last dispatched timestamp, keeps events strictly increasing
	released     bool

	now func() int64 // monotonic microseconds, injectable for tests

	registry *Registry
	jitter   *JitterTracker
	ext      *ClockSync

	wake    chan struct{} // nudges the fire loop to recompute its deadline
	session chan struct{} // closed to end the current playback session
	loopWG  sync.WaitGroup
	fireMu  sync.Mutex // held across every check-and-dispatch

	quit     chan struct{}
	quitOnce sync.Once

	// UpdateChan receives a nudge (~60 Hz while anything changes) for
	// UI-facing consumers. Sends never block.
	UpdateChan chan struct{}
}

// NewEngine creates a stopped transport with an internal clock source
func NewEngine() *Engine {
	epoch := time.Now()
	return newEngine(func() int64 { return time.Since(epoch).Microseconds() })
}

// newEngine lets tests drive the clock deterministically
func newEngine(now func() int64) *Engine {
	e := &Engine{
		now:        now,
		registry:   NewRegistry(),
		jitter:     NewJitterTracker(),
		wake:       make(chan struct{}, 1),
		quit:       make(chan struct{}),
		UpdateChan: make(chan struct{}, 1),
	}
	e.ext = newClockSync(e.applyExternalTempo, e.externalStep)
	go e.monitorLoop()
	return e
}

// NowMicros returns the engine's monotonic clock reading. External
// pulse feeders should stamp pulses with this.
func (e *Engine) NowMicros() int64 {
	return e.now()
}

// Start validates parameters, resets the playhead and begins playback.
// Only legal from Stopped; otherwise a no-op.
func (e *Engine) Start(tempoBPM, swing float64, patternLength int) {
	e.mu.Lock()
	if e.released || e.phase != Stopped {
		e.mu.Unlock()
		return
	}
	e.cfg = Config{
		TempoBPM:      ClampTempo(tempoBPM),
		Swing:         ClampSwing(swing),
		PatternLength: ClampPatternLength(patternLength),
	}
	e.stepDur = StepDurationMicros(e.cfg.TempoBPM)
	e.step = 0
	e.patternStart = e.now()
	e.lastFire = 0
	e.phase = Playing
	session := make(chan struct{})
	e.session = session
	cfg := e.cfg
	e.mu.Unlock()

	debug.Log("transport", "start tempo=%.1f swing=%.2f length=%d", cfg.TempoBPM, cfg.Swing, cfg.PatternLength)
	e.loopWG.Add(1)
	go e.fireLoop(session)
	e.notify()
}

// Stop cancels playback and resets the playhead to step 0. When Stop
// returns, no further step callback will fire.
func (e *Engine) Stop() {
	e.mu.Lock()
	if e.phase == Stopped {
		e.mu.Unlock()
		return
	}
	e.phase = Stopped
	e.step = 0
	session := e.session
	e.session = nil
	e.mu.Unlock()

	if session != nil {
		close(session)
	}
	e.loopWG.Wait()

	// An external-clock fire may have passed the phase check just
	// before we flipped it; wait for it to drain.
	e.fireMu.Lock()
	e.fireMu.Unlock()

	e.jitter.Clear()
	debug.Log("transport", "stop")
	e.notify()
}

// Pause freezes playback. Only legal from Playing; otherwise a no-op.
func (e *Engine) Pause() {
	e.mu.Lock()
	if e.phase != Playing {
		e.mu.Unlock()
		return
	}
	e.phase = Paused
	e.pausedAt = e.now()
	e.mu.Unlock()

	e.wakeLoop()
	e.notify()
}

// Resume continues from a pause, excluding the paused interval from the
// timing math. Only legal from Paused; otherwise a no-op.
func (e *Engine) Resume() {
	e.mu.Lock()
	if e.phase != Paused {
		e.mu.Unlock()
		return
	}
	e.patternStart += e.now() - e.pausedAt
	e.pausedAt = 0
	e.phase = Playing
	e.mu.Unlock()

	e.wakeLoop()
	e.notify()
}

// Release stops playback and tears down the engine's goroutines. The
// engine is unusable afterward.
func (e *Engine) Release() {
	e.quitOnce.Do(func() {
		e.Stop()
		e.mu.Lock()
		e.released = true
		e.mu.Unlock()
		close(e.quit)
	})
}

// SetTempo applies a new tempo, preserving the current step's position
// so there is no audible jump. Returns false (with no change) while the
// external clock is authoritative.
func (e *Engine) SetTempo(bpm float64) bool {
	e.mu.Lock()
	if e.source == ClockExternal {
		e.mu.Unlock()
		return false
	}
	e.setTempoLocked(ClampTempo(bpm))
	e.mu.Unlock()

	e.wakeLoop()
	e.notify()
	return true
}

// setTempoLocked recomputes the step duration and re-anchors the
// pattern start so the current step keeps its absolute position.
func (e *Engine) setTempoLocked(bpm float64) {
	e.cfg.TempoBPM = bpm
	e.stepDur = StepDurationMicros(bpm)
	if e.phase == Playing {
		e.patternStart = e.now() - int64(e.step)*e.stepDur
	}
}

// SetSwing stores a new swing amount. It takes effect when the next
// step deadline is computed; an already-armed deadline is not altered.
func (e *Engine) SetSwing(amount float64) {
	e.mu.Lock()
	e.cfg.Swing = ClampSwing(amount)
	e.mu.Unlock()
	e.notify()
}

// SetClockSource switches between the internal timer and the external
// pulse stream. Switching resets all synchronization state.
func (e *Engine) SetClockSource(src ClockSource) {
	e.mu.Lock()
	if e.source == src {
		e.mu.Unlock()
		return
	}
	e.source = src
	e.ext.Reset()
	if src == ClockExternal {
		e.extSince = e.now()
	} else if e.phase == Playing {
		// Re-anchor so the internal timer picks up from the current step
		e.patternStart = e.now() - int64(e.step)*e.stepDur
	}
	e.mu.Unlock()

	debug.Log("transport", "clock source -> %s", src)
	e.wakeLoop()
	e.notify()
}

// Pulse feeds one external clock tick into the synchronizer. Ignored
// unless the external clock source is selected. A zero timestamp is
// stamped with the engine clock.
func (e *Engine) Pulse(p ClockPulse) {
	e.mu.Lock()
	active := e.source == ClockExternal && !e.released
	e.mu.Unlock()
	if !active {
		return
	}
	if p.TimestampMicros == 0 {
		p.TimestampMicros = e.now()
	}
	e.ext.Pulse(p)
}

// RegisterStepCallback subscribes a handler to step events. Higher
// priority runs first; equal priorities run in registration order.
func (e *Engine) RegisterStepCallback(id string, priority int, h StepHandler) {
	e.registry.Register(id, priority, h)
}

// UnregisterStepCallback removes a step subscriber
func (e *Engine) UnregisterStepCallback(id string) {
	e.registry.Unregister(id)
}

// SetPatternCompleteCallback installs the single pattern-complete slot
func (e *Engine) SetPatternCompleteCallback(h func(timestampMicros int64)) {
	e.registry.SetPatternComplete(h)
}

// Snapshot returns a read-only view of the transport state
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := Snapshot{
		Phase:            e.phase,
		Step:             e.step,
		TempoBPM:         e.cfg.TempoBPM,
		Swing:            e.cfg.Swing,
		PatternLength:    e.cfg.PatternLength,
		ClockSource:      e.source,
		ExternallySynced: e.source == ClockExternal && e.ext.Synced(),
	}
	ref := int64(0)
	switch e.phase {
	case Playing:
		ref = e.now()
	case Paused:
		ref = e.pausedAt
	default:
		return s
	}
	stepStart := e.patternStart + int64(e.step)*e.stepDur
	s.StepProgress = StepProgress(ref, stepStart, e.stepDur)
	return s
}

// TimingStats returns firing-accuracy diagnostics
func (e *Engine) TimingStats() TimingStats {
	avg, max := e.jitter.Stats()

	e.mu.Lock()
	src := e.source
	synced := src == ClockExternal && e.ext.Synced()
	e.mu.Unlock()

	return TimingStats{
		AverageJitterMicros:   avg,
		MaxJitterMicros:       max,
		MissedCallbacks:       e.jitter.Missed(),
		HandlerErrors:         e.registry.ErrorCount(),
		RealTimeCapable:       avg <= jitterToleranceMicros,
		ClockSource:           src,
		ExternallySynced:      synced,
		DetectedExternalTempo: e.ext.DetectedTempo(),
	}
}

// ResetCounters zeroes the cumulative missed-callback count
func (e *Engine) ResetCounters() {
	e.jitter.ResetCounters()
}

// fireLoop is the per-session scheduling goroutine. It arms a one-shot
// timer for each internal-clock step deadline and parks while paused or
// while the external clock drives firing from pulse processing.
func (e *Engine) fireLoop(session chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer e.loopWG.Done()

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		e.mu.Lock()
		if e.phase == Stopped || e.released {
			e.mu.Unlock()
			return
		}
		park := e.phase == Paused || e.source == ClockExternal
		var deadline int64
		var wait time.Duration
		if !park {
			deadline = e.patternStart + int64(e.step)*e.stepDur +
				SwingOffset(e.step, e.stepDur, e.cfg.Swing)
			wait = time.Duration(deadline-e.now()) * time.Microsecond
		}
		e.mu.Unlock()

		if park {
			select {
			case <-session:
				return
			case <-e.wake:
			}
			continue
		}

		if wait > 0 {
			timer.Reset(wait)
			select {
			case <-session:
				if !timer.Stop() {
					<-timer.C
				}
				return
			case <-e.wake:
				// Live parameter change: recompute the deadline
				if !timer.Stop() {
					<-timer.C
				}
				continue
			case <-timer.C:
			}
		}

		e.fireStep(deadline)
	}
}

// fireStep records accuracy, dispatches one step event and advances the
// playhead. expected is the nominal deadline for jitter accounting.
// Shared by the internal timer path and the external pulse path.
func (e *Engine) fireStep(expected int64) {
	e.fireMu.Lock()
	defer e.fireMu.Unlock()

	e.mu.Lock()
	if e.phase != Playing {
		e.mu.Unlock()
		return
	}
	now := e.now()
	ts := now
	if ts <= e.lastFire {
		ts = e.lastFire + 1
	}
	e.lastFire = ts
	step := e.step

	e.jitter.Record(expected, now)

	if step == 0 {
		// Anchor the loop at the downbeat's actual fire time so timer
		// lateness shifts the whole loop instead of compounding
		e.patternStart = now
	}
	e.step = (e.step + 1) % e.cfg.PatternLength
	wrapped := e.step == 0
	if wrapped {
		// The next downbeat's nominal deadline stays one full step
		// after this one
		e.patternStart += int64(e.cfg.PatternLength) * e.stepDur
	}
	e.mu.Unlock()

	e.registry.Dispatch(step, ts)
	if wrapped {
		e.registry.DispatchPatternComplete(ts)
	}
	e.notify()
}

// externalStep fires a step from pulse processing and applies phase
// correction when the externally implied position drifts from ours.
func (e *Engine) externalStep(impliedStep uint64, tsMicros int64) {
	e.mu.Lock()
	if e.phase != Playing || e.source != ClockExternal {
		e.mu.Unlock()
		return
	}
	length := e.cfg.PatternLength
	implied := int(impliedStep % uint64(length))
	if delta := stepDelta(implied, e.step, length); delta != 0 {
		// Nudge the reference time instead of jumping the step index,
		// so in-flight consumers see a consistent sequence
		e.patternStart -= int64(delta) * e.stepDur
	}
	expected := e.patternStart + int64(e.step)*e.stepDur +
		SwingOffset(e.step, e.stepDur, e.cfg.Swing)
	e.mu.Unlock()

	e.fireStep(expected)
}

// stepDelta returns the circular distance from have to want, or 0 when
// the divergence is at least half the pattern (a wraparound, where
// correcting would overshoot).
func stepDelta(want, have, length int) int {
	delta := want - have
	if delta > length/2 {
		delta -= length
	} else if delta < -length/2 {
		delta += length
	}
	if delta >= length/2 || delta <= -length/2 {
		return 0
	}
	return delta
}

// applyExternalTempo is the synchronizer's tempo hand-off. The detected
// tempo is already smoothed and hysteresis-gated.
func (e *Engine) applyExternalTempo(bpm float64) {
	e.mu.Lock()
	if e.source != ClockExternal {
		e.mu.Unlock()
		return
	}
	e.setTempoLocked(ClampTempo(bpm))
	e.mu.Unlock()
	e.notify()
}

// monitorLoop runs the low-priority housekeeping: the 1 s external
// clock watchdog and the UI refresh tick. It never touches the firing
// path beyond short critical sections.
func (e *Engine) monitorLoop() {
	watchdog := time.NewTicker(time.Second)
	ui := time.NewTicker(time.Second / uiRefreshRate)
	defer watchdog.Stop()
	defer ui.Stop()

	for {
		select {
		case <-e.quit:
			return
		case <-watchdog.C:
			e.checkExternalTimeout()
		case <-ui.C:
			e.notify()
		}
	}
}

// checkExternalTimeout forces the internal clock back on when the
// external pulse stream has gone silent. Hard fallback: playback must
// not stall waiting on a dead clock.
func (e *Engine) checkExternalTimeout() {
	e.mu.Lock()
	if e.source != ClockExternal {
		e.mu.Unlock()
		return
	}
	last := e.ext.LastPulseMicros()
	if last == 0 {
		last = e.extSince
	}
	if e.now()-last <= externalTimeoutMicros {
		e.mu.Unlock()
		return
	}
	e.source = ClockInternal
	e.ext.Reset()
	if e.phase == Playing {
		e.patternStart = e.now() - int64(e.step)*e.stepDur
	}
	e.mu.Unlock()

	debug.Log("transport", "external clock timeout, falling back to internal")
	e.wakeLoop()
	e.notify()
}

// wakeLoop nudges the fire loop to re-evaluate its deadline
func (e *Engine) wakeLoop() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// notify nudges UI consumers without ever blocking
func (e *Engine) notify() {
	select {
	case e.UpdateChan <- struct{}{}:
	default:
	}
}
