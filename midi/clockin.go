package midi

import (
	"fmt"
	"sync/atomic"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-pulse/debug"
	"go-pulse/transport"
)

// ClockReceiver feeds MIDI realtime messages from an input port into
// the transport: timing clocks become pulses, Stop keeps the song
// position and Continue picks it back up. Start is surfaced as a
// callback because only the app knows the playback parameters.
type ClockReceiver struct {
	engine   *transport.Engine
	pulseNum atomic.Uint64
	stopFunc func()

	// OnStart restarts playback from the top (set before Open)
	OnStart func()
}

func NewClockReceiver(e *transport.Engine) *ClockReceiver {
	return &ClockReceiver{engine: e}
}

// Open starts listening on the named input port. Timing-clock delivery
// must be requested explicitly; drivers filter it by default.
func (r *ClockReceiver) Open(portName string) error {
	in, err := FindIn(portName)
	if err != nil {
		return err
	}
	stop, err := gomidi.ListenTo(in, r.handle, gomidi.UseTimeCode())
	if err != nil {
		return fmt.Errorf("open clock input: %w", err)
	}
	r.stopFunc = stop
	debug.Log("midi", "clock input open on %q", in.String())
	return nil
}

// handle runs on the MIDI input goroutine; it must stay non-blocking
func (r *ClockReceiver) handle(msg gomidi.Message, timestampms int32) {
	switch {
	case msg.Is(gomidi.TimingClockMsg):
		r.engine.Pulse(transport.ClockPulse{
			Number:          r.pulseNum.Add(1),
			TimestampMicros: r.engine.NowMicros(),
		})
	case msg.Is(gomidi.StartMsg):
		r.pulseNum.Store(0)
		if r.OnStart != nil {
			r.OnStart()
		}
	case msg.Is(gomidi.StopMsg):
		r.engine.Pause()
	case msg.Is(gomidi.ContinueMsg):
		r.engine.Resume()
	}
}

// Close stops listening. Safe to call multiple times.
func (r *ClockReceiver) Close() {
	if r.stopFunc != nil {
		r.stopFunc()
		r.stopFunc = nil
	}
}
