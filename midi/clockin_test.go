package midi

import (
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-pulse/transport"
)

func TestClockReceiverTransportMessages(t *testing.T) {
	e := transport.NewEngine()
	defer e.Release()

	r := NewClockReceiver(e)
	r.OnStart = func() {
		e.Stop()
		e.Start(120, 0, 16)
	}

	r.handle(gomidi.Start(), 0)
	if got := e.Snapshot().Phase; got != transport.Playing {
		t.Fatalf("phase = %v after Start message, want Playing", got)
	}

	// Stop keeps the song position so a Continue can pick it back up
	r.handle(gomidi.Stop(), 0)
	if got := e.Snapshot().Phase; got != transport.Paused {
		t.Fatalf("phase = %v after Stop message, want Paused", got)
	}

	r.handle(gomidi.Continue(), 0)
	if got := e.Snapshot().Phase; got != transport.Playing {
		t.Fatalf("phase = %v after Continue message, want Playing", got)
	}

	// A second Start restarts playback rather than being swallowed by
	// the paused-start no-op
	r.handle(gomidi.Stop(), 0)
	r.handle(gomidi.Start(), 0)
	if got := e.Snapshot().Phase; got != transport.Playing {
		t.Fatalf("phase = %v after restart from Paused, want Playing", got)
	}
}

func TestClockReceiverNumbersPulses(t *testing.T) {
	e := transport.NewEngine()
	defer e.Release()
	e.SetClockSource(transport.ClockExternal)

	r := NewClockReceiver(e)
	for i := 0; i < 5; i++ {
		r.handle(gomidi.TimingClock(), 0)
	}
	if got := r.pulseNum.Load(); got != 5 {
		t.Fatalf("pulse count = %d after 5 clocks, want 5", got)
	}

	// Start resets the numbering for the new song position
	r.handle(gomidi.Start(), 0)
	if got := r.pulseNum.Load(); got != 0 {
		t.Fatalf("pulse count = %d after Start message, want 0", got)
	}
}
