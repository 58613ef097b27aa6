package midi

import (
	"fmt"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"

	"go-pulse/transport"
)

// StepTrigger is a step subscriber that turns transport events into
// MIDI notes: NoteOn at the step instant, NoteOff after 80% of the
// step duration. Velocity is accented on the pattern downbeat.
type StepTrigger struct {
	engine  *transport.Engine
	send    func(gomidi.Message) error
	note    uint8
	channel uint8 // 1-based, as configured
}

func NewStepTrigger(e *transport.Engine, portName string, note, channel uint8) (*StepTrigger, error) {
	out, err := FindOut(portName)
	if err != nil {
		return nil, err
	}
	send, err := gomidi.SendTo(out)
	if err != nil {
		return nil, fmt.Errorf("open trigger output: %w", err)
	}
	if channel < 1 || channel > 16 {
		channel = 1
	}
	return &StepTrigger{engine: e, send: send, note: note, channel: channel}, nil
}

// Handler returns the registry callback for this trigger
func (t *StepTrigger) Handler() transport.StepHandler {
	return func(stepIndex int, timestampMicros int64) error {
		velocity := uint8(100)
		if stepIndex == 0 {
			velocity = 127
		}
		ch := t.channel - 1
		if err := t.send(gomidi.NoteOn(ch, t.note, velocity)); err != nil {
			return err
		}
		gate := transport.StepDurationMicros(t.engine.Snapshot().TempoBPM) * 80 / 100
		go func() {
			time.Sleep(time.Duration(gate) * time.Microsecond)
			t.send(gomidi.NoteOff(ch, t.note))
		}()
		return nil
	}
}
