package midi

import (
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// scanTimeout guards port enumeration; CoreMIDI can hang
const scanTimeout = 3 * time.Second

// Ports returns the current input and output port lists, or empty lists
// if the driver does not answer in time.
func Ports() (ins []drivers.In, outs []drivers.Out) {
	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()
	select {
	case r := <-ch:
		return r.ins, r.outs
	case <-time.After(scanTimeout):
		return nil, nil
	}
}

// FindIn locates an input port by exact name, falling back to a
// substring match
func FindIn(name string) (drivers.In, error) {
	ins, _ := Ports()
	for _, p := range ins {
		if p.String() == name {
			return p, nil
		}
	}
	for _, p := range ins {
		if strings.Contains(p.String(), name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no MIDI input port matching %q", name)
}

// FindOut locates an output port by exact name, falling back to a
// substring match
func FindOut(name string) (drivers.Out, error) {
	_, outs := Ports()
	for _, p := range outs {
		if p.String() == name {
			return p, nil
		}
	}
	for _, p := range outs {
		if strings.Contains(p.String(), name) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("no MIDI output port matching %q", name)
}

// Close releases the MIDI driver. Call once at shutdown.
func Close() {
	gomidi.CloseDriver()
}
