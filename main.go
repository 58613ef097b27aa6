package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"go-pulse/click"
	"go-pulse/config"
	"go-pulse/debug"
	"go-pulse/midi"
	"go-pulse/transport"
	"go-pulse/tui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.DebugLog {
		debug.Enable("")
		defer debug.Disable()
	}

	engine := transport.NewEngine()
	defer engine.Release()
	defer midi.Close()

	if cfg.Transport.ClockSource == "external" {
		engine.SetClockSource(transport.ClockExternal)
	}

	// External clock input
	if cfg.MIDI.ClockInPort != "" {
		recv := midi.NewClockReceiver(engine)
		recv.OnStart = func() {
			engine.Stop()
			engine.Start(cfg.Transport.TempoBPM, cfg.Transport.Swing, cfg.Transport.PatternLength)
		}
		if err := recv.Open(cfg.MIDI.ClockInPort); err != nil {
			fmt.Printf("MIDI clock input unavailable: %v\n", err)
		} else {
			defer recv.Close()
		}
	}

	// MIDI note trigger per step
	if cfg.MIDI.TriggerOutPort != "" {
		trig, err := midi.NewStepTrigger(engine, cfg.MIDI.TriggerOutPort, cfg.MIDI.TriggerNote, cfg.MIDI.TriggerChannel)
		if err != nil {
			fmt.Printf("MIDI trigger output unavailable: %v\n", err)
		} else {
			engine.RegisterStepCallback("midi-trigger", 10, trig.Handler())
		}
	}

	// Metronome click
	if cfg.Click {
		c, err := click.New()
		if err != nil {
			fmt.Printf("Audio click unavailable: %v\n", err)
		} else {
			engine.RegisterStepCallback("click", 5, c.Handler())
			defer c.Close()
		}
	}

	m := tui.NewModel(engine, cfg.Transport)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
