// clockgen emits a synthetic MIDI clock for exercising external sync:
// Start, then 24 timing clocks per quarter note at the requested tempo.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

const pulsesPerQuarterNote = 24

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "run":
		if len(os.Args) < 4 {
			usage()
			return
		}
		bpm, err := strconv.ParseFloat(os.Args[3], 64)
		if err != nil || bpm <= 0 {
			fmt.Printf("bad bpm: %q\n", os.Args[3])
			return
		}
		run(os.Args[2], bpm)
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI clock generator")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                - List MIDI output ports")
	fmt.Println("  run <port> <bpm>    - Send Start + timing clock until interrupted")
}

func listPorts() {
	for i, out := range midi.GetOutPorts() {
		fmt.Printf("  [%d] %s\n", i, out.String())
	}
}

func run(portName string, bpm float64) {
	defer midi.CloseDriver()

	var send func(midi.Message) error
	for _, out := range midi.GetOutPorts() {
		if out.String() == portName {
			s, err := midi.SendTo(out)
			if err != nil {
				fmt.Printf("open port: %v\n", err)
				return
			}
			send = s
			break
		}
	}
	if send == nil {
		fmt.Printf("no output port named %q (try: clockgen list)\n", portName)
		return
	}

	interval := time.Duration(60_000_000/bpm/pulsesPerQuarterNote) * time.Microsecond
	fmt.Printf("sending clock at %.1f bpm (%v/pulse) to %q, ctrl+c to stop\n", bpm, interval, portName)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)

	send(midi.Start())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			send(midi.TimingClock())
		case <-sig:
			send(midi.Stop())
			return
		}
	}
}
