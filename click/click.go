// Package click plays a metronome tick on step events through the
// system audio output. It is an ordinary transport subscriber; timing
// accuracy is the engine's job, the click just renders it audibly.
package click

import (
	"math"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"

	"go-pulse/transport"
)

const (
	sampleRate    = beep.SampleRate(44100)
	clickDuration = 25 * time.Millisecond
	beatFreq      = 880.0
	accentFreq    = 1760.0 // pattern downbeat
)

// Click owns the speaker. Create one per process.
type Click struct {
	rate beep.SampleRate
}

// New initializes the speaker with a small buffer so clicks land close
// to their step instants.
func New() (*Click, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(20*time.Millisecond)); err != nil {
		return nil, err
	}
	return &Click{rate: sampleRate}, nil
}

// Handler returns the registry callback that plays one click per step
func (c *Click) Handler() transport.StepHandler {
	return func(stepIndex int, timestampMicros int64) error {
		freq := beatFreq
		if stepIndex == 0 {
			freq = accentFreq
		}
		speaker.Play(newTone(freq, clickDuration, c.rate))
		return nil
	}
}

// Close shuts the speaker down
func (c *Click) Close() {
	speaker.Close()
}

// tone is a short sine burst with a linear decay so the click doesn't pop
type tone struct {
	freq     float64
	phase    float64
	total    int
	position int
	rate     beep.SampleRate
}

func newTone(freq float64, d time.Duration, rate beep.SampleRate) beep.Streamer {
	return &tone{freq: freq, total: rate.N(d), rate: rate}
}

func (t *tone) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		if t.position >= t.total {
			return i, false
		}
		decay := 1 - float64(t.position)/float64(t.total)
		val := math.Sin(2*math.Pi*t.phase) * decay * 0.5
		samples[i][0] = val
		samples[i][1] = val

		t.phase += t.freq / float64(t.rate)
		t.phase -= math.Floor(t.phase)
		t.position++
	}
	return len(samples), true
}

func (t *tone) Err() error { return nil }
