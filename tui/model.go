package tui

import (
	"fmt"
	"strings"
	"sync/atomic"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-pulse/config"
	"go-pulse/transport"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	playStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	pauseStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	stepOn      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	stepOff     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Model is the transport monitor: a live view of the engine plus key
// bindings for the public transport API.
type Model struct {
	Engine   *transport.Engine
	start    config.TransportConfig
	loops    atomic.Int64
	quitting bool
}

type UpdateMsg struct{}

func NewModel(engine *transport.Engine, start config.TransportConfig) *Model {
	m := &Model{Engine: engine, start: start}
	engine.SetPatternCompleteCallback(func(int64) { m.loops.Add(1) })
	return m
}

// ListenForUpdates waits for the engine's next UI nudge
func ListenForUpdates(engine *transport.Engine) tea.Cmd {
	return func() tea.Msg {
		<-engine.UpdateChan
		return UpdateMsg{}
	}
}

func (m *Model) Init() tea.Cmd {
	return ListenForUpdates(m.Engine)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		s := m.Engine.Snapshot()
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.Engine.Stop()
			return m, tea.Quit

		case " ":
			if s.Phase == transport.Stopped {
				m.loops.Store(0)
				m.Engine.Start(m.start.TempoBPM, m.start.Swing, m.start.PatternLength)
			} else {
				m.Engine.Stop()
			}

		case "p":
			if s.Phase == transport.Playing {
				m.Engine.Pause()
			} else if s.Phase == transport.Paused {
				m.Engine.Resume()
			}

		case "+", "=":
			m.Engine.SetTempo(s.TempoBPM + 1)
		case "-":
			m.Engine.SetTempo(s.TempoBPM - 1)

		case "]":
			m.Engine.SetSwing(s.Swing + 0.05)
		case "[":
			m.Engine.SetSwing(s.Swing - 0.05)

		case "e":
			if s.ClockSource == transport.ClockInternal {
				m.Engine.SetClockSource(transport.ClockExternal)
			} else {
				m.Engine.SetClockSource(transport.ClockInternal)
			}

		case "r":
			m.Engine.ResetCounters()
		}
		return m, nil

	case UpdateMsg:
		return m, ListenForUpdates(m.Engine)
	}
	return m, nil
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	s := m.Engine.Snapshot()
	stats := m.Engine.TimingStats()

	phase := dimStyle.Render("STOP")
	switch s.Phase {
	case transport.Playing:
		phase = playStyle.Render("PLAY")
	case transport.Paused:
		phase = pauseStyle.Render("PAUSE")
	}

	source := s.ClockSource.String()
	if s.ClockSource == transport.ClockExternal {
		if s.ExternallySynced {
			source = fmt.Sprintf("external %.1fbpm", stats.DetectedExternalTempo)
		} else {
			source = "external (waiting)"
		}
	}

	header := headerStyle.Render(fmt.Sprintf(
		"go-pulse  %s  %5.1fbpm  swing:%.2f  clock:%s", phase, s.TempoBPM, s.Swing, source))

	// Step grid with playhead
	var grid strings.Builder
	for i := 0; i < s.PatternLength; i++ {
		if i > 0 && i%4 == 0 {
			grid.WriteString(" ")
		}
		if s.Phase != transport.Stopped && i == s.Step {
			grid.WriteString(stepOn.Render("█"))
		} else {
			grid.WriteString(stepOff.Render("·"))
		}
	}
	gridLine := fmt.Sprintf("%s  step %02d/%02d  %3.0f%%  loops:%d",
		grid.String(), s.Step, s.PatternLength, s.StepProgress*100, m.loops.Load())

	rt := playStyle.Render("ok")
	if !stats.RealTimeCapable {
		rt = warnStyle.Render("degraded")
	}
	statsLine := dimStyle.Render(fmt.Sprintf(
		"jitter avg:%dµs max:%dµs  missed:%d  handler errors:%d  timing:",
		stats.AverageJitterMicros, stats.MaxJitterMicros,
		stats.MissedCallbacks, stats.HandlerErrors)) + rt

	help := dimStyle.Render("space:play/stop  p:pause  +/-:tempo  [/]:swing  e:clock source  r:reset counters  q:quit")

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(gridLine)
	out.WriteString("\n")
	out.WriteString(statsLine)
	out.WriteString("\n\n")
	out.WriteString(help)
	return out.String()
}
