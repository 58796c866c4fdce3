package main

import (
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	drumgrid "github.com/cbegin/drumgrid-go"
	"github.com/cbegin/drumgrid-go/internal/debug"
)

var trackOrder = []drumgrid.Track{
	drumgrid.TrackKick,
	drumgrid.TrackSnare,
	drumgrid.TrackHiHat,
	drumgrid.TrackChord,
}

type model struct {
	engine   *drumgrid.Engine
	pattern  drumgrid.Pattern
	row, col int
	quitting bool
}

// tickMsg drives playhead redraws at roughly 30fps, decoupled from the
// engine's internal scheduling cadence.
type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func newModel(engine *drumgrid.Engine) model {
	p := drumgrid.Pattern{}
	for _, tr := range trackOrder {
		p[tr] = drumgrid.Steps{}
	}
	var kick, hat drumgrid.Steps
	kick[0], kick[4], kick[8], kick[12] = true, true, true, true
	hat[2], hat[6], hat[10], hat[14] = true, true, true, true
	p[drumgrid.TrackKick] = kick
	p[drumgrid.TrackHiHat] = hat
	engine.SetPattern(p)
	return model{engine: engine, pattern: p}
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.engine.Stop()
			return m, tea.Quit

		case "up", "k":
			if m.row > 0 {
				m.row--
			}
		case "down", "j":
			if m.row < len(trackOrder)-1 {
				m.row++
			}
		case "left", "h":
			if m.col > 0 {
				m.col--
			}
		case "right", "l":
			if m.col < drumgrid.StepCount-1 {
				m.col++
			}

		case "enter", "x":
			tr := trackOrder[m.row]
			row := m.pattern[tr]
			row[m.col] = !row[m.col]
			m.pattern[tr] = row
			m.engine.SetPattern(m.pattern)

		case " ":
			m.engine.Toggle()

		case "+", "=":
			m.engine.SetTempo(m.engine.Tempo() + 5)
		case "-", "_":
			m.engine.SetTempo(m.engine.Tempo() - 5)

		case "r":
			m.engine.Reset()

		case "c":
			for _, tr := range trackOrder {
				m.pattern[tr] = drumgrid.Steps{}
			}
			m.engine.SetPattern(m.pattern)
		}

	case tickMsg:
		return m, tick()
	}

	return m, nil
}

var (
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(7)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	playheadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("219")).Bold(true)
	cursorStyle   = lipgloss.NewStyle().Reverse(true)
)

func (m model) View() string {
	if m.quitting {
		return ""
	}

	playState := "STOP"
	if m.engine.IsPlaying() {
		playState = "PLAY"
	}
	playhead := m.engine.CurrentStep()

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(headerStyle.Render(fmt.Sprintf("drumgrid  %s  %3.0fbpm  step:%02d", playState, m.engine.Tempo(), playhead)))
	out.WriteString("\n\n")

	for r, tr := range trackOrder {
		out.WriteString(labelStyle.Render(string(tr)))
		row := m.pattern[tr]
		for c := 0; c < drumgrid.StepCount; c++ {
			cell := "·"
			style := dimStyle
			if row[c] {
				cell = "■"
				style = activeStyle
			}
			if m.engine.IsPlaying() && c == playhead {
				style = playheadStyle
			}
			if r == m.row && c == m.col {
				style = cursorStyle
			}
			out.WriteString(style.Render(cell))
			if c%4 == 3 {
				out.WriteString("  ")
			} else {
				out.WriteString(" ")
			}
		}
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(dimStyle.Render("hjkl/arrows:nav  x/enter:toggle  space:play  +/-:tempo  r:rewind  c:clear  q:quit"))
	out.WriteString("\n")
	return out.String()
}

func main() {
	var (
		sampleRate = flag.Int("sample-rate", 48000, "output sample rate")
		bpm        = flag.Float64("bpm", 120, "starting tempo in BPM (60-180)")
		debugLog   = flag.String("debug", "", "path to a debug log file")
	)
	flag.Parse()

	if *debugLog != "" {
		if err := debug.Enable(*debugLog); err != nil {
			log.Fatal(err)
		}
		defer debug.Disable()
	}

	engine := drumgrid.New(drumgrid.WithSampleRate(*sampleRate))
	defer engine.Destroy()
	if err := engine.Init(); err != nil {
		log.Fatal(err)
	}
	engine.SetTempo(*bpm)

	if _, err := tea.NewProgram(newModel(engine)).Run(); err != nil {
		log.Fatal(err)
	}
}
