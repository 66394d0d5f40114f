// SPDX-License-Identifier: MIT
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"pdmcap/internal/analysis"
	"pdmcap/internal/pdm"
)

// Meter floor; levels below it draw an empty bar.
const floorDBFS = -60.0

// LevelSource provides the latest per-channel levels; *analysis.Meter
// satisfies it.
type LevelSource interface {
	Levels() []analysis.Level
}

// Status is the driver and session summary shown under the bars.
type Status struct {
	State    pdm.State
	Stats    pdm.Stats
	Dominant float64 // strongest frequency in Hz, 0 if unknown
}

type tickMsg time.Time

// MeterModel is the Bubble Tea model of the live level meter.
type MeterModel struct {
	title    string
	format   pdm.Format
	levels   LevelSource
	status   func() Status
	interval time.Duration

	bars    []progress.Model
	current []analysis.Level
	st      Status
	ready   bool
}

// NewMeterModel returns a meter redrawn every interval. status may be nil.
func NewMeterModel(title string, f pdm.Format, levels LevelSource, status func() Status, interval time.Duration) MeterModel {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	bars := make([]progress.Model, f.Channels)
	for i := range bars {
		bars[i] = progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage(), progress.WithWidth(40))
	}
	return MeterModel{
		title:    title,
		format:   f,
		levels:   levels,
		status:   status,
		interval: interval,
		bars:     bars,
	}
}

func (m MeterModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init starts the redraw ticker
func (m MeterModel) Init() tea.Cmd {
	return m.tick()
}

func (m MeterModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		w := max(msg.Width-40, 10)
		for i := range m.bars {
			m.bars[i].Width = w
		}

	case tickMsg:
		m.current = m.levels.Levels()
		if m.status != nil {
			m.st = m.status()
		}
		m.ready = true
		return m, m.tick()

	case tea.KeyMsg:
		if key.Matches(msg, key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"))) {
			return m, tea.Quit
		}
	}
	return m, nil
}

// View renders the UI
func (m MeterModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render(fmt.Sprintf("%d Hz, %d ch, %s", m.format.SampleRate, m.format.Channels, m.format.Size)))
	sb.WriteString("\n\n")

	if !m.ready {
		sb.WriteString("Waiting for samples...\n")
	}
	for i, l := range m.current {
		if i >= len(m.bars) {
			break
		}
		sb.WriteString(m.renderChannel(i, l))
		sb.WriteString("\n")
	}

	if m.status != nil && m.ready {
		sb.WriteString("\n")
		sb.WriteString(m.renderStatus())
	}
	sb.WriteString("\n\n")
	sb.WriteString(infoStyle.Render("q: Quit"))
	return sb.String()
}

func (m MeterModel) renderChannel(i int, l analysis.Level) string {
	name := "M"
	if m.format.Channels == 2 {
		name = [2]string{"L", "R"}[i]
	}
	line := fmt.Sprintf("%s %s %6.1f dBFS  peak %6.1f", name, m.bars[i].ViewAs(barPercent(l.DBFS())), l.DBFS(), l.PeakDBFS())
	if l.Clipped > 0 {
		line += " " + warnStyle.Render(fmt.Sprintf("CLIP %d", l.Clipped))
	}
	if dc := l.DC; dc > 0.05 || dc < -0.05 {
		line += " " + warnStyle.Render(fmt.Sprintf("DC %+.2f", dc))
	}
	return line
}

func (m MeterModel) renderStatus() string {
	s := m.st.Stats
	line := fmt.Sprintf("state %s  claimed %d  superseded %d  overruns %d  errors %d",
		m.st.State, s.Claimed+s.Delivered, s.Superseded, s.Overruns, s.EventErrors)
	if m.st.Dominant > 0 {
		line += fmt.Sprintf("  tone %.0f Hz", m.st.Dominant)
	}
	if s.Overruns > 0 || s.EventErrors > 0 {
		return warnStyle.Render(line)
	}
	return highlightStyle.Render(line)
}

func barPercent(dbfs float64) float64 {
	if dbfs <= floorDBFS {
		return 0
	}
	return min((dbfs-floorDBFS)/-floorDBFS, 1)
}

// RunMeter runs the meter until the user quits or ctx ends.
func RunMeter(ctx context.Context, m MeterModel) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
