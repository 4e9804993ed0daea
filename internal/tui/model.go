package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"crmload/internal/driver"
	"crmload/internal/stats"
)

const tickInterval = 200 * time.Millisecond

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#04B575")).MarginBottom(1)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	subtle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type tickMsg time.Time

// Phase announces scenario progress to the view.
type Phase struct {
	Name  string
	Index int
	Total int
}

// Model is the live run view: current phase, counters and latency
// percentiles, refreshed from the driver's snapshot channel.
type Model struct {
	BaseURL string
	Updates driver.SnapshotChan
	Phases  chan Phase
	Done    <-chan struct{}

	snap     stats.Snapshot
	phase    Phase
	progress progress.Model
	start    time.Time
	finished bool
	quitting bool
	width    int
}

func NewModel(baseURL string, updates driver.SnapshotChan, phases chan Phase, done <-chan struct{}) Model {
	return Model{
		BaseURL:  baseURL,
		Updates:  updates,
		Phases:   phases,
		Done:     done,
		progress: progress.New(progress.WithDefaultGradient()),
		start:    time.Now(),
	}
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 4
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		// Drain pending snapshots and phase announcements.
		for {
			select {
			case s := <-m.Updates:
				m.snap = s
				continue
			case p := <-m.Phases:
				m.phase = p
				continue
			default:
			}
			break
		}

		select {
		case <-m.Done:
			m.finished = true
		default:
		}

		pct := 0.0
		if m.phase.Total > 0 {
			pct = float64(m.phase.Index) / float64(m.phase.Total)
		}
		if m.finished {
			pct = 1.0
		}
		cmd := m.progress.SetPercent(pct)

		if m.finished {
			m.quitting = true
			return m, tea.Sequence(cmd, tea.Quit)
		}
		return m, tea.Batch(cmd, tickCmd())

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	s := strings.Builder{}

	s.WriteString(titleStyle.Render("🚀 CRM Load Test"))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("URL: %s\n", m.BaseURL))

	phaseLine := "Phase: starting"
	if m.phase.Total > 0 {
		phaseLine = fmt.Sprintf("Phase: %s (%d/%d)", m.phase.Name, m.phase.Index+1, m.phase.Total)
	}
	s.WriteString(subtle.Render(fmt.Sprintf("%s | Elapsed: %s",
		phaseLine, time.Since(m.start).Round(time.Second))))
	s.WriteString("\n\n")

	errCol := fmt.Sprintf("%d", m.snap.Errors)
	if m.snap.Errors > 0 {
		errCol = errStyle.Render(errCol)
	}
	leftCol := fmt.Sprintf(
		"Requests: %d\nSuccess:  %d\nErrors:   %s",
		m.snap.Total, m.snap.Success, errCol,
	)
	rightCol := fmt.Sprintf(
		"Latency\n  P50: %.1f ms\n  P90: %.1f ms\n  P99: %.1f ms\n  Max: %d ms",
		m.snap.P50Ms, m.snap.P90Ms, m.snap.P99Ms, m.snap.MaxMs,
	)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(24).Render(leftCol),
		lipgloss.NewStyle().Width(30).Render(rightCol),
	))

	s.WriteString("\n\n")
	s.WriteString(m.progress.View())
	s.WriteString("\n")
	s.WriteString(subtle.Render("Press q to quit"))

	return s.String()
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
