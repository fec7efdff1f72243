package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/tandem/audit"
	"github.com/pithecene-io/tandem/cli/reader"
)

// TrailModel is a Bubble Tea model for audit trail views.
type TrailModel struct {
	viewType string
	trail    *reader.Trail
	width    int
	height   int
	quitting bool
}

// NewTrailModel creates a new trail model.
func NewTrailModel(viewType string, trail *reader.Trail) TrailModel {
	return TrailModel{
		viewType: viewType,
		trail:    trail,
	}
}

// Init implements tea.Model.
func (m TrailModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m TrailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m TrailModel) View() string {
	if m.quitting {
		return ""
	}
	if m.trail == nil {
		return "No trail loaded"
	}

	var content string
	switch m.viewType {
	case "trail_summary":
		content = m.renderSummary()
	case "trail_health":
		content = m.renderHealth()
	case "trail_stats":
		content = m.renderStats()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m TrailModel) renderSummary() string {
	s := m.trail.Summary

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session Trail"))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Session", s.SessionID},
		{"Trail", m.trail.Path},
		{"Records", fmt.Sprintf("%d", s.Records)},
	}
	if m.trail.Skipped > 0 {
		rows = append(rows, []string{"Skipped Lines", fmt.Sprintf("%d", m.trail.Skipped)})
	}
	if s.FirstAt != nil {
		rows = append(rows, []string{"First Record", s.FirstAt.Format("2006-01-02 15:04:05")})
	}
	if s.LastAt != nil {
		rows = append(rows, []string{"Last Record", s.LastAt.Format("2006-01-02 15:04:05")})
	}

	for _, row := range rows {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render(row[0]+":"),
			ValueStyle.Render(row[1])))
	}

	if s.LastHealth != "" {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Last Health:"),
			StateStyle(s.LastHealth).Render(s.LastHealth)))
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Degradation:"),
			StateStyle(s.LastDegradation).Render(s.LastDegradation)))
	}

	return BoxStyle.Render(b.String()) + "\n" + m.renderStats()
}

func (m TrailModel) renderHealth() string {
	s := m.trail.Summary

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Health Transitions"))
	b.WriteString("\n\n")

	if len(s.Transitions) == 0 {
		b.WriteString(ValueStyle.Render("No health transitions recorded"))
		return BoxStyle.Render(b.String())
	}

	for _, tr := range s.Transitions {
		b.WriteString(fmt.Sprintf("%s  %s  %s\n",
			LabelStyle.Render(tr.At.Format("15:04:05")),
			StateStyle(tr.Health).Render(fmt.Sprintf("%-9s", tr.Health)),
			ValueStyle.Render(tr.Degradation)))
	}

	return BoxStyle.Render(b.String())
}

func (m TrailModel) renderStats() string {
	counts := m.trail.Summary.Counts

	kinds := []audit.Kind{
		audit.KindConflict,
		audit.KindSync,
		audit.KindError,
		audit.KindRecovery,
		audit.KindHealth,
	}

	boxes := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		box := lipgloss.JoinVertical(lipgloss.Center,
			StatValueStyle.Render(fmt.Sprintf("%d", counts[string(kind)])),
			StatLabelStyle.Render(string(kind)))
		boxes = append(boxes, StatBoxStyle.Render(box))
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunTrailTUI runs the trail TUI.
func RunTrailTUI(viewType string, data any) error {
	trail, ok := data.(*reader.Trail)
	if !ok {
		return fmt.Errorf("invalid data type for %s", viewType)
	}
	model := NewTrailModel(viewType, trail)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
