package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/pithecene-io/uproot/cli/reader"
)

// StatsModel is a Bubble Tea model for report statistics.
type StatsModel struct {
	data     *reader.ReportStats
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(data *reader.ReportStats) StatsModel {
	return StatsModel{data: data}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, viewerKeys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}
	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return m.renderStats() + "\n" + help
}

func (m StatsModel) renderStats() string {
	data := m.data
	var b strings.Builder

	title := "Removal Statistics"
	if data.Target != "" {
		title += ": " + data.Target
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n\n")

	outcomes := []string{
		renderStatBox("Runs", fmt.Sprintf("%d", data.Runs), highlightColor),
		renderStatBox("Completed", fmt.Sprintf("%d", data.Completed), successColor),
		renderStatBox("Failed", fmt.Sprintf("%d", data.Failed+data.Crashed), errorColor),
		renderStatBox("Cancelled", fmt.Sprintf("%d", data.Cancelled), warningColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, outcomes...))
	b.WriteString("\n")

	totals := []string{
		renderStatBox("Removed", fmt.Sprintf("%d", data.Removed), successColor),
		renderStatBox("Removal Failures", fmt.Sprintf("%d", data.Failures), errorColor),
		renderStatBox("Freed", data.Freed(), highlightColor),
		renderStatBox("Success Rate", data.SuccessRate(), primaryColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, totals...))

	if data.LastRun != nil {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s %s",
			LabelStyle.Render("Last Run:"),
			ValueStyle.Render(humanize.Time(*data.LastRun))))
	}

	return b.String()
}

func renderStatBox(label, value string, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(data any) error {
	stats, ok := data.(*reader.ReportStats)
	if !ok {
		return fmt.Errorf("invalid data type for %s: %T", ViewStatsReports, data)
	}
	p := tea.NewProgram(NewStatsModel(stats), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats without the full TUI.
func RenderStatsStatic(data *reader.ReportStats) string {
	model := NewStatsModel(data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
