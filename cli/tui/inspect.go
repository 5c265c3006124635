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

// defaultEventRows is the event list height before a window size arrives.
const defaultEventRows = 10

// InspectModel is a Bubble Tea model for a telemetry report.
type InspectModel struct {
	data     *reader.ReportView
	offset   int
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(data *reader.ReportView) InspectModel {
	return InspectModel{data: data}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.offset = min(m.offset, m.maxOffset())
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, viewerKeys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, viewerKeys.Down):
			m.offset = min(m.offset+1, m.maxOffset())
		case key.Matches(msg, viewerKeys.Up):
			m.offset = max(m.offset-1, 0)
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		m.renderOverview(),
		m.renderStages(),
		m.renderEvents(),
	)
	help := HelpStyle.Render("↑/↓ scroll events • q quit")
	return content + "\n" + help
}

func (m InspectModel) renderOverview() string {
	data := m.data
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Removal Report"))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Run ID", data.RunID},
		{"Target", data.Target},
		{"Generated", data.GeneratedAt.Format("2006-01-02 15:04:05")},
		{"Status", data.Status},
		{"Message", data.Message},
		{"Removed", fmt.Sprintf("%d", data.Summary.Removed)},
		{"Skipped", fmt.Sprintf("%d", data.Summary.Skipped)},
		{"Failures", fmt.Sprintf("%d", data.Summary.Failures)},
		{"Freed", humanize.Bytes(uint64(data.Summary.FreedBytes))},
	}
	if data.DryRun {
		rows = append(rows, []string{"Dry Run", "yes"})
	}
	if data.Summary.LogPath != "" {
		rows = append(rows, []string{"Worker Log", data.Summary.LogPath})
	}

	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := ValueStyle.Render(row[1])
		if row[0] == "Status" {
			value = StateStyle(data.Status).Render(row[1])
		}
		b.WriteString(fmt.Sprintf("%s %s\n", label, value))
	}

	return BoxStyle.Render(b.String())
}

func (m InspectModel) renderStages() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Stages"))
	b.WriteString("\n")
	for _, st := range m.data.Stages {
		line := fmt.Sprintf("%s %s", stageGlyph(st.Status), st.Stage)
		if st.Detail != "" {
			line += MutedStyle.Render("  " + st.Detail)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m InspectModel) eventRows() int {
	if m.height == 0 {
		return defaultEventRows
	}
	// Overview box and stage list take roughly 30 lines.
	return max(m.height-30, 3)
}

func (m InspectModel) maxOffset() int {
	if m.data.Report == nil {
		return 0
	}
	return max(len(m.data.Report.Events)-m.eventRows(), 0)
}

func (m InspectModel) renderEvents() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Events (%d)", m.data.Events)))
	b.WriteString("\n")
	if m.data.Report == nil {
		return b.String()
	}

	events := m.data.Report.Events
	end := min(m.offset+m.eventRows(), len(events))
	for _, e := range events[m.offset:end] {
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			MutedStyle.Render(e.Timestamp.Format("15:04:05")),
			LevelStyle(e.Level).Render(fmt.Sprintf("%-5s", e.Level)),
			e.Message))
	}
	return b.String()
}

// viewerKeyMap defines key bindings for read-only views.
type viewerKeyMap struct {
	Quit key.Binding
	Up   key.Binding
	Down key.Binding
}

var viewerKeys = viewerKeyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "scroll up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "scroll down"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(data any) error {
	view, ok := data.(*reader.ReportView)
	if !ok {
		return fmt.Errorf("invalid data type for %s: %T", ViewInspectReport, data)
	}
	p := tea.NewProgram(NewInspectModel(view), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders a report without the full TUI.
func RenderInspectStatic(data *reader.ReportView) string {
	model := NewInspectModel(data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
