package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/pithecene-io/uproot/runtime"
	"github.com/pithecene-io/uproot/types"
)

// recentRows bounds the event lines shown under the stage list.
const recentRows = 6

// Session is the controller surface the selection view drives.
// *runtime.Controller satisfies it.
type Session interface {
	Snapshot() runtime.Snapshot
	Updates() <-chan runtime.Snapshot
	SetArtifactSelected(id string, selected bool) error
	SelectAll() error
	SelectNone() error
	CommitSelection() error
	Cancel() error
}

var _ Session = (*runtime.Controller)(nil)

type snapshotMsg runtime.Snapshot

type commandErrMsg struct{ err error }

// SelectionModel shows run progress and collects the artifact selection
// while the run is held. It quits once the run is terminal.
type SelectionModel struct {
	session Session
	snap    runtime.Snapshot
	// rows flattens the artifacts of all groups in display order.
	rows   []types.Artifact
	cursor int
	err    error
	now    func() time.Time
	width  int
	done   bool
}

// NewSelectionModel creates a selection model over session.
func NewSelectionModel(session Session) SelectionModel {
	m := SelectionModel{session: session, now: time.Now}
	m.apply(session.Snapshot())
	return m
}

// Init implements tea.Model.
func (m SelectionModel) Init() tea.Cmd {
	if m.done {
		return tea.Quit
	}
	return waitForSnapshot(m.session.Updates())
}

func waitForSnapshot(ch <-chan runtime.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

func (m *SelectionModel) apply(snap runtime.Snapshot) {
	m.snap = snap
	rows := make([]types.Artifact, 0, snap.ArtifactCount)
	for _, g := range snap.Groups {
		rows = append(rows, g.Artifacts...)
	}
	m.rows = rows
	if m.cursor >= len(m.rows) {
		m.cursor = max(len(m.rows)-1, 0)
	}
	m.done = snap.Terminal()
}

// Update implements tea.Model.
func (m SelectionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case snapshotMsg:
		m.apply(runtime.Snapshot(msg))
		if m.done {
			return m, tea.Quit
		}
		return m, waitForSnapshot(m.session.Updates())

	case commandErrMsg:
		m.err = msg.err
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m SelectionModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.done {
		if key.Matches(msg, viewerKeys.Quit) {
			return m, tea.Quit
		}
		return m, nil
	}
	if key.Matches(msg, selectionKeys.Cancel) {
		return m, m.exec(m.session.Cancel)
	}
	if !m.snap.AwaitingSelection {
		return m, nil
	}

	m.err = nil
	switch {
	case key.Matches(msg, selectionKeys.Up):
		m.cursor = max(m.cursor-1, 0)
	case key.Matches(msg, selectionKeys.Down):
		m.cursor = min(m.cursor+1, max(len(m.rows)-1, 0))
	case key.Matches(msg, selectionKeys.Toggle):
		if len(m.rows) == 0 {
			return m, nil
		}
		a := m.rows[m.cursor]
		return m, m.exec(func() error {
			return m.session.SetArtifactSelected(a.ID, !a.Selected)
		})
	case key.Matches(msg, selectionKeys.All):
		return m, m.exec(m.session.SelectAll)
	case key.Matches(msg, selectionKeys.None):
		return m, m.exec(m.session.SelectNone)
	case key.Matches(msg, selectionKeys.Commit):
		return m, m.exec(m.session.CommitSelection)
	}
	return m, nil
}

// exec runs a controller command off the update loop. The resulting
// state arrives through the snapshot feed.
func (m SelectionModel) exec(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return commandErrMsg{err: err}
		}
		return nil
	}
}

// View implements tea.Model.
func (m SelectionModel) View() string {
	var b strings.Builder

	title := "uproot"
	if m.snap.Target != "" {
		title += " · " + m.snap.Target
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n\n",
		LabelStyle.Render("Phase:"),
		StateStyle(string(m.snap.Phase)).Render(string(m.snap.Phase))))

	b.WriteString(m.renderStages())

	if m.snap.AwaitingSelection {
		b.WriteString("\n")
		b.WriteString(m.renderArtifacts())
	}

	if m.snap.Outcome != nil {
		b.WriteString("\n")
		b.WriteString(m.renderOutcome())
	}

	if recent := m.renderRecent(); recent != "" {
		b.WriteString("\n")
		b.WriteString(recent)
	}

	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render(m.helpLine()))
	b.WriteString("\n")
	return b.String()
}

func (m SelectionModel) renderStages() string {
	var b strings.Builder
	for _, st := range m.snap.Stages {
		line := fmt.Sprintf("  %s %-18s", stageGlyph(st.Status), st.Stage)
		if st.Detail != "" {
			line += MutedStyle.Render(st.Detail)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func (m SelectionModel) renderArtifacts() string {
	var b strings.Builder
	if len(m.rows) == 0 {
		b.WriteString(MutedStyle.Render("  No artifacts found. Press enter to continue."))
		b.WriteString("\n")
		return b.String()
	}

	i := 0
	for _, g := range m.snap.Groups {
		b.WriteString(GroupStyle.Render(fmt.Sprintf("%s (%d selected, %s)",
			g.Name, g.SelectedCount, humanize.Bytes(uint64(g.SelectedBytes)))))
		b.WriteString("\n")
		for _, a := range g.Artifacts {
			b.WriteString(m.renderArtifact(a, i == m.cursor))
			b.WriteString("\n")
			i++
		}
	}

	counts := m.snap.Counts
	footer := fmt.Sprintf("Selected %d of %d · %s",
		counts.SelectedCount, m.snap.ArtifactCount, humanize.Bytes(uint64(counts.SelectedBytes)))
	if !m.snap.HoldDeadline.IsZero() {
		remaining := m.snap.HoldDeadline.Sub(m.now()).Round(time.Second)
		footer += fmt.Sprintf(" · times out in %s", max(remaining, 0))
	}
	b.WriteString("\n" + ValueStyle.Render(footer) + "\n")
	return b.String()
}

func (m SelectionModel) renderArtifact(a types.Artifact, focused bool) string {
	box := "[ ]"
	if a.Selected {
		box = "[x]"
	}
	name := a.DisplayName
	if name == "" {
		name = a.Path
	}
	line := fmt.Sprintf("%s %s  %s", box, name, MutedStyle.Render(humanize.Bytes(uint64(a.SizeBytes))))
	if a.RequiresElevatedPrivilege {
		line += WarningStyle.Render("  (admin)")
	}
	if focused {
		return CursorStyle.Render("> ") + line
	}
	return "  " + line
}

func (m SelectionModel) renderOutcome() string {
	o := m.snap.Outcome
	style := StateStyle(string(o.Status))
	return style.Render(fmt.Sprintf("%s: %s", o.Status, o.Message)) + "\n"
}

func (m SelectionModel) renderRecent() string {
	recent := m.snap.Recent
	if len(recent) == 0 {
		return ""
	}
	if len(recent) > recentRows {
		recent = recent[len(recent)-recentRows:]
	}
	var b strings.Builder
	for _, e := range recent {
		b.WriteString(fmt.Sprintf("  %s %s\n",
			MutedStyle.Render(e.Timestamp.Format("15:04:05")),
			LevelStyle(e.Level).Render(e.Message)))
	}
	return b.String()
}

func (m SelectionModel) helpLine() string {
	switch {
	case m.done:
		return "q quit"
	case m.snap.AwaitingSelection:
		return "↑/↓ move • space toggle • a all • n none • enter remove selected • ctrl+c cancel"
	default:
		return "ctrl+c cancel"
	}
}

// Final returns the last snapshot the model saw.
func (m SelectionModel) Final() runtime.Snapshot {
	return m.snap
}

// selectionKeyMap defines key bindings for the selection checkpoint.
type selectionKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Toggle key.Binding
	All    key.Binding
	None   key.Binding
	Commit key.Binding
	Cancel key.Binding
}

var selectionKeys = selectionKeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "move up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "move down"),
	),
	Toggle: key.NewBinding(
		key.WithKeys(" ", "x"),
		key.WithHelp("space", "toggle"),
	),
	All: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "select all"),
	),
	None: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "select none"),
	),
	Commit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "remove selected"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "cancel"),
	),
}

// RunSelection drives session interactively until the run is terminal and
// returns the final snapshot.
func RunSelection(session Session) (runtime.Snapshot, error) {
	p := tea.NewProgram(NewSelectionModel(session))
	final, err := p.Run()
	if err != nil {
		return runtime.Snapshot{}, err
	}
	if m, ok := final.(SelectionModel); ok {
		return m.Final(), nil
	}
	return session.Snapshot(), nil
}
