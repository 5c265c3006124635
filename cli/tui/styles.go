// Package tui provides Bubble Tea TUI components for the uproot CLI.
//
// Two kinds of views live here:
//   - the selection checkpoint for `uproot run`, driven by controller snapshots
//   - read-only viewers for `inspect` and `stats` (opt-in via --tui)
//
// Read-only views use the same payloads as non-TUI rendering.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/uproot/types"
)

// Color palette.
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	successColor   = lipgloss.Color("#10B981") // Green
	warningColor   = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	highlightColor = lipgloss.Color("#3B82F6") // Blue
)

// Styles for TUI components.
var (
	// TitleStyle for headers and titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	// LabelStyle for field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Width(16)

	// ValueStyle for field values.
	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	// SuccessStyle for success states.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(successColor)

	// WarningStyle for warning states.
	WarningStyle = lipgloss.NewStyle().
			Foreground(warningColor)

	// ErrorStyle for error states.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	// MutedStyle for secondary text.
	MutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	// GroupStyle for artifact group headers.
	GroupStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(highlightColor)

	// CursorStyle for the focused artifact row.
	CursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	// BoxStyle for bordered containers.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(1, 2)

	// HelpStyle for help text.
	HelpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)

	// StatBoxStyle for stat display boxes.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlightColor).
			Padding(0, 2).
			Width(20).
			Align(lipgloss.Center)

	// StatLabelStyle for stat labels.
	StatLabelStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Align(lipgloss.Center)

	// StatValueStyle for stat values.
	StatValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Align(lipgloss.Center)
)

// StateStyle returns a style based on the state string.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "completed", "removed":
		return SuccessStyle
	case "active", "running", "starting", "awaiting_selection", "pending":
		return WarningStyle
	case "failed", "worker_crash", "cancelled":
		return ErrorStyle
	default:
		return ValueStyle
	}
}

// LevelStyle returns a style for an event log level.
func LevelStyle(level types.LogLevel) lipgloss.Style {
	switch level {
	case types.LogLevelWarn:
		return WarningStyle
	case types.LogLevelError:
		return ErrorStyle
	case types.LogLevelDebug:
		return MutedStyle
	default:
		return ValueStyle
	}
}

// stageGlyph is the status marker shown before a stage name.
func stageGlyph(status types.StageStatus) string {
	switch status {
	case types.StageCompleted:
		return SuccessStyle.Render("✓")
	case types.StageActive:
		return WarningStyle.Render("●")
	case types.StageFailed:
		return ErrorStyle.Render("✗")
	default:
		return MutedStyle.Render("○")
	}
}
