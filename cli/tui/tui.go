package tui

import (
	"fmt"
	"slices"
)

// Read-only view types.
const (
	ViewInspectReport = "inspect_report"
	ViewStatsReports  = "stats_reports"
)

// Run starts the appropriate read-only TUI based on the view type.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	switch viewType {
	case ViewInspectReport:
		return RunInspectTUI(data)
	case ViewStatsReports:
		return RunStatsTUI(data)
	default:
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}
}

// IsTUISupported returns true if the view type supports TUI mode.
// Only inspect and stats support it.
func IsTUISupported(viewType string) bool {
	return slices.Contains(SupportedTUIViews(), viewType)
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{
		ViewInspectReport,
		ViewStatsReports,
	}
}
