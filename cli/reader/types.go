// Package reader provides the read-side data access layer for the uproot CLI.
//
// Read-only commands (inspect, reports, stats) go through this package and
// never touch runtime internals. Reports come from a Lode store or a local
// report file.
package reader

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pithecene-io/uproot/types"
)

// ReportView is the inspect response for one telemetry report.
type ReportView struct {
	RunID       string             `json:"run_id" yaml:"run_id"`
	Target      string             `json:"target" yaml:"target"`
	GeneratedAt time.Time          `json:"generated_at" yaml:"generated_at"`
	DryRun      bool               `json:"dry_run" yaml:"dry_run"`
	Status      string             `json:"status" yaml:"status"`
	Message     string             `json:"message" yaml:"message"`
	Summary     SummaryView        `json:"summary" yaml:"summary"`
	Counts      types.Counts       `json:"counts" yaml:"counts"`
	Stages      []types.StageState `json:"stages" yaml:"stages"`
	Events      int                `json:"events" yaml:"events"`

	// Report is the full document, kept for the TUI event list.
	Report *types.TelemetryReport `json:"-" yaml:"-"`
}

// NewReportView builds the inspect response for report.
func NewReportView(report *types.TelemetryReport) *ReportView {
	v := &ReportView{
		RunID:       report.RunID,
		Target:      report.Target,
		GeneratedAt: report.GeneratedAt,
		DryRun:      report.DryRun,
		Summary:     ParseSummary(report.Summary),
		Counts:      report.Counts,
		Stages:      report.Stages,
		Events:      len(report.Events),
		Report:      report,
	}
	if report.Outcome != nil {
		v.Status = string(report.Outcome.Status)
		v.Message = report.Outcome.Message
	}
	return v
}

// TableHeader implements render.Table.
func (v *ReportView) TableHeader() []string {
	return []string{"FIELD", "VALUE"}
}

// TableRows implements render.Table.
func (v *ReportView) TableRows() [][]string {
	rows := [][]string{
		{"run_id", v.RunID},
		{"target", v.Target},
		{"generated_at", v.GeneratedAt.Format(time.RFC3339)},
		{"dry_run", strconv.FormatBool(v.DryRun)},
		{"status", v.Status},
		{"message", v.Message},
		{"removed", strconv.Itoa(v.Summary.Removed)},
		{"skipped", strconv.Itoa(v.Summary.Skipped)},
		{"failures", strconv.Itoa(v.Summary.Failures)},
		{"freed", humanize.Bytes(uint64(v.Summary.FreedBytes))},
		{"events", strconv.Itoa(v.Events)},
	}
	for _, st := range v.Stages {
		value := string(st.Status)
		if st.Detail != "" {
			value += " (" + st.Detail + ")"
		}
		rows = append(rows, []string{"stage." + st.Stage.String(), value})
	}
	return rows
}

// SummaryView is the typed reading of a report's summary payload.
type SummaryView struct {
	Removed    int    `json:"removed" yaml:"removed"`
	Skipped    int    `json:"skipped" yaml:"skipped"`
	Failures   int    `json:"failures" yaml:"failures"`
	FreedBytes int64  `json:"freed_bytes" yaml:"freed_bytes"`
	LogPath    string `json:"log_path,omitempty" yaml:"log_path,omitempty"`
}

// ReportItem is one row of a report listing.
type ReportItem struct {
	RunID       string    `json:"run_id" yaml:"run_id"`
	Target      string    `json:"target" yaml:"target"`
	Day         string    `json:"day" yaml:"day"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
	Status      string    `json:"status" yaml:"status"`
	Removed     int       `json:"removed" yaml:"removed"`
	Failures    int       `json:"failures" yaml:"failures"`
	FreedBytes  int64     `json:"freed_bytes" yaml:"freed_bytes"`
}

// ReportList is a report listing.
type ReportList []ReportItem

// TableHeader implements render.Table.
func (l ReportList) TableHeader() []string {
	return []string{"RUN ID", "TARGET", "GENERATED", "STATUS", "REMOVED", "FAILED", "FREED"}
}

// TableRows implements render.Table.
func (l ReportList) TableRows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, it := range l {
		rows = append(rows, []string{
			it.RunID,
			it.Target,
			humanize.Time(it.GeneratedAt),
			it.Status,
			strconv.Itoa(it.Removed),
			strconv.Itoa(it.Failures),
			humanize.Bytes(uint64(it.FreedBytes)),
		})
	}
	return rows
}

// ReportStats aggregates reports for a target.
type ReportStats struct {
	Target     string `json:"target" yaml:"target"`
	Runs       int    `json:"runs" yaml:"runs"`
	Completed  int    `json:"completed" yaml:"completed"`
	Failed     int    `json:"failed" yaml:"failed"`
	Cancelled  int    `json:"cancelled" yaml:"cancelled"`
	Crashed    int    `json:"crashed" yaml:"crashed"`
	Removed    int    `json:"removed" yaml:"removed"`
	Failures   int    `json:"failures" yaml:"failures"`
	FreedBytes int64  `json:"freed_bytes" yaml:"freed_bytes"`
	// LastRun is the newest report's generation time. Nil with no reports.
	LastRun *time.Time `json:"last_run,omitempty" yaml:"last_run,omitempty"`
}

// Freed formats FreedBytes.
func (s *ReportStats) Freed() string {
	return humanize.Bytes(uint64(s.FreedBytes))
}

// SuccessRate returns the completed share of runs as a percentage string.
func (s *ReportStats) SuccessRate() string {
	if s.Runs == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%%", float64(s.Completed)*100/float64(s.Runs))
}
