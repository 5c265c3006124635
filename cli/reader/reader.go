package reader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/pithecene-io/uproot/lode"
	"github.com/pithecene-io/uproot/types"
)

// ErrAmbiguousRunID is returned when a run ID prefix matches several reports.
var ErrAmbiguousRunID = errors.New("ambiguous run id")

// ListOptions filters a report listing.
type ListOptions struct {
	// Status keeps only reports with this outcome status.
	Status string
	// Limit caps the result count. Zero means no limit.
	Limit int
}

// Latest returns the newest report for target.
func Latest(ctx context.Context, r Reader, target string) (*types.TelemetryReport, error) {
	reports, err := load(ctx, r, target)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, lode.ErrReportNotFound
	}
	return reports[0].report, nil
}

// Find returns the report whose run ID equals or uniquely starts with runID.
func Find(ctx context.Context, r Reader, target, runID string) (*types.TelemetryReport, error) {
	refs, err := r.ListReports(ctx, target)
	if err != nil {
		return nil, err
	}
	var matches []lode.ReportRef
	for _, ref := range refs {
		if ref.RunID == runID {
			return r.ReadReport(ctx, ref)
		}
		if strings.HasPrefix(ref.RunID, runID) {
			matches = append(matches, ref)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: run %s", lode.ErrReportNotFound, runID)
	case 1:
		return r.ReadReport(ctx, matches[0])
	default:
		return nil, fmt.Errorf("%w: %q matches %d runs", ErrAmbiguousRunID, runID, len(matches))
	}
}

// List returns report rows for target, newest first.
func List(ctx context.Context, r Reader, target string, opts ListOptions) (ReportList, error) {
	reports, err := load(ctx, r, target)
	if err != nil {
		return nil, err
	}
	items := make(ReportList, 0, len(reports))
	for _, lr := range reports {
		item := ReportItem{
			RunID:       lr.report.RunID,
			Target:      lr.report.Target,
			Day:         lr.ref.Day,
			GeneratedAt: lr.report.GeneratedAt,
			Status:      status(lr.report),
		}
		summary := ParseSummary(lr.report.Summary)
		item.Removed = summary.Removed
		item.Failures = summary.Failures
		item.FreedBytes = summary.FreedBytes
		if opts.Status != "" && item.Status != opts.Status {
			continue
		}
		items = append(items, item)
		if opts.Limit > 0 && len(items) == opts.Limit {
			break
		}
	}
	return items, nil
}

// Stats aggregates every report for target.
func Stats(ctx context.Context, r Reader, target string) (*ReportStats, error) {
	reports, err := load(ctx, r, target)
	if err != nil {
		return nil, err
	}
	stats := &ReportStats{Target: target, Runs: len(reports)}
	for _, lr := range reports {
		switch types.OutcomeStatus(status(lr.report)) {
		case types.OutcomeCompleted:
			stats.Completed++
		case types.OutcomeFailed:
			stats.Failed++
		case types.OutcomeCancelled:
			stats.Cancelled++
		case types.OutcomeWorkerCrash:
			stats.Crashed++
		}
		summary := ParseSummary(lr.report.Summary)
		stats.Removed += summary.Removed
		stats.Failures += summary.Failures
		stats.FreedBytes += summary.FreedBytes
	}
	if len(reports) > 0 {
		last := reports[0].report.GeneratedAt
		stats.LastRun = &last
	}
	return stats, nil
}

type loadedReport struct {
	ref    lode.ReportRef
	report *types.TelemetryReport
}

// load reads every report for target, newest first.
func load(ctx context.Context, r Reader, target string) ([]loadedReport, error) {
	refs, err := r.ListReports(ctx, target)
	if err != nil {
		return nil, err
	}
	out := make([]loadedReport, 0, len(refs))
	for _, ref := range refs {
		report, err := r.ReadReport(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("read report %s: %w", ref.RunID, err)
		}
		out = append(out, loadedReport{ref: ref, report: report})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].report.GeneratedAt.After(out[j].report.GeneratedAt)
	})
	return out, nil
}

func status(report *types.TelemetryReport) string {
	if report.Outcome == nil {
		return "unknown"
	}
	return string(report.Outcome.Status)
}
