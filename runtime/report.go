package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mohae/deepcopy"

	"github.com/pithecene-io/uproot/adapter"
	"github.com/pithecene-io/uproot/types"
)

// buildReport assembles the telemetry document. Payloads are deep-copied
// so the document shares nothing with run state.
func buildReport(r *Run) *types.TelemetryReport {
	summary, _ := deepcopy.Copy(r.summaryRaw).(map[string]any)
	if summary == nil {
		summary = map[string]any{}
	}

	entries := r.events.list()
	for i := range entries {
		if entries[i].Payload != nil {
			entries[i].Payload, _ = deepcopy.Copy(entries[i].Payload).(map[string]any)
		}
	}

	return &types.TelemetryReport{
		Target:      r.meta.Target,
		RunID:       r.meta.RunID,
		GeneratedAt: r.now().UTC(),
		DryRun:      r.cfg.DryRun,
		Outcome:     r.outcome,
		Summary:     summary,
		Stages:      r.tracker.Snapshot(),
		Counts:      r.accountant.Counts(),
		Metrics:     r.collector.Snapshot().Map(),
		Events:      entries,
	}
}

func runCompletedEvent(r *Run) *adapter.RunCompletedEvent {
	counts := r.accountant.Counts()
	ev := &adapter.RunCompletedEvent{
		ProtocolVersion: types.ProtocolVersion,
		EventType:       adapter.EventTypeRunCompleted,
		RunID:           r.meta.RunID,
		Target:          r.meta.Target,
		Outcome:         string(r.outcome.Status),
		Kind:            r.outcome.Kind,
		Message:         r.outcome.Message,
		DryRun:          r.cfg.DryRun,
		Removed:         counts.Removed,
		Failed:          counts.Failed,
		FreedBytes:      counts.RemovedBytes,
		ReportPath:      r.cfg.ReportPath,
		Timestamp:       r.now().UTC().Format(time.RFC3339),
		DurationMs:      r.now().Sub(r.startedAt).Milliseconds(),
	}
	if r.summary != nil {
		ev.Removed = r.summary.RemovedCount
		ev.Failed = r.summary.FailureCount
		ev.FreedBytes = r.summary.FreedBytes
	}
	return ev
}

// WriteReport writes the report as indented JSON to path.
// If path is "-", writes to stderr.
func WriteReport(report *types.TelemetryReport, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}
	if path == "-" {
		if err := writeReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (*types.TelemetryReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	var report types.TelemetryReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return &report, nil
}

func writeReportTo(report *types.TelemetryReport, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report *types.TelemetryReport) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
