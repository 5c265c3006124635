package lode

import (
	"time"

	"github.com/pithecene-io/uproot/types"
)

// toRecords flattens a report into dataset records. Every record carries
// the partition keys used by the Hive layout.
func toRecords(r *types.TelemetryReport, day string) []any {
	base := func(kind string) map[string]any {
		return map[string]any{
			"target":      r.Target,
			"day":         day,
			"run_id":      r.RunID,
			"record_kind": kind,
		}
	}

	records := make([]any, 0, 1+len(r.Stages)+len(r.Events))

	run := base(RecordKindRun)
	run["generated_at"] = r.GeneratedAt.UTC().Format(time.RFC3339Nano)
	run["dry_run"] = r.DryRun
	run["removed"] = r.Counts.Removed
	run["failed"] = r.Counts.Failed
	run["removed_bytes"] = r.Counts.RemovedBytes
	run["selected_count"] = r.Counts.SelectedCount
	run["selected_bytes"] = r.Counts.SelectedBytes
	if r.Outcome != nil {
		run["outcome"] = string(r.Outcome.Status)
		run["message"] = r.Outcome.Message
	}
	if r.Summary != nil {
		run["summary"] = r.Summary
	}
	records = append(records, run)

	for i, st := range r.Stages {
		rec := base(RecordKindStage)
		rec["seq"] = i
		rec["stage"] = st.Stage.String()
		rec["status"] = string(st.Status)
		rec["detail"] = st.Detail
		records = append(records, rec)
	}

	for i, e := range r.Events {
		rec := base(RecordKindEvent)
		rec["seq"] = i
		rec["ts"] = e.Timestamp.UTC().Format(time.RFC3339Nano)
		rec["level"] = string(e.Level)
		rec["message"] = e.Message
		if e.Payload != nil {
			rec["payload"] = e.Payload
		}
		records = append(records, rec)
	}
	return records
}
