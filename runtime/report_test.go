package runtime

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pithecene-io/uproot/types"
)

func testRun(t *testing.T) *Run {
	t.Helper()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := NewController(WithClock(func() time.Time { return fixed }))
	return newRun(c, types.RunMeta{RunID: "run-1", Target: "acme"}, RunConfig{Target: "acme", DryRun: true})
}

func TestBuildReport_DeepCopiesPayloads(t *testing.T) {
	r := testRun(t)
	nested := map[string]any{"path": "/opt/acme"}
	r.summaryRaw = map[string]any{"type": "summary", "meta": nested}
	r.record(types.LogLevelInfo, "summary received", r.summaryRaw)
	r.outcome = completedOutcome(&types.RunSummary{RemovedCount: 2, FreedBytes: 2048})

	report := buildReport(r)
	nested["path"] = "mutated"

	meta, _ := report.Summary["meta"].(map[string]any)
	if meta["path"] != "/opt/acme" {
		t.Errorf("summary shares state with the run: %v", meta)
	}
	evMeta, _ := report.Events[0].Payload["meta"].(map[string]any)
	if evMeta["path"] != "/opt/acme" {
		t.Errorf("event payload shares state with the run: %v", evMeta)
	}
	if !report.DryRun || report.Target != "acme" || report.RunID != "run-1" {
		t.Errorf("report header = %+v", report)
	}
	if len(report.Stages) != types.StageCount {
		t.Errorf("stages = %d", len(report.Stages))
	}
	if report.Outcome.Message != "removed 2, skipped 0, 0 failure(s), freed 2.0 kB" {
		t.Errorf("outcome message = %q", report.Outcome.Message)
	}
}

func TestBuildReport_EmptySummary(t *testing.T) {
	r := testRun(t)
	r.outcome = &types.RunOutcome{Status: types.OutcomeCancelled, Message: "cancelled by user"}
	report := buildReport(r)
	if report.Summary == nil || len(report.Summary) != 0 {
		t.Errorf("summary = %v, want empty map", report.Summary)
	}
}

func TestWriteReport_RoundTrip(t *testing.T) {
	r := testRun(t)
	stage := types.StageCleanup
	r.outcome = &types.RunOutcome{Status: types.OutcomeFailed, Kind: string(KindWorkerExitFailure), Stage: &stage, Message: "Cleanup: exit code 2"}
	report := buildReport(r)

	path := filepath.Join(t.TempDir(), "report.json")
	if err := WriteReport(report, path); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	got, err := ReadReport(path)
	if err != nil {
		t.Fatalf("ReadReport: %v", err)
	}
	if got.Outcome == nil || got.Outcome.Stage == nil || *got.Outcome.Stage != types.StageCleanup {
		t.Errorf("outcome = %+v", got.Outcome)
	}
	if got.Outcome.Message != "Cleanup: exit code 2" {
		t.Errorf("message = %q", got.Outcome.Message)
	}
}

func TestWriteReport_Errors(t *testing.T) {
	if err := WriteReport(&types.TelemetryReport{}, ""); err == nil {
		t.Error("empty path should fail")
	}
	if _, err := ReadReport(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing report should fail")
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	_ = os.WriteFile(bad, []byte("{"), 0o644)
	if _, err := ReadReport(bad); err == nil {
		t.Error("malformed report should fail")
	}
}

func TestWriteReportTo(t *testing.T) {
	var buf bytes.Buffer
	if err := writeReportTo(&types.TelemetryReport{Target: "acme"}, &buf); err != nil {
		t.Fatalf("writeReportTo: %v", err)
	}
	if !bytes.HasSuffix(buf.Bytes(), []byte("}\n")) || !bytes.Contains(buf.Bytes(), []byte(`"target": "acme"`)) {
		t.Errorf("output = %s", buf.String())
	}
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		status types.OutcomeStatus
		want   int
	}{
		{types.OutcomeCompleted, ExitCodeCompleted},
		{types.OutcomeFailed, ExitCodeFailed},
		{types.OutcomeWorkerCrash, ExitCodeCrash},
		{types.OutcomeCancelled, ExitCodeCancelled},
	}
	for _, tt := range tests {
		if got := ExitCodeFor(&types.RunOutcome{Status: tt.status}); got != tt.want {
			t.Errorf("ExitCodeFor(%s) = %d, want %d", tt.status, got, tt.want)
		}
	}
	if ExitCodeFor(nil) != ExitCodeCrash {
		t.Error("nil outcome should map to crash")
	}
}

func TestRunErrorKinds(t *testing.T) {
	err := &RunError{Kind: KindSelectionTimeout, Msg: "selection not committed within 10m0s"}
	if !IsCanceledError(err) {
		t.Error("selection timeout is a cancellation")
	}
	if KindOf(err) != KindSelectionTimeout {
		t.Errorf("KindOf = %s", KindOf(err))
	}
	if KindMalformedEvent.IsTerminal() || !KindHandoffIOFailure.IsTerminal() {
		t.Error("terminal classification is wrong")
	}
	if KindOf(os.ErrNotExist) != "" {
		t.Error("plain errors have no kind")
	}
}
