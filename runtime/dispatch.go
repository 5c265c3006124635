package runtime

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/pithecene-io/uproot/types"
)

// dispatch applies one decoded event to run state.
func (r *Run) dispatch(ev types.RunEvent) {
	switch e := ev.(type) {
	case *types.KickoffEvent:
		r.onKickoff(e)
	case *types.StageEvent:
		r.onStage(e)
	case *types.ArtifactsEvent:
		r.onArtifacts(e)
	case *types.SelectionEvent:
		r.onSelection(e)
	case *types.ArtifactResultEvent:
		r.onArtifactResult(e)
	case *types.SummaryEvent:
		r.onSummary(e)
	case *types.AwaitingSelectionEvent:
		r.onAwaitingSelection(e)
	case *types.OtherEvent:
		r.onOther(e)
	}
}

func (r *Run) onKickoff(e *types.KickoffEvent) {
	if e.Target != "" && e.Target != r.meta.Target {
		r.logger.Warn("worker reported a different target", map[string]any{"reported": e.Target})
	}
	if err := r.tracker.Complete(types.StageKickoff, ""); err != nil {
		r.rejectedTransition(err)
	}
	r.record(types.LogLevelInfo, "worker started", e.Payload())
}

func (r *Run) onStage(e *types.StageEvent) {
	if !e.Known {
		r.logger.Warn("unknown stage name", map[string]any{"name": e.Name})
	}
	r.record(types.LogLevelInfo, fmt.Sprintf("stage %s %s", e.Name, e.Status), e.Payload())

	if e.Status == types.StageStarted {
		if err := r.tracker.Begin(e.Stage); err != nil {
			r.rejectedTransition(err)
		}
		return
	}

	if e.ExitCode != nil && *e.ExitCode != 0 {
		detail := fmt.Sprintf("exit code %d", *e.ExitCode)
		stage := e.Stage
		if err := r.tracker.Fail(stage, detail); err != nil {
			// The failure is charged to the stage in progress so stages
			// still finish in declared order.
			r.rejectedTransition(err)
			if front, ok := r.tracker.Frontier(); ok {
				stage = front
				_ = r.tracker.Fail(front, detail)
			}
		}
		r.terminate(types.OutcomeFailed, &RunError{
			Kind: KindWorkerExitFailure,
			Msg:  fmt.Sprintf("%s: %s", stage, detail),
		}, &stage)
		return
	}

	if err := r.tracker.Complete(e.Stage, r.stageDetail(e)); err != nil {
		r.rejectedTransition(err)
	}
	if e.Stage == types.StageCleanup {
		r.closeHold()
	}
}

// stageDetail renders the completion detail from the event's counters,
// falling back to local state where the worker omitted them.
func (r *Run) stageDetail(e *types.StageEvent) string {
	switch e.Stage {
	case types.StageDefaultUninstall:
		if e.ExitCode != nil {
			return fmt.Sprintf("exit code %d", *e.ExitCode)
		}
	case types.StageProcessSweep:
		stopped, okStopped := e.Counter("stopped")
		detected, okDetected := e.Counter("detected")
		switch {
		case okStopped && okDetected:
			return fmt.Sprintf("stopped %d of %d processes", stopped, detected)
		case okStopped:
			return fmt.Sprintf("stopped %d processes", stopped)
		}
	case types.StageArtifactDiscovery:
		n, ok := e.Counter("count")
		if !ok {
			n = int64(r.registry.Len())
		}
		return fmt.Sprintf("found %d artifact(s)", n)
	case types.StageSelectionHold:
		selected, _ := r.registry.SelectedTotals()
		return fmt.Sprintf("Selected %d of %d", selected, r.registry.Len())
	case types.StageCleanup:
		removed, ok := e.Counter("removed")
		if !ok {
			removed = int64(r.accountant.Removed())
		}
		failed, ok := e.Counter("failures")
		if !ok {
			failed, ok = e.Counter("failed")
		}
		if !ok {
			failed = int64(r.accountant.Failed())
		}
		return fmt.Sprintf("removed %d, %d failed", removed, failed)
	}
	return ""
}

func (r *Run) onArtifacts(e *types.ArtifactsEvent) {
	if dups := r.registry.Replace(e.Items); len(dups) > 0 {
		r.logger.Warn("duplicate artifact ids dropped", map[string]any{"ids": dups})
	}
	if e.Dropped > 0 {
		r.logger.Warn("artifacts without id or path dropped", map[string]any{"count": e.Dropped})
	}
	count, bytes := r.registry.SelectedTotals()
	r.logger.Info("artifacts discovered", map[string]any{
		"count":          r.registry.Len(),
		"selected":       count,
		"selected_bytes": bytes,
	})
	r.record(types.LogLevelInfo, fmt.Sprintf("discovered %d artifact(s), %s selected by default",
		r.registry.Len(), humanize.Bytes(uint64(bytes))), e.Payload())

	detail := fmt.Sprintf("found %d artifact(s)", r.registry.Len())
	if err := r.tracker.Complete(types.StageArtifactDiscovery, detail); err != nil {
		r.rejectedTransition(err)
	}
	if r.tracker.Status(types.StageSelectionHold) == types.StagePending {
		if err := r.tracker.Begin(types.StageSelectionHold); err != nil {
			r.rejectedTransition(err)
		}
	}

	r.openHold("artifacts discovered")
	if r.cfg.autoAdvance() {
		if r.cfg.AutoSelectAll {
			r.registry.SelectAll()
		}
		_ = r.commit("auto")
	}
}

func (r *Run) onSelection(e *types.SelectionEvent) {
	r.record(types.LogLevelInfo, fmt.Sprintf("worker read selection: %d of %d", e.Selected, e.Total), e.Payload())
	if selected := len(r.registry.SelectedIDs()); e.Selected != selected {
		r.logger.Warn("worker selection differs from committed selection", map[string]any{
			"reported":  e.Selected,
			"committed": selected,
		})
	}
	if err := r.tracker.Complete(types.StageSelectionHold, fmt.Sprintf("Selected %d of %d", e.Selected, e.Total)); err != nil {
		r.rejectedTransition(err)
	}
}

func (r *Run) onArtifactResult(e *types.ArtifactResultEvent) {
	delta, err := r.accountant.Apply(e.ArtifactID, e.Success, e.Error)
	if err != nil {
		r.collector.IncUnknownArtifactRef()
		r.logger.Warn("result for unknown artifact skipped", map[string]any{
			"artifact_id": e.ArtifactID,
			"kind":        string(KindUnknownArtifact),
		})
		r.record(types.LogLevelWarn, "result for unknown artifact "+e.ArtifactID, e.Payload())
		return
	}

	switch {
	case delta.Correction:
		r.logger.Warn("artifact result corrected", map[string]any{
			"artifact_id": e.ArtifactID,
			"previous":    string(delta.Previous),
			"current":     string(delta.Current),
		})
		r.record(types.LogLevelWarn, fmt.Sprintf("%s corrected from %s to %s", e.ArtifactID, delta.Previous, delta.Current), e.Payload())
	case e.Success:
		r.record(types.LogLevelInfo, "removed "+e.ArtifactID, e.Payload())
	default:
		r.logger.Warn("artifact removal failed", map[string]any{
			"artifact_id": e.ArtifactID,
			"error":       e.Error,
		})
		r.record(types.LogLevelWarn, fmt.Sprintf("failed to remove %s: %s", e.ArtifactID, e.Error), e.Payload())
	}
}

func (r *Run) onSummary(e *types.SummaryEvent) {
	summary := &types.RunSummary{
		RemovedCount: e.Removed,
		SkippedCount: e.Skipped,
		FailureCount: e.Failures,
		FreedBytes:   e.FreedBytes,
		CompletedAt:  e.Timestamp,
		LogPath:      e.LogPath,
	}
	if summary.CompletedAt.IsZero() {
		summary.CompletedAt = r.now()
	}
	r.summaryRaw = e.Payload()
	r.record(types.LogLevelInfo, "summary received", e.Payload())

	if err := r.tracker.Complete(types.StageSummary, "freed "+humanize.Bytes(uint64(summary.FreedBytes))); err != nil {
		r.rejectedTransition(err)
	}
	r.complete(summary)
}

func (r *Run) onAwaitingSelection(e *types.AwaitingSelectionEvent) {
	r.record(types.LogLevelInfo, "worker awaiting selection", e.Payload())
	if rev, ok := r.handoff.CommittedRevision(); ok && rev == r.registry.Revision() {
		r.logger.Debug("selection already committed", nil)
		return
	}
	r.openHold("worker awaiting selection")
	if r.cfg.autoAdvance() {
		_ = r.commit("auto")
	}
}

func (r *Run) onOther(e *types.OtherEvent) {
	msg := e.Message
	if msg == "" {
		msg = "worker event " + e.Type
	}
	r.logger.Log(e.Level, msg, map[string]any{"type": e.Type})
	r.record(e.Level, msg, e.Payload())
}
