package runtime

import (
	"time"

	"github.com/pithecene-io/uproot/types"
)

// Snapshot is an immutable view of a run for presentation.
type Snapshot struct {
	RunID  string
	Target string
	Phase  types.RunPhase
	// AwaitingSelection is true while the run is held for a commit.
	AwaitingSelection bool
	// HoldDeadline is when an unattended hold times out. Zero when not held.
	HoldDeadline time.Time

	Stages        []types.StageState
	Groups        []types.ArtifactGroup
	ArtifactCount int
	Counts        types.Counts
	// Revision is the registry selection revision.
	Revision uint64
	// Committed is true once a selection was written to the handoff.
	Committed bool

	Summary *types.RunSummary
	Outcome *types.RunOutcome
	// Recent holds the latest event log entries, oldest first.
	Recent []types.LogEntry
}

// recentEntries bounds Snapshot.Recent.
const recentEntries = 20

// Terminal reports whether the run has finished.
func (s Snapshot) Terminal() bool {
	return s.Phase.IsTerminal()
}

// idleSnapshot is the state before any run starts.
func idleSnapshot() Snapshot {
	stages := make([]types.StageState, 0, types.StageCount)
	for _, st := range types.AllStages() {
		stages = append(stages, types.StageState{Stage: st, Status: types.StagePending})
	}
	return Snapshot{Phase: types.PhaseIdle, Stages: stages}
}

func (r *Run) buildSnapshot() Snapshot {
	s := Snapshot{
		RunID:             r.meta.RunID,
		Target:            r.meta.Target,
		Phase:             r.phase,
		AwaitingSelection: r.held,
		HoldDeadline:      r.deadline,
		Stages:            r.tracker.Snapshot(),
		Groups:            r.registry.Groups(),
		ArtifactCount:     r.registry.Len(),
		Counts:            r.accountant.Counts(),
		Revision:          r.registry.Revision(),
		Outcome:           r.outcome,
	}
	if r.handoff != nil {
		s.Committed = r.handoff.Committed()
	}
	if r.summary != nil {
		summary := *r.summary
		s.Summary = &summary
	}
	entries := r.events.list()
	if len(entries) > recentEntries {
		entries = entries[len(entries)-recentEntries:]
	}
	s.Recent = entries
	return s
}

// publish stores a fresh snapshot and hands it to the update feed.
func (r *Run) publish() {
	s := r.buildSnapshot()
	r.snapMu.Lock()
	r.snap = s
	r.snapMu.Unlock()
	if r.onUpdate != nil {
		r.onUpdate(s)
	}
}
