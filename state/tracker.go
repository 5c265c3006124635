package state

import "github.com/pithecene-io/uproot/types"

// Tracker holds the fixed ordered list of stages and their status.
//
// Invariants:
//   - at most one stage is Active
//   - stages reach Completed in declared order, never skipping or moving back
//   - once any stage is Failed, Begin and Complete are refused until Reset
type Tracker struct {
	stages [types.StageCount]types.StageState
	halted bool
}

// NewTracker creates a tracker with every stage Pending.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.Reset()
	return t
}

// Reset returns every stage to Pending. Called at the start of a new run.
func (t *Tracker) Reset() {
	for _, s := range types.AllStages() {
		t.stages[s] = types.StageState{Stage: s, Status: types.StagePending}
	}
	t.halted = false
}

// Begin marks stage Active and clears its detail.
// Beginning the already-Active stage is a no-op apart from clearing detail.
func (t *Tracker) Begin(stage types.Stage) error {
	if !stage.Valid() {
		return ErrInvalidStage
	}
	cur := t.stages[stage]
	if t.halted {
		return t.reject("begin", stage, ErrTrackerHalted, "a previous stage failed")
	}
	switch cur.Status {
	case types.StageActive:
		t.stages[stage].Detail = ""
		return nil
	case types.StageCompleted, types.StageFailed:
		return t.reject("begin", stage, ErrStageOutOfOrder, "stage already finished")
	}
	if reason, ok := t.canAdvanceTo(stage); !ok {
		return t.reject("begin", stage, ErrStageOutOfOrder, reason)
	}

	t.stages[stage].Status = types.StageActive
	t.stages[stage].Detail = ""
	return nil
}

// Complete marks stage Completed with a human-readable detail.
// Completing an already-Completed stage only refreshes the detail.
func (t *Tracker) Complete(stage types.Stage, detail string) error {
	if !stage.Valid() {
		return ErrInvalidStage
	}
	cur := t.stages[stage]
	switch cur.Status {
	case types.StageCompleted:
		t.stages[stage].Detail = detail
		return nil
	case types.StageFailed:
		return t.reject("complete", stage, ErrStageOutOfOrder, "stage already failed")
	case types.StagePending:
		if t.halted {
			return t.reject("complete", stage, ErrTrackerHalted, "a previous stage failed")
		}
		if reason, ok := t.canAdvanceTo(stage); !ok {
			return t.reject("complete", stage, ErrStageOutOfOrder, reason)
		}
	}

	t.stages[stage].Status = types.StageCompleted
	t.stages[stage].Detail = detail
	return nil
}

// Fail marks stage Failed and halts the tracker.
// A Pending stage may fail directly only when it is next in order;
// a finished stage may not fail.
func (t *Tracker) Fail(stage types.Stage, detail string) error {
	if !stage.Valid() {
		return ErrInvalidStage
	}
	switch cur := t.stages[stage].Status; {
	case cur.IsTerminal():
		return t.reject("fail", stage, ErrStageOutOfOrder, "stage already finished")
	case cur == types.StagePending:
		if reason, ok := t.canAdvanceTo(stage); !ok {
			return t.reject("fail", stage, ErrStageOutOfOrder, reason)
		}
	}
	t.stages[stage].Status = types.StageFailed
	t.stages[stage].Detail = detail
	t.halted = true
	return nil
}

// CurrentActive returns the Active stage, if any.
func (t *Tracker) CurrentActive() (types.Stage, bool) {
	for _, st := range t.stages {
		if st.Status == types.StageActive {
			return st.Stage, true
		}
	}
	return types.StageKickoff, false
}

// Frontier returns the earliest stage that has not Completed.
// It is false once every stage has Completed.
func (t *Tracker) Frontier() (types.Stage, bool) {
	for _, st := range t.stages {
		if st.Status != types.StageCompleted {
			return st.Stage, true
		}
	}
	return types.StageSummary, false
}

// Status returns the status of one stage.
func (t *Tracker) Status(stage types.Stage) types.StageStatus {
	if !stage.Valid() {
		return ""
	}
	return t.stages[stage].Status
}

// Halted reports whether a stage has failed.
func (t *Tracker) Halted() bool {
	return t.halted
}

// Snapshot returns a copy of every stage state in declared order.
func (t *Tracker) Snapshot() []types.StageState {
	out := make([]types.StageState, len(t.stages))
	copy(out, t.stages[:])
	return out
}

// canAdvanceTo checks that every predecessor is Completed and no later
// stage has started.
func (t *Tracker) canAdvanceTo(stage types.Stage) (string, bool) {
	for s := types.StageKickoff; s < stage; s++ {
		if t.stages[s].Status != types.StageCompleted {
			return "predecessor " + s.String() + " is " + string(t.stages[s].Status), false
		}
	}
	for s := stage + 1; s <= types.StageSummary; s++ {
		if t.stages[s].Status != types.StagePending {
			return "later stage " + s.String() + " is " + string(t.stages[s].Status), false
		}
	}
	return "", true
}

func (t *Tracker) reject(op string, stage types.Stage, kind error, reason string) error {
	return &TransitionError{
		Op:     op,
		Stage:  stage,
		Status: t.stages[stage].Status,
		Reason: reason,
		Kind:   kind,
	}
}
