package state

import (
	"fmt"

	"github.com/pithecene-io/uproot/types"
)

// ResultDelta describes how one artifact result moved the tallies.
type ResultDelta struct {
	Previous types.RemovalState
	Current  types.RemovalState
	// Removed and Failed are the count deltas (-1, 0 or +1).
	Removed int
	Failed  int
	// Correction is true when the result contradicted an earlier one.
	Correction bool
}

// Accountant derives running totals from artifact results and registry
// selection. Updates are idempotent: replaying a result is a no-op, and a
// contradicting result moves the artifact between tallies.
//
// removed+failed never exceeds the number of artifacts that have received
// at least one result.
type Accountant struct {
	registry *Registry

	removed      int
	failed       int
	removedBytes int64
	failedBytes  int64

	selectedCount int
	selectedBytes int64

	reported map[string]struct{}
}

// NewAccountant creates an accountant bound to registry. It subscribes to
// selection changes to keep selected totals current and resets its tallies
// when the registry is replaced.
func NewAccountant(registry *Registry) *Accountant {
	a := &Accountant{
		registry: registry,
		reported: make(map[string]struct{}),
	}
	registry.Subscribe(a.onSelectionChange)
	a.selectedCount, a.selectedBytes = registry.SelectedTotals()
	return a
}

func (a *Accountant) onSelectionChange(change SelectionChange) {
	if change.Replaced {
		a.removed, a.failed = 0, 0
		a.removedBytes, a.failedBytes = 0, 0
		a.reported = make(map[string]struct{})
	}
	a.selectedCount, a.selectedBytes = a.registry.SelectedTotals()
}

// Apply records the removal outcome of one artifact.
// Unknown ids are rejected with ErrUnknownArtifact and change nothing.
func (a *Accountant) Apply(id string, success bool, detail string) (ResultDelta, error) {
	e, ok := a.registry.byID[id]
	if !ok {
		return ResultDelta{}, fmt.Errorf("%w: %s", ErrUnknownArtifact, id)
	}

	next := types.RemovalFailed
	if success {
		next = types.RemovalRemoved
	}
	delta := ResultDelta{Previous: e.removal, Current: next}
	size := e.spec.SizeBytes

	switch {
	case e.removal == next:
		// replay
	case e.removal == types.RemovalPending && success:
		delta.Removed = 1
	case e.removal == types.RemovalPending && !success:
		delta.Failed = 1
	case e.removal == types.RemovalRemoved && !success:
		delta.Removed, delta.Failed = -1, 1
		delta.Correction = true
	case e.removal == types.RemovalFailed && success:
		delta.Removed, delta.Failed = 1, -1
		delta.Correction = true
	}

	a.removed += delta.Removed
	a.failed += delta.Failed
	a.removedBytes += int64(delta.Removed) * size
	a.failedBytes += int64(delta.Failed) * size

	e.removal = next
	if success {
		e.failureDetail = ""
	} else {
		e.failureDetail = detail
	}
	a.reported[id] = struct{}{}
	return delta, nil
}

// Removed returns the removed count.
func (a *Accountant) Removed() int { return a.removed }

// Failed returns the failed count.
func (a *Accountant) Failed() int { return a.failed }

// Counts returns a snapshot of every tally.
func (a *Accountant) Counts() types.Counts {
	return types.Counts{
		Removed:       a.removed,
		Failed:        a.failed,
		Reported:      len(a.reported),
		RemovedBytes:  a.removedBytes,
		FailedBytes:   a.failedBytes,
		SelectedCount: a.selectedCount,
		SelectedBytes: a.selectedBytes,
	}
}
