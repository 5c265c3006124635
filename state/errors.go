// Package state holds the pure run state: stage tracking, the artifact
// registry and outcome accounting. Nothing in this package performs I/O.
//
// The types here are not safe for concurrent use. The run loop is the sole
// writer; readers receive copies via snapshot methods.
package state

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/uproot/types"
)

// Sentinel errors for state rejections. Use errors.Is for classification.
var (
	// ErrStageOutOfOrder indicates a transition that would skip a stage or move backward.
	ErrStageOutOfOrder = errors.New("stage out of order")
	// ErrTrackerHalted indicates a stage has failed and no further stages may begin.
	ErrTrackerHalted = errors.New("stage tracker halted after failure")
	// ErrInvalidStage indicates a stage value outside the declared set.
	ErrInvalidStage = errors.New("invalid stage")
	// ErrUnknownArtifact indicates a reference to an id not present in the registry.
	ErrUnknownArtifact = errors.New("unknown artifact")
)

// TransitionError describes a rejected stage transition.
type TransitionError struct {
	Op     string
	Stage  types.Stage
	Status types.StageStatus
	Reason string
	Kind   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s (status %s): %v: %s", e.Op, e.Stage, e.Status, e.Kind, e.Reason)
}

// Unwrap returns the sentinel kind for errors.Is.
func (e *TransitionError) Unwrap() error {
	return e.Kind
}
