package runtime

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/pithecene-io/uproot/types"
)

// Process exit codes for the run command.
const (
	ExitCodeCompleted = 0 // summary received
	ExitCodeFailed    = 1 // stage, stream or handoff failure
	ExitCodeCrash     = 2 // worker could not start or exited without summary
	ExitCodeCancelled = 3 // cancelled or selection timeout
)

// ExitCodeFor maps an outcome to a process exit code.
func ExitCodeFor(outcome *types.RunOutcome) int {
	if outcome == nil {
		return ExitCodeCrash
	}
	switch outcome.Status {
	case types.OutcomeCompleted:
		return ExitCodeCompleted
	case types.OutcomeFailed:
		return ExitCodeFailed
	case types.OutcomeCancelled:
		return ExitCodeCancelled
	default:
		return ExitCodeCrash
	}
}

func phaseFor(status types.OutcomeStatus) types.RunPhase {
	switch status {
	case types.OutcomeCompleted:
		return types.PhaseCompleted
	case types.OutcomeCancelled:
		return types.PhaseCancelled
	default:
		return types.PhaseFailed
	}
}

func summaryMessage(s *types.RunSummary) string {
	return fmt.Sprintf("removed %d, skipped %d, %d failure(s), freed %s",
		s.RemovedCount, s.SkippedCount, s.FailureCount, humanize.Bytes(uint64(s.FreedBytes)))
}

func completedOutcome(s *types.RunSummary) *types.RunOutcome {
	return &types.RunOutcome{
		Status:  types.OutcomeCompleted,
		Message: summaryMessage(s),
	}
}

func failedOutcome(status types.OutcomeStatus, err *RunError, stage *types.Stage) *types.RunOutcome {
	return &types.RunOutcome{
		Status:  status,
		Kind:    string(err.Kind),
		Stage:   stage,
		Message: err.Message(),
	}
}
