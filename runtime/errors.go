package runtime

import (
	"errors"
	"fmt"
)

// Controller command errors.
var (
	// ErrNoActiveRun is returned by commands issued while no run is active.
	ErrNoActiveRun = errors.New("no active run")
	// ErrRunFinished is returned by commands issued after the run reached a
	// terminal state.
	ErrRunFinished = errors.New("run already finished")
	// ErrNothingToCommit is returned by CommitSelection before any artifacts
	// have been discovered.
	ErrNothingToCommit = errors.New("no artifacts to commit")
)

// RunErrorKind classifies run errors.
type RunErrorKind string

const (
	// KindMalformedEvent is a message that could not be decoded (skipped).
	KindMalformedEvent RunErrorKind = "malformed_event"
	// KindUnknownArtifact is a result for an id not in the registry (skipped).
	KindUnknownArtifact RunErrorKind = "unknown_artifact"
	// KindStageOutOfOrder is a rejected stage transition (skipped).
	KindStageOutOfOrder RunErrorKind = "stage_out_of_order"
	// KindWorkerExitFailure is a nonzero stage exit or a worker that exited
	// without a summary (terminal).
	KindWorkerExitFailure RunErrorKind = "worker_exit_failure"
	// KindSelectionTimeout is an unattended selection hold (terminal, cancelled).
	KindSelectionTimeout RunErrorKind = "selection_timeout"
	// KindHandoffIOFailure is a failure to write the selection (terminal).
	KindHandoffIOFailure RunErrorKind = "handoff_io_failure"
	// KindTelemetryPersistFailure is a failed telemetry write (logged only).
	KindTelemetryPersistFailure RunErrorKind = "telemetry_persist_failure"
	// KindStreamFailure is a fatal framing error on worker stdout (terminal).
	KindStreamFailure RunErrorKind = "stream_failure"
	// KindWorkerStartFailure is a worker that could not be launched (terminal).
	KindWorkerStartFailure RunErrorKind = "worker_start_failure"
	// KindCanceled is an explicit cancellation (terminal).
	KindCanceled RunErrorKind = "canceled"
)

// IsTerminal returns true for kinds that end the run.
func (k RunErrorKind) IsTerminal() bool {
	switch k {
	case KindMalformedEvent, KindUnknownArtifact, KindStageOutOfOrder, KindTelemetryPersistFailure:
		return false
	default:
		return true
	}
}

// RunError is a classified run error.
type RunError struct {
	Kind RunErrorKind
	Msg  string
	Err  error
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Message returns the human-readable message without the kind prefix.
func (e *RunError) Message() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// KindOf returns the kind of a *RunError in err's chain, or "".
func KindOf(err error) RunErrorKind {
	var runErr *RunError
	if errors.As(err, &runErr) {
		return runErr.Kind
	}
	return ""
}

// IsCanceledError returns true if err is a cancellation or selection timeout.
func IsCanceledError(err error) bool {
	k := KindOf(err)
	return k == KindCanceled || k == KindSelectionTimeout
}
