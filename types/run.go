//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"time"
)

// RunMeta contains run identity.
type RunMeta struct {
	// RunID is the unique run identifier.
	RunID string
	// Target is the application identifier being removed.
	Target string
}

// Validate checks that required identity fields are present.
func (r *RunMeta) Validate() error {
	if r.RunID == "" {
		return errors.New("run_id must be non-empty")
	}
	if r.Target == "" {
		return errors.New("target must be non-empty")
	}
	return nil
}

// RunSummary is the terminal aggregate reported by the worker.
// It is produced exactly once per run from the summary event.
type RunSummary struct {
	RemovedCount int       `json:"removed_count" yaml:"removed_count"`
	SkippedCount int       `json:"skipped_count" yaml:"skipped_count"`
	FailureCount int       `json:"failure_count" yaml:"failure_count"`
	FreedBytes   int64     `json:"freed_bytes" yaml:"freed_bytes"`
	CompletedAt  time.Time `json:"completed_at" yaml:"completed_at"`
	LogPath      string    `json:"log_path,omitempty" yaml:"log_path,omitempty"`
}

// RunPhase is the lifecycle phase of the run controller.
type RunPhase string

// Run phases.
const (
	PhaseIdle              RunPhase = "idle"
	PhaseStarting          RunPhase = "starting"
	PhaseRunning           RunPhase = "running"
	PhaseAwaitingSelection RunPhase = "awaiting_selection"
	PhaseCompleted         RunPhase = "completed"
	PhaseFailed            RunPhase = "failed"
	PhaseCancelled         RunPhase = "cancelled"
)

// IsTerminal returns true for Completed, Failed and Cancelled.
func (p RunPhase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseCancelled
}

// OutcomeStatus represents the final status of a run.
type OutcomeStatus string

const (
	// OutcomeCompleted indicates the worker reported a summary.
	OutcomeCompleted OutcomeStatus = "completed"
	// OutcomeFailed indicates a stage failure, stream failure or handoff failure.
	OutcomeFailed OutcomeStatus = "failed"
	// OutcomeWorkerCrash indicates the worker could not be started or exited
	// without a summary.
	OutcomeWorkerCrash OutcomeStatus = "worker_crash"
	// OutcomeCancelled indicates cancellation or selection timeout.
	OutcomeCancelled OutcomeStatus = "cancelled"
)

// RunOutcome is the terminal state of a run with exactly one explanatory message.
type RunOutcome struct {
	Status OutcomeStatus `json:"status" yaml:"status"`
	// Kind is the error kind for non-completed outcomes.
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
	// Stage is the stage that was active when the run terminated, if any.
	Stage   *Stage `json:"stage,omitempty" yaml:"stage,omitempty"`
	Message string `json:"message" yaml:"message"`
}

// LogEntry is one locally observed event recorded in the telemetry log.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp" yaml:"timestamp"`
	Level     LogLevel       `json:"level" yaml:"level"`
	Message   string         `json:"message" yaml:"message"`
	Payload   map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// TelemetryReport is the document persisted at summary time.
type TelemetryReport struct {
	Target      string         `json:"target" yaml:"target"`
	RunID       string         `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time      `json:"generated_at" yaml:"generated_at"`
	DryRun      bool           `json:"dry_run" yaml:"dry_run"`
	Outcome     *RunOutcome    `json:"outcome,omitempty" yaml:"outcome,omitempty"`
	Summary     map[string]any `json:"summary" yaml:"summary"`
	Stages      []StageState   `json:"stages" yaml:"stages"`
	Counts      Counts         `json:"counts" yaml:"counts"`
	Metrics     map[string]any `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Events      []LogEntry     `json:"events" yaml:"events"`
}

// Counts is a snapshot of the outcome accountant.
type Counts struct {
	Removed       int   `json:"removed" yaml:"removed"`
	Failed        int   `json:"failed" yaml:"failed"`
	Reported      int   `json:"reported" yaml:"reported"`
	RemovedBytes  int64 `json:"removed_bytes" yaml:"removed_bytes"`
	FailedBytes   int64 `json:"failed_bytes" yaml:"failed_bytes"`
	SelectedCount int   `json:"selected_count" yaml:"selected_count"`
	SelectedBytes int64 `json:"selected_bytes" yaml:"selected_bytes"`
}
