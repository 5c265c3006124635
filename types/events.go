//nolint:revive // types is a common Go package naming convention
package types

import "time"

// EventKind is the protocol message discriminator sent by the worker.
type EventKind string

// Event kinds understood by the orchestrator.
const (
	EventKickoff           EventKind = "kickoff"
	EventStage             EventKind = "stage"
	EventArtifacts         EventKind = "artifacts"
	EventSelection         EventKind = "selection"
	EventArtifactResult    EventKind = "artifactResult"
	EventSummary           EventKind = "summary"
	EventAwaitingSelection EventKind = "awaitingSelection"
	// EventOther is the forward-compatible fallback for unrecognized kinds.
	EventOther EventKind = "other"
)

// AffectsArtifacts returns true if events of this kind mutate stage,
// registry or accounting state. Only non-affecting events are drained
// while the run is held for selection.
func (k EventKind) AffectsArtifacts() bool {
	return k != EventOther && k != EventAwaitingSelection && k != EventSelection
}

// RunEvent is a decoded worker message. The concrete type is one of the
// *Event structs in this file.
type RunEvent interface {
	Kind() EventKind
	// Payload returns the raw decoded message, including unknown fields.
	Payload() map[string]any
}

// RawPayload carries the undecoded message for logging and telemetry.
type RawPayload struct {
	Raw map[string]any
}

// Payload implements RunEvent.
func (r RawPayload) Payload() map[string]any { return r.Raw }

// KickoffEvent signals that the worker has started.
type KickoffEvent struct {
	RawPayload
	// Target is the application identifier echoed by the worker, if any.
	Target string
}

// StageTransition is the status reported in a stage event.
type StageTransition string

// Stage transitions.
const (
	StageStarted        StageTransition = "started"
	StageCompletedEvent StageTransition = "completed"
)

// StageEvent reports a stage starting or completing.
type StageEvent struct {
	RawPayload
	// Name is the stage name as sent by the worker.
	Name string
	// Stage is the resolved stage. Unknown names resolve to StageKickoff.
	Stage Stage
	// Known is false when Name did not match a declared stage.
	Known  bool
	Status StageTransition
	// ExitCode is set when the worker reported one.
	ExitCode *int
	// Counters holds auxiliary integer fields (count, detected, stopped,
	// removed, failures, ...).
	Counters map[string]int64
}

// Counter returns the named auxiliary counter and whether it was present.
func (e *StageEvent) Counter(name string) (int64, bool) {
	v, ok := e.Counters[name]
	return v, ok
}

// ArtifactsEvent carries the full set of discovered artifacts.
type ArtifactsEvent struct {
	RawPayload
	Items []ArtifactSpec
	// Dropped is the number of items skipped for missing id or path.
	Dropped int
}

// SelectionEvent is the worker's informational echo of the selection it read.
type SelectionEvent struct {
	RawPayload
	Selected int
	Total    int
}

// ArtifactResultEvent reports the removal outcome of one artifact.
type ArtifactResultEvent struct {
	RawPayload
	ArtifactID string
	Success    bool
	Error      string
}

// SummaryEvent is the terminal summary reported by the worker.
type SummaryEvent struct {
	RawPayload
	Removed    int
	Skipped    int
	Failures   int
	FreedBytes int64
	Timestamp  time.Time
	LogPath    string
}

// AwaitingSelectionEvent signals that the worker is blocked on the handoff.
type AwaitingSelectionEvent struct {
	RawPayload
}

// OtherEvent is any message whose kind is not recognized.
type OtherEvent struct {
	RawPayload
	// Type is the original discriminator.
	Type    string
	Level   LogLevel
	Message string
}

// Kind implementations.
func (*KickoffEvent) Kind() EventKind           { return EventKickoff }
func (*StageEvent) Kind() EventKind             { return EventStage }
func (*ArtifactsEvent) Kind() EventKind         { return EventArtifacts }
func (*SelectionEvent) Kind() EventKind         { return EventSelection }
func (*ArtifactResultEvent) Kind() EventKind    { return EventArtifactResult }
func (*SummaryEvent) Kind() EventKind           { return EventSummary }
func (*AwaitingSelectionEvent) Kind() EventKind { return EventAwaitingSelection }
func (*OtherEvent) Kind() EventKind             { return EventOther }

// LogLevel represents log severity.
type LogLevel string

// Log level constants.
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// ParseLogLevel maps a worker-supplied level to a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch LogLevel(s) {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return LogLevel(s)
	case "warning":
		return LogLevelWarn
	default:
		return LogLevelInfo
	}
}
