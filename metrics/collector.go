// Package metrics provides per-run counters for the removal orchestrator.
//
// The Collector accumulates counters during a single run. It is a leaf
// package with no internal dependencies.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of the run counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Run lifecycle
	RunsStarted   int64 `json:"runs_started" yaml:"runs_started"`
	RunsCompleted int64 `json:"runs_completed" yaml:"runs_completed"`
	RunsFailed    int64 `json:"runs_failed" yaml:"runs_failed"`
	RunsCrashed   int64 `json:"runs_crashed" yaml:"runs_crashed"`
	RunsCancelled int64 `json:"runs_cancelled" yaml:"runs_cancelled"`

	// Worker
	WorkerLaunchSuccess int64 `json:"worker_launch_success" yaml:"worker_launch_success"`
	WorkerLaunchFailure int64 `json:"worker_launch_failure" yaml:"worker_launch_failure"`

	// Event protocol
	EventsDecoded       int64            `json:"events_decoded" yaml:"events_decoded"`
	EventsByKind        map[string]int64 `json:"events_by_kind" yaml:"events_by_kind"`
	FrameErrors         int64            `json:"frame_errors" yaml:"frame_errors"`
	MalformedEvents     int64            `json:"malformed_events" yaml:"malformed_events"`
	UnknownArtifactRefs int64            `json:"unknown_artifact_refs" yaml:"unknown_artifact_refs"`
	StagesOutOfOrder    int64            `json:"stages_out_of_order" yaml:"stages_out_of_order"`

	// Selection handoff
	HandoffCommits  int64 `json:"handoff_commits" yaml:"handoff_commits"`
	HandoffFailures int64 `json:"handoff_failures" yaml:"handoff_failures"`

	// Telemetry persistence and notification
	TelemetryWriteSuccess int64 `json:"telemetry_write_success" yaml:"telemetry_write_success"`
	TelemetryWriteFailure int64 `json:"telemetry_write_failure" yaml:"telemetry_write_failure"`
	AdapterPublishSuccess int64 `json:"adapter_publish_success" yaml:"adapter_publish_success"`
	AdapterPublishFailure int64 `json:"adapter_publish_failure" yaml:"adapter_publish_failure"`

	// Dimensions (informational, set at construction)
	Framing        string `json:"framing" yaml:"framing"`
	StorageBackend string `json:"storage_backend" yaml:"storage_backend"`
	RunID          string `json:"run_id" yaml:"run_id"`
	Target         string `json:"target" yaml:"target"`
}

// Map renders the snapshot as a generic map for embedding in reports.
func (s Snapshot) Map() map[string]any {
	byKind := make(map[string]any, len(s.EventsByKind))
	for k, v := range s.EventsByKind {
		byKind[k] = v
	}
	return map[string]any{
		"runs_started":            s.RunsStarted,
		"runs_completed":          s.RunsCompleted,
		"runs_failed":             s.RunsFailed,
		"runs_crashed":            s.RunsCrashed,
		"runs_cancelled":          s.RunsCancelled,
		"worker_launch_success":   s.WorkerLaunchSuccess,
		"worker_launch_failure":   s.WorkerLaunchFailure,
		"events_decoded":          s.EventsDecoded,
		"events_by_kind":          byKind,
		"frame_errors":            s.FrameErrors,
		"malformed_events":        s.MalformedEvents,
		"unknown_artifact_refs":   s.UnknownArtifactRefs,
		"stages_out_of_order":     s.StagesOutOfOrder,
		"handoff_commits":         s.HandoffCommits,
		"handoff_failures":        s.HandoffFailures,
		"telemetry_write_success": s.TelemetryWriteSuccess,
		"telemetry_write_failure": s.TelemetryWriteFailure,
		"adapter_publish_success": s.AdapterPublishSuccess,
		"adapter_publish_failure": s.AdapterPublishFailure,
		"framing":                 s.Framing,
		"storage_backend":         s.StorageBackend,
		"run_id":                  s.RunID,
		"target":                  s.Target,
	}
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	runsStarted   int64
	runsCompleted int64
	runsFailed    int64
	runsCrashed   int64
	runsCancelled int64

	workerLaunchSuccess int64
	workerLaunchFailure int64

	eventsDecoded       int64
	eventsByKind        map[string]int64
	frameErrors         int64
	malformedEvents     int64
	unknownArtifactRefs int64
	stagesOutOfOrder    int64

	handoffCommits  int64
	handoffFailures int64

	telemetryWriteSuccess int64
	telemetryWriteFailure int64
	adapterPublishSuccess int64
	adapterPublishFailure int64

	framing        string
	storageBackend string
	runID          string
	target         string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(framing, storageBackend, runID, target string) *Collector {
	return &Collector{
		eventsByKind:   make(map[string]int64),
		framing:        framing,
		storageBackend: storageBackend,
		runID:          runID,
		target:         target,
	}
}

func (c *Collector) inc(counter *int64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

// --- Run lifecycle ---

// IncRunStarted records a run start.
func (c *Collector) IncRunStarted() {
	if c == nil {
		return
	}
	c.inc(&c.runsStarted)
}

// IncRunCompleted records a run that reached its summary.
func (c *Collector) IncRunCompleted() {
	if c == nil {
		return
	}
	c.inc(&c.runsCompleted)
}

// IncRunFailed records a stage, stream or handoff failure.
func (c *Collector) IncRunFailed() {
	if c == nil {
		return
	}
	c.inc(&c.runsFailed)
}

// IncRunCrashed records a worker that failed to start or exited without a summary.
func (c *Collector) IncRunCrashed() {
	if c == nil {
		return
	}
	c.inc(&c.runsCrashed)
}

// IncRunCancelled records a cancellation or selection timeout.
func (c *Collector) IncRunCancelled() {
	if c == nil {
		return
	}
	c.inc(&c.runsCancelled)
}

// --- Worker ---

// IncWorkerLaunchSuccess records a successful worker launch.
func (c *Collector) IncWorkerLaunchSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.workerLaunchSuccess)
}

// IncWorkerLaunchFailure records a failed worker launch.
func (c *Collector) IncWorkerLaunchFailure() {
	if c == nil {
		return
	}
	c.inc(&c.workerLaunchFailure)
}

// --- Event protocol ---

// IncEventDecoded records a decoded event of the given kind.
func (c *Collector) IncEventDecoded(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsDecoded++
	c.eventsByKind[kind]++
	c.mu.Unlock()
}

// IncFrameError records a frame that could not be read or parsed.
func (c *Collector) IncFrameError() {
	if c == nil {
		return
	}
	c.inc(&c.frameErrors)
}

// IncMalformedEvent records a message that failed typed decoding.
func (c *Collector) IncMalformedEvent() {
	if c == nil {
		return
	}
	c.inc(&c.malformedEvents)
}

// IncUnknownArtifactRef records a result for an id not in the registry.
func (c *Collector) IncUnknownArtifactRef() {
	if c == nil {
		return
	}
	c.inc(&c.unknownArtifactRefs)
}

// IncStageOutOfOrder records a rejected stage transition.
func (c *Collector) IncStageOutOfOrder() {
	if c == nil {
		return
	}
	c.inc(&c.stagesOutOfOrder)
}

// --- Selection handoff ---

// IncHandoffCommit records a handoff file write.
func (c *Collector) IncHandoffCommit() {
	if c == nil {
		return
	}
	c.inc(&c.handoffCommits)
}

// IncHandoffFailure records a handoff write failure.
func (c *Collector) IncHandoffFailure() {
	if c == nil {
		return
	}
	c.inc(&c.handoffFailures)
}

// --- Telemetry / adapters ---

// IncTelemetryWriteSuccess records a persisted telemetry report.
func (c *Collector) IncTelemetryWriteSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.telemetryWriteSuccess)
}

// IncTelemetryWriteFailure records a failed telemetry write.
func (c *Collector) IncTelemetryWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.telemetryWriteFailure)
}

// IncAdapterPublishSuccess records a delivered run notification.
func (c *Collector) IncAdapterPublishSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.adapterPublishSuccess)
}

// IncAdapterPublishFailure records a failed run notification.
func (c *Collector) IncAdapterPublishFailure() {
	if c == nil {
		return
	}
	c.inc(&c.adapterPublishFailure)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byKind := make(map[string]int64, len(c.eventsByKind))
	for k, v := range c.eventsByKind {
		byKind[k] = v
	}

	return Snapshot{
		RunsStarted:   c.runsStarted,
		RunsCompleted: c.runsCompleted,
		RunsFailed:    c.runsFailed,
		RunsCrashed:   c.runsCrashed,
		RunsCancelled: c.runsCancelled,

		WorkerLaunchSuccess: c.workerLaunchSuccess,
		WorkerLaunchFailure: c.workerLaunchFailure,

		EventsDecoded:       c.eventsDecoded,
		EventsByKind:        byKind,
		FrameErrors:         c.frameErrors,
		MalformedEvents:     c.malformedEvents,
		UnknownArtifactRefs: c.unknownArtifactRefs,
		StagesOutOfOrder:    c.stagesOutOfOrder,

		HandoffCommits:  c.handoffCommits,
		HandoffFailures: c.handoffFailures,

		TelemetryWriteSuccess: c.telemetryWriteSuccess,
		TelemetryWriteFailure: c.telemetryWriteFailure,
		AdapterPublishSuccess: c.adapterPublishSuccess,
		AdapterPublishFailure: c.adapterPublishFailure,

		Framing:        c.framing,
		StorageBackend: c.storageBackend,
		RunID:          c.runID,
		Target:         c.target,
	}
}
