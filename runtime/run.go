package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pithecene-io/uproot/adapter"
	"github.com/pithecene-io/uproot/handoff"
	"github.com/pithecene-io/uproot/ipc"
	"github.com/pithecene-io/uproot/log"
	"github.com/pithecene-io/uproot/lode"
	"github.com/pithecene-io/uproot/metrics"
	"github.com/pithecene-io/uproot/state"
	"github.com/pithecene-io/uproot/types"
)

// Timeouts for post-run side effects. They run on a context detached from
// the run so that cancellation does not skip them.
const (
	telemetryTimeout = 30 * time.Second
	publishTimeout   = 30 * time.Second
)

// maxDeferred bounds the events queued while held. Reading pauses at the
// limit until the hold is released.
const maxDeferred = 1024

// RunResult is the terminal result of a run.
type RunResult struct {
	RunMeta types.RunMeta
	Outcome *types.RunOutcome
	// Summary is nil unless the worker reported one.
	Summary   *types.RunSummary
	Stages    []types.StageState
	Artifacts []types.Artifact
	Counts    types.Counts
	// Report is the telemetry document. Always built, persisted only when
	// the run completed.
	Report *types.TelemetryReport
	// WorkerExitCode is -1 when the worker never started or was killed.
	WorkerExitCode int
	// Stderr is the tail of worker stderr.
	Stderr     []byte
	Duration   time.Duration
	EventCount int64
	Metrics    metrics.Snapshot
}

// ExitCode returns the process exit code for the result.
func (r *RunResult) ExitCode() int {
	return ExitCodeFor(r.Outcome)
}

type commandOp int

const (
	opCommit commandOp = iota
	opSetSelected
	opSelectAll
	opSelectNone
)

type command struct {
	op       commandOp
	id       string
	selected bool
	reply    chan error
}

// frame is one read from worker stdout.
type frame struct {
	msg map[string]any
	err error
}

// Run is a single orchestrated removal run.
//
// All run state is owned by the goroutine started by Controller.Start.
// Commands reach it over a channel and observers read published snapshots.
type Run struct {
	meta       types.RunMeta
	cfg        RunConfig
	logger     *log.Logger
	collector  *metrics.Collector
	factory    WorkerFactory
	telemetry  lode.TelemetryWriter
	notifier   adapter.Adapter
	handoffDir string
	now        func() time.Time
	onUpdate   func(Snapshot)

	tracker    *state.Tracker
	registry   *state.Registry
	accountant *state.Accountant
	handoff    *handoff.Channel
	events     *eventLog
	eventCount int64

	phase     types.RunPhase
	held      bool
	holdTimer *time.Timer
	deadline  time.Time
	deferred  []types.RunEvent

	summary    *types.RunSummary
	summaryRaw map[string]any
	outcome    *types.RunOutcome
	startedAt  time.Time

	cmds         chan command
	finished     chan struct{}
	finishOnce   sync.Once
	cancelCh     chan struct{}
	cancelOnce   sync.Once
	cancelReason string

	snapMu sync.RWMutex
	snap   Snapshot

	done   chan struct{}
	result *RunResult
}

func newRun(c *Controller, meta types.RunMeta, cfg RunConfig) *Run {
	registry := state.NewRegistry()
	r := &Run{
		meta:       meta,
		cfg:        cfg,
		logger:     c.logger.ForRun(&meta),
		collector:  metrics.NewCollector(string(cfg.framing()), cfg.StorageBackend, meta.RunID, meta.Target),
		factory:    c.factory,
		telemetry:  c.telemetry,
		notifier:   c.notifier,
		handoffDir: c.handoffDir,
		now:        c.now,
		onUpdate:   c.deliver,
		tracker:    state.NewTracker(),
		registry:   registry,
		accountant: state.NewAccountant(registry),
		events:     newEventLog(),
		phase:      types.PhaseIdle,
		cmds:       make(chan command),
		finished:   make(chan struct{}),
		cancelCh:   make(chan struct{}),
		done:       make(chan struct{}),
	}
	r.snap = r.buildSnapshot()
	return r
}

// ID returns the run id.
func (r *Run) ID() string {
	return r.meta.RunID
}

// Meta returns the run identity.
func (r *Run) Meta() types.RunMeta {
	return r.meta
}

// Done is closed once the run is terminal and cleanup has finished.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run is terminal and returns its result.
func (r *Run) Wait() *RunResult {
	<-r.done
	return r.result
}

// Snapshot returns the latest published state.
func (r *Run) Snapshot() Snapshot {
	r.snapMu.RLock()
	defer r.snapMu.RUnlock()
	return r.snap
}

// Cancel requests cooperative cancellation. Safe to call repeatedly.
func (r *Run) Cancel() {
	r.cancel("cancelled by user")
}

func (r *Run) cancel(reason string) {
	r.cancelOnce.Do(func() {
		r.cancelReason = reason
		close(r.cancelCh)
	})
}

// send forwards a command to the run loop and waits for its reply.
func (r *Run) send(cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case r.cmds <- cmd:
		return <-cmd.reply
	case <-r.finished:
		return ErrRunFinished
	}
}

func (r *Run) stopCommands() {
	r.finishOnce.Do(func() { close(r.finished) })
}

// execute drives the run to a terminal state. It is the only writer of
// run state.
func (r *Run) execute(ctx context.Context) {
	defer close(r.done)

	r.startedAt = r.now()
	r.collector.IncRunStarted()
	r.setPhase(types.PhaseStarting)
	r.logger.Info("run starting", map[string]any{
		"framing":   string(r.cfg.framing()),
		"dry_run":   r.cfg.DryRun,
		"inventory": r.cfg.InventoryPath,
	})
	r.publish()

	ch, err := handoff.New(r.handoffDir)
	if err != nil {
		r.collector.IncHandoffFailure()
		r.terminate(types.OutcomeFailed, &RunError{Kind: KindHandoffIOFailure, Msg: "selection handoff unavailable", Err: err}, nil)
		r.finish(ctx, nil)
		return
	}
	r.handoff = ch

	// The worker context is detached from ctx: cancelling it is the
	// interrupt, and that is sent only from here.
	workerCtx, stopWorker := context.WithCancel(context.WithoutCancel(ctx))
	defer stopWorker()

	worker := r.factory(&WorkerConfig{
		Path:        r.cfg.WorkerPath,
		Args:        r.cfg.WorkerArgs,
		Env:         r.cfg.WorkerEnv,
		Input:       workerInputFor(r.meta, &r.cfg, ch.Path()),
		GracePeriod: r.cfg.gracePeriod(),
		OnStderrLine: func(line string) {
			r.logger.Debug("worker stderr", map[string]any{"line": line})
		},
	})
	if err := worker.Start(workerCtx); err != nil {
		r.collector.IncWorkerLaunchFailure()
		r.terminate(types.OutcomeWorkerCrash, &RunError{Kind: KindWorkerStartFailure, Msg: "worker failed to start", Err: err}, nil)
		r.finish(ctx, nil)
		return
	}
	r.collector.IncWorkerLaunchSuccess()
	r.setPhase(types.PhaseRunning)
	r.publish()

	frames := make(chan frame)
	stopReading := make(chan struct{})
	readerDone := make(chan struct{})
	go readFrames(ipc.NewMessageReader(r.cfg.framing(), worker.Stdout()), frames, stopReading, readerDone)

	streamErr := r.consume(ctx, frames)
	r.stopCommands()
	close(stopReading)
	if streamErr != nil {
		r.terminate(types.OutcomeFailed, &RunError{Kind: KindStreamFailure, Msg: "worker event stream failed", Err: streamErr}, nil)
	}
	if r.outcome != nil && r.outcome.Status != types.OutcomeCompleted {
		stopWorker()
	}

	grace := r.cfg.gracePeriod()
	r.awaitOrStop(readerDone, grace, stopWorker, "worker still writing after run end")
	waited := make(chan struct{})
	var res *WorkerResult
	var waitErr error
	go func() {
		res, waitErr = worker.Wait()
		close(waited)
	}()
	r.awaitOrStop(waited, grace, stopWorker, "worker has not exited")

	r.reconcileExit(res, waitErr)
	r.finish(ctx, res)
}

// awaitOrStop waits for done, interrupting the worker if grace elapses
// first. The worker itself enforces the kill deadline after an interrupt.
func (r *Run) awaitOrStop(done <-chan struct{}, grace time.Duration, stop context.CancelFunc, reason string) {
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-done:
		return
	case <-t.C:
	}
	r.logger.Warn(reason+", interrupting", map[string]any{"grace": grace.String()})
	stop()
	<-done
}

// readFrames pumps messages into out until EOF or a fatal frame error.
// Once stop is closed messages are discarded, but the stream is still
// drained so the worker never blocks on a full pipe.
func readFrames(mr ipc.MessageReader, out chan<- frame, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer close(out)
	for {
		msg, err := mr.ReadMessage()
		if errors.Is(err, io.EOF) {
			return
		}
		fatal := err != nil && ipc.IsFatalFrameError(err)
		select {
		case out <- frame{msg: msg, err: err}:
		case <-stop:
		}
		if fatal {
			return
		}
	}
}

// consume processes frames and commands until the run is terminal or the
// stream ends. Returns the fatal stream error, if any.
func (r *Run) consume(ctx context.Context, frames <-chan frame) error {
	ended := false
	for r.outcome == nil {
		if ended && len(r.deferred) == 0 {
			return nil
		}
		in := frames
		if ended || len(r.deferred) >= maxDeferred {
			in = nil
		}
		var holdExpired <-chan time.Time
		if r.held && r.holdTimer != nil {
			holdExpired = r.holdTimer.C
		}

		select {
		case f, ok := <-in:
			if !ok {
				// Deferred events still replay once the hold is released.
				ended = true
				break
			}
			if f.err != nil {
				if r.handleFrameError(f.err) {
					return f.err
				}
				break
			}
			r.handleMessage(f.msg)
		case cmd := <-r.cmds:
			err := r.handleCommand(cmd)
			r.publish()
			cmd.reply <- err
		case <-holdExpired:
			r.holdTimer = nil
			r.terminate(types.OutcomeCancelled, &RunError{
				Kind: KindSelectionTimeout,
				Msg:  fmt.Sprintf("selection not committed within %s", r.cfg.selectionTimeout()),
			}, nil)
		case <-r.cancelCh:
			r.terminate(types.OutcomeCancelled, &RunError{Kind: KindCanceled, Msg: r.cancelReason}, nil)
		case <-ctx.Done():
			r.terminate(types.OutcomeCancelled, &RunError{Kind: KindCanceled, Msg: "run context done", Err: ctx.Err()}, nil)
		}
		r.publish()
	}
	return nil
}

// handleFrameError logs a frame error and reports whether it is fatal.
func (r *Run) handleFrameError(err error) bool {
	r.collector.IncFrameError()
	if ipc.IsFatalFrameError(err) {
		r.logger.Error("fatal frame error", map[string]any{"error": err.Error()})
		return true
	}
	r.collector.IncMalformedEvent()
	r.logger.Warn("undecodable frame skipped", map[string]any{
		"error": err.Error(),
		"kind":  string(KindMalformedEvent),
	})
	r.record(types.LogLevelWarn, "undecodable frame skipped: "+err.Error(), nil)
	return false
}

func (r *Run) handleMessage(msg map[string]any) {
	ev, err := ipc.Decode(msg)
	if err != nil {
		r.collector.IncMalformedEvent()
		r.logger.Warn("malformed event skipped", map[string]any{
			"error": err.Error(),
			"kind":  string(KindMalformedEvent),
		})
		r.record(types.LogLevelWarn, "malformed event skipped: "+err.Error(), msg)
		return
	}
	r.eventCount++
	r.collector.IncEventDecoded(string(ev.Kind()))

	if (r.held || len(r.deferred) > 0) && ev.Kind().AffectsArtifacts() {
		r.deferred = append(r.deferred, ev)
		r.logger.Debug("event deferred until selection commit", map[string]any{"type": string(ev.Kind())})
		return
	}
	r.dispatch(ev)
}

func (r *Run) handleCommand(cmd command) error {
	switch cmd.op {
	case opCommit:
		if !r.held && r.registry.Len() == 0 {
			return ErrNothingToCommit
		}
		return r.commit("user")
	case opSetSelected:
		_, err := r.registry.SetSelected(cmd.id, cmd.selected)
		return err
	case opSelectAll:
		r.registry.SelectAll()
	case opSelectNone:
		r.registry.SelectNone()
	}
	return nil
}

// commit writes the current selection to the handoff and releases the hold.
// Manual and automatic commits share this path.
func (r *Run) commit(source string) error {
	ids := r.registry.SelectedIDs()
	total := r.registry.Len()
	wrote, err := r.handoff.Commit(handoff.Selection{IDs: ids, Revision: r.registry.Revision()})
	if err != nil {
		r.collector.IncHandoffFailure()
		r.terminate(types.OutcomeFailed, &RunError{Kind: KindHandoffIOFailure, Msg: "selection handoff failed", Err: err}, nil)
		return err
	}
	if wrote {
		r.collector.IncHandoffCommit()
		r.logger.Info("selection committed", map[string]any{
			"selected": len(ids),
			"total":    total,
			"source":   source,
		})
		r.record(types.LogLevelInfo, fmt.Sprintf("selection committed (%s): %d of %d", source, len(ids), total), nil)
	}

	if err := r.tracker.Complete(types.StageSelectionHold, fmt.Sprintf("Selected %d of %d", len(ids), total)); err != nil {
		r.rejectedTransition(err)
	}
	r.releaseHold()
	return nil
}

func (r *Run) openHold(reason string) {
	if r.held {
		return
	}
	r.held = true
	timeout := r.cfg.selectionTimeout()
	r.deadline = r.now().Add(timeout)
	r.holdTimer = time.NewTimer(timeout)
	r.setPhase(types.PhaseAwaitingSelection)
	r.logger.Info("awaiting selection", map[string]any{
		"reason":  reason,
		"timeout": timeout.String(),
	})
}

func (r *Run) closeHold() {
	if !r.held {
		return
	}
	r.held = false
	r.deadline = time.Time{}
	if r.holdTimer != nil {
		r.holdTimer.Stop()
		r.holdTimer = nil
	}
	if r.outcome == nil {
		r.setPhase(types.PhaseRunning)
	}
}

// releaseHold closes the hold and replays deferred events in arrival
// order. Replay stops early if an event re-opens the hold.
func (r *Run) releaseHold() {
	r.closeHold()
	for len(r.deferred) > 0 && !r.held && r.outcome == nil {
		ev := r.deferred[0]
		r.deferred = r.deferred[1:]
		r.dispatch(ev)
	}
}

// terminate moves the run into a failed or cancelled terminal state.
// When stage is nil the active stage, if any, is failed with the message.
// Only the first terminal transition takes effect.
func (r *Run) terminate(status types.OutcomeStatus, runErr *RunError, stage *types.Stage) {
	if r.outcome != nil {
		return
	}
	msg := runErr.Message()
	if stage == nil {
		if active, ok := r.tracker.CurrentActive(); ok {
			_ = r.tracker.Fail(active, msg)
			stage = &active
		}
	}

	r.closeHold()
	r.deferred = nil
	r.outcome = failedOutcome(status, runErr, stage)
	r.setPhase(phaseFor(status))

	switch status {
	case types.OutcomeCancelled:
		r.collector.IncRunCancelled()
	case types.OutcomeWorkerCrash:
		r.collector.IncRunCrashed()
	default:
		r.collector.IncRunFailed()
	}

	fields := map[string]any{
		"status":  string(status),
		"kind":    string(runErr.Kind),
		"message": msg,
	}
	if stage != nil {
		fields["stage"] = stage.String()
	}
	r.logger.Error("run terminated", fields)
	r.record(types.LogLevelError, msg, nil)
}

func (r *Run) complete(summary *types.RunSummary) {
	if r.outcome != nil {
		return
	}
	r.closeHold()
	r.summary = summary
	r.outcome = completedOutcome(summary)
	r.setPhase(types.PhaseCompleted)
	r.collector.IncRunCompleted()
	r.logger.Info("run completed", map[string]any{
		"removed":     summary.RemovedCount,
		"skipped":     summary.SkippedCount,
		"failures":    summary.FailureCount,
		"freed_bytes": summary.FreedBytes,
	})
}

// reconcileExit settles the outcome once the worker has exited.
func (r *Run) reconcileExit(res *WorkerResult, waitErr error) {
	if waitErr != nil {
		r.logger.Warn("worker wait failed", map[string]any{"error": waitErr.Error()})
	}
	code := -1
	if res != nil {
		code = res.ExitCode
	}

	if r.outcome != nil {
		if r.outcome.Status == types.OutcomeCompleted && code != 0 {
			r.logger.Warn("worker exited nonzero after summary", map[string]any{"exit_code": code})
		}
		return
	}

	msg := "worker exited without summary"
	if code != 0 {
		msg = fmt.Sprintf("worker exited with code %d", code)
	}
	r.terminate(types.OutcomeWorkerCrash, &RunError{Kind: KindWorkerExitFailure, Msg: msg}, nil)
}

// finish performs cleanup and post-run side effects, then records the result.
func (r *Run) finish(ctx context.Context, res *WorkerResult) {
	r.stopCommands()

	if r.handoff != nil {
		if err := r.handoff.Close(); err != nil {
			r.logger.Warn("handoff cleanup failed", map[string]any{"error": err.Error()})
		}
	}

	report := buildReport(r)
	if r.outcome.Status == types.OutcomeCompleted {
		r.persistTelemetry(ctx, report)
	}
	r.publishNotification(ctx)

	result := &RunResult{
		RunMeta:        r.meta,
		Outcome:        r.outcome,
		Summary:        r.summary,
		Stages:         r.tracker.Snapshot(),
		Artifacts:      r.registry.Artifacts(),
		Counts:         r.accountant.Counts(),
		Report:         report,
		WorkerExitCode: -1,
		Duration:       r.now().Sub(r.startedAt),
		EventCount:     r.eventCount,
		Metrics:        r.collector.Snapshot(),
	}
	if res != nil {
		result.WorkerExitCode = res.ExitCode
		result.Stderr = res.Stderr
	}
	r.result = result
	r.publish()
	_ = r.logger.Sync()
}

// persistTelemetry writes the report. Failures are logged, never escalated.
func (r *Run) persistTelemetry(ctx context.Context, report *types.TelemetryReport) {
	if r.telemetry == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), telemetryTimeout)
	defer cancel()

	if err := r.telemetry.WriteReport(pctx, report); err != nil {
		r.collector.IncTelemetryWriteFailure()
		r.logger.Error("telemetry persist failed", map[string]any{
			"error": err.Error(),
			"kind":  string(KindTelemetryPersistFailure),
		})
		return
	}
	r.collector.IncTelemetryWriteSuccess()
	r.logger.Debug("telemetry persisted", nil)
}

// publishNotification sends the run-completed event. Best effort.
func (r *Run) publishNotification(ctx context.Context) {
	if r.notifier == nil {
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := r.notifier.Publish(pctx, runCompletedEvent(r)); err != nil {
		r.collector.IncAdapterPublishFailure()
		r.logger.Warn("adapter publish failed", map[string]any{"error": err.Error()})
		return
	}
	r.collector.IncAdapterPublishSuccess()
}

func (r *Run) setPhase(p types.RunPhase) {
	r.phase = p
}

// record appends to the telemetry event log.
func (r *Run) record(level types.LogLevel, msg string, payload map[string]any) {
	r.events.add(types.LogEntry{
		Timestamp: r.now(),
		Level:     level,
		Message:   msg,
		Payload:   payload,
	})
}

func (r *Run) rejectedTransition(err error) {
	if errors.Is(err, state.ErrStageOutOfOrder) || errors.Is(err, state.ErrTrackerHalted) {
		r.collector.IncStageOutOfOrder()
	}
	r.logger.Warn("stage transition rejected", map[string]any{
		"error": err.Error(),
		"kind":  string(KindStageOutOfOrder),
	})
	r.record(types.LogLevelWarn, err.Error(), nil)
}
