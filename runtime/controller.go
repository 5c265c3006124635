package runtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/uproot/adapter"
	"github.com/pithecene-io/uproot/log"
	"github.com/pithecene-io/uproot/lode"
	"github.com/pithecene-io/uproot/types"
)

// Controller owns at most one active run and is the presentation boundary:
// UIs read snapshots and issue commands through it.
//
// Commands are forwarded to the run goroutine, which stays the sole writer
// of run state. Controller methods are safe for concurrent use.
type Controller struct {
	startMu sync.Mutex

	mu     sync.Mutex
	active *Run

	factory    WorkerFactory
	telemetry  lode.TelemetryWriter
	notifier   adapter.Adapter
	logger     *log.Logger
	handoffDir string
	now        func() time.Time

	updates chan Snapshot
}

// Option configures a Controller.
type Option func(*Controller)

// WithWorkerFactory sets how workers are created. Defaults to NewProcessWorker.
func WithWorkerFactory(f WorkerFactory) Option {
	return func(c *Controller) { c.factory = f }
}

// WithTelemetry sets where completed-run reports are persisted.
func WithTelemetry(w lode.TelemetryWriter) Option {
	return func(c *Controller) { c.telemetry = w }
}

// WithAdapter sets the run-completed notification adapter.
func WithAdapter(a adapter.Adapter) Option {
	return func(c *Controller) { c.notifier = a }
}

// WithLogger sets the base logger. Run fields are added per run.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithHandoffDir sets the parent directory of handoff files.
func WithHandoffDir(dir string) Option {
	return func(c *Controller) { c.handoffDir = dir }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// NewController creates a controller with no active run.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		factory: NewProcessWorker,
		logger:  log.Nop(),
		now:     time.Now,
		updates: make(chan Snapshot, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins a new run. An active run is cancelled and allowed to wind
// down before the new one starts. ctx bounds the run; cancelling it
// cancels the run.
func (c *Controller) Start(ctx context.Context, cfg *RunConfig) (*Run, error) {
	if cfg == nil {
		return nil, errors.New("run config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	if prior := c.current(); prior != nil {
		prior.cancel("replaced by a new run")
		<-prior.Done()
	}

	meta := types.RunMeta{RunID: cfg.RunID, Target: cfg.Target}
	if meta.RunID == "" {
		meta.RunID = uuid.NewString()
	}
	run := newRun(c, meta, *cfg)

	c.mu.Lock()
	c.active = run
	c.mu.Unlock()

	go run.execute(ctx)
	return run, nil
}

func (c *Controller) current() *Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) send(cmd command) error {
	run := c.current()
	if run == nil {
		return ErrNoActiveRun
	}
	return run.send(cmd)
}

// Cancel requests cooperative cancellation of the active run.
func (c *Controller) Cancel() error {
	run := c.current()
	if run == nil {
		return ErrNoActiveRun
	}
	run.Cancel()
	return nil
}

// CommitSelection writes the current selection to the handoff and releases
// the hold. Committing an unchanged selection is a no-op.
func (c *Controller) CommitSelection() error {
	return c.send(command{op: opCommit})
}

// SetArtifactSelected changes the selection of one artifact.
func (c *Controller) SetArtifactSelected(id string, selected bool) error {
	return c.send(command{op: opSetSelected, id: id, selected: selected})
}

// SelectAll selects every artifact.
func (c *Controller) SelectAll() error {
	return c.send(command{op: opSelectAll})
}

// SelectNone deselects every artifact.
func (c *Controller) SelectNone() error {
	return c.send(command{op: opSelectNone})
}

// Snapshot returns the active run's latest state, or an idle snapshot.
func (c *Controller) Snapshot() Snapshot {
	run := c.current()
	if run == nil {
		return idleSnapshot()
	}
	return run.Snapshot()
}

// Updates returns a feed of snapshots across runs. Only the latest
// undelivered snapshot is kept.
func (c *Controller) Updates() <-chan Snapshot {
	return c.updates
}

func (c *Controller) deliver(s Snapshot) {
	select {
	case c.updates <- s:
		return
	default:
	}
	select {
	case <-c.updates:
	default:
	}
	select {
	case c.updates <- s:
	default:
	}
}
