package runtime

import (
	"errors"
	"time"

	"github.com/pithecene-io/uproot/ipc"
)

// DefaultSelectionTimeout bounds an unattended selection hold.
const DefaultSelectionTimeout = 10 * time.Minute

// RunConfig configures a single run.
type RunConfig struct {
	// RunID identifies the run. A UUID is generated when empty.
	RunID string
	// Target is the application identifier being removed.
	Target string

	// WorkerPath is the worker executable.
	WorkerPath string
	// WorkerArgs are passed to the worker executable.
	WorkerArgs []string
	// WorkerEnv is appended to the inherited environment.
	WorkerEnv []string
	// Framing selects how the worker delimits events on stdout.
	Framing ipc.Framing
	// GracePeriod bounds the worker wind-down after cancellation.
	GracePeriod time.Duration

	// InventoryPath is passed to the worker as the inventory source.
	InventoryPath string
	// AutoSelectAll asks the worker to remove every discovered artifact.
	// The orchestrator selects all and commits without waiting.
	AutoSelectAll bool
	// AutoAdvance commits the default selection as soon as artifacts arrive.
	AutoAdvance bool
	// WaitForSelection tells the worker to block on the handoff. When false
	// the orchestrator auto-advances.
	WaitForSelection bool
	// SelectionTimeout bounds the interactive hold.
	SelectionTimeout time.Duration
	// DryRun is passed to the worker and recorded in the report.
	DryRun bool

	// StorageBackend labels the telemetry backend in metrics.
	StorageBackend string
	// ReportPath is the local report location included in notifications.
	ReportPath string
}

// Validate checks required fields.
func (c *RunConfig) Validate() error {
	if c.Target == "" {
		return errors.New("target is required")
	}
	if c.SelectionTimeout < 0 {
		return errors.New("selection timeout must not be negative")
	}
	if c.GracePeriod < 0 {
		return errors.New("grace period must not be negative")
	}
	return nil
}

func (c *RunConfig) selectionTimeout() time.Duration {
	if c.SelectionTimeout > 0 {
		return c.SelectionTimeout
	}
	return DefaultSelectionTimeout
}

func (c *RunConfig) gracePeriod() time.Duration {
	if c.GracePeriod > 0 {
		return c.GracePeriod
	}
	return DefaultGracePeriod
}

func (c *RunConfig) framing() ipc.Framing {
	if c.Framing == "" {
		return ipc.FramingJSONLines
	}
	return c.Framing
}

func (c *RunConfig) autoAdvance() bool {
	return c.AutoAdvance || c.AutoSelectAll || !c.WaitForSelection
}
