// Package adapter defines the boundary for run-completed notifications.
//
// Adapters publish a notification to a downstream system after every
// terminal run state. Publishing is best effort: failures are logged by the
// caller and never change the run outcome.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// EventTypeRunCompleted is the event_type of every notification.
const EventTypeRunCompleted = "run_completed"

// RunCompletedEvent is the payload published when a run reaches a
// terminal state.
type RunCompletedEvent struct {
	ProtocolVersion string `json:"protocol_version"`
	EventType       string `json:"event_type"`
	RunID           string `json:"run_id"`
	Target          string `json:"target"`
	Outcome         string `json:"outcome"`
	Kind            string `json:"kind,omitempty"`
	Message         string `json:"message"`
	DryRun          bool   `json:"dry_run"`
	Removed         int    `json:"removed"`
	Failed          int    `json:"failed"`
	FreedBytes      int64  `json:"freed_bytes"`
	ReportPath      string `json:"report_path,omitempty"`
	Timestamp       string `json:"timestamp"` // RFC 3339
	DurationMs      int64  `json:"duration_ms"`
}

// Adapter publishes run completion events to a downstream system.
type Adapter interface {
	// Publish sends a run completion event. Must respect ctx deadlines.
	Publish(ctx context.Context, event *RunCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// DefaultBackoff is the base delay between retry attempts.
const DefaultBackoff = 500 * time.Millisecond

// PermanentError marks a failure that must not be retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Retry calls fn up to 1+retries times with exponential backoff
// (base, 2*base, 4*base, ...) between attempts. A *PermanentError stops
// the loop immediately. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, base time.Duration, fn func(context.Context) error) error {
	if base <= 0 {
		base = DefaultBackoff
	}
	attempts := 1 + retries

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * base
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-timer.C:
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		var perm *PermanentError
		if errors.As(lastErr, &perm) {
			return fmt.Errorf("%s: non-retriable error: %w", name, perm.Err)
		}
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
