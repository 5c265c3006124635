package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/pithecene-io/uproot/types"
)

// DefaultGracePeriod is how long a cancelled worker may wind down before it
// is killed.
const DefaultGracePeriod = 30 * time.Second

// stderrTailSize bounds the stderr bytes retained for diagnostics.
const stderrTailSize = 64 * 1024

// WorkerInput is the JSON document written to worker stdin.
type WorkerInput struct {
	ProtocolVersion         string `json:"protocol_version"`
	RunID                   string `json:"run_id"`
	Target                  string `json:"target"`
	InventoryPath           string `json:"inventory_path,omitempty"`
	HandoffPath             string `json:"handoff_path"`
	AutoSelectAll           bool   `json:"auto_select_all"`
	WaitForSelection        bool   `json:"wait_for_selection"`
	SelectionTimeoutSeconds int    `json:"selection_timeout_seconds"`
	DryRun                  bool   `json:"dry_run"`
}

// WorkerConfig configures a worker process.
type WorkerConfig struct {
	// Path is the worker executable.
	Path string
	// Args are passed to the executable.
	Args []string
	// Env is appended to the inherited environment.
	Env []string
	// Input is written to stdin as a single JSON document.
	Input WorkerInput
	// GracePeriod bounds the wind-down after cancellation.
	GracePeriod time.Duration
	// OnStderrLine receives complete stderr lines. Optional.
	OnStderrLine func(line string)
}

// WorkerResult is the outcome of a finished worker process.
type WorkerResult struct {
	// ExitCode is the process exit code, -1 when killed by a signal.
	ExitCode int
	// Stderr is the tail of the captured stderr output.
	Stderr []byte
}

// Worker is the external process performing removal.
// Cancelling the context passed to Start requests a cooperative shutdown.
// Stdout must be read to EOF before Wait is called.
type Worker interface {
	Start(ctx context.Context) error
	Stdout() io.Reader
	Wait() (*WorkerResult, error)
	Kill() error
}

// WorkerFactory creates a worker for a run.
type WorkerFactory func(config *WorkerConfig) Worker

// NewProcessWorker is the default WorkerFactory.
func NewProcessWorker(config *WorkerConfig) Worker {
	return &ProcessWorker{config: config}
}

// ProcessWorker runs the worker as a child process.
type ProcessWorker struct {
	config *WorkerConfig
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailWriter
}

// Start launches the process and writes its input.
// Cancelling ctx sends an interrupt; the process is killed once the grace
// period elapses.
func (w *ProcessWorker) Start(ctx context.Context) error {
	if w.config.Path == "" {
		return errors.New("worker path is required")
	}

	w.cmd = exec.CommandContext(ctx, w.config.Path, w.config.Args...)
	w.cmd.Cancel = func() error {
		return w.cmd.Process.Signal(os.Interrupt)
	}
	w.cmd.WaitDelay = w.config.GracePeriod
	if w.cmd.WaitDelay <= 0 {
		w.cmd.WaitDelay = DefaultGracePeriod
	}
	if len(w.config.Env) > 0 {
		w.cmd.Env = append(os.Environ(), w.config.Env...)
	}

	stdin, err := w.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stdout, err := w.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	w.stdout = stdout

	w.stderr = newTailWriter(stderrTailSize, w.config.OnStderrLine)
	w.cmd.Stderr = w.stderr

	if err := w.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start worker: %w", err)
	}

	if err := json.NewEncoder(stdin).Encode(w.config.Input); err != nil {
		_ = w.Kill()
		return fmt.Errorf("failed to write input: %w", err)
	}
	if err := stdin.Close(); err != nil {
		_ = w.Kill()
		return fmt.Errorf("failed to close stdin: %w", err)
	}

	return nil
}

// Stdout returns the event stream.
func (w *ProcessWorker) Stdout() io.Reader {
	return w.stdout
}

// Wait waits for the process to exit.
func (w *ProcessWorker) Wait() (*WorkerResult, error) {
	if w.cmd == nil {
		return nil, errors.New("worker not started")
	}

	err := w.cmd.Wait()
	w.stderr.flush()

	result := &WorkerResult{Stderr: w.stderr.Bytes()}
	if w.cmd.ProcessState != nil {
		result.ExitCode = w.cmd.ProcessState.ExitCode()
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("worker wait failed: %w", err)
	}
	return result, nil
}

// Kill terminates the process immediately.
func (w *ProcessWorker) Kill() error {
	if w.cmd != nil && w.cmd.Process != nil {
		return w.cmd.Process.Kill()
	}
	return nil
}

// tailWriter keeps the last max bytes written and reports complete lines.
type tailWriter struct {
	mu     sync.Mutex
	max    int
	buf    []byte
	line   bytes.Buffer
	onLine func(string)
}

func newTailWriter(max int, onLine func(string)) *tailWriter {
	return &tailWriter{max: max, onLine: onLine}
}

func (t *tailWriter) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}

	if t.onLine == nil {
		return len(p), nil
	}
	for _, b := range p {
		if b == '\n' {
			t.emit()
			continue
		}
		if t.line.Len() < t.max {
			t.line.WriteByte(b)
		}
	}
	return len(p), nil
}

func (t *tailWriter) emit() {
	line := strings.TrimRight(t.line.String(), "\r")
	t.line.Reset()
	if line != "" {
		t.onLine(line)
	}
}

func (t *tailWriter) flush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.onLine != nil && t.line.Len() > 0 {
		t.emit()
	}
}

// Bytes returns a copy of the retained tail.
func (t *tailWriter) Bytes() []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]byte(nil), t.buf...)
}

func workerInputFor(meta types.RunMeta, cfg *RunConfig, handoffPath string) WorkerInput {
	return WorkerInput{
		ProtocolVersion:         types.ProtocolVersion,
		RunID:                   meta.RunID,
		Target:                  meta.Target,
		InventoryPath:           cfg.InventoryPath,
		HandoffPath:             handoffPath,
		AutoSelectAll:           cfg.AutoSelectAll,
		WaitForSelection:        cfg.WaitForSelection,
		SelectionTimeoutSeconds: int(cfg.selectionTimeout() / time.Second),
		DryRun:                  cfg.DryRun,
	}
}
