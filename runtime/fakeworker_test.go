package runtime

import (
	"context"
	"io"
	"os"
	"sync"
	"time"
)

// step is one action of a scripted worker.
type step struct {
	// line is written to stdout followed by a newline.
	line string
	// awaitHandoff blocks until the handoff file exists and records it.
	awaitHandoff bool
	// blockUntilCancel blocks until the worker context is cancelled.
	blockUntilCancel bool
}

func emit(line string) step { return step{line: line} }

func awaitHandoff() step { return step{awaitHandoff: true} }

func blockUntilCancel() step { return step{blockUntilCancel: true} }

// fakeWorker replays a script on an in-memory pipe. Cancelling the start
// context stops the script and exits with cancelExitCode.
type fakeWorker struct {
	script   []step
	exitCode int
	startErr error
	stderr   string

	config *WorkerConfig
	pr     *io.PipeReader
	pw     *io.PipeWriter
	done   chan struct{}

	mu        sync.Mutex
	handoffs  [][]byte
	cancelled bool
	code      int
}

const cancelExitCode = 130

func (w *fakeWorker) Start(ctx context.Context) error {
	if w.startErr != nil {
		return w.startErr
	}
	w.pr, w.pw = io.Pipe()
	w.done = make(chan struct{})
	go w.play(ctx)
	return nil
}

func (w *fakeWorker) play(ctx context.Context) {
	defer close(w.done)
	code := w.exitCode
	defer func() {
		w.mu.Lock()
		w.code = code
		w.mu.Unlock()
		_ = w.pw.Close()
	}()

	for _, s := range w.script {
		if ctx.Err() != nil {
			w.markCancelled()
			code = cancelExitCode
			return
		}
		switch {
		case s.awaitHandoff:
			data, ok := w.pollHandoff(ctx)
			if !ok {
				w.markCancelled()
				code = cancelExitCode
				return
			}
			w.mu.Lock()
			w.handoffs = append(w.handoffs, data)
			w.mu.Unlock()
		case s.blockUntilCancel:
			<-ctx.Done()
			w.markCancelled()
			code = cancelExitCode
			return
		default:
			if _, err := io.WriteString(w.pw, s.line+"\n"); err != nil {
				return
			}
		}
	}
}

func (w *fakeWorker) pollHandoff(ctx context.Context) ([]byte, bool) {
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()
	for {
		if data, err := os.ReadFile(w.config.Input.HandoffPath); err == nil {
			return data, true
		}
		select {
		case <-ctx.Done():
			return nil, false
		case <-ticker.C:
		}
	}
}

func (w *fakeWorker) markCancelled() {
	w.mu.Lock()
	w.cancelled = true
	w.mu.Unlock()
}

func (w *fakeWorker) Stdout() io.Reader {
	return w.pr
}

func (w *fakeWorker) Wait() (*WorkerResult, error) {
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	return &WorkerResult{ExitCode: w.code, Stderr: []byte(w.stderr)}, nil
}

func (w *fakeWorker) Kill() error {
	return w.pw.CloseWithError(io.ErrClosedPipe)
}

func (w *fakeWorker) Handoffs() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.handoffs...)
}

func (w *fakeWorker) Cancelled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cancelled
}

// factoryFor returns a WorkerFactory that hands out the given workers in
// order and records their configs.
func factoryFor(workers ...*fakeWorker) WorkerFactory {
	var mu sync.Mutex
	next := 0
	return func(config *WorkerConfig) Worker {
		mu.Lock()
		defer mu.Unlock()
		w := workers[next]
		next++
		w.config = config
		return w
	}
}
