package runtime

import (
	"context"
	"encoding/json"
	"io"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"
)

func requireShell(t *testing.T) string {
	t.Helper()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}
	return sh
}

func TestProcessWorker_StdinStdoutAndExitCode(t *testing.T) {
	sh := requireShell(t)

	var mu sync.Mutex
	var lines []string
	w := NewProcessWorker(&WorkerConfig{
		Path: sh,
		Args: []string{"-c", `read input; echo "$input"; echo "first warning" >&2; echo "second" >&2; exit 3`},
		Input: WorkerInput{
			ProtocolVersion: "1",
			RunID:           "run-1",
			Target:          "acme",
			HandoffPath:     "/tmp/selection.json",
			DryRun:          true,
		},
		OnStderrLine: func(line string) {
			mu.Lock()
			lines = append(lines, line)
			mu.Unlock()
		},
	})
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	out, err := io.ReadAll(w.Stdout())
	if err != nil {
		t.Fatalf("read stdout: %v", err)
	}
	var echoed WorkerInput
	if err := json.Unmarshal(out, &echoed); err != nil {
		t.Fatalf("stdout %q is not the input document: %v", out, err)
	}
	if echoed.Target != "acme" || echoed.HandoffPath != "/tmp/selection.json" || !echoed.DryRun {
		t.Errorf("echoed input = %+v", echoed)
	}

	res, err := w.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
	if !strings.Contains(string(res.Stderr), "first warning") {
		t.Errorf("stderr tail = %q", res.Stderr)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(lines) != 2 || lines[0] != "first warning" || lines[1] != "second" {
		t.Errorf("stderr lines = %q", lines)
	}
}

func TestProcessWorker_CancelInterrupts(t *testing.T) {
	sh := requireShell(t)

	w := NewProcessWorker(&WorkerConfig{
		Path:        sh,
		Args:        []string{"-c", `trap 'echo bye; exit 7' INT; read input; echo ready; while :; do sleep 0.01; done`},
		GracePeriod: 2 * time.Second,
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	buf := make([]byte, len("ready\n"))
	if _, err := io.ReadFull(w.Stdout(), buf); err != nil {
		t.Fatalf("read ready: %v", err)
	}
	cancel()

	rest, _ := io.ReadAll(w.Stdout())
	res, err := w.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if res.ExitCode == 0 {
		t.Errorf("cancelled worker should not exit 0 (stdout %q)", rest)
	}
}

func TestProcessWorker_MissingPath(t *testing.T) {
	w := NewProcessWorker(&WorkerConfig{})
	if err := w.Start(context.Background()); err == nil {
		t.Error("Start without path should fail")
	}
	if _, err := w.Wait(); err == nil {
		t.Error("Wait before a successful Start should fail")
	}
}

func TestTailWriter(t *testing.T) {
	var lines []string
	tw := newTailWriter(8, func(l string) { lines = append(lines, l) })

	_, _ = tw.Write([]byte("abc\r\nde"))
	_, _ = tw.Write([]byte("f\n\nghijkl"))
	tw.flush()

	if got := string(tw.Bytes()); got != "\n\nghijkl" {
		t.Errorf("tail = %q", got)
	}
	want := []string{"abc", "def", "ghijkl"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
