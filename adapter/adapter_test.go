package adapter

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(t.Context(), "test", 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_Exhausts(t *testing.T) {
	calls := 0
	cause := errors.New("down")
	err := Retry(t.Context(), "test", 2, time.Millisecond, func(context.Context) error {
		calls++
		return cause
	})
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause in chain, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	calls := 0
	err := Retry(t.Context(), "test", 5, time.Millisecond, func(context.Context) error {
		calls++
		return &PermanentError{Err: errors.New("bad request")}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	called := false
	err := Retry(ctx, "test", 3, time.Millisecond, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Error("fn should not run with a canceled context")
	}
}
