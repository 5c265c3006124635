package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/pithecene-io/uproot/adapter"
)

func testEvent() *adapter.RunCompletedEvent {
	return &adapter.RunCompletedEvent{
		ProtocolVersion: "1",
		EventType:       adapter.EventTypeRunCompleted,
		RunID:           "run-001",
		Target:          "contoso",
		Outcome:         "completed",
		Message:         "removed 1, 1 failed",
		Removed:         1,
		Failed:          1,
		FreedBytes:      10485760,
		Timestamp:       "2026-02-07T12:00:00Z",
		DurationMs:      1500,
	}
}

// asyncReceive reads one message from the subscriber in the background.
// Must be called before Publish: miniredis delivers pub/sub synchronously.
func asyncReceive(sub *miniredis.Subscriber) <-chan miniredis.PubsubMessage {
	ch := make(chan miniredis.PubsubMessage, 1)
	go func() {
		ch <- <-sub.Messages()
	}()
	return ch
}

func waitMessage(t *testing.T, ch <-chan miniredis.PubsubMessage) miniredis.PubsubMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pub/sub message")
		return miniredis.PubsubMessage{}
	}
}

func TestPublish_DefaultChannel(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	sub := mr.NewSubscriber()
	sub.Subscribe(DefaultChannel)
	ch := asyncReceive(sub)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}

	msg := waitMessage(t, ch)
	if msg.Channel != DefaultChannel {
		t.Errorf("channel = %q, want %q", msg.Channel, DefaultChannel)
	}

	var received adapter.RunCompletedEvent
	if err := json.Unmarshal([]byte(msg.Message), &received); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if received.RunID != "run-001" || received.Target != "contoso" {
		t.Errorf("identity = %q/%q", received.RunID, received.Target)
	}
	if received.Outcome != "completed" || received.FreedBytes != 10485760 {
		t.Errorf("payload = %+v", received)
	}
}

func TestPublish_CustomChannel(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr(), Channel: "ops:removals", Retries: 2})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	sub := mr.NewSubscriber()
	sub.Subscribe("ops:removals")
	ch := asyncReceive(sub)

	if err := a.Publish(t.Context(), testEvent()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if msg := waitMessage(t, ch); msg.Channel != "ops:removals" {
		t.Errorf("channel = %q", msg.Channel)
	}
}

func TestPublish_ExhaustsRetries(t *testing.T) {
	a, err := New(Config{
		URL:     "redis://127.0.0.1:1",
		Retries: 2,
		Timeout: 100 * time.Millisecond,
		Backoff: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	if err := a.Publish(t.Context(), testEvent()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
}

func TestPublish_ContextCanceled(t *testing.T) {
	a, err := New(Config{URL: "redis://127.0.0.1:1", Retries: 5, Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()

	if err := a.Publish(ctx, testEvent()); err == nil {
		t.Fatal("expected error on canceled context")
	}
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"empty URL", Config{}},
		{"invalid URL", Config{URL: "not-a-redis-url"}},
		{"negative retries", Config{URL: "redis://localhost:6379", Retries: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestNew_DefaultsApplied(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer func() { _ = a.Close() }()

	if a.config.Channel != DefaultChannel {
		t.Errorf("channel = %q, want %q", a.config.Channel, DefaultChannel)
	}
	if a.config.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", a.config.Timeout, DefaultTimeout)
	}
}

func TestClose_PublishAfterCloseFails(t *testing.T) {
	mr := miniredis.RunT(t)

	a, err := New(Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.Publish(t.Context(), testEvent()); err == nil {
		t.Fatal("expected error after close")
	}
}
