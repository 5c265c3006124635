// Package webhook notifies an HTTP endpoint when a removal run finishes.
//
// Each finished run (completed, failed or cancelled) is POSTed once as a
// JSON RunCompletedEvent carrying the target, outcome and freed bytes.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pithecene-io/uproot/adapter"
	"github.com/pithecene-io/uproot/iox"
)

// DefaultTimeout bounds a single POST.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is used when --adapter-retries is not given.
const DefaultRetries = 3

// Config is built from the --adapter-* flags or the adapter block of uproot.yaml.
type Config struct {
	// URL receives the run notifications.
	URL string
	// Headers are set on every request, typically an Authorization token.
	Headers map[string]string
	// Timeout bounds each attempt. Zero means DefaultTimeout.
	Timeout time.Duration
	// Retries counts attempts after the first.
	Retries int
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
}

// Adapter posts run notifications to one URL.
type Adapter struct {
	config Config
	client *http.Client
}

// New validates cfg and returns an adapter with its own HTTP client.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("webhook adapter requires a URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Adapter{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Publish posts the event. A 4xx response means the receiver rejected the
// payload, so it is not retried; 5xx and network errors are.
func (a *Adapter) Publish(ctx context.Context, event *adapter.RunCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}
	return adapter.Retry(ctx, "webhook", a.config.Retries, a.config.Backoff, func(ctx context.Context) error {
		err := a.doRequest(ctx, body)
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500 {
			return &adapter.PermanentError{Err: err}
		}
		return err
	})
}

// StatusError reports a receiver that answered outside 2xx.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// doRequest makes one attempt.
func (a *Adapter) doRequest(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range a.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DiscardClose(resp.Body)

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Close drops idle keep-alive connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)
