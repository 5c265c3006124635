// Package redis announces finished removal runs on a Redis pub/sub channel,
// so fleet tooling can watch uproot runs without polling the report store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/pithecene-io/uproot/adapter"
)

// DefaultChannel is used when --adapter-channel is not given.
const DefaultChannel = "uproot:run_completed"

// DefaultTimeout bounds a single PUBLISH.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is used when --adapter-retries is not given.
const DefaultRetries = 3

// Config is built from the --adapter-* flags or the adapter block of uproot.yaml.
type Config struct {
	// URL is a redis:// or rediss:// connection URL.
	URL string
	// Channel defaults to DefaultChannel.
	Channel string
	// Timeout bounds each attempt. Zero means DefaultTimeout.
	Timeout time.Duration
	// Retries counts attempts after the first.
	Retries int
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration
}

// Adapter publishes run notifications as JSON messages.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New parses the URL eagerly so a bad --adapter-url fails before the run starts.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", cfg.Retries)
	}

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Publish sends the event. Having no subscribers is not an error.
func (a *Adapter) Publish(ctx context.Context, event *adapter.RunCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	return adapter.Retry(ctx, "redis", a.config.Retries, a.config.Backoff, func(ctx context.Context) error {
		publishCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
		return a.client.Publish(publishCtx, a.config.Channel, body).Err()
	})
}

// Close closes the connection pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
