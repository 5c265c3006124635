package cmd

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/uproot/adapter"
	"github.com/pithecene-io/uproot/adapter/redis"
	"github.com/pithecene-io/uproot/adapter/webhook"
	"github.com/pithecene-io/uproot/cli/config"
)

// adapterChoice is the resolved notification adapter configuration.
type adapterChoice struct {
	adapterType string
	url         string
	channel     string
	headers     map[string]string
	timeout     time.Duration
	retries     int
}

// AdapterFlags returns the run-completed notification flags.
func AdapterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "adapter",
			Usage: "Notification adapter: webhook or redis",
		},
		&cli.StringFlag{
			Name:  "adapter-url",
			Usage: "Webhook endpoint or redis:// URL",
		},
		&cli.StringFlag{
			Name:  "adapter-channel",
			Usage: "Redis pub/sub channel (default: " + redis.DefaultChannel + ")",
		},
		&cli.StringSliceFlag{
			Name:  "adapter-header",
			Usage: "Webhook header as Key=Value (repeatable)",
		},
		&cli.DurationFlag{
			Name:  "adapter-timeout",
			Usage: "Per-attempt publish timeout",
			Value: webhook.DefaultTimeout,
		},
		&cli.IntFlag{
			Name:  "adapter-retries",
			Usage: "Publish retry attempts",
			Value: webhook.DefaultRetries,
		},
	}
}

// parseAdapterConfigWithPrecedence resolves adapter settings for adapterType
// from flags and config. Config headers are merged under flag headers.
func parseAdapterConfigWithPrecedence(c *cli.Context, cfg *config.Config, adapterType string) (*adapterChoice, error) {
	choice := &adapterChoice{
		adapterType: adapterType,
		url:         resolveString(c, "adapter-url", configVal(cfg, func(c *config.Config) string { return c.Adapter.URL })),
		channel:     resolveString(c, "adapter-channel", configVal(cfg, func(c *config.Config) string { return c.Adapter.Channel })),
		timeout:     resolveDuration(c, "adapter-timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Adapter.Timeout.Duration })),
		retries:     c.Int("adapter-retries"),
		headers:     map[string]string{},
	}
	if !c.IsSet("adapter-retries") && cfg != nil && cfg.Adapter.Retries != nil {
		choice.retries = *cfg.Adapter.Retries
	}
	if cfg != nil {
		maps.Copy(choice.headers, cfg.Adapter.Headers)
	}
	for _, h := range c.StringSlice("adapter-header") {
		k, v, ok := strings.Cut(h, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid --adapter-header %q (expected Key=Value)", h)
		}
		choice.headers[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	switch adapterType {
	case "webhook", "redis":
	default:
		return nil, fmt.Errorf("unknown --adapter %q (must be webhook or redis)", adapterType)
	}
	if choice.url == "" {
		return nil, fmt.Errorf("--adapter-url is required for the %s adapter", adapterType)
	}
	if choice.retries < 0 {
		return nil, errors.New("--adapter-retries must be >= 0")
	}
	if adapterType == "redis" && len(choice.headers) > 0 {
		return nil, errors.New("--adapter-header is only valid for the webhook adapter")
	}
	return choice, nil
}

// resolveAdapter returns nil when no adapter is configured.
func resolveAdapter(c *cli.Context, cfg *config.Config) (*adapterChoice, error) {
	adapterType := resolveString(c, "adapter", configVal(cfg, func(c *config.Config) string { return c.Adapter.Type }))
	if adapterType == "" {
		if c.IsSet("adapter-url") {
			return nil, errors.New("--adapter-url requires --adapter")
		}
		return nil, nil
	}
	return parseAdapterConfigWithPrecedence(c, cfg, adapterType)
}

func buildAdapter(choice *adapterChoice) (adapter.Adapter, error) {
	switch choice.adapterType {
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     choice.url,
			Headers: choice.headers,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	case "redis":
		return redis.New(redis.Config{
			URL:     choice.url,
			Channel: choice.channel,
			Timeout: choice.timeout,
			Retries: choice.retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", choice.adapterType)
	}
}
