package config

import (
	"fmt"
	"time"

	"github.com/pithecene-io/uproot/ipc"
)

// Config represents an uproot.yaml configuration file.
// All values are optional and act as defaults for uproot run flags.
// CLI flags always override config values.
type Config struct {
	Worker    WorkerConfig    `yaml:"worker"`
	Inventory string          `yaml:"inventory"`
	Selection SelectionConfig `yaml:"selection"`
	DryRun    bool            `yaml:"dry_run"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Adapter   AdapterConfig   `yaml:"adapter"`
}

// WorkerConfig holds worker process defaults.
type WorkerConfig struct {
	Path    string   `yaml:"path"`
	Args    []string `yaml:"args"`
	Env     []string `yaml:"env"`
	Framing string   `yaml:"framing"`
	Grace   Duration `yaml:"grace"`
}

// SelectionConfig holds selection checkpoint defaults.
type SelectionConfig struct {
	AutoAdvance bool `yaml:"auto_advance"`
	AutoAll     bool `yaml:"auto_all"`
	// Wait tells the worker to block on the handoff. Nil means true.
	Wait    *bool    `yaml:"wait,omitempty"`
	Timeout Duration `yaml:"timeout"`
}

// WaitForSelection resolves the wait default.
func (s SelectionConfig) WaitForSelection() bool {
	return s.Wait == nil || *s.Wait
}

// TelemetryConfig holds telemetry storage defaults.
type TelemetryConfig struct {
	Dataset     string `yaml:"dataset"`
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
	// Report is a local file the telemetry document is also written to.
	Report string `yaml:"report"`
}

// AdapterConfig holds adapter defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if parsed < 0 {
		return fmt.Errorf("invalid duration %q: must not be negative", s)
	}
	d.Duration = parsed
	return nil
}

// Validate checks enumerated values.
func (c *Config) Validate() error {
	if _, err := ipc.ParseFraming(c.Worker.Framing); err != nil {
		return fmt.Errorf("worker.framing: %w", err)
	}
	switch c.Telemetry.Backend {
	case "", "fs", "s3":
	default:
		return fmt.Errorf("telemetry.backend: unknown backend %q (must be fs or s3)", c.Telemetry.Backend)
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		return fmt.Errorf("adapter.type: unknown adapter %q (must be webhook or redis)", c.Adapter.Type)
	}
	if c.Adapter.Retries != nil && *c.Adapter.Retries < 0 {
		return fmt.Errorf("adapter.retries: must be >= 0, got %d", *c.Adapter.Retries)
	}
	return nil
}
