package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/uproot/cli/config"
	"github.com/pithecene-io/uproot/lode"
)

// telemetryChoice is the resolved telemetry store location.
type telemetryChoice struct {
	dataset     string
	backend     string
	path        string
	region      string
	endpoint    string
	s3PathStyle bool
}

// enabled reports whether reports are persisted at all.
func (t telemetryChoice) enabled() bool {
	return t.path != ""
}

func resolveTelemetry(c *cli.Context, cfg *config.Config) (telemetryChoice, error) {
	choice := telemetryChoice{
		dataset:     resolveString(c, "telemetry-dataset", configVal(cfg, func(c *config.Config) string { return c.Telemetry.Dataset })),
		backend:     resolveString(c, "telemetry-backend", configVal(cfg, func(c *config.Config) string { return c.Telemetry.Backend })),
		path:        resolveString(c, "telemetry-path", configVal(cfg, func(c *config.Config) string { return c.Telemetry.Path })),
		region:      resolveString(c, "telemetry-region", configVal(cfg, func(c *config.Config) string { return c.Telemetry.Region })),
		endpoint:    resolveString(c, "telemetry-endpoint", configVal(cfg, func(c *config.Config) string { return c.Telemetry.Endpoint })),
		s3PathStyle: resolveBool(c, "telemetry-s3-path-style", configVal(cfg, func(c *config.Config) bool { return c.Telemetry.S3PathStyle })),
	}
	if err := validateTelemetryChoice(choice); err != nil {
		return telemetryChoice{}, err
	}
	return choice, nil
}

func validateTelemetryChoice(choice telemetryChoice) error {
	switch choice.backend {
	case "", "fs":
	case "s3":
		if choice.path == "" {
			return errors.New("--telemetry-path is required for the s3 backend (format: bucket/prefix)")
		}
	default:
		return fmt.Errorf("unknown --telemetry-backend %q (must be fs or s3)", choice.backend)
	}
	if choice.backend != "s3" && (choice.region != "" || choice.endpoint != "" || choice.s3PathStyle) {
		return errors.New("--telemetry-region, --telemetry-endpoint and --telemetry-s3-path-style require --telemetry-backend s3")
	}
	return nil
}

// backendLabel names the backend in metrics.
func (t telemetryChoice) backendLabel() string {
	switch {
	case !t.enabled():
		return "none"
	case t.backend == "":
		return "fs"
	default:
		return t.backend
	}
}

// buildTelemetryClient opens the telemetry store. The fs root is created
// when missing.
func buildTelemetryClient(ctx context.Context, choice telemetryChoice) (*lode.Client, error) {
	switch choice.backend {
	case "fs", "":
		root, err := filepath.Abs(choice.path)
		if err != nil {
			return nil, fmt.Errorf("resolve telemetry path: %w", err)
		}
		if err := os.MkdirAll(root, 0o755); err != nil {
			return nil, fmt.Errorf("create telemetry directory: %w", err)
		}
		return lode.NewFSClient(choice.dataset, root)
	case "s3":
		bucket, prefix := lode.ParseS3Path(choice.path)
		return lode.NewS3Client(ctx, choice.dataset, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       choice.region,
			Endpoint:     choice.endpoint,
			UsePathStyle: choice.s3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown --telemetry-backend %q (must be fs or s3)", choice.backend)
	}
}

// openReportStore opens the telemetry store for read-only commands.
func openReportStore(ctx context.Context, c *cli.Context) (*lode.Client, func(), error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), 1)
	}
	choice, err := resolveTelemetry(c, cfg)
	if err != nil {
		return nil, nil, cli.Exit(err.Error(), 1)
	}
	if !choice.enabled() {
		return nil, nil, cli.Exit("no telemetry store configured (set --telemetry-path or telemetry.path in uproot.yaml)", 1)
	}
	client, err := buildTelemetryClient(ctx, choice)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open telemetry store: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}
