// Package cmd provides CLI commands for the uproot binary.
package cmd

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/uproot/cli/render"
	"github.com/pithecene-io/uproot/lode"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for select read-only commands (inspect, stats).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, stats only)",
	}

	// ConfigFlag points at an uproot.yaml file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to uproot.yaml (default: ./uproot.yaml when present)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// TUIReadOnlyFlags returns flags for commands that support TUI mode.
// This is an alias for ReadOnlyFlags, kept for documentation clarity.
func TUIReadOnlyFlags() []cli.Flag {
	return ReadOnlyFlags()
}

// TelemetryFlags returns the flags that locate the telemetry store.
// Config file values apply when a flag is not set.
func TelemetryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "telemetry-dataset",
			Usage: "Lode dataset ID",
			Value: lode.DefaultDataset,
		},
		&cli.StringFlag{
			Name:  "telemetry-backend",
			Usage: "Telemetry backend: fs or s3",
		},
		&cli.StringFlag{
			Name:  "telemetry-path",
			Usage: "Telemetry location (fs: directory, s3: bucket/prefix)",
		},
		&cli.StringFlag{
			Name:  "telemetry-region",
			Usage: "AWS region for the s3 backend",
		},
		&cli.StringFlag{
			Name:  "telemetry-endpoint",
			Usage: "Custom endpoint for S3-compatible providers",
		},
		&cli.BoolFlag{
			Name:  "telemetry-s3-path-style",
			Usage: "Force path-style S3 addressing",
		},
	}
}

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	return render.IsTerminal(os.Stderr)
}
