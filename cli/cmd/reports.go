package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/uproot/cli/reader"
	"github.com/pithecene-io/uproot/cli/render"
)

// listWarningThreshold is the number of results above which a warning is
// printed to stderr suggesting --limit.
const listWarningThreshold = 100

// ReportsCommand returns the reports command.
// Reports lists persisted telemetry reports, newest first.
func ReportsCommand() *cli.Command {
	flags := append(ReadOnlyFlags(),
		ConfigFlag,
		&cli.StringFlag{
			Name:  "status",
			Usage: "Filter by outcome (completed, failed, worker_crash, cancelled)",
		},
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of results (0 = no limit)",
			Value: 0,
		},
	)
	flags = append(flags, TelemetryFlags()...)

	return &cli.Command{
		Name:      "reports",
		Usage:     "List run reports (all targets when none is given)",
		ArgsUsage: "[target]",
		Flags:     flags,
		Action:    reportsAction,
	}
}

func reportsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for reports
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for reports command", 1)
	}

	limit := c.Int("limit")
	if limit < 0 {
		return cli.Exit("--limit must be >= 0", 1)
	}

	ctx := context.Background()
	store, closeStore, err := openReportStore(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	list, err := reader.List(ctx, store, c.Args().First(), reader.ListOptions{
		Status: c.String("status"),
		Limit:  limit,
	})
	if err != nil {
		return err
	}

	if limit == 0 && len(list) > listWarningThreshold && isStderrTTY() {
		fmt.Fprintf(os.Stderr, "Warning: %d results returned. Use --limit to reduce output.\n", len(list))
	}

	return r.Render(list)
}
