package cmd

import (
	"context"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/uproot/cli/reader"
	"github.com/pithecene-io/uproot/cli/render"
	"github.com/pithecene-io/uproot/cli/tui"
)

// StatsCommand returns the stats command.
// Stats aggregates outcomes and reclaimed space across persisted reports.
func StatsCommand() *cli.Command {
	flags := append(TUIReadOnlyFlags(), ConfigFlag)
	flags = append(flags, TelemetryFlags()...)

	return &cli.Command{
		Name:      "stats",
		Usage:     "Show removal statistics (all targets when none is given)",
		ArgsUsage: "[target]",
		Flags:     flags,
		Action:    statsAction,
	}
}

func statsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, closeStore, err := openReportStore(ctx, c)
	if err != nil {
		return err
	}
	defer closeStore()

	stats, err := reader.Stats(ctx, store, c.Args().First())
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewStatsReports, stats)
	}
	return r.Render(stats)
}
