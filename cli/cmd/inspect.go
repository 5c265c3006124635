package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/uproot/cli/reader"
	"github.com/pithecene-io/uproot/cli/render"
	"github.com/pithecene-io/uproot/cli/tui"
	"github.com/pithecene-io/uproot/lode"
	"github.com/pithecene-io/uproot/runtime"
	"github.com/pithecene-io/uproot/types"
)

// InspectCommand returns the inspect command.
// Inspect shows one telemetry report, from a local file or the telemetry store.
func InspectCommand() *cli.Command {
	flags := append(TUIReadOnlyFlags(),
		ConfigFlag,
		&cli.StringFlag{
			Name:  "file",
			Usage: "Read the report from a local file written by `uproot run --report`",
		},
		&cli.StringFlag{
			Name:    "target",
			Aliases: []string{"t"},
			Usage:   "Limit the store lookup to one target",
		},
	)
	flags = append(flags, TelemetryFlags()...)

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect a run report (latest when no run ID is given)",
		ArgsUsage: "[run-id]",
		Flags:     flags,
		Action:    inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	report, err := loadInspectReport(c)
	if err != nil {
		if errors.Is(err, lode.ErrReportNotFound) {
			return cli.Exit(err.Error(), 1)
		}
		return err
	}

	view := reader.NewReportView(report)
	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectReport, view)
	}
	return r.Render(view)
}

func loadInspectReport(c *cli.Context) (*types.TelemetryReport, error) {
	if path := c.String("file"); path != "" {
		if c.NArg() > 0 {
			return nil, cli.Exit("run-id cannot be combined with --file", 1)
		}
		return runtime.ReadReport(path)
	}

	ctx := context.Background()
	store, closeStore, err := openReportStore(ctx, c)
	if err != nil {
		return nil, err
	}
	defer closeStore()

	target := c.String("target")
	if c.NArg() == 0 {
		return reader.Latest(ctx, store, target)
	}
	report, err := reader.Find(ctx, store, target, c.Args().First())
	if errors.Is(err, reader.ErrAmbiguousRunID) {
		return nil, cli.Exit(fmt.Sprintf("%v (use a longer prefix)", err), 1)
	}
	return report, err
}
