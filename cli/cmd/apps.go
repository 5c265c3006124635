package cmd

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/uproot/catalog"
	"github.com/pithecene-io/uproot/cli/config"
	"github.com/pithecene-io/uproot/cli/render"
)

// AppsCommand returns the apps command.
// Apps lists the inventory, optionally filtered by a search query.
func AppsCommand() *cli.Command {
	return &cli.Command{
		Name:      "apps",
		Usage:     "List removable applications from the inventory",
		ArgsUsage: "[query]",
		Flags: append(ReadOnlyFlags(),
			ConfigFlag,
			&cli.StringFlag{
				Name:    "inventory",
				Aliases: []string{"i"},
				Usage:   "Inventory file",
			},
		),
		Action: appsAction,
	}
}

func appsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// TUI not supported for apps
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for apps command", 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	path := resolveString(c, "inventory", configVal(cfg, func(c *config.Config) string { return c.Inventory }))
	if path == "" {
		return cli.Exit("--inventory is required (or set inventory in uproot.yaml)", 1)
	}

	cat, err := catalog.Load(path)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	return r.Render(appList(cat.Search(c.Args().First())))
}

// appList renders inventory entries as a table.
type appList []catalog.App

// TableHeader implements render.Table.
func (l appList) TableHeader() []string {
	return []string{"ID", "NAME", "PUBLISHER", "VERSION", "PATHS", "ADMIN"}
}

// TableRows implements render.Table.
func (l appList) TableRows() [][]string {
	rows := make([][]string, 0, len(l))
	for _, app := range l {
		admin := ""
		if app.RequiresElevation {
			admin = "yes"
		}
		rows = append(rows, []string{
			app.ID,
			app.DisplayName(),
			app.Publisher,
			app.Version,
			strings.Join(app.Paths, ", "),
			admin,
		})
	}
	return rows
}
