// Package main provides the uproot CLI entrypoint.
//
// Usage:
//
//	uproot <command> [options]
//
// Exit codes for `run`:
//   - 0: completed (summary received)
//   - 1: failed (stage, stream or handoff failure)
//   - 2: worker crash, or the run could not be set up
//   - 3: cancelled or selection timeout
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/uproot/cli/cmd"
	"github.com/pithecene-io/uproot/types"
)

// Commit is set via ldflags at build time.
var commit = "unknown"

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		// ExitErrHandler already exited for cli.ExitCoder errors.
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "uproot",
		Usage:          "Remove applications with a human checkpoint before anything is deleted",
		Version:        fmt.Sprintf("%s (commit: %s)", types.Version, commit),
		ExitErrHandler: exitErrHandler,
		Commands: []*cli.Command{
			cmd.RunCommand(),
			cmd.AppsCommand(),
			cmd.InspectCommand(),
			cmd.ReportsCommand(),
			cmd.StatsCommand(),
			cmd.VersionCommand("", commit),
		},
	}
}

// exitErrHandler prints err and exits with its code.
func exitErrHandler(_ *cli.Context, err error) {
	if err == nil {
		return
	}
	msg, code := exitStatus(err)
	if msg != "" {
		fmt.Fprintln(os.Stderr, msg)
	}
	os.Exit(code)
}

// exitStatus maps err to the message to print and the process exit code.
// cli.Exit("", n) carries no message worth printing.
func exitStatus(err error) (string, int) {
	var exitCoder cli.ExitCoder
	if errors.As(err, &exitCoder) {
		code := exitCoder.ExitCode()
		msg := exitCoder.Error()
		if msg == fmt.Sprintf("exit status %d", code) {
			msg = ""
		}
		return msg, code
	}
	return fmt.Sprintf("Error: %v", err), 1
}
