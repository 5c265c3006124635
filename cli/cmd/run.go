package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/uproot/catalog"
	"github.com/pithecene-io/uproot/cli/config"
	"github.com/pithecene-io/uproot/cli/render"
	"github.com/pithecene-io/uproot/cli/tui"
	"github.com/pithecene-io/uproot/ipc"
	"github.com/pithecene-io/uproot/log"
	"github.com/pithecene-io/uproot/runtime"
	"github.com/pithecene-io/uproot/types"
)

// Exit codes for `uproot run`.
const (
	exitCompleted = runtime.ExitCodeCompleted
	exitFailed    = runtime.ExitCodeFailed
	exitCrash     = runtime.ExitCodeCrash
	exitCancelled = runtime.ExitCodeCancelled
	// exitConfigError is used when the run cannot be set up at all.
	exitConfigError = exitCrash
)

// RunCommand returns the run command.
func RunCommand() *cli.Command {
	flags := []cli.Flag{
		ConfigFlag,
		&cli.StringFlag{
			Name:    "target",
			Aliases: []string{"t"},
			Usage:   "Application to remove (may also be given as the first argument)",
		},
		&cli.StringFlag{
			Name:  "run-id",
			Usage: "Run identifier (default: random UUID)",
		},
		&cli.StringFlag{
			Name:    "worker",
			Aliases: []string{"w"},
			Usage:   "Worker executable",
		},
		&cli.StringSliceFlag{
			Name:  "worker-arg",
			Usage: "Argument passed to the worker (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "worker-env",
			Usage: "KEY=VALUE added to the worker environment (repeatable)",
		},
		&cli.StringFlag{
			Name:  "framing",
			Usage: "Worker event framing: jsonl or msgpack",
			Value: string(ipc.FramingJSONLines),
		},
		&cli.DurationFlag{
			Name:  "grace",
			Usage: "Time the worker gets to exit after cancellation",
			Value: runtime.DefaultGracePeriod,
		},
		&cli.StringFlag{
			Name:    "inventory",
			Aliases: []string{"i"},
			Usage:   "Inventory file used to validate the target and passed to the worker",
		},
		&cli.BoolFlag{
			Name:  "auto-advance",
			Usage: "Commit the default selection without waiting",
		},
		&cli.BoolFlag{
			Name:  "all",
			Usage: "Select every discovered artifact and commit without waiting",
		},
		&cli.BoolFlag{
			Name:  "no-wait",
			Usage: "Tell the worker not to block on the selection",
		},
		&cli.DurationFlag{
			Name:  "selection-timeout",
			Usage: "Cancel the run when no selection is committed in time",
			Value: runtime.DefaultSelectionTimeout,
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Ask the worker to report removals without performing them",
		},
		&cli.StringFlag{
			Name:  "report",
			Usage: "Also write the telemetry document to this file (- for stderr)",
		},
		&cli.BoolFlag{
			Name:  "no-tui",
			Usage: "Disable the interactive selection screen",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "Write structured logs to this file instead of stderr",
		},
		&cli.BoolFlag{
			Name:    "quiet",
			Aliases: []string{"q"},
			Usage:   "Suppress the result summary",
		},
	}
	flags = append(flags, TelemetryFlags()...)
	flags = append(flags, AdapterFlags()...)

	return &cli.Command{
		Name:      "run",
		Usage:     "Remove an application with a human selection checkpoint",
		ArgsUsage: "[target]",
		Flags:     flags,
		Action:    runAction,
	}
}

// runChoice is everything resolved from flags and config before a run starts.
type runChoice struct {
	run         *runtime.RunConfig
	telemetry   telemetryChoice
	adapter     *adapterChoice
	interactive bool
	logFile     string
	quiet       bool
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	choice, err := resolveRunChoice(c, cfg)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}

	if choice.run.InventoryPath != "" {
		app, err := resolveTarget(choice.run.InventoryPath, choice.run.Target)
		if err != nil {
			return cli.Exit(err.Error(), exitConfigError)
		}
		choice.run.Target = app.ID
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	logger, closeLog, err := buildLogger(choice)
	if err != nil {
		return cli.Exit(err.Error(), exitConfigError)
	}
	defer closeLog()
	defer func() { _ = logger.Sync() }()

	opts := []runtime.Option{runtime.WithLogger(logger)}
	if choice.telemetry.enabled() {
		client, err := buildTelemetryClient(ctx, choice.telemetry)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to open telemetry store: %v", err), exitConfigError)
		}
		defer func() { _ = client.Close() }()
		opts = append(opts, runtime.WithTelemetry(client))
	}
	if choice.adapter != nil {
		a, err := buildAdapter(choice.adapter)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to create adapter: %v", err), exitConfigError)
		}
		defer func() { _ = a.Close() }()
		opts = append(opts, runtime.WithAdapter(a))
	}

	ctrl := runtime.NewController(opts...)
	run, err := ctrl.Start(ctx, choice.run)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to start run: %v", err), exitConfigError)
	}

	if choice.interactive {
		if _, err := tui.RunSelection(ctrl); err != nil {
			logger.Error("selection screen failed", map[string]any{"error": err.Error()})
			run.Cancel()
		}
	} else if !choice.quiet {
		go followProgress(run.Done(), ctrl.Updates(), os.Stderr)
	}

	result := run.Wait()

	if choice.run.ReportPath != "" && result.Report != nil {
		if err := runtime.WriteReport(result.Report, choice.run.ReportPath); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write report: %v\n", err)
		}
	}

	if !choice.quiet {
		printRunResult(os.Stdout, result)
	}

	return cli.Exit("", result.ExitCode())
}

func resolveRunChoice(c *cli.Context, cfg *config.Config) (*runChoice, error) {
	target := c.String("target")
	if target == "" {
		target = c.Args().First()
	}
	if target == "" {
		return nil, errors.New("target is required (uproot run <target>)")
	}

	workerPath := resolveString(c, "worker", configVal(cfg, func(c *config.Config) string { return c.Worker.Path }))
	if workerPath == "" {
		return nil, errors.New("--worker is required (or set worker.path in uproot.yaml)")
	}

	framing, err := ipc.ParseFraming(resolveString(c, "framing", configVal(cfg, func(c *config.Config) string { return c.Worker.Framing })))
	if err != nil {
		return nil, fmt.Errorf("--framing: %w", err)
	}

	wait := cfg == nil || cfg.Selection.WaitForSelection()
	if c.IsSet("no-wait") {
		wait = !c.Bool("no-wait")
	}

	rc := &runtime.RunConfig{
		RunID:            c.String("run-id"),
		Target:           target,
		WorkerPath:       workerPath,
		WorkerArgs:       resolveStrings(c, "worker-arg", configVal(cfg, func(c *config.Config) []string { return c.Worker.Args })),
		WorkerEnv:        resolveStrings(c, "worker-env", configVal(cfg, func(c *config.Config) []string { return c.Worker.Env })),
		Framing:          framing,
		GracePeriod:      resolveDuration(c, "grace", configVal(cfg, func(c *config.Config) time.Duration { return c.Worker.Grace.Duration })),
		InventoryPath:    resolveString(c, "inventory", configVal(cfg, func(c *config.Config) string { return c.Inventory })),
		AutoSelectAll:    resolveBool(c, "all", configVal(cfg, func(c *config.Config) bool { return c.Selection.AutoAll })),
		AutoAdvance:      resolveBool(c, "auto-advance", configVal(cfg, func(c *config.Config) bool { return c.Selection.AutoAdvance })),
		WaitForSelection: wait,
		SelectionTimeout: resolveDuration(c, "selection-timeout", configVal(cfg, func(c *config.Config) time.Duration { return c.Selection.Timeout.Duration })),
		DryRun:           resolveBool(c, "dry-run", configVal(cfg, func(c *config.Config) bool { return c.DryRun })),
		ReportPath:       resolveString(c, "report", configVal(cfg, func(c *config.Config) string { return c.Telemetry.Report })),
	}

	telemetry, err := resolveTelemetry(c, cfg)
	if err != nil {
		return nil, err
	}
	rc.StorageBackend = telemetry.backendLabel()

	ac, err := resolveAdapter(c, cfg)
	if err != nil {
		return nil, err
	}

	autoAdvance := rc.AutoAdvance || rc.AutoSelectAll || !rc.WaitForSelection
	interactive := !c.Bool("no-tui") && !autoAdvance &&
		render.IsTerminal(os.Stdin) && render.IsTerminal(os.Stdout)
	if !interactive && !autoAdvance {
		// Nobody can answer the checkpoint; proceed with the default selection.
		rc.AutoAdvance = true
	}

	if err := rc.Validate(); err != nil {
		return nil, err
	}

	return &runChoice{
		run:         rc,
		telemetry:   telemetry,
		adapter:     ac,
		interactive: interactive,
		logFile:     c.String("log-file"),
		quiet:       c.Bool("quiet"),
	}, nil
}

// resolveTarget checks target against the inventory.
func resolveTarget(inventoryPath, target string) (catalog.App, error) {
	cat, err := catalog.Load(inventoryPath)
	if err != nil {
		return catalog.App{}, fmt.Errorf("failed to load inventory: %w", err)
	}
	return cat.Require(target)
}

// buildLogger picks the log destination. The interactive screen owns the
// terminal, so logs are dropped there unless --log-file is given.
func buildLogger(choice *runChoice) (*log.Logger, func(), error) {
	switch {
	case choice.logFile != "":
		f, err := os.OpenFile(choice.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("cannot open log file: %w", err)
		}
		return log.NewLoggerWithWriter(nil, f), func() { _ = f.Close() }, nil
	case choice.interactive:
		return log.Nop(), func() {}, nil
	default:
		return log.NewLogger(nil), func() {}, nil
	}
}

// followProgress prints stage transitions until done is closed.
func followProgress(done <-chan struct{}, updates <-chan runtime.Snapshot, w io.Writer) {
	var prev runtime.Snapshot
	for {
		select {
		case <-done:
			return
		case snap := <-updates:
			for _, line := range progressLines(prev, snap) {
				fmt.Fprintln(w, line)
			}
			prev = snap
		}
	}
}

// progressLines describes the stage changes between two snapshots.
func progressLines(prev, next runtime.Snapshot) []string {
	var lines []string
	for i, st := range next.Stages {
		if i < len(prev.Stages) && prev.Stages[i] == st {
			continue
		}
		if st.Status == types.StagePending {
			continue
		}
		line := fmt.Sprintf("[%s] %s", st.Stage, st.Status)
		if st.Detail != "" {
			line += ": " + st.Detail
		}
		lines = append(lines, line)
	}
	return lines
}

func printRunResult(w io.Writer, result *runtime.RunResult) {
	outcome := result.Outcome
	fmt.Fprintf(w, "\nrun_id=%s, target=%s, outcome=%s, duration=%s\n",
		result.RunMeta.RunID,
		result.RunMeta.Target,
		outcome.Status,
		result.Duration.Round(time.Millisecond),
	)

	fmt.Fprintf(w, "\n=== Run Result ===\n")
	fmt.Fprintf(w, "Run ID:       %s\n", result.RunMeta.RunID)
	fmt.Fprintf(w, "Target:       %s\n", result.RunMeta.Target)
	fmt.Fprintf(w, "Outcome:      %s\n", outcome.Status)
	if outcome.Kind != "" {
		fmt.Fprintf(w, "Kind:         %s\n", outcome.Kind)
	}
	if outcome.Stage != nil {
		fmt.Fprintf(w, "Stage:        %s\n", *outcome.Stage)
	}
	fmt.Fprintf(w, "Message:      %s\n", outcome.Message)
	fmt.Fprintf(w, "Duration:     %s\n", result.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "Events:       %d\n", result.EventCount)
	if result.WorkerExitCode >= 0 {
		fmt.Fprintf(w, "Worker Exit:  %d\n", result.WorkerExitCode)
	}

	fmt.Fprintf(w, "\n=== Stages ===\n")
	for _, st := range result.Stages {
		fmt.Fprintf(w, "%-18s %-10s %s\n", st.Stage, st.Status, st.Detail)
	}

	if len(result.Artifacts) > 0 {
		counts := result.Counts
		fmt.Fprintf(w, "\n=== Artifacts ===\n")
		fmt.Fprintf(w, "Discovered:   %d\n", len(result.Artifacts))
		fmt.Fprintf(w, "Selected:     %d (%s)\n", counts.SelectedCount, render.Bytes(counts.SelectedBytes))
		fmt.Fprintf(w, "Removed:      %d (%s)\n", counts.Removed, render.Bytes(counts.RemovedBytes))
		fmt.Fprintf(w, "Failed:       %d\n", counts.Failed)
		for _, a := range result.Artifacts {
			if a.RemovalState == types.RemovalFailed {
				fmt.Fprintf(w, "  - %s: %s\n", a.Path, a.FailureDetail)
			}
		}
	}

	if s := result.Summary; s != nil {
		fmt.Fprintf(w, "\n=== Summary ===\n")
		fmt.Fprintf(w, "Removed:      %d\n", s.RemovedCount)
		fmt.Fprintf(w, "Skipped:      %d\n", s.SkippedCount)
		fmt.Fprintf(w, "Failures:     %d\n", s.FailureCount)
		fmt.Fprintf(w, "Freed:        %s\n", humanize.Bytes(uint64(max(s.FreedBytes, 0))))
		if s.LogPath != "" {
			fmt.Fprintf(w, "Worker Log:   %s\n", s.LogPath)
		}
	}

	if len(result.Stderr) > 0 && outcome.Status != types.OutcomeCompleted {
		fmt.Fprintf(w, "\n=== Worker Stderr ===\n")
		fmt.Fprintf(w, "%s", result.Stderr)
	}
}
