package cmd

import (
	"bytes"
	"flag"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/uproot/catalog"
	uprootconfig "github.com/pithecene-io/uproot/cli/config"
	"github.com/pithecene-io/uproot/runtime"
	"github.com/pithecene-io/uproot/types"
)

func TestReadOnlyFlags_IncludesTUI(t *testing.T) {
	flags := ReadOnlyFlags()

	hasTUI := false
	for _, f := range flags {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}

	if !hasTUI {
		t.Error("ReadOnlyFlags should include --tui flag for explicit error handling")
	}
}

func TestTUIReadOnlyFlags_IncludesTUI(t *testing.T) {
	flags := TUIReadOnlyFlags()

	hasTUI := false
	for _, f := range flags {
		if f.Names()[0] == "tui" {
			hasTUI = true
			break
		}
	}

	if !hasTUI {
		t.Error("TUIReadOnlyFlags should include --tui flag")
	}
}

func TestIsStderrTTY(_ *testing.T) {
	// Actual TTY behavior depends on runtime environment.
	_ = isStderrTTY()
}

// --- Config precedence ---

// newTestCLIContext builds a minimal *cli.Context with the given flags set.
// flagValues maps flag names to their string values. All listed flags are
// registered and marked as explicitly set (c.IsSet returns true).
// defaultFlags maps flag names to default values (not explicitly set).
func newTestCLIContext(t *testing.T, flagValues map[string]string, defaultFlags map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()

	allFlags := make(map[string]string)
	for k, v := range defaultFlags {
		allFlags[k] = v
	}
	for k, v := range flagValues {
		allFlags[k] = v
	}

	var cliFlags []cli.Flag
	for name, val := range allFlags {
		cliFlags = append(cliFlags, &cli.StringFlag{Name: name, Value: val})
	}
	app.Flags = cliFlags

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	for name, val := range allFlags {
		fs.String(name, val, "")
	}

	// Only set the flagValues (not defaults) so c.IsSet works
	for name, val := range flagValues {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}

	return cli.NewContext(app, fs, nil)
}

func TestResolveString_CLIWins(t *testing.T) {
	c := newTestCLIContext(t, map[string]string{"worker": "cli-val"}, nil)
	got := resolveString(c, "worker", "config-val")
	if got != "cli-val" {
		t.Errorf("expected CLI to win, got %q", got)
	}
}

func TestResolveString_ConfigFallback(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"worker": ""})
	got := resolveString(c, "worker", "config-val")
	if got != "config-val" {
		t.Errorf("expected config fallback, got %q", got)
	}
}

func TestResolveString_UrfaveDefault(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{"framing": "jsonl"})
	got := resolveString(c, "framing", "")
	if got != "jsonl" {
		t.Errorf("expected urfave default, got %q", got)
	}
}

func TestConfigVal_NilConfig(t *testing.T) {
	got := configVal(nil, func(c *uprootconfig.Config) string { return c.Inventory })
	if got != "" {
		t.Errorf("expected empty for nil config, got %q", got)
	}
}

func TestConfigVal_NonNil(t *testing.T) {
	cfg := &uprootconfig.Config{Inventory: "from-config"}
	got := configVal(cfg, func(c *uprootconfig.Config) string { return c.Inventory })
	if got != "from-config" {
		t.Errorf("expected from-config, got %q", got)
	}
}

func TestResolveInt_CLIWins(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.IntFlag{Name: "adapter-retries"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("adapter-retries", 0, "")
	_ = fs.Set("adapter-retries", "5")
	c := cli.NewContext(app, fs, nil)

	got := resolveInt(c, "adapter-retries", 1)
	if got != 5 {
		t.Errorf("expected CLI to win with 5, got %d", got)
	}
}

func TestResolveInt_ConfigFallback(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.IntFlag{Name: "adapter-retries"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Int("adapter-retries", 0, "")
	c := cli.NewContext(app, fs, nil)

	got := resolveInt(c, "adapter-retries", 7)
	if got != 7 {
		t.Errorf("expected config fallback 7, got %d", got)
	}
}

func TestResolveBool(t *testing.T) {
	tests := []struct {
		name   string
		set    string
		cfgVal bool
		want   bool
	}{
		{"unset uses config", "", true, true},
		{"unset without config", "", false, false},
		{"explicit true wins", "true", false, true},
		{"explicit false beats config", "false", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := cli.NewApp()
			app.Flags = []cli.Flag{&cli.BoolFlag{Name: "dry-run"}}
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			fs.Bool("dry-run", false, "")
			if tt.set != "" {
				_ = fs.Set("dry-run", tt.set)
			}
			c := cli.NewContext(app, fs, nil)

			if got := resolveBool(c, "dry-run", tt.cfgVal); got != tt.want {
				t.Errorf("resolveBool = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveDuration_CLIWins(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.DurationFlag{Name: "grace"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Duration("grace", runtime.DefaultGracePeriod, "")
	_ = fs.Set("grace", "5s")
	c := cli.NewContext(app, fs, nil)

	got := resolveDuration(c, "grace", time.Minute)
	if got != 5*time.Second {
		t.Errorf("expected CLI 5s to win, got %v", got)
	}
}

func TestResolveDuration_ConfigFallback(t *testing.T) {
	app := cli.NewApp()
	app.Flags = []cli.Flag{&cli.DurationFlag{Name: "grace"}}
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Duration("grace", runtime.DefaultGracePeriod, "")
	c := cli.NewContext(app, fs, nil)

	got := resolveDuration(c, "grace", time.Minute)
	if got != time.Minute {
		t.Errorf("expected config fallback 1m, got %v", got)
	}
}

// --- Telemetry store ---

func TestValidateTelemetryChoice(t *testing.T) {
	tests := []struct {
		name        string
		choice      telemetryChoice
		errContains string
	}{
		{name: "disabled", choice: telemetryChoice{}},
		{name: "fs default backend", choice: telemetryChoice{path: "./telemetry"}},
		{name: "fs explicit", choice: telemetryChoice{backend: "fs", path: "./telemetry"}},
		{name: "s3 with region", choice: telemetryChoice{backend: "s3", path: "bucket/prefix", region: "us-east-1"}},
		{
			name:        "s3 without path",
			choice:      telemetryChoice{backend: "s3"},
			errContains: "--telemetry-path is required",
		},
		{
			name:        "unknown backend",
			choice:      telemetryChoice{backend: "gcs", path: "x"},
			errContains: "unknown --telemetry-backend",
		},
		{
			name:        "region without s3",
			choice:      telemetryChoice{backend: "fs", path: "x", region: "us-east-1"},
			errContains: "require --telemetry-backend s3",
		},
		{
			name:        "path style without s3",
			choice:      telemetryChoice{path: "x", s3PathStyle: true},
			errContains: "require --telemetry-backend s3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTelemetryChoice(tt.choice)
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error %q should contain %q", err.Error(), tt.errContains)
			}
		})
	}
}

func TestTelemetryChoice_BackendLabel(t *testing.T) {
	tests := []struct {
		choice telemetryChoice
		want   string
	}{
		{telemetryChoice{}, "none"},
		{telemetryChoice{path: "./t"}, "fs"},
		{telemetryChoice{backend: "s3", path: "b/p"}, "s3"},
	}
	for _, tt := range tests {
		if got := tt.choice.backendLabel(); got != tt.want {
			t.Errorf("backendLabel(%+v) = %q, want %q", tt.choice, got, tt.want)
		}
	}
}

func TestResolveTelemetry_ConfigFallback(t *testing.T) {
	c := newTestCLIContext(t, nil, map[string]string{
		"telemetry-dataset": "uproot",
		"telemetry-backend": "",
		"telemetry-path":    "",
	})
	cfg := &uprootconfig.Config{
		Telemetry: uprootconfig.TelemetryConfig{Backend: "fs", Path: "./from-config"},
	}

	choice, err := resolveTelemetry(c, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if choice.path != "./from-config" || choice.backend != "fs" {
		t.Errorf("choice = %+v, want config backend and path", choice)
	}
	if choice.dataset != "uproot" {
		t.Errorf("dataset = %q, want flag default", choice.dataset)
	}
}

func TestBuildTelemetryClient_FSCreatesRoot(t *testing.T) {
	root := t.TempDir() + "/nested/telemetry"
	client, err := buildTelemetryClient(t.Context(), telemetryChoice{dataset: "uproot", path: root})
	if err != nil {
		t.Fatalf("buildTelemetryClient: %v", err)
	}
	defer func() { _ = client.Close() }()
}

// --- Adapter resolution ---

// newAdapterTestContext builds a CLI context with adapter-related flags.
// Slice flags need the full app.Run path, so header cases go through config
// or TestParseAdapterConfig_MalformedHeader.
func newAdapterTestContext(t *testing.T, flags map[string]string) *cli.Context {
	t.Helper()
	app := cli.NewApp()
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "adapter-url"},
		&cli.StringFlag{Name: "adapter-channel"},
		&cli.DurationFlag{Name: "adapter-timeout", Value: 10 * time.Second},
		&cli.IntFlag{Name: "adapter-retries", Value: 3},
		&cli.StringSliceFlag{Name: "adapter-header"},
	}

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("adapter-url", "", "")
	fs.String("adapter-channel", "", "")
	fs.Duration("adapter-timeout", 10*time.Second, "")
	fs.Int("adapter-retries", 3, "")

	for name, val := range flags {
		if err := fs.Set(name, val); err != nil {
			t.Fatalf("failed to set flag %s: %v", name, err)
		}
	}

	return cli.NewContext(app, fs, nil)
}

func TestParseAdapterConfig_WebhookValid(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{
		"adapter-url": "https://hooks.example.com/uproot",
	})

	ac, err := parseAdapterConfigWithPrecedence(c, nil, "webhook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.adapterType != "webhook" {
		t.Errorf("adapterType = %q, want %q", ac.adapterType, "webhook")
	}
	if ac.url != "https://hooks.example.com/uproot" {
		t.Errorf("url = %q", ac.url)
	}
	if ac.timeout != 10*time.Second || ac.retries != 3 {
		t.Errorf("timeout/retries = %v/%d, want flag defaults", ac.timeout, ac.retries)
	}
}

func TestParseAdapterConfig_MissingURL(t *testing.T) {
	for _, typ := range []string{"webhook", "redis"} {
		t.Run(typ, func(t *testing.T) {
			c := newAdapterTestContext(t, nil)

			_, err := parseAdapterConfigWithPrecedence(c, nil, typ)
			if err == nil {
				t.Fatal("expected error for missing URL")
			}
			if !strings.Contains(err.Error(), "--adapter-url is required for the "+typ+" adapter") {
				t.Errorf("error should mention --adapter-url, got: %v", err)
			}
		})
	}
}

func TestParseAdapterConfig_RedisValid(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{
		"adapter-url":     "redis://localhost:6379",
		"adapter-channel": "my-channel",
	})

	ac, err := parseAdapterConfigWithPrecedence(c, nil, "redis")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.channel != "my-channel" {
		t.Errorf("channel = %q, want %q", ac.channel, "my-channel")
	}
}

func TestParseAdapterConfig_RedisRejectsHeaders(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{"adapter-url": "redis://localhost:6379"})
	cfg := &uprootconfig.Config{
		Adapter: uprootconfig.AdapterConfig{Headers: map[string]string{"X-Key": "v"}},
	}

	_, err := parseAdapterConfigWithPrecedence(c, cfg, "redis")
	if err == nil || !strings.Contains(err.Error(), "only valid for the webhook adapter") {
		t.Errorf("expected header rejection, got: %v", err)
	}
}

func TestParseAdapterConfig_UnknownType(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{
		"adapter-url": "https://example.com",
	})

	_, err := parseAdapterConfigWithPrecedence(c, nil, "kafka")
	if err == nil {
		t.Fatal("expected error for unknown adapter type")
	}
	if !strings.Contains(err.Error(), "kafka") {
		t.Errorf("error should include the bad type name, got: %v", err)
	}
}

func TestParseAdapterConfig_ConfigProvidesURL(t *testing.T) {
	c := newAdapterTestContext(t, nil)
	cfg := &uprootconfig.Config{
		Adapter: uprootconfig.AdapterConfig{URL: "https://from-config.example.com"},
	}

	ac, err := parseAdapterConfigWithPrecedence(c, cfg, "webhook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.url != "https://from-config.example.com" {
		t.Errorf("url should come from config, got %q", ac.url)
	}
}

func TestParseAdapterConfig_CLIOverridesConfigURL(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{
		"adapter-url": "https://cli-url.example.com",
	})
	cfg := &uprootconfig.Config{
		Adapter: uprootconfig.AdapterConfig{URL: "https://config-url.example.com"},
	}

	ac, err := parseAdapterConfigWithPrecedence(c, cfg, "webhook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.url != "https://cli-url.example.com" {
		t.Errorf("CLI should override config URL, got %q", ac.url)
	}
}

func TestParseAdapterConfig_Retries(t *testing.T) {
	five, zero := 5, 0
	tests := []struct {
		name    string
		flags   map[string]string
		cfg     *int
		want    int
		wantErr bool
	}{
		{name: "flag default", want: 3},
		{name: "config wins over default", cfg: &five, want: 5},
		{name: "config zero honored", cfg: &zero, want: 0},
		{name: "explicit flag beats config", flags: map[string]string{"adapter-retries": "1"}, cfg: &five, want: 1},
		{name: "negative rejected", flags: map[string]string{"adapter-retries": "-1"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := map[string]string{"adapter-url": "https://example.com"}
			for k, v := range tt.flags {
				flags[k] = v
			}
			c := newAdapterTestContext(t, flags)
			cfg := &uprootconfig.Config{Adapter: uprootconfig.AdapterConfig{Retries: tt.cfg}}

			ac, err := parseAdapterConfigWithPrecedence(c, cfg, "webhook")
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ac.retries != tt.want {
				t.Errorf("retries = %d, want %d", ac.retries, tt.want)
			}
		})
	}
}

func TestParseAdapterConfig_ConfigHeadersMerged(t *testing.T) {
	c := newAdapterTestContext(t, map[string]string{
		"adapter-url": "https://example.com",
	})
	cfg := &uprootconfig.Config{
		Adapter: uprootconfig.AdapterConfig{
			Headers: map[string]string{
				"X-Api-Key": "secret-123",
				"X-Source":  "uproot",
			},
		},
	}

	ac, err := parseAdapterConfigWithPrecedence(c, cfg, "webhook")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ac.headers["X-Api-Key"] != "secret-123" || ac.headers["X-Source"] != "uproot" {
		t.Errorf("config headers not merged, got %v", ac.headers)
	}
}

func TestParseAdapterConfig_MalformedHeader(t *testing.T) {
	app := cli.NewApp()
	app.Flags = AdapterFlags()

	var parseErr error
	app.Action = func(c *cli.Context) error {
		_, parseErr = parseAdapterConfigWithPrecedence(c, nil, "webhook")
		return nil
	}

	_ = app.Run([]string{"test",
		"--adapter-url", "https://example.com",
		"--adapter-header", "no-equals-sign",
	})

	if parseErr == nil {
		t.Fatal("expected error for malformed header")
	}
	if !strings.Contains(parseErr.Error(), "invalid --adapter-header") {
		t.Errorf("error should mention invalid header, got: %v", parseErr)
	}
	if !strings.Contains(parseErr.Error(), "Key=Value") {
		t.Errorf("error should suggest Key=Value format, got: %v", parseErr)
	}
}

func TestParseAdapterConfig_FlagHeaderOverridesConfig(t *testing.T) {
	app := cli.NewApp()
	app.Flags = AdapterFlags()
	cfg := &uprootconfig.Config{
		Adapter: uprootconfig.AdapterConfig{Headers: map[string]string{"Authorization": "old", "X-Env": "prod"}},
	}

	var ac *adapterChoice
	var parseErr error
	app.Action = func(c *cli.Context) error {
		ac, parseErr = parseAdapterConfigWithPrecedence(c, cfg, "webhook")
		return nil
	}
	_ = app.Run([]string{"test",
		"--adapter-url", "https://example.com",
		"--adapter-header", "Authorization=Bearer new",
	})

	if parseErr != nil {
		t.Fatalf("unexpected error: %v", parseErr)
	}
	if ac.headers["Authorization"] != "Bearer new" {
		t.Errorf("flag header should win, got %q", ac.headers["Authorization"])
	}
	if ac.headers["X-Env"] != "prod" {
		t.Errorf("config header should survive, got %v", ac.headers)
	}
}

func TestResolveAdapter(t *testing.T) {
	t.Run("none configured", func(t *testing.T) {
		c := newTestCLIContext(t, nil, map[string]string{"adapter": "", "adapter-url": ""})
		ac, err := resolveAdapter(c, &uprootconfig.Config{})
		if err != nil || ac != nil {
			t.Errorf("resolveAdapter = %v, %v; want nil, nil", ac, err)
		}
	})

	t.Run("url without type", func(t *testing.T) {
		c := newTestCLIContext(t, map[string]string{"adapter-url": "https://example.com"}, map[string]string{"adapter": ""})
		_, err := resolveAdapter(c, nil)
		if err == nil || !strings.Contains(err.Error(), "--adapter-url requires --adapter") {
			t.Errorf("expected actionable error, got: %v", err)
		}
	})

	t.Run("type from config", func(t *testing.T) {
		c := newTestCLIContext(t, nil, map[string]string{"adapter": "", "adapter-url": ""})
		cfg := &uprootconfig.Config{
			Adapter: uprootconfig.AdapterConfig{Type: "redis", URL: "redis://localhost:6379/0"},
		}
		ac, err := resolveAdapter(c, cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ac == nil || ac.adapterType != "redis" {
			t.Errorf("adapter = %+v, want redis", ac)
		}
	})
}

func TestBuildAdapter(t *testing.T) {
	a, err := buildAdapter(&adapterChoice{adapterType: "webhook", url: "https://example.com", timeout: time.Second})
	if err != nil {
		t.Fatalf("webhook: %v", err)
	}
	_ = a.Close()

	if _, err := buildAdapter(&adapterChoice{adapterType: "kafka"}); err == nil {
		t.Error("expected error for unknown adapter type")
	}
}

// --- Rendering helpers ---

func TestAppList_Table(t *testing.T) {
	list := appList{
		{ID: "acme-editor", Name: "Acme Editor", Publisher: "Acme", Version: "2.1", Paths: []string{"/opt/acme", "/var/acme"}, RequiresElevation: true},
		{ID: "tool"},
	}

	if got := len(list.TableHeader()); got != 6 {
		t.Fatalf("header has %d columns, want 6", got)
	}
	rows := list.TableRows()
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0][4] != "/opt/acme, /var/acme" || rows[0][5] != "yes" {
		t.Errorf("row 0 = %v", rows[0])
	}
	if rows[1][1] != "tool" {
		t.Errorf("display name should fall back to id, got %q", rows[1][1])
	}
}

func TestProgressLines(t *testing.T) {
	pending := runtime.Snapshot{Stages: []types.StageState{
		{Stage: types.StageKickoff, Status: types.StagePending},
		{Stage: types.StageDefaultUninstall, Status: types.StagePending},
	}}
	started := runtime.Snapshot{Stages: []types.StageState{
		{Stage: types.StageKickoff, Status: types.StageCompleted},
		{Stage: types.StageDefaultUninstall, Status: types.StageActive},
	}}
	finished := runtime.Snapshot{Stages: []types.StageState{
		{Stage: types.StageKickoff, Status: types.StageCompleted},
		{Stage: types.StageDefaultUninstall, Status: types.StageCompleted, Detail: "exit 0"},
	}}

	if lines := progressLines(runtime.Snapshot{}, pending); len(lines) != 0 {
		t.Errorf("pending stages should print nothing, got %q", lines)
	}

	lines := progressLines(pending, started)
	want := []string{"[Kickoff] completed", "[DefaultUninstall] active"}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("lines = %q, want %q", lines, want)
	}

	lines = progressLines(started, finished)
	if len(lines) != 1 || lines[0] != "[DefaultUninstall] completed: exit 0" {
		t.Errorf("lines = %q", lines)
	}

	if lines := progressLines(finished, finished); len(lines) != 0 {
		t.Errorf("unchanged snapshot should print nothing, got %q", lines)
	}
}

func TestPrintRunResult_Failed(t *testing.T) {
	stage := types.StageCleanup
	result := &runtime.RunResult{
		RunMeta: types.RunMeta{RunID: "run-42", Target: "acme-editor"},
		Outcome: &types.RunOutcome{
			Status:  types.OutcomeFailed,
			Kind:    "stage_out_of_order",
			Stage:   &stage,
			Message: "cleanup rejected",
		},
		Stages: []types.StageState{
			{Stage: types.StageKickoff, Status: types.StageCompleted},
			{Stage: types.StageCleanup, Status: types.StageFailed, Detail: "out of order"},
		},
		Artifacts: []types.Artifact{
			{ArtifactSpec: types.ArtifactSpec{ID: "a1", Path: "/opt/acme/cache"}, Selected: true, RemovalState: types.RemovalRemoved},
			{ArtifactSpec: types.ArtifactSpec{ID: "a2", Path: "/opt/acme/lock"}, Selected: true, RemovalState: types.RemovalFailed, FailureDetail: "locked"},
		},
		Counts:         types.Counts{Removed: 1, Failed: 1, RemovedBytes: 2048, SelectedCount: 2, SelectedBytes: 4096},
		WorkerExitCode: 1,
		Stderr:         []byte("boom\n"),
		Duration:       1500 * time.Millisecond,
		EventCount:     9,
	}

	var buf bytes.Buffer
	printRunResult(&buf, result)
	out := buf.String()

	for _, want := range []string{
		"=== Run Result ===",
		"run-42",
		"Outcome:      failed",
		"Stage:        Cleanup",
		"Worker Exit:  1",
		"=== Stages ===",
		"out of order",
		"=== Artifacts ===",
		"/opt/acme/lock: locked",
		"=== Worker Stderr ===",
		"boom",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "=== Summary ===") {
		t.Error("summary section should be omitted without a summary")
	}
}

func TestPrintRunResult_CompletedOmitsStderr(t *testing.T) {
	result := &runtime.RunResult{
		RunMeta:        types.RunMeta{RunID: "run-1", Target: "tool"},
		Outcome:        &types.RunOutcome{Status: types.OutcomeCompleted, Message: "removed 3"},
		Summary:        &types.RunSummary{RemovedCount: 3, FreedBytes: 3_000_000, LogPath: "/tmp/uproot.log"},
		WorkerExitCode: 0,
		Stderr:         []byte("noise"),
	}

	var buf bytes.Buffer
	printRunResult(&buf, result)
	out := buf.String()

	if !strings.Contains(out, "=== Summary ===") || !strings.Contains(out, "3.0 MB") {
		t.Errorf("summary section missing:\n%s", out)
	}
	if !strings.Contains(out, "/tmp/uproot.log") {
		t.Errorf("log path missing:\n%s", out)
	}
	if strings.Contains(out, "noise") {
		t.Error("stderr should be omitted for completed runs")
	}
}

func TestResolveTarget(t *testing.T) {
	path := writeInventory(t)

	app, err := resolveTarget(path, "acme-editor")
	if err != nil {
		t.Fatalf("resolveTarget: %v", err)
	}
	if app.Name != "Acme Editor" {
		t.Errorf("app = %+v", app)
	}

	if _, err := resolveTarget(path, "acme"); err == nil {
		t.Error("expected unknown target error")
	} else if !strings.Contains(err.Error(), catalog.ErrUnknownApp.Error()) {
		t.Errorf("error = %v", err)
	}
}
