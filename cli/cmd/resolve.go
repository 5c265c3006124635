package cmd

import (
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/uproot/cli/config"
)

// Config precedence: an explicitly set flag wins, then a non-zero config
// value, then the flag default.

// configVal reads a field from cfg, returning the zero value for a nil cfg.
func configVal[T any](cfg *config.Config, get func(*config.Config) T) T {
	var zero T
	if cfg == nil {
		return zero
	}
	return get(cfg)
}

func resolveString(c *cli.Context, name, cfgVal string) string {
	if c.IsSet(name) || cfgVal == "" {
		return c.String(name)
	}
	return cfgVal
}

func resolveStrings(c *cli.Context, name string, cfgVal []string) []string {
	if c.IsSet(name) || len(cfgVal) == 0 {
		return c.StringSlice(name)
	}
	return cfgVal
}

func resolveInt(c *cli.Context, name string, cfgVal int) int {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Int(name)
	}
	return cfgVal
}

func resolveBool(c *cli.Context, name string, cfgVal bool) bool {
	if c.IsSet(name) {
		return c.Bool(name)
	}
	return cfgVal || c.Bool(name)
}

func resolveDuration(c *cli.Context, name string, cfgVal time.Duration) time.Duration {
	if c.IsSet(name) || cfgVal == 0 {
		return c.Duration(name)
	}
	return cfgVal
}

// loadConfig loads --config, or ./uproot.yaml when present.
func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.LoadOptional(c.String("config"))
}
