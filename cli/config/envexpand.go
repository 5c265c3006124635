// Package config loads uproot.yaml, the optional project file that supplies
// defaults for the run, inventory and telemetry flags.
package config

import (
	"os"
	"regexp"
)

// envRef matches ${NAME} and ${NAME:-fallback}. Names follow shell rules;
// anything else, such as ${1X}, is left as written.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes environment references in raw uproot.yaml text
// before it is parsed, so worker env, adapter headers and storage
// credentials can come from the environment.
//
// An unset or empty variable takes its fallback, or expands to nothing.
// Missing values surface later as flag or adapter validation errors.
func ExpandEnv(input string) string {
	return envRef.ReplaceAllStringFunc(input, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		return lookupEnv(m[1], m[2])
	})
}

func lookupEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
