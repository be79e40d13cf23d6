package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/compozy/guidebook/pkg/config/definition"
)

const (
	flagConfig     = "config"
	flagStep       = "step"
	flagDryRun     = "dry-run"
	flagNoOptimize = "no-optimize"
)

// registerConfigFlags adds one persistent flag per registry field.
func registerConfigFlags(flags *pflag.FlagSet, registry *definition.Registry) {
	for _, field := range registry.Fields() {
		if field.CLIFlag == "" {
			continue
		}
		switch def := field.Default.(type) {
		case bool:
			flags.BoolP(field.CLIFlag, field.Shorthand, def, field.Help)
		case int:
			flags.IntP(field.CLIFlag, field.Shorthand, def, field.Help)
		case time.Duration:
			flags.DurationP(field.CLIFlag, field.Shorthand, def, field.Help)
		case string:
			flags.StringP(field.CLIFlag, field.Shorthand, def, field.Help)
		default:
			panic(fmt.Sprintf("unsupported flag type for %s: %T", field.Path, field.Default))
		}
	}
	flags.String(flagConfig, "", "Path to a guidebook configuration file")
	flags.Bool(flagStep, false, "Pause before each step (same as --mode step)")
	flags.Bool(flagDryRun, false, "Only check which tasks are ready (same as --mode dry-run)")
	flags.Bool(flagNoOptimize, false, "Run the plan as written (same as --optimize=false)")
}

// extractCLIFlags collects the flags the user set explicitly, keyed by
// flag name, for the CLI configuration source.
func extractCLIFlags(cmd *cobra.Command, registry *definition.Registry) map[string]any {
	flags := make(map[string]any)
	for _, field := range registry.Fields() {
		name := field.CLIFlag
		if name == "" || !cmd.Flags().Changed(name) {
			continue
		}
		var (
			value any
			err   error
		)
		switch field.Default.(type) {
		case bool:
			value, err = cmd.Flags().GetBool(name)
		case int:
			value, err = cmd.Flags().GetInt(name)
		case time.Duration:
			value, err = cmd.Flags().GetDuration(name)
		default:
			value, err = cmd.Flags().GetString(name)
		}
		if err == nil {
			flags[name] = value
		}
	}
	if on, err := cmd.Flags().GetBool(flagStep); err == nil && on {
		flags["mode"] = "step"
	}
	if on, err := cmd.Flags().GetBool(flagDryRun); err == nil && on {
		flags["mode"] = "dry-run"
	}
	if on, err := cmd.Flags().GetBool(flagNoOptimize); err == nil && on {
		flags["optimize"] = false
	}
	return flags
}

// configFilePath returns the --config value, or guidebook.yaml in the
// working directory when it exists.
func configFilePath(cmd *cobra.Command) (string, error) {
	path, err := cmd.Flags().GetString(flagConfig)
	if err != nil {
		return "", fmt.Errorf("failed to get config flag: %w", err)
	}
	if path != "" {
		return filepath.Abs(path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}
	candidate := filepath.Join(cwd, "guidebook.yaml")
	if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
		return candidate, nil
	}
	return "", nil
}
