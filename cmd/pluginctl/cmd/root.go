// Package cmd implements the pluginctl commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/pluggable/cmd/pluginctl/internal/logging"
	"github.com/GoCodeAlone/pluggable/config"
)

// Version information, set with -ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

// NewRootCommand creates the pluginctl root command.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "pluginctl",
		Short: "Inspect and run dependency-aware plugin registries",
		Long: `pluginctl works with directories of plugin manifests.

It lists and validates manifests, prints dependency load orders and runs a
daemon that keeps a plugin registry in sync with a manifest directory.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (yaml, toml or json)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: console or json")

	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	cmd.AddCommand(newOrderCommand(opts))
	cmd.AddCommand(newServeCommand(opts))

	return cmd
}

// load reads the configuration and applies the flag overrides. A directory
// argument, when given, replaces the configured manifest directory.
func (o *globalOptions) load(dirArgs []string) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if len(dirArgs) > 0 && dirArgs[0] != "" {
		cfg.ManifestDir = dirArgs[0]
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	return cfg, nil
}

func (o *globalOptions) logger(cmd *cobra.Command, cfg *config.Config) (*logging.Logger, error) {
	return logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
}

// problems flattens an error built with errors.Join.
func problems(err error) []error {
	if err == nil {
		return nil
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		return joined.Unwrap()
	}
	return []error{err}
}
