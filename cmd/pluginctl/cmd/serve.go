package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [dir]",
		Short: "Run the plugin registry daemon",
		Long: `Run a plugin registry kept in sync with a manifest directory.

The daemon:
  - Registers the builtin plugins and every manifest in the directory
  - Re-enables the plugins that were enabled when it last stopped
  - Rescans the directory on file changes and on the rescan schedule
  - Serves the admin API until interrupted`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(args)
			if err != nil {
				return err
			}
			logger, err := opts.logger(cmd, cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d, err := startDaemon(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer d.close(context.Background())

			logger.Info("Started pluginctl",
				"manifests", cfg.ManifestDir,
				"plugins", d.registry.PluginCount(),
				"enabled", d.registry.EnabledPluginCount())
			return d.admin.ListenAndServe(ctx, cfg.Admin.Addr, cfg.Admin.ShutdownTimeout)
		},
	}
}
