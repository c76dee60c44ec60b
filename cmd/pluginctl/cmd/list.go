package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/pluggable/catalog"
	"github.com/GoCodeAlone/pluggable/config"
	"github.com/GoCodeAlone/pluggable/manifests"
	"github.com/GoCodeAlone/pluggable/store"
)

func newListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list [dir]",
		Short: "List plugin manifests",
		Long: `List the plugin manifests of a directory.

The state column shows whether the daemon last recorded the plugin as enabled.
Manifests that fail to load are reported on stderr.`,
		Example: `  # List the configured manifest directory
  pluginctl list

  # List another directory
  pluginctl list ./plugins`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(args)
			if err != nil {
				return err
			}

			ms, loadErr := manifests.LoadDir(cfg.ManifestDir)
			if errors.Is(loadErr, manifests.ErrReadDir) {
				return loadErr
			}
			enabled, err := storedEnabled(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tVERSION\tKIND\tSTATE\tDEPENDENCIES")
			for _, m := range ms {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					m.ID(),
					orDash(m.PluginVersion()),
					kindOf(m),
					stateOf(enabled[m.ID()]),
					orDash(strings.Join(m.Dependencies(), ",")),
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			for _, p := range problems(loadErr) {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", p)
			}
			return nil
		},
	}
}

// storedEnabled reads the enabled set recorded by the daemon. A missing state
// database means nothing was ever enabled.
func storedEnabled(ctx context.Context, cfg *config.Config) (map[string]bool, error) {
	if _, err := os.Stat(cfg.StatePath); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	st, err := store.Open(ctx, cfg.StatePath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	ids, err := st.EnabledPlugins(ctx)
	if err != nil {
		return nil, err
	}
	enabled := make(map[string]bool, len(ids))
	for _, id := range ids {
		enabled[id] = true
	}
	return enabled, nil
}

func kindOf(m *manifests.FileManifest) string {
	if m.Kind == "" {
		return catalog.DefaultKind
	}
	return m.Kind
}

func stateOf(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
