package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/pluggable"
	"github.com/GoCodeAlone/pluggable/manifests"
)

func newOrderCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "order <id> [dir]",
		Short: "Print the load order of a plugin",
		Long: `Print the order in which a plugin and its dependencies are loaded,
dependencies first, one id per line.`,
		Example: `  pluginctl order web ./plugins`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(args[1:])
			if err != nil {
				return err
			}

			ms, err := manifests.LoadDir(cfg.ManifestDir)
			if errors.Is(err, manifests.ErrReadDir) {
				return err
			}

			reg := pluggable.NewRegistry[struct{}]()
			for _, m := range ms {
				if _, err := reg.Register(m, nil); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
				}
			}

			order, err := reg.DependencyOrder(args[0])
			if err != nil {
				return err
			}
			for _, id := range order {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
}
