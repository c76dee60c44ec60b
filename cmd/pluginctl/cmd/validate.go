package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/pluggable/manifests"
)

// ErrInvalidManifests is returned by validate when any problem was found.
var ErrInvalidManifests = errors.New("invalid manifests")

func newValidateCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [dir]",
		Short: "Validate plugin manifests",
		Long: `Validate the plugin manifests of a directory.

Every manifest is decoded and checked, then all of them are registered together
to find duplicate ids, dependency cycles, missing dependencies and version
requirements that are not met.`,
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

			found := append(problems(loadErr), manifests.Verify(ms)...)
			out := cmd.OutOrStdout()
			for _, p := range found {
				fmt.Fprintf(out, "error: %v\n", p)
			}
			if len(found) > 0 {
				return fmt.Errorf("%w: %d problem(s) in %s", ErrInvalidManifests, len(found), cfg.ManifestDir)
			}
			fmt.Fprintf(out, "%d manifest(s) in %s are valid\n", len(ms), cfg.ManifestDir)
			return nil
		},
	}
}
