// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"gex-cli/internal/config"
)

// newConfigCommand creates the `gex config` command group.
func newConfigCommand(flags *globalFlags) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect gex configuration",
		Long: `Inspect gex configuration.

Settings are read from config.cue in the gex config directory (or --config),
overridden by GEX_* environment variables such as GEX_DOWNLOAD_ATTEMPTS.`,
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			a, err := loadApp(cmd, flags)
			if err != nil {
				return reportError(cmd.ErrOrStderr(), err, flags.verbose)
			}
			fmt.Fprint(a.stdout, config.GenerateCUE(a.cfg))
			return nil
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the default config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(dir, config.ConfigFileName+"."+config.ConfigFileExt))
			return nil
		},
	})

	return configCmd
}
