// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gex-cli/internal/selfupdate"
)

type (
	// updateChecker reports how the running version compares to the latest release.
	updateChecker interface {
		Check(ctx context.Context) (*selfupdate.Check, error)
	}

	// updateInstaller downloads the latest release into the update directory.
	updateInstaller interface {
		InstallUpdate(ctx context.Context) (string, bool, error)
	}

	// updateParams bundles the dependencies and flags for the update command,
	// enabling runUpdate to be tested without a real Cobra command or live
	// release lookups.
	updateParams struct {
		stdout    io.Writer
		checker   updateChecker
		installer updateInstaller
		installTo string
		check     bool // --check: report availability without installing
	}
)

// newUpdateCommand creates the `gex update` command.
func newUpdateCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Download the latest gex release",
		Long: `Download the latest gex release.

The latest release tag is read from the project's releases page. When it
differs from the running version, the release sources are downloaded into
the update directory (update.install_dir, by default gex-update next to the
module cache).`,
		Example: `  # Check for updates without downloading
  gex update --check

  # Download the latest release
  gex update`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			checkFlag, _ := cmd.Flags().GetBool("check")

			a, err := loadApp(cmd, flags)
			if err != nil {
				return reportError(cmd.ErrOrStderr(), err, flags.verbose)
			}
			p := updateParams{
				stdout:    a.stdout,
				checker:   a.newChecker(),
				installTo: a.cfg.UpdateInstallDir(),
				check:     checkFlag,
			}
			if !checkFlag {
				d, err := a.newDownloader()
				if err != nil {
					return reportError(a.stderr, err, a.cfg.UI.Verbose)
				}
				p.installer = d
			}

			if err := runUpdate(cmd.Context(), p); err != nil {
				return reportError(a.stderr, err, a.cfg.UI.Verbose)
			}
			return nil
		},
	}

	cmd.Flags().Bool("check", false, "check for updates without downloading")

	return cmd
}

func runUpdate(ctx context.Context, p updateParams) error {
	if p.check {
		check, err := p.checker.Check(ctx)
		if err != nil {
			return fmt.Errorf("checking for updates: %w", err)
		}
		switch check.Status {
		case selfupdate.StatusUpToDate:
			fmt.Fprintln(p.stdout, SuccessStyle.Render("✓")+" gex "+check.Current+" is up to date")
		case selfupdate.StatusAvailable:
			fmt.Fprintln(p.stdout, WarningStyle.Render("!")+" "+check.Message)
		default:
			fmt.Fprintf(p.stdout, "latest release is %s (running %s)\n", CmdStyle.Render(check.Latest), check.Current)
		}
		return nil
	}

	version, installed, err := p.installer.InstallUpdate(ctx)
	if err != nil {
		return fmt.Errorf("installing update: %w", err)
	}
	if !installed {
		fmt.Fprintln(p.stdout, SuccessStyle.Render("✓")+" gex is up to date")
		return nil
	}
	fmt.Fprintf(p.stdout, "%s downloaded gex %s to %s\n", SuccessStyle.Render("✓"), version, CmdStyle.Render(p.installTo))
	return nil
}
