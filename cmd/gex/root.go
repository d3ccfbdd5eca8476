// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
)

var (
	// Version is the release tag (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

// NewRootCommand builds the gex command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}
	run := &runFlags{}

	rootCmd := &cobra.Command{
		Use:   "gex <OWNER/REPO[/VERSION]> [MODULE_NAME] [-- ARGS...]",
		Short: "Download and run JavaScript modules straight from GitHub",
		Long: TitleStyle.Render("gex") + SubtitleStyle.Render(" - download and run JavaScript modules straight from GitHub") + `

gex reads the gex.json manifest of a repository, downloads the module and
every dependency it declares, rewrites their imports to the local layout
and runs the module's main file.

` + SubtitleStyle.Render("Examples:") + `
  gex Rafostar/gex-demo            Run the demo app from its master branch
  gex acme/widget/1a2b3c4 widget   Run the 'widget' module at a commit
  gex -n acme/widget               Only download the module
  gex acme/widget -- --help        Pass arguments to the module
  gex update --check               Check for a newer gex release`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runModuleCommand(cmd, flags, run, args)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "enable verbose output")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "only print errors")
	pf.StringVar(&flags.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/gex/config.cue)")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	f := rootCmd.Flags()
	f.BoolVarP(&run.noRun, "no-run", "n", false, "download the module without running it")
	f.BoolVar(&run.offline, "offline", false, "run a previously downloaded module without network access")
	f.BoolVar(&run.refresh, "refresh", false, "download manifests and files again even if cached")
	rootCmd.MarkFlagsMutuallyExclusive("offline", "refresh")

	rootCmd.AddCommand(newUpdateCommand(flags))
	rootCmd.AddCommand(newRewriteCommand(flags))
	rootCmd.AddCommand(newConfigCommand(flags))

	return rootCmd
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the gex command tree. It is called by main.main().
func Execute() {
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(handleError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// handleError prints failures that were not already reported by the command.
func handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		renderServiceError(w, svcErr, false)
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}
