// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"gex-cli/internal/fetch"
	"gex-cli/internal/issue"
	"gex-cli/internal/runner"
	"gex-cli/pkg/gexmod"
)

type (
	runFlags struct {
		noRun   bool
		offline bool
		refresh bool
	}

	// runParams bundles the inputs of runModule so it can be tested without
	// a Cobra command.
	runParams struct {
		app     *app
		ref     string
		name    string
		argv    []string
		noRun   bool
		offline bool
		refresh bool
	}
)

func runModuleCommand(cmd *cobra.Command, flags *globalFlags, run *runFlags, args []string) error {
	cmd.SilenceUsage = true

	positional, argv := args, []string(nil)
	if dash := cmd.ArgsLenAtDash(); dash >= 0 {
		positional, argv = args[:dash], args[dash:]
	}
	if len(positional) == 0 || len(positional) > 2 {
		err := fmt.Errorf("expected <OWNER/REPO[/VERSION]> [MODULE_NAME], got %d argument(s)", len(positional))
		return reportError(cmd.ErrOrStderr(), err, flags.verbose)
	}

	a, err := loadApp(cmd, flags)
	if err != nil {
		return reportError(cmd.ErrOrStderr(), err, flags.verbose)
	}

	p := runParams{
		app:     a,
		ref:     positional[0],
		argv:    argv,
		noRun:   run.noRun,
		offline: run.offline,
		refresh: run.refresh,
	}
	if len(positional) == 2 {
		p.name = positional[1]
	}

	if err := runModule(cmd.Context(), p); err != nil {
		return reportError(a.stderr, err, a.cfg.UI.Verbose)
	}
	return nil
}

// reportError prints a failure once, with catalog guidance in verbose mode,
// and turns it into a silent exit status.
func reportError(stderr io.Writer, err error, verbose bool) error {
	if errors.Is(err, context.Canceled) {
		return &ExitError{Code: 130}
	}
	renderServiceError(stderr, wrapServiceError(err, verbose), verbose)
	return &ExitError{Code: 1}
}

// runModule downloads (or, offline, loads from the lock file) the requested
// module and runs its entry point.
func runModule(ctx context.Context, p runParams) error {
	coord, err := p.app.defaults().Parse(p.ref)
	if err != nil {
		return err
	}

	d, err := p.app.newDownloader()
	if err != nil {
		return err
	}

	var result *fetch.Result
	if p.offline {
		result, err = d.Locked(coord)
		if err != nil {
			return issue.NewErrorContext().
				WithOperation("load cached module").
				WithResource(coord.String()).
				WithSuggestion("Run once without --offline to download the module").
				WithIssue(issue.OfflineCacheMissingID).
				Wrap(err).
				BuildError()
		}
	} else {
		result, err = d.DownloadModule(ctx, fetch.Request{
			Coordinate: coord,
			Name:       p.name,
			Refresh:    p.refresh,
		})
		if err != nil {
			return err
		}
	}

	if p.noRun {
		p.app.logger.Debug("not running module", "entry", result.EntryPoint)
		return nil
	}
	if result.EntryPoint == "" {
		return &gexmod.ModuleError{Module: p.name, Coordinate: coord, Err: gexmod.ErrNotRunnable}
	}

	rt := runner.New(runner.Registry(result.Registry),
		runner.WithStdout(p.app.stdout),
		runner.WithStderr(p.app.stderr),
		runner.WithLogger(p.app.logger),
		runner.WithArgs(p.argv...))
	if err := rt.Run(ctx, result.EntryPoint); err != nil {
		if ctx.Err() != nil {
			return err
		}
		return issue.NewErrorContext().
			WithOperation("run module").
			WithResource(result.EntryPoint).
			WithSuggestion("Run with --verbose to see which files were imported").
			WithIssue(issue.ScriptFailedID).
			Wrap(err).
			BuildError()
	}
	return nil
}
