// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"io"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"gex-cli/internal/config"
	"gex-cli/internal/fetch"
	"gex-cli/internal/schemac"
	"gex-cli/internal/selfupdate"
	"gex-cli/pkg/gexmod"
)

const (
	sessionLogPrefix = "gex"
	updateLogPrefix  = "gex-updater"
)

type (
	// globalFlags are shared by every command.
	globalFlags struct {
		cfgFile string
		verbose bool
		quiet   bool
	}

	// app bundles the loaded configuration with the collaborators built from it.
	app struct {
		cfg          *config.Config
		stdout       io.Writer
		stderr       io.Writer
		logger       *log.Logger
		updateLogger *log.Logger
	}
)

// loadApp loads the configuration and applies flag overrides. Flags win over
// ui.quiet and ui.verbose from config.
func loadApp(cmd *cobra.Command, flags *globalFlags) (*app, error) {
	cfg, err := config.NewProvider().Load(cmd.Context(), config.LoadOptions{
		ConfigFilePath: flags.cfgFile,
	})
	if err != nil {
		return nil, err
	}

	switch {
	case flags.quiet:
		cfg.UI.Quiet, cfg.UI.Verbose = true, false
	case flags.verbose:
		cfg.UI.Quiet, cfg.UI.Verbose = false, true
	}

	a := &app{
		cfg:    cfg,
		stdout: cmd.OutOrStdout(),
		stderr: cmd.ErrOrStderr(),
	}
	a.logger = newLogger(a.stderr, sessionLogPrefix, cfg.UI)
	a.updateLogger = newLogger(a.stderr, updateLogPrefix, cfg.UI)
	return a, nil
}

func newLogger(w io.Writer, prefix string, ui config.UIConfig) *log.Logger {
	l := log.NewWithOptions(w, log.Options{Prefix: prefix})
	switch {
	case ui.Quiet:
		l.SetLevel(log.ErrorLevel)
	case ui.Verbose:
		l.SetLevel(log.DebugLevel)
	default:
		l.SetLevel(log.InfoLevel)
	}
	return l
}

func (a *app) defaults() gexmod.CoordinateDefaults {
	return gexmod.CoordinateDefaults{
		Owner:         a.cfg.DefaultOwner,
		Version:       a.cfg.DefaultVersion,
		VersionLength: a.cfg.VersionLength,
	}
}

func (a *app) newChecker() *selfupdate.Checker {
	return selfupdate.NewChecker(Version,
		selfupdate.WithLatestURL(a.cfg.Update.LatestURL),
		selfupdate.WithUserAgent(a.cfg.Download.UserAgent+"/"+Version),
		selfupdate.WithTimeout(a.cfg.Download.Timeout))
}

// newDownloader wires the transport, schema compiler and update checker
// described by the configuration.
func (a *app) newDownloader() (*fetch.Downloader, error) {
	client := fetch.NewClient(
		fetch.WithUserAgent(a.cfg.Download.UserAgent),
		fetch.WithTimeout(a.cfg.Download.Timeout),
		fetch.WithMaxConns(a.cfg.Download.MaxConns))

	compiler, err := schemac.New(a.cfg.Schema.Command, schemac.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}

	return fetch.NewDownloader(fetch.Config{
		TempRoot:          a.cfg.TempRoot,
		RawBaseURL:        a.cfg.RawBaseURL,
		ManifestName:      a.cfg.ManifestName,
		Defaults:          a.defaults(),
		Attempts:          a.cfg.Download.Attempts,
		Backoff:           a.cfg.Download.Backoff,
		RewriteExtensions: a.cfg.Rewrite.Extensions,
		SchemaExtensions:  []string{a.cfg.Schema.Extension},
		UpdateCheck:       a.cfg.Update.Enabled,
		UpdateRepo:        a.cfg.Update.Repo,
		UpdateInstallDir:  a.cfg.UpdateInstallDir(),
	},
		fetch.WithGetter(client),
		fetch.WithSchemaCompiler(compiler),
		fetch.WithUpdateFinder(a.newChecker()),
		fetch.WithLogger(a.logger),
		fetch.WithUpdateLogger(a.updateLogger))
}
