// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"gex-cli/internal/issue"
	"gex-cli/pkg/cueutil"
)

const (
	// AppName is the application name.
	AppName = "gex"
	// EnvPrefix prefixes environment overrides (GEX_DOWNLOAD_ATTEMPTS).
	EnvPrefix = "GEX"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"
	// DefaultEnvFile is loaded from the working directory when present.
	DefaultEnvFile = ".env"
)

//go:embed config_schema.cue
var configSchema []byte

// ConfigDir returns the gex configuration directory under the platform user
// config directory ($XDG_CONFIG_HOME, ~/Library/Application Support or %AppData%).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. It returns the config file that was used, if any.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, "", loadError(opts.EnvFile, err, "Check the KEY=VALUE syntax of the .env file")
	}

	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	resolvedPath, err := resolveConfigFile(opts)
	if err != nil {
		return nil, "", err
	}
	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", loadError(resolvedPath, err,
				"Check that the file contains valid CUE syntax",
				"Verify the configuration values match the expected schema",
				"Use 'gex config show' to see the effective configuration")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", loadError(resolvedPath, fmt.Errorf("failed to parse config: %w", err),
			"Check the GEX_* environment variables for malformed values")
	}

	if ok, errs := cfg.IsValid(); !ok {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Fix the reported keys in the config file or the GEX_* environment").
			WithIssue(issue.ConfigLoadFailedID).
			Wrap(&InvalidConfigError{FieldErrors: errs}).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

func setDefaults(v *viper.Viper, defaults *Config) {
	v.SetDefault("temp_root", defaults.TempRoot)
	v.SetDefault("default_owner", defaults.DefaultOwner)
	v.SetDefault("raw_base_url", defaults.RawBaseURL)
	v.SetDefault("manifest_name", defaults.ManifestName)
	v.SetDefault("default_version", defaults.DefaultVersion)
	v.SetDefault("version_length", defaults.VersionLength)
	v.SetDefault("download.attempts", defaults.Download.Attempts)
	v.SetDefault("download.timeout", defaults.Download.Timeout)
	v.SetDefault("download.backoff", defaults.Download.Backoff)
	v.SetDefault("download.max_conns", defaults.Download.MaxConns)
	v.SetDefault("download.user_agent", defaults.Download.UserAgent)
	v.SetDefault("update.enabled", defaults.Update.Enabled)
	v.SetDefault("update.latest_url", defaults.Update.LatestURL)
	v.SetDefault("update.repo", defaults.Update.Repo)
	v.SetDefault("update.install_dir", defaults.Update.InstallDir)
	v.SetDefault("schema.extension", defaults.Schema.Extension)
	v.SetDefault("schema.command", defaults.Schema.Command)
	v.SetDefault("rewrite.extensions", defaults.Rewrite.Extensions)
	v.SetDefault("ui.quiet", defaults.UI.Quiet)
	v.SetDefault("ui.verbose", defaults.UI.Verbose)
}

// resolveConfigFile picks the config file: the explicit path, then the config
// directory, then the working directory. A missing default file is not an error.
func resolveConfigFile(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Check that the file exists and is readable").
				WithIssue(issue.ConfigLoadFailedID).
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir := opts.ConfigDirPath
	if cfgDir == "" {
		// Without a user config directory only the working directory is searched.
		if dir, err := ConfigDir(); err == nil {
			cfgDir = dir
		}
	}

	name := ConfigFileName + "." + ConfigFileExt
	if cfgDir != "" {
		if p := filepath.Join(cfgDir, name); fileExists(p) {
			return p, nil
		}
	}
	if fileExists(name) {
		return name, nil
	}
	return "", nil
}

// loadEnvFile loads KEY=VALUE pairs into the process environment. Variables
// that are already set win.
func loadEnvFile(path string) error {
	if path == "" {
		path = DefaultEnvFile
	}
	err := godotenv.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// loadCUEIntoViper validates a CUE file against #Config and merges its
// contents into Viper, preserving defaults and env overrides.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	unified, err := cueutil.Validate(configSchema, data, "#Config",
		cueutil.WithConcrete(false),
		cueutil.WithFilename(path))
	if err != nil {
		return err
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return cueutil.FormatError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}
	return nil
}

func loadError(resource string, err error, suggestions ...string) error {
	return issue.NewErrorContext().
		WithOperation("load configuration").
		WithResource(resource).
		WithSuggestions(suggestions...).
		WithIssue(issue.ConfigLoadFailedID).
		Wrap(err).
		BuildError()
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Save writes cfg as CUE to the config file in dir, creating dir if needed.
func Save(cfg *Config, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	cfgPath := filepath.Join(dir, ConfigFileName+"."+ConfigFileExt)
	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(cfg)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return cfgPath, nil
}

// GenerateCUE renders cfg as a config file that loads back into cfg.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// gex configuration file\n\n")

	fmt.Fprintf(&sb, "temp_root: %q\n", cfg.TempRoot)
	fmt.Fprintf(&sb, "default_owner: %q\n", cfg.DefaultOwner)
	fmt.Fprintf(&sb, "raw_base_url: %q\n", cfg.RawBaseURL)
	fmt.Fprintf(&sb, "manifest_name: %q\n", cfg.ManifestName)
	fmt.Fprintf(&sb, "default_version: %q\n", cfg.DefaultVersion)
	fmt.Fprintf(&sb, "version_length: %d\n", cfg.VersionLength)

	sb.WriteString("\ndownload: {\n")
	fmt.Fprintf(&sb, "\tattempts: %d\n", cfg.Download.Attempts)
	fmt.Fprintf(&sb, "\ttimeout: %q\n", cfg.Download.Timeout.String())
	fmt.Fprintf(&sb, "\tbackoff: %q\n", cfg.Download.Backoff.String())
	fmt.Fprintf(&sb, "\tmax_conns: %d\n", cfg.Download.MaxConns)
	fmt.Fprintf(&sb, "\tuser_agent: %q\n", cfg.Download.UserAgent)
	sb.WriteString("}\n")

	sb.WriteString("\nupdate: {\n")
	fmt.Fprintf(&sb, "\tenabled: %v\n", cfg.Update.Enabled)
	fmt.Fprintf(&sb, "\tlatest_url: %q\n", cfg.Update.LatestURL)
	fmt.Fprintf(&sb, "\trepo: %q\n", cfg.Update.Repo)
	if cfg.Update.InstallDir != "" {
		fmt.Fprintf(&sb, "\tinstall_dir: %q\n", cfg.Update.InstallDir)
	}
	sb.WriteString("}\n")

	sb.WriteString("\nschema: {\n")
	fmt.Fprintf(&sb, "\textension: %q\n", cfg.Schema.Extension)
	fmt.Fprintf(&sb, "\tcommand: %q\n", cfg.Schema.Command)
	sb.WriteString("}\n")

	sb.WriteString("\nrewrite: {\n")
	sb.WriteString("\textensions: [")
	for i, ext := range cfg.Rewrite.Extensions {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%q", ext)
	}
	sb.WriteString("]\n")
	sb.WriteString("}\n")

	sb.WriteString("\nui: {\n")
	fmt.Fprintf(&sb, "\tquiet: %v\n", cfg.UI.Quiet)
	fmt.Fprintf(&sb, "\tverbose: %v\n", cfg.UI.Verbose)
	sb.WriteString("}\n")

	return sb.String()
}
