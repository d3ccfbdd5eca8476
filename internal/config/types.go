// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultOwner         = "Rafostar"
	defaultRawBaseURL    = "https://raw.githubusercontent.com"
	defaultManifestName  = "gex.json"
	defaultVersion       = "master"
	defaultVersionLength = 7

	defaultAttempts  = 3
	defaultTimeout   = 5 * time.Second
	defaultBackoff   = 200 * time.Millisecond
	defaultMaxConns  = 4
	defaultUserAgent = "gex"

	defaultLatestURL  = "https://github.com/Rafostar/gex/releases/latest"
	defaultUpdateRepo = "Rafostar/gex"

	defaultSchemaExtension = ".gschema.xml"
	defaultSchemaCommand   = `glib-compile-schemas "$GEX_SCHEMA_DIR"`
)

var (
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// Config holds the gex settings.
	Config struct {
		// TempRoot is where manifests, modules and lock files are cached.
		TempRoot string `json:"temp_root" mapstructure:"temp_root"`
		// DefaultOwner prefixes repository references without an owner.
		DefaultOwner   string `json:"default_owner" mapstructure:"default_owner"`
		RawBaseURL     string `json:"raw_base_url" mapstructure:"raw_base_url"`
		ManifestName   string `json:"manifest_name" mapstructure:"manifest_name"`
		DefaultVersion string `json:"default_version" mapstructure:"default_version"`
		// VersionLength truncates versions; 0 disables truncation.
		VersionLength int `json:"version_length" mapstructure:"version_length"`

		Download DownloadConfig `json:"download" mapstructure:"download"`
		Update   UpdateConfig   `json:"update" mapstructure:"update"`
		Schema   SchemaConfig   `json:"schema" mapstructure:"schema"`
		Rewrite  RewriteConfig  `json:"rewrite" mapstructure:"rewrite"`
		UI       UIConfig       `json:"ui" mapstructure:"ui"`
	}

	// DownloadConfig tunes the HTTP transport and retry loop.
	DownloadConfig struct {
		Attempts  int           `json:"attempts" mapstructure:"attempts"`
		Timeout   time.Duration `json:"timeout" mapstructure:"timeout"`
		Backoff   time.Duration `json:"backoff" mapstructure:"backoff"`
		MaxConns  int           `json:"max_conns" mapstructure:"max_conns"`
		UserAgent string        `json:"user_agent" mapstructure:"user_agent"`
	}

	// UpdateConfig controls the self-update pipeline.
	UpdateConfig struct {
		// Enabled turns on the update check run when the temp root is first created.
		Enabled   bool   `json:"enabled" mapstructure:"enabled"`
		LatestURL string `json:"latest_url" mapstructure:"latest_url"`
		Repo      string `json:"repo" mapstructure:"repo"`
		// InstallDir defaults to a gex-update directory next to the temp root.
		InstallDir string `json:"install_dir" mapstructure:"install_dir"`
	}

	// SchemaConfig controls settings schema compilation.
	SchemaConfig struct {
		Extension string `json:"extension" mapstructure:"extension"`
		// Command is run through the shell interpreter with GEX_SCHEMA_DIR set.
		Command string `json:"command" mapstructure:"command"`
	}

	// RewriteConfig selects which downloaded files get their references rewritten.
	RewriteConfig struct {
		Extensions []string `json:"extensions" mapstructure:"extensions"`
	}

	// UIConfig controls output verbosity.
	UIConfig struct {
		Quiet   bool `json:"quiet" mapstructure:"quiet"`
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// InvalidConfigError is returned when a loaded Config is inconsistent.
	// It wraps ErrInvalidConfig for errors.Is() compatibility.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	return &Config{
		TempRoot:       filepath.Join(os.TempDir(), "gex"),
		DefaultOwner:   defaultOwner,
		RawBaseURL:     defaultRawBaseURL,
		ManifestName:   defaultManifestName,
		DefaultVersion: defaultVersion,
		VersionLength:  defaultVersionLength,
		Download: DownloadConfig{
			Attempts:  defaultAttempts,
			Timeout:   defaultTimeout,
			Backoff:   defaultBackoff,
			MaxConns:  defaultMaxConns,
			UserAgent: defaultUserAgent,
		},
		Update: UpdateConfig{
			Enabled:   true,
			LatestURL: defaultLatestURL,
			Repo:      defaultUpdateRepo,
		},
		Schema: SchemaConfig{
			Extension: defaultSchemaExtension,
			Command:   defaultSchemaCommand,
		},
		Rewrite: RewriteConfig{
			Extensions: []string{".js"},
		},
	}
}

// UpdateInstallDir returns the update directory, deriving it from the temp
// root when unset.
func (c *Config) UpdateInstallDir() string {
	if c.Update.InstallDir != "" {
		return c.Update.InstallDir
	}
	return filepath.Join(filepath.Dir(filepath.Clean(c.TempRoot)), "gex-update")
}

// IsValid reports whether c can drive a session. Rules the CUE schema cannot
// express across sources (env overrides bypass it) are checked here.
func (c *Config) IsValid() (bool, []error) {
	var errs []error
	if strings.TrimSpace(c.TempRoot) == "" {
		errs = append(errs, errors.New("temp_root must not be empty"))
	}
	if c.Download.Attempts < 1 {
		errs = append(errs, fmt.Errorf("download.attempts must be at least 1, got %d", c.Download.Attempts))
	}
	if c.Download.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("download.timeout must be positive, got %s", c.Download.Timeout))
	}
	if c.Download.Backoff < 0 {
		errs = append(errs, fmt.Errorf("download.backoff must not be negative, got %s", c.Download.Backoff))
	}
	if c.Download.MaxConns < 1 {
		errs = append(errs, fmt.Errorf("download.max_conns must be at least 1, got %d", c.Download.MaxConns))
	}
	if c.VersionLength < 0 {
		errs = append(errs, fmt.Errorf("version_length must not be negative, got %d", c.VersionLength))
	}
	if c.UI.Quiet && c.UI.Verbose {
		errs = append(errs, errors.New("ui.quiet and ui.verbose are mutually exclusive"))
	}
	if len(errs) > 0 {
		return false, errs
	}
	return true, nil
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s): %v", len(e.FieldErrors), errors.Join(e.FieldErrors...))
}

func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
