// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gex-cli/internal/issue"
	"gex-cli/internal/testutil"
)

// isolated returns options that ignore the user's config dir and .env file.
func isolated(t *testing.T) LoadOptions {
	t.Helper()
	dir := t.TempDir()
	return LoadOptions{
		ConfigDirPath: dir,
		EnvFile:       filepath.Join(dir, "missing.env"),
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.DefaultOwner != "Rafostar" {
		t.Errorf("DefaultOwner = %q, want Rafostar", cfg.DefaultOwner)
	}
	if cfg.ManifestName != "gex.json" {
		t.Errorf("ManifestName = %q, want gex.json", cfg.ManifestName)
	}
	if cfg.Download.Attempts != 3 {
		t.Errorf("Download.Attempts = %d, want 3", cfg.Download.Attempts)
	}
	if cfg.Download.Timeout != 5*time.Second {
		t.Errorf("Download.Timeout = %s, want 5s", cfg.Download.Timeout)
	}
	if !cfg.Update.Enabled {
		t.Error("expected the update check to be enabled by default")
	}
	if filepath.Base(cfg.TempRoot) != "gex" {
		t.Errorf("TempRoot = %q, want a gex directory", cfg.TempRoot)
	}
	if ok, errs := cfg.IsValid(); !ok {
		t.Errorf("DefaultConfig().IsValid() errors = %v", errs)
	}
}

func TestUpdateInstallDir(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TempRoot = filepath.Join("var", "cache", "gex")
	if got, want := cfg.UpdateInstallDir(), filepath.Join("var", "cache", "gex-update"); got != want {
		t.Errorf("UpdateInstallDir() = %q, want %q", got, want)
	}

	cfg.Update.InstallDir = "elsewhere"
	if got := cfg.UpdateInstallDir(); got != "elsewhere" {
		t.Errorf("UpdateInstallDir() = %q, want elsewhere", got)
	}
}

func TestConfigDir(t *testing.T) {
	base, cleanup := testutil.SetConfigHome(t, t.TempDir())
	defer cleanup()

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if dir != filepath.Join(base, AppName) {
		t.Errorf("ConfigDir() = %q, want %q", dir, filepath.Join(base, AppName))
	}
}

func TestLoad_ReturnsDefaultsWhenNoConfigFile(t *testing.T) {
	cfg, path, err := loadWithOptions(context.Background(), isolated(t))
	if err != nil {
		t.Fatalf("loadWithOptions() error = %v", err)
	}
	if path != "" {
		t.Errorf("resolved path = %q, want none", path)
	}
	if cfg.RawBaseURL != DefaultConfig().RawBaseURL {
		t.Errorf("RawBaseURL = %q, want the default", cfg.RawBaseURL)
	}
}

func TestLoad_ConfigDirFile(t *testing.T) {
	opts := isolated(t)
	testutil.MustWriteFile(t, filepath.Join(opts.ConfigDirPath, "config.cue"), `
default_owner: "acme"
download: {
	attempts: 5
	timeout:  "750ms"
}
rewrite: extensions: [".js", ".mjs"]
`)

	cfg, path, err := loadWithOptions(context.Background(), opts)
	if err != nil {
		t.Fatalf("loadWithOptions() error = %v", err)
	}
	if path != filepath.Join(opts.ConfigDirPath, "config.cue") {
		t.Errorf("resolved path = %q", path)
	}
	if cfg.DefaultOwner != "acme" {
		t.Errorf("DefaultOwner = %q, want acme", cfg.DefaultOwner)
	}
	if cfg.Download.Attempts != 5 {
		t.Errorf("Download.Attempts = %d, want 5", cfg.Download.Attempts)
	}
	if cfg.Download.Timeout != 750*time.Millisecond {
		t.Errorf("Download.Timeout = %s, want 750ms", cfg.Download.Timeout)
	}
	if got := strings.Join(cfg.Rewrite.Extensions, ","); got != ".js,.mjs" {
		t.Errorf("Rewrite.Extensions = %q", got)
	}
	// Untouched keys keep their defaults.
	if cfg.Download.MaxConns != DefaultConfig().Download.MaxConns {
		t.Errorf("Download.MaxConns = %d, want the default", cfg.Download.MaxConns)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	opts := isolated(t)
	testutil.MustWriteFile(t, filepath.Join(opts.ConfigDirPath, "config.cue"), "download: attempts: 5\n")
	t.Setenv("GEX_DOWNLOAD_ATTEMPTS", "7")
	t.Setenv("GEX_UI_QUIET", "true")

	cfg, _, err := loadWithOptions(context.Background(), opts)
	if err != nil {
		t.Fatalf("loadWithOptions() error = %v", err)
	}
	if cfg.Download.Attempts != 7 {
		t.Errorf("Download.Attempts = %d, want 7", cfg.Download.Attempts)
	}
	if !cfg.UI.Quiet {
		t.Error("expected GEX_UI_QUIET to enable quiet mode")
	}
}

func TestLoad_EnvFile(t *testing.T) {
	opts := isolated(t)
	opts.EnvFile = filepath.Join(opts.ConfigDirPath, "test.env")
	testutil.MustWriteFile(t, opts.EnvFile, "GEX_UPDATE_REPO=acme/gex-fork\n")

	// Register the cleanup, then clear the variable so the file can set it.
	t.Setenv("GEX_UPDATE_REPO", "")
	if err := os.Unsetenv("GEX_UPDATE_REPO"); err != nil {
		t.Fatal(err)
	}

	cfg, _, err := loadWithOptions(context.Background(), opts)
	if err != nil {
		t.Fatalf("loadWithOptions() error = %v", err)
	}
	if cfg.Update.Repo != "acme/gex-fork" {
		t.Errorf("Update.Repo = %q, want acme/gex-fork", cfg.Update.Repo)
	}
}

func TestLoad_CustomPath_NotFound_ReturnsError(t *testing.T) {
	opts := isolated(t)
	opts.ConfigFilePath = filepath.Join(opts.ConfigDirPath, "nope.cue")

	_, _, err := loadWithOptions(context.Background(), opts)
	var ae *issue.ActionableError
	if !errors.As(err, &ae) {
		t.Fatalf("loadWithOptions() error = %v, want *issue.ActionableError", err)
	}
	if ae.Resource != opts.ConfigFilePath {
		t.Errorf("Resource = %q, want %q", ae.Resource, opts.ConfigFilePath)
	}
	if ae.Issue != issue.ConfigLoadFailedID {
		t.Errorf("Issue = %d, want ConfigLoadFailedID", ae.Issue)
	}
}

func TestLoad_InvalidFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax error", "download: {attempts: \n"},
		{"unknown key", "color: \"blue\"\n"},
		{"wrong type", "download: attempts: \"three\"\n"},
		{"out of range", "download: attempts: 0\n"},
		{"bad duration", "download: timeout: \"soon\"\n"},
		{"relative extension", "rewrite: extensions: [\"js\"]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := isolated(t)
			opts.ConfigFilePath = filepath.Join(opts.ConfigDirPath, "custom.cue")
			testutil.MustWriteFile(t, opts.ConfigFilePath, tt.content)

			_, _, err := loadWithOptions(context.Background(), opts)
			var ae *issue.ActionableError
			if !errors.As(err, &ae) {
				t.Fatalf("loadWithOptions() error = %v, want *issue.ActionableError", err)
			}
			if !ae.HasSuggestions() {
				t.Error("expected suggestions")
			}
		})
	}
}

func TestLoad_ValidationError(t *testing.T) {
	opts := isolated(t)
	t.Setenv("GEX_UI_QUIET", "true")
	t.Setenv("GEX_UI_VERBOSE", "true")

	_, _, err := loadWithOptions(context.Background(), opts)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("loadWithOptions() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoad_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := loadWithOptions(ctx, isolated(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("loadWithOptions() error = %v, want context.Canceled", err)
	}
}

func TestGenerateCUE_RoundTrip(t *testing.T) {
	want := DefaultConfig()
	want.TempRoot = filepath.Join(t.TempDir(), "cache")
	want.DefaultOwner = "acme"
	want.Download.Backoff = 0
	want.Update.InstallDir = filepath.Join(t.TempDir(), "upd")
	want.Rewrite.Extensions = []string{".js", ".mjs"}

	opts := isolated(t)
	path, err := Save(want, opts.ConfigDirPath)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, resolved, err := loadWithOptions(context.Background(), opts)
	if err != nil {
		t.Fatalf("loadWithOptions() error = %v\n%s", err, testutil.MustReadFile(t, path))
	}
	if resolved != path {
		t.Errorf("resolved path = %q, want %q", resolved, path)
	}
	if GenerateCUE(got) != GenerateCUE(want) {
		t.Errorf("round trip mismatch:\n got: %s\nwant: %s", GenerateCUE(got), GenerateCUE(want))
	}
}

func TestProviderLoad(t *testing.T) {
	cfg, err := NewProvider().Load(context.Background(), isolated(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ManifestName != "gex.json" {
		t.Errorf("ManifestName = %q, want gex.json", cfg.ManifestName)
	}
}

func TestLoad_WorkingDirectoryFiles(t *testing.T) {
	wd := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(wd, "config.cue"), "manifest_name: \"module.json\"\n")
	testutil.MustWriteFile(t, filepath.Join(wd, ".env"), "GEX_DEFAULT_VERSION=main\n")
	t.Setenv("GEX_DEFAULT_VERSION", "")
	if err := os.Unsetenv("GEX_DEFAULT_VERSION"); err != nil {
		t.Fatal(err)
	}
	defer testutil.MustChdir(t, wd)()

	cfg, path, err := loadWithOptions(context.Background(), LoadOptions{ConfigDirPath: t.TempDir()})
	if err != nil {
		t.Fatalf("loadWithOptions() error = %v", err)
	}
	if path != "config.cue" {
		t.Errorf("resolved path = %q, want config.cue", path)
	}
	if cfg.ManifestName != "module.json" {
		t.Errorf("ManifestName = %q, want module.json", cfg.ManifestName)
	}
	if cfg.DefaultVersion != "main" {
		t.Errorf("DefaultVersion = %q, want main from .env", cfg.DefaultVersion)
	}
}
