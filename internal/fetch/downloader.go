// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"gex-cli/pkg/gexmod"
)

// DefaultUpdateRepo is the repository gex updates itself from.
const DefaultUpdateRepo = "Rafostar/gex"

type (
	// SchemaCompiler compiles the settings schemas found in dir.
	SchemaCompiler interface {
		Compile(ctx context.Context, dir string) error
	}

	// UpdateFinder reports whether a newer release of gex exists.
	UpdateFinder interface {
		FindUpdate(ctx context.Context) (version string, found bool, err error)
	}

	// Config holds the session settings of a Downloader.
	Config struct {
		// TempRoot is where modules and manifests are cached.
		TempRoot          string
		RawBaseURL        string
		ManifestName      string
		Defaults          gexmod.CoordinateDefaults
		Attempts          int
		Backoff           time.Duration
		RewriteExtensions []string
		SchemaExtensions  []string

		// UpdateCheck enables the first-run update check.
		UpdateCheck      bool
		UpdateRepo       string
		UpdateInstallDir string
	}

	// Request is a top-level download request.
	Request struct {
		Coordinate gexmod.Coordinate
		// Name selects a module from an array manifest and names its directory.
		Name string
		// Source overrides the derived raw content base URL.
		Source       string
		IsDependency bool
		// Refresh re-fetches manifests and files that are already cached.
		Refresh bool
	}

	// Result describes a completed session.
	Result struct {
		Root gexmod.Coordinate
		// EntryPoint is the slash separated path of the main file relative to
		// the temp root; empty when nothing is runnable.
		EntryPoint string
		Modules    []gexmod.LockedModule
		// Registry maps the logical import roots (module owners) to directories.
		Registry map[string]string
	}

	// Downloader drives sessions. It is safe to run one session at a time.
	Downloader struct {
		cfg          Config
		getter       Getter
		fs           FS
		schemas      SchemaCompiler
		updates      UpdateFinder
		logger       *log.Logger
		updateLogger *log.Logger
		now          func() time.Time

		layout   gexmod.Layout
		orch     *Orchestrator
		resolver *ManifestResolver
		hadError atomic.Bool
	}

	// Option configures a Downloader.
	Option func(*Downloader)
)

// WithGetter replaces the HTTP transport.
func WithGetter(g Getter) Option {
	return func(d *Downloader) { d.getter = g }
}

// WithFS replaces the filesystem.
func WithFS(fsys FS) Option {
	return func(d *Downloader) { d.fs = fsys }
}

// WithSchemaCompiler sets the collaborator that compiles settings schemas.
func WithSchemaCompiler(c SchemaCompiler) Option {
	return func(d *Downloader) { d.schemas = c }
}

// WithUpdateFinder sets the release checker used on first run and by InstallUpdate.
func WithUpdateFinder(f UpdateFinder) Option {
	return func(d *Downloader) { d.updates = f }
}

// WithLogger sets the session logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Downloader) { d.logger = l }
}

// WithUpdateLogger sets the logger used by the update pipeline.
func WithUpdateLogger(l *log.Logger) Option {
	return func(d *Downloader) { d.updateLogger = l }
}

// WithClock overrides the time source used for lock files.
func WithClock(now func() time.Time) Option {
	return func(d *Downloader) { d.now = now }
}

// NewDownloader returns a Downloader for cfg.
func NewDownloader(cfg Config, opts ...Option) (*Downloader, error) {
	if cfg.TempRoot == "" {
		return nil, errors.New("fetch: temp root is required")
	}
	if cfg.Defaults == (gexmod.CoordinateDefaults{}) {
		cfg.Defaults = gexmod.DefaultCoordinateDefaults()
	}
	if cfg.UpdateRepo == "" {
		cfg.UpdateRepo = DefaultUpdateRepo
	}
	if cfg.UpdateInstallDir == "" {
		cfg.UpdateInstallDir = filepath.Join(cfg.TempRoot, "..", "gex-update")
	}
	if cfg.SchemaExtensions == nil {
		cfg.SchemaExtensions = []string{".gschema.xml"}
	}

	d := &Downloader{
		cfg: cfg,
		fs:  OSFS{},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.getter == nil {
		d.getter = NewClient()
	}
	d.logger = orDiscard(d.logger)
	if d.updateLogger == nil {
		d.updateLogger = d.logger
	}

	d.layout = gexmod.Layout{Root: cfg.TempRoot, ManifestName: cfg.ManifestName}
	d.orch = NewOrchestrator(d.getter, d.fs, OrchestratorConfig{
		Attempts:          cfg.Attempts,
		Backoff:           cfg.Backoff,
		RewriteExtensions: cfg.RewriteExtensions,
	}, d.logger)

	resolver, err := NewManifestResolver(d.orch, d.fs, d.layout, cfg.RawBaseURL, d.logger)
	if err != nil {
		return nil, err
	}
	d.resolver = resolver
	return d, nil
}

// Defaults returns the coordinate normalization settings.
func (d *Downloader) Defaults() gexmod.CoordinateDefaults { return d.cfg.Defaults }

// Layout returns the temp root layout.
func (d *Downloader) Layout() gexmod.Layout { return d.layout }

// HadError reports whether any session of d failed.
func (d *Downloader) HadError() bool { return d.hadError.Load() }

// DownloadModule fetches req's module and everything it depends on. It
// returns once all scheduled work completed, or with the first error.
func (d *Downloader) DownloadModule(ctx context.Context, req Request) (*Result, error) {
	if req.Coordinate.IsZero() {
		d.hadError.Store(true)
		return nil, &gexmod.InvalidCoordinateError{Reason: "empty coordinate"}
	}
	if err := req.Coordinate.Validate(); err != nil {
		d.hadError.Store(true)
		return nil, err
	}

	firstRun := !d.fs.Exists(d.cfg.TempRoot)

	s, sctx := newSession(ctx, d)
	d.logger.Info("downloading modules...")

	// The update check runs beside the main walk under its own root; the
	// tracker waits for both.
	if firstRun && d.cfg.UpdateCheck && d.updates != nil {
		s.tracker.AddModule()
		s.g.Go(func() error {
			if err := d.checkUpdate(sctx, s); err != nil {
				return err
			}
			s.tracker.DoneModule()
			return nil
		})
	}

	s.schedule(moduleRequest{
		coord:        req.Coordinate,
		name:         req.Name,
		source:       req.Source,
		isDependency: req.IsDependency,
		root:         d.cfg.TempRoot,
		force:        req.Refresh,
	})

	if err := s.wait(); err != nil {
		d.hadError.Store(true)
		return nil, err
	}
	d.logger.Info("download complete")

	entry, modules := s.snapshot()
	result := &Result{
		Root:       req.Coordinate,
		EntryPoint: entry,
		Modules:    modules,
		Registry:   d.registry(modules),
	}
	if !req.IsDependency {
		d.writeLock(result)
	}
	return result, nil
}

// InstallUpdate checks for a newer release and installs it into the update
// directory. It reports the installed version.
func (d *Downloader) InstallUpdate(ctx context.Context) (string, bool, error) {
	if d.updates == nil {
		return "", false, errors.New("fetch: no update finder configured")
	}

	version, found, err := d.updates.FindUpdate(ctx)
	if err != nil || !found {
		return version, false, err
	}
	d.updateLogger.Info("found update", "version", version)

	s, _ := newSession(ctx, d)
	if err := d.scheduleUpdate(s, version); err != nil {
		return version, false, err
	}
	if err := s.wait(); err != nil {
		d.hadError.Store(true)
		return version, false, err
	}
	d.updateLogger.Info("update installed", "version", version, "dir", d.cfg.UpdateInstallDir)
	return version, true, nil
}

// checkUpdate runs as tracked session work. Failing to check is only logged;
// a found update is installed through the same session.
func (d *Downloader) checkUpdate(ctx context.Context, s *session) error {
	d.updateLogger.Debug("checking for gex update...")
	version, found, err := d.updates.FindUpdate(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.updateLogger.Warn("update check failed", "error", err)
		return nil
	}
	if !found {
		return nil
	}
	d.updateLogger.Info("found update", "version", version)
	return d.scheduleUpdate(s, version)
}

func (d *Downloader) scheduleUpdate(s *session, version string) error {
	coord, err := d.cfg.Defaults.New(d.cfg.UpdateRepo, version)
	if err != nil {
		return fmt.Errorf("update coordinate: %w", err)
	}
	s.schedule(moduleRequest{
		coord:        coord,
		isDependency: true,
		root:         d.cfg.UpdateInstallDir,
		flat:         true,
		force:        true,
		noPersist:    true,
		noRewrite:    true,
	})
	return nil
}

// registry maps each module owner to its directory under the temp root.
func (d *Downloader) registry(modules []gexmod.LockedModule) map[string]string {
	reg := make(map[string]string, len(modules))
	for _, m := range modules {
		c, err := d.cfg.Defaults.Parse(m.Coordinate)
		if err != nil {
			continue
		}
		reg[c.Owner] = filepath.Join(d.cfg.TempRoot, c.Owner)
	}
	return reg
}

func (d *Downloader) writeLock(result *Result) {
	lock := gexmod.NewLockFile(result.Root, result.EntryPoint, result.Modules, d.now())
	path := d.layout.LockPath(result.Root)
	data, err := lock.Marshal()
	if err == nil {
		err = d.fs.MkdirAll(filepath.Dir(path))
	}
	if err == nil {
		err = d.fs.WriteFile(path, data)
	}
	if err != nil {
		d.logger.Warn("could not write lock file", "path", path, "error", err)
	}
}

// Locked loads the result of an earlier session rooted at root from its lock
// file, verifying that every recorded file is still present.
func (d *Downloader) Locked(root gexmod.Coordinate) (*Result, error) {
	path := d.layout.LockPath(root)
	data, err := d.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", ErrFilesystem, path, err)
	}
	lock, err := gexmod.ParseLockFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var missing []string
	for _, m := range lock.Modules {
		c, err := d.cfg.Defaults.Parse(m.Coordinate)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		for _, f := range m.Files {
			p, err := d.layout.FilePath(c, m.Dir, f)
			if err != nil || !d.fs.Exists(p) {
				missing = append(missing, m.Coordinate+"/"+m.Dir+"/"+f)
			}
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("%w: cached files missing: %v", ErrFilesystem, missing)
	}

	return &Result{
		Root:       root,
		EntryPoint: lock.EntryPoint,
		Modules:    lock.Modules,
		Registry:   d.registry(lock.Modules),
	}, nil
}
