// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"gex-cli/pkg/gexmod"
)

type (
	// moduleRequest is one scheduled module walk. Every dependency gets a
	// freshly built value.
	moduleRequest struct {
		coord        gexmod.Coordinate
		name         string
		source       string
		isDependency bool
		// root is the directory the module is installed under.
		root string
		// flat writes files directly into root.
		flat      bool
		force     bool
		noPersist bool
		noRewrite bool
	}

	// session is the state of one top-level invocation.
	session struct {
		d       *Downloader
		ctx     context.Context
		g       *errgroup.Group
		tracker *Tracker

		mu      sync.Mutex
		visited map[string]struct{}
		entry   string
		records []gexmod.LockedModule
	}
)

func newSession(ctx context.Context, d *Downloader) (*session, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	tracker := NewTracker(func(c Counters) {
		d.logger.Debug("queue changed", "modules", c.Modules, "files", c.Files)
	})
	return &session{
		d:       d,
		ctx:     gctx,
		g:       g,
		tracker: tracker,
		visited: make(map[string]struct{}),
	}, gctx
}

// wait blocks until the session drained or failed.
func (s *session) wait() error {
	waitErr := s.tracker.Wait(s.ctx)
	if err := s.g.Wait(); err != nil {
		return err
	}
	return waitErr
}

// schedule starts a walk for req unless its coordinate was already scheduled.
// The module counter is incremented before the walk's goroutine starts so a
// parent can never drain before its children are counted.
func (s *session) schedule(req moduleRequest) {
	key := req.root + "\x00" + req.coord.String()

	s.mu.Lock()
	if _, seen := s.visited[key]; seen {
		s.mu.Unlock()
		s.d.logger.Debug("skipping already added module", "coordinate", req.coord)
		return
	}
	s.visited[key] = struct{}{}
	s.mu.Unlock()

	s.d.logger.Debug("requested module", "name", req.name, "coordinate", req.coord)
	s.tracker.AddModule()
	s.g.Go(func() error {
		if err := s.walk(req); err != nil {
			return err
		}
		s.tracker.DoneModule()
		return nil
	})
}

func (s *session) walk(req moduleRequest) error {
	m, err := s.d.resolver.Resolve(s.ctx, req.coord, ResolveOptions{
		Name:      req.name,
		Source:    req.source,
		Force:     req.force,
		NoPersist: req.noPersist,
	})
	if err != nil {
		return err
	}

	dirName := req.name
	if dirName == "" {
		dirName = m.Name
	}

	if !req.isDependency {
		if err := s.setEntry(req.coord, dirName, m); err != nil {
			return err
		}
	}

	deps := make(map[string]gexmod.Coordinate, len(m.Dependencies))
	children := make([]moduleRequest, 0, len(m.Dependencies))
	for _, dep := range m.Dependencies {
		child, err := s.dependencyRequest(req, m, dep)
		if err != nil {
			return err
		}
		deps[dep.Name] = child.coord
		children = append(children, child)
	}

	var table gexmod.RewriteTable
	if !req.noRewrite {
		table = gexmod.NewRewriteTable(req.coord, dirName, m, deps)
	}

	for _, child := range children {
		s.schedule(child)
	}

	base := s.d.resolver.SourceBase(req.coord, req.source)
	files := m.SourceFiles()
	for _, file := range files {
		target, err := s.filePath(req, dirName, file)
		if err != nil {
			return &gexmod.ModuleError{Module: m.Name, Coordinate: req.coord, Err: err}
		}
		s.submit(Task{
			URL:     base + "/" + path.Clean(file),
			Path:    target,
			Rewrite: table,
			Force:   req.force,
		}, gexmod.HasExtension(file, s.d.cfg.SchemaExtensions))
	}

	if !req.noPersist {
		s.record(gexmod.LockedModule{
			Coordinate: req.coord.String(),
			Name:       m.Name,
			Dir:        dirName,
			Source:     base,
			Dependency: req.isDependency,
			Files:      files,
		})
	}
	return nil
}

func (s *session) setEntry(c gexmod.Coordinate, dirName string, m *gexmod.Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entry != "" {
		return nil
	}
	if m.Main == "" {
		return &gexmod.ModuleError{Module: m.Name, Coordinate: c, Err: gexmod.ErrNotRunnable}
	}
	s.entry = c.String() + "/" + dirName + "/" + path.Clean(m.Main)
	return nil
}

func (s *session) dependencyRequest(parent moduleRequest, m *gexmod.Manifest, dep gexmod.Dependency) (moduleRequest, error) {
	if !dep.HasSource() {
		return moduleRequest{}, &gexmod.ModuleError{
			Module:     m.Name,
			Coordinate: parent.coord,
			Err:        fmt.Errorf("%w: %q", gexmod.ErrMissingDependencySource, dep.Name),
		}
	}

	var (
		coord gexmod.Coordinate
		err   error
	)
	if dep.Repo != "" {
		coord, err = s.d.cfg.Defaults.New(dep.Repo, dep.Version)
	} else {
		coord, err = s.d.cfg.Defaults.ForSource(dep.Src, dep.Name, dep.Version)
	}
	if err != nil {
		return moduleRequest{}, &gexmod.ModuleError{Module: m.Name, Coordinate: parent.coord, Err: err}
	}

	return moduleRequest{
		coord:        coord,
		name:         dep.Name,
		source:       dep.Src,
		isDependency: true,
		root:         parent.root,
		force:        parent.force,
		noPersist:    parent.noPersist,
		noRewrite:    parent.noRewrite,
	}, nil
}

func (s *session) filePath(req moduleRequest, dirName, file string) (string, error) {
	if req.flat {
		return gexmod.SafeJoin(req.root, file)
	}
	layout := s.d.layout
	layout.Root = req.root
	return layout.FilePath(req.coord, dirName, file)
}

// submit counts the file before its goroutine starts and releases it only
// after the file (and its schema compilation) succeeded.
func (s *session) submit(task Task, schema bool) {
	s.tracker.AddFile()
	s.g.Go(func() error {
		_, cached, err := s.d.orch.Fetch(s.ctx, task)
		if err != nil {
			return err
		}
		if schema && !cached {
			if err := s.compileSchemas(filepath.Dir(task.Path)); err != nil {
				return err
			}
		}
		s.tracker.DoneFile()
		return nil
	})
}

func (s *session) compileSchemas(dir string) error {
	if s.d.schemas == nil {
		s.d.logger.Debug("no schema compiler configured", "dir", dir)
		return nil
	}
	s.d.logger.Debug("compiling schemas", "dir", dir)
	if err := s.d.schemas.Compile(s.ctx, dir); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSchemaCompile, dir, err)
	}
	return nil
}

func (s *session) record(m gexmod.LockedModule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, m)
}

func (s *session) snapshot() (string, []gexmod.LockedModule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry, slices.Clone(s.records)
}
