// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	lru "github.com/hashicorp/golang-lru/v2"

	"gex-cli/pkg/gexmod"
)

const (
	// DefaultRawBaseURL serves raw repository content.
	DefaultRawBaseURL = "https://raw.githubusercontent.com"

	defaultManifestCacheSize = 256
)

type (
	// ResolveOptions tunes a single manifest resolution.
	ResolveOptions struct {
		// Name selects an entry from an array manifest.
		Name string
		// Source overrides the derived raw content base URL.
		Source string
		// Force skips the local and in-memory caches.
		Force bool
		// NoPersist keeps a fetched manifest out of the local cache.
		NoPersist bool
	}

	// ManifestResolver obtains manifests from the local cache, falling back to
	// the network and persisting what it fetched.
	ManifestResolver struct {
		orch    *Orchestrator
		fs      FS
		layout  gexmod.Layout
		rawBase string
		memo    *lru.Cache[string, []byte]
		logger  *log.Logger
	}
)

// NewManifestResolver returns a resolver that caches under layout.Root.
func NewManifestResolver(orch *Orchestrator, fsys FS, layout gexmod.Layout, rawBase string, logger *log.Logger) (*ManifestResolver, error) {
	memo, err := lru.New[string, []byte](defaultManifestCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating manifest cache: %w", err)
	}
	if rawBase == "" {
		rawBase = DefaultRawBaseURL
	}
	return &ManifestResolver{
		orch:    orch,
		fs:      fsys,
		layout:  layout,
		rawBase: strings.TrimRight(rawBase, "/"),
		memo:    memo,
		logger:  orDiscard(logger),
	}, nil
}

// SourceBase returns the URL files of c are fetched relative to.
func (r *ManifestResolver) SourceBase(c gexmod.Coordinate, override string) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}
	return r.rawBase + "/" + c.String()
}

// Resolve returns the manifest entry for c.
func (r *ManifestResolver) Resolve(ctx context.Context, c gexmod.Coordinate, opts ResolveOptions) (*gexmod.Manifest, error) {
	key := c.String()

	if !opts.Force {
		if m, ok, err := r.fromCache(c, opts.Name); ok {
			return m, err
		}
	}

	manifestName := filepath.Base(r.layout.ManifestPath(c))
	url := r.SourceBase(c, opts.Source) + "/" + manifestName
	payload, _, err := r.orch.Fetch(ctx, Task{URL: url, ParseJSON: true})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &gexmod.ModuleError{Module: opts.Name, Coordinate: c, Err: fmt.Errorf("%w: %w", gexmod.ErrManifestUnavailable, err)}
	}

	m, err := gexmod.ParseManifest(payload, opts.Name)
	if errors.Is(err, gexmod.ErrInvalidManifest) {
		return nil, &gexmod.ModuleError{Module: opts.Name, Coordinate: c, Err: fmt.Errorf("%w: %w", gexmod.ErrManifestUnavailable, err)}
	}

	r.memo.Add(key, payload)
	if !opts.NoPersist {
		r.persist(c, payload)
	}

	if err != nil {
		return nil, &gexmod.ModuleError{Module: opts.Name, Coordinate: c, Err: err}
	}
	r.logger.Debug("obtained manifest", "module", m.Name, "coordinate", key)
	return m, nil
}

// fromCache parses the memoized or persisted manifest for c. ok is false when
// no usable copy exists and the network should be consulted.
func (r *ManifestResolver) fromCache(c gexmod.Coordinate, name string) (*gexmod.Manifest, bool, error) {
	key := c.String()
	payload, ok := r.memo.Get(key)
	if !ok {
		path := r.layout.ManifestPath(c)
		if !r.fs.Exists(path) {
			return nil, false, nil
		}
		data, err := r.fs.ReadFile(path)
		if err != nil {
			r.logger.Debug("cannot read cached manifest", "path", path, "error", err)
			return nil, false, nil
		}
		payload = data
	}

	m, err := gexmod.ParseManifest(payload, name)
	switch {
	case errors.Is(err, gexmod.ErrInvalidManifest):
		r.logger.Debug("ignoring unparseable cached manifest", "coordinate", key, "error", err)
		r.memo.Remove(key)
		return nil, false, nil
	case err != nil:
		return nil, true, &gexmod.ModuleError{Module: name, Coordinate: c, Err: err}
	}

	r.memo.Add(key, payload)
	r.logger.Debug("found cached manifest", "module", m.Name, "coordinate", key)
	return m, true, nil
}

func (r *ManifestResolver) persist(c gexmod.Coordinate, payload []byte) {
	path := r.layout.ManifestPath(c)
	pretty, err := gexmod.Indent(payload)
	if err == nil {
		err = r.orch.ensureDir(filepath.Dir(path))
	}
	if err == nil {
		err = r.fs.WriteFile(path, pretty)
	}
	if err != nil {
		r.logger.Warn("could not cache manifest", "path", path, "error", err)
	}
}
