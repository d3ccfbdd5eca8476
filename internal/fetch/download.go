// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"gex-cli/pkg/gexmod"
)

// DefaultAttempts is the number of tries per task.
const DefaultAttempts = 3

type (
	// Task is one logical download.
	Task struct {
		URL string
		// Path is where the payload is persisted; empty keeps it in memory.
		Path      string
		ParseJSON bool
		// Rewrite is applied to source files before they are persisted.
		Rewrite gexmod.RewriteTable
		Force   bool
	}

	// Orchestrator performs tasks with bounded retry, skips files already on
	// disk and rewrites source files before persisting them.
	Orchestrator struct {
		getter      Getter
		fs          FS
		attempts    int
		backoff     time.Duration
		rewriteExts []string
		logger      *log.Logger

		dirMu   sync.Mutex
		lastDir string
	}

	// OrchestratorConfig holds the Orchestrator settings.
	OrchestratorConfig struct {
		Attempts          int
		Backoff           time.Duration
		RewriteExtensions []string
	}
)

// NewOrchestrator returns an Orchestrator. A nil logger discards output.
func NewOrchestrator(getter Getter, fsys FS, cfg OrchestratorConfig, logger *log.Logger) *Orchestrator {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.RewriteExtensions == nil {
		cfg.RewriteExtensions = []string{".js"}
	}
	return &Orchestrator{
		getter:      getter,
		fs:          fsys,
		attempts:    cfg.Attempts,
		backoff:     cfg.Backoff,
		rewriteExts: cfg.RewriteExtensions,
		logger:      orDiscard(logger),
	}
}

// Fetch runs task and returns the payload. cached reports that the payload
// came from an existing local file without network access.
func (o *Orchestrator) Fetch(ctx context.Context, task Task) (data []byte, cached bool, err error) {
	if task.Path != "" && !task.Force && o.fs.Exists(task.Path) {
		data, err = o.fs.ReadFile(task.Path)
		if err != nil {
			return nil, false, &DownloadError{URL: task.URL, Path: task.Path, Err: fmt.Errorf("%w: %w", ErrFilesystem, err)}
		}
		if task.ParseJSON && !json.Valid(data) {
			return nil, false, &DownloadError{URL: task.URL, Path: task.Path, Err: ErrParse}
		}
		o.logger.Debug("found downloaded file", "path", task.Path)
		return data, true, nil
	}

	data, err = o.download(ctx, task)
	if err != nil {
		return nil, false, err
	}

	if task.Path != "" {
		if err := o.persist(task, data); err != nil {
			return nil, false, err
		}
	}
	return data, false, nil
}

func (o *Orchestrator) download(ctx context.Context, task Task) ([]byte, error) {
	var lastErr error
	for attempt := range o.attempts {
		if attempt > 0 && o.backoff > 0 {
			delay := o.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		o.logger.Debug("requesting file", "url", task.URL, "attempt", attempt+1)
		data, err := o.getter.Get(ctx, task.URL)
		if err == nil {
			if task.ParseJSON && !json.Valid(data) {
				return nil, &DownloadError{URL: task.URL, Path: task.Path, Attempts: attempt + 1, Err: ErrParse}
			}
			return data, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, ErrNotFound) {
			return nil, &DownloadError{URL: task.URL, Path: task.Path, Attempts: attempt + 1, Err: err}
		}

		lastErr = err
		o.logger.Debug("download failed, retrying", "url", task.URL, "attempt", attempt+1, "error", err)
	}

	return nil, &DownloadError{
		URL:      task.URL,
		Path:     task.Path,
		Attempts: o.attempts,
		Err:      fmt.Errorf("%w: %w", ErrRetriesExceeded, lastErr),
	}
}

func (o *Orchestrator) persist(task Task, data []byte) error {
	if task.Rewrite != nil && gexmod.HasExtension(task.Path, o.rewriteExts) {
		data = []byte(gexmod.Rewrite(task.Rewrite, string(data)))
	}

	if err := o.ensureDir(filepath.Dir(task.Path)); err != nil {
		return &DownloadError{URL: task.URL, Path: task.Path, Err: fmt.Errorf("%w: %w", ErrFilesystem, err)}
	}
	if err := o.fs.WriteFile(task.Path, data); err != nil {
		return &DownloadError{URL: task.URL, Path: task.Path, Err: fmt.Errorf("%w: %w", ErrFilesystem, err)}
	}
	o.logger.Debug("saved file", "path", task.Path)
	return nil
}

// ensureDir creates dir unless it was the last directory created.
func (o *Orchestrator) ensureDir(dir string) error {
	o.dirMu.Lock()
	defer o.dirMu.Unlock()

	if dir == o.lastDir {
		return nil
	}
	if err := o.fs.MkdirAll(dir); err != nil {
		return err
	}
	o.lastDir = dir
	return nil
}

func orDiscard(logger *log.Logger) *log.Logger {
	if logger == nil {
		return log.New(io.Discard)
	}
	return logger
}
