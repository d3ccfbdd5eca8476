// SPDX-License-Identifier: MPL-2.0

package gexmod

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	// LockFileName is written next to the root module's cached manifest.
	LockFileName = "gex.lock.toml"
	// LockFileVersion is the current lock file format version.
	LockFileVersion = "1"
)

// ErrInvalidLockFile is returned when a lock file cannot be used.
var ErrInvalidLockFile = errors.New("invalid lock file")

type (
	// LockFile records the outcome of a successful session so the same
	// program can be started again without network access.
	LockFile struct {
		Version    string         `toml:"version"`
		Generated  time.Time      `toml:"generated"`
		Root       string         `toml:"root"`
		EntryPoint string         `toml:"entry_point,omitempty"`
		Modules    []LockedModule `toml:"modules"`
	}

	// LockedModule is one module fetched during the session.
	LockedModule struct {
		Coordinate string   `toml:"coordinate"`
		Name       string   `toml:"name"`
		Dir        string   `toml:"dir"`
		Source     string   `toml:"source"`
		Dependency bool     `toml:"dependency"`
		Files      []string `toml:"files,omitempty"`
	}
)

// NewLockFile returns a lock file for a session rooted at root. Modules are
// sorted by coordinate so the output is stable.
func NewLockFile(root Coordinate, entry string, modules []LockedModule, now time.Time) *LockFile {
	sorted := slices.Clone(modules)
	slices.SortFunc(sorted, func(a, b LockedModule) int {
		return strings.Compare(a.Coordinate, b.Coordinate)
	})
	return &LockFile{
		Version:    LockFileVersion,
		Generated:  now.UTC().Truncate(time.Second),
		Root:       root.String(),
		EntryPoint: entry,
		Modules:    sorted,
	}
}

// Marshal encodes the lock file as TOML.
func (l *LockFile) Marshal() ([]byte, error) {
	return toml.Marshal(l)
}

// ParseLockFile decodes and validates a TOML lock file.
func ParseLockFile(data []byte) (*LockFile, error) {
	var l LockFile
	if err := toml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidLockFile, err)
	}
	if l.Version != LockFileVersion {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidLockFile, l.Version)
	}
	if l.Root == "" {
		return nil, fmt.Errorf("%w: missing root", ErrInvalidLockFile)
	}
	return &l, nil
}

// Module returns the locked module for coordinate, if present.
func (l *LockFile) Module(coordinate string) (LockedModule, bool) {
	for _, m := range l.Modules {
		if m.Coordinate == coordinate {
			return m, true
		}
	}
	return LockedModule{}, false
}
