// SPDX-License-Identifier: MPL-2.0

package gexmod

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Layout maps coordinates to locations under the temp root:
//
//	<root>/<owner>/<repo>/<version>/gex.json
//	<root>/<owner>/<repo>/<version>/gex.lock.toml
//	<root>/<owner>/<repo>/<version>/<module dir>/<file>
type Layout struct {
	Root         string
	ManifestName string
}

// NewLayout returns a Layout rooted at root using the default manifest name.
func NewLayout(root string) Layout {
	return Layout{Root: root, ManifestName: ManifestFileName}
}

// VersionDir returns <root>/<owner>/<repo>/<version>.
func (l Layout) VersionDir(c Coordinate) string {
	return filepath.Join(l.Root, c.Owner, c.Repo, c.Version)
}

// ManifestPath returns the cached manifest location for c.
func (l Layout) ManifestPath(c Coordinate) string {
	return filepath.Join(l.VersionDir(c), l.manifestName())
}

// LockPath returns the lock file location for a session rooted at c.
func (l Layout) LockPath(c Coordinate) string {
	return filepath.Join(l.VersionDir(c), LockFileName)
}

// ModuleDir returns the directory a module's files are written to.
func (l Layout) ModuleDir(c Coordinate, dirName string) string {
	return filepath.Join(l.VersionDir(c), dirName)
}

// FilePath returns the local path of a manifest-relative file.
func (l Layout) FilePath(c Coordinate, dirName, rel string) (string, error) {
	return SafeJoin(l.ModuleDir(c, dirName), rel)
}

// EntryPath converts a slash separated entry point into a local path.
func (l Layout) EntryPath(entry string) string {
	return filepath.Join(l.Root, filepath.FromSlash(entry))
}

func (l Layout) manifestName() string {
	if l.ManifestName == "" {
		return ManifestFileName
	}
	return l.ManifestName
}

// SafeJoin joins a manifest-relative path onto base, rejecting absolute
// paths and paths that climb out of base.
func SafeJoin(base, rel string) (string, error) {
	if rel == "" || strings.ContainsRune(rel, '\\') || path.IsAbs(rel) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, rel)
	}
	clean := path.Clean(rel)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q escapes the module directory", ErrInvalidPath, rel)
	}
	return filepath.Join(base, filepath.FromSlash(clean)), nil
}

// HasExtension reports whether name ends with one of exts (case-insensitive).
func HasExtension(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if ext != "" && strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
