// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

type (
	// FS is the filesystem surface used by a session.
	FS interface {
		Exists(path string) bool
		MkdirAll(dir string) error
		ReadFile(path string) ([]byte, error)
		// WriteFile replaces path atomically.
		WriteFile(path string, data []byte) error
	}

	// OSFS implements FS on the local filesystem.
	OSFS struct{}
)

// Exists reports whether path exists.
func (OSFS) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

// MkdirAll creates dir and any missing parents.
func (OSFS) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// ReadFile reads the whole file.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFile writes data to a temp file in the target directory and renames
// it into place.
func (OSFS) WriteFile(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
