// SPDX-License-Identifier: MPL-2.0

package gexmod

import "errors"

var (
	// ErrInvalidCoordinate is the sentinel error wrapped by InvalidCoordinateError.
	ErrInvalidCoordinate = errors.New("invalid module coordinate")

	// ErrInvalidManifest is returned when a manifest payload is not valid JSON
	// or does not satisfy the manifest schema.
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrManifestUnavailable is returned when neither the cache nor the network
	// yields a parseable manifest.
	ErrManifestUnavailable = errors.New("manifest unavailable")

	// ErrModuleNotFound is returned when an array manifest has no entry with
	// the requested name.
	ErrModuleNotFound = errors.New("module not found in manifest")

	// ErrNotRunnable is returned when the requested top-level module has no main file.
	ErrNotRunnable = errors.New("module is not a runnable app")

	// ErrMissingDependencySource is returned when a dependency declares neither
	// repo nor src.
	ErrMissingDependencySource = errors.New("dependency is missing a source")

	// ErrInvalidPath is returned for manifest file paths that are absolute or
	// escape the module directory.
	ErrInvalidPath = errors.New("invalid module file path")
)

// ModuleError attaches a module and coordinate to a manifest-level failure.
type ModuleError struct {
	Module     string
	Coordinate Coordinate
	Err        error
}

// Error implements the error interface.
func (e *ModuleError) Error() string {
	if e.Module == "" {
		return e.Coordinate.String() + ": " + e.Err.Error()
	}
	return "module \"" + e.Module + "\" (" + e.Coordinate.String() + "): " + e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *ModuleError) Unwrap() error { return e.Err }
