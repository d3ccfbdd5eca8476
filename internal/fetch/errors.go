// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransport marks network failures and unexpected statuses. It is retried.
	ErrTransport = errors.New("transport error")
	// ErrNotFound marks a 404 response. It is never retried.
	ErrNotFound = errors.New("not found")
	// ErrParse marks a JSON payload that does not parse. It is never retried.
	ErrParse = errors.New("malformed JSON")
	// ErrRetriesExceeded is returned once every attempt of a task failed.
	ErrRetriesExceeded = errors.New("retries exceeded")
	// ErrFilesystem marks local read, write or mkdir failures.
	ErrFilesystem = errors.New("filesystem error")
	// ErrSchemaCompile marks a failed schema compilation.
	ErrSchemaCompile = errors.New("schema compilation failed")
)

type (
	// StatusError is returned for non-2xx responses.
	StatusError struct {
		URL        string
		StatusCode int
	}

	// DownloadError describes a task that failed for good.
	DownloadError struct {
		URL      string
		Path     string
		Attempts int
		Err      error
	}
)

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap classifies the status: 404 is ErrNotFound, anything else ErrTransport.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return ErrTransport
}

// Error implements the error interface.
func (e *DownloadError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("download %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
	}
	return fmt.Sprintf("download %s failed: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *DownloadError) Unwrap() error { return e.Err }
