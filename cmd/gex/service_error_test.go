// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gex-cli/internal/fetch"
	"gex-cli/internal/issue"
	"gex-cli/pkg/gexmod"
)

func TestNewServiceError_PanicsOnNil(t *testing.T) {
	t.Parallel()

	defer func() {
		if recover() == nil {
			t.Error("newServiceError(nil) did not panic")
		}
	}()
	_ = newServiceError(nil, 0, "")
}

func TestClassifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want issue.Id
	}{
		{"coordinate", &gexmod.InvalidCoordinateError{Value: "x", Reason: "bad"}, issue.InvalidCoordinateID},
		{"module not found", fmt.Errorf("resolve: %w", gexmod.ErrModuleNotFound), issue.ModuleNotFoundID},
		{"missing source", gexmod.ErrMissingDependencySource, issue.MissingDependencySourceID},
		{"not runnable", gexmod.ErrNotRunnable, issue.NotRunnableID},
		{"manifest over not found", fmt.Errorf("%w: %w", gexmod.ErrManifestUnavailable, fetch.ErrNotFound), issue.ManifestUnavailableID},
		{"schema", fetch.ErrSchemaCompile, issue.SchemaCompileFailedID},
		{"retries", &fetch.DownloadError{URL: "u", Attempts: 3, Err: fetch.ErrRetriesExceeded}, issue.DownloadFailedID},
		{"actionable issue wins", issue.NewErrorContext().WithOperation("op").WithIssue(issue.ConfigLoadFailedID).Wrap(fetch.ErrTransport).Build(), issue.ConfigLoadFailedID},
		{"unknown", errors.New("boom"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := classifyError(tt.err); got != tt.want {
				t.Errorf("classifyError() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRenderServiceError(t *testing.T) {
	t.Parallel()

	err := &gexmod.ModuleError{Coordinate: gexmod.Coordinate{Owner: "acme", Repo: "lib", Version: "master"}, Err: gexmod.ErrNotRunnable}

	var quiet bytes.Buffer
	renderServiceError(&quiet, wrapServiceError(err, false), false)
	if !strings.Contains(quiet.String(), "acme/lib/master: module is not a runnable app") {
		t.Errorf("non-verbose output = %q", quiet.String())
	}
	if strings.Contains(quiet.String(), "Libraries") {
		t.Errorf("non-verbose output should not include guidance: %q", quiet.String())
	}

	var verbose bytes.Buffer
	renderServiceError(&verbose, wrapServiceError(err, true), true)
	if !strings.Contains(verbose.String(), "Libraries") {
		t.Errorf("verbose output should include guidance: %q", verbose.String())
	}
}

func TestReportError(t *testing.T) {
	t.Parallel()

	var stderr bytes.Buffer
	err := reportError(&stderr, errors.New("boom"), false)

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 || exitErr.Err != nil {
		t.Errorf("reportError() = %#v, want a silent exit status 1", err)
	}
	if !strings.Contains(stderr.String(), "boom") {
		t.Errorf("stderr = %q, want the message", stderr.String())
	}
}
