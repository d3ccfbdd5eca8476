// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"gex-cli/internal/fetch"
	"gex-cli/internal/issue"
	"gex-cli/pkg/gexmod"
)

// ServiceError is an error that carries optional rendering information for
// the CLI layer. Always create via newServiceError.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
	// StyledMessage is the optional pre-rendered styled error text.
	StyledMessage string
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{
		Err:           err,
		IssueID:       issueID,
		StyledMessage: styledMessage,
	}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// classifyError maps a failure to its catalog entry. The first match in
// order of specificity wins; 0 means no entry applies.
func classifyError(err error) issue.Id {
	var ae *issue.ActionableError
	if errors.As(err, &ae) && ae.Issue != 0 {
		return ae.Issue
	}

	switch {
	case errors.Is(err, gexmod.ErrInvalidCoordinate):
		return issue.InvalidCoordinateID
	case errors.Is(err, gexmod.ErrModuleNotFound):
		return issue.ModuleNotFoundID
	case errors.Is(err, gexmod.ErrMissingDependencySource):
		return issue.MissingDependencySourceID
	case errors.Is(err, gexmod.ErrNotRunnable):
		return issue.NotRunnableID
	case errors.Is(err, gexmod.ErrManifestUnavailable), errors.Is(err, gexmod.ErrInvalidManifest):
		return issue.ManifestUnavailableID
	case errors.Is(err, fetch.ErrSchemaCompile):
		return issue.SchemaCompileFailedID
	case errors.Is(err, fetch.ErrRetriesExceeded), errors.Is(err, fetch.ErrNotFound), errors.Is(err, fetch.ErrTransport):
		return issue.DownloadFailedID
	}
	return 0
}

// wrapServiceError attaches the styled one-line diagnostic and catalog entry.
func wrapServiceError(err error, verbose bool) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	msg := ErrorStyle.Render("gex: ") + formatErrorForDisplay(err, verbose) + "\n"
	return newServiceError(err, classifyError(err), msg)
}

// renderServiceError prints the styled message and, in verbose mode, the
// issue guidance.
func renderServiceError(stderr io.Writer, svcErr *ServiceError, verbose bool) {
	if svcErr == nil {
		return
	}

	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}

	if !verbose || svcErr.IssueID == 0 {
		return
	}

	if catalogEntry := issue.Get(svcErr.IssueID); catalogEntry != nil {
		rendered, renderErr := catalogEntry.Render("dark")
		if renderErr != nil {
			log.Warn("failed to render issue catalog entry", "issueID", svcErr.IssueID, "error", renderErr)
		} else {
			fmt.Fprint(stderr, rendered)
		}
	}
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
