// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"strings"
)

type (
	// ActionableError is a user-facing failure: the operation that failed, the
	// module, file or URL involved, and what the user can do about it.
	//
	// Construct it with the ErrorContext builder:
	//
	//	err := issue.NewErrorContext().
	//		WithOperation("download module").
	//		WithResource("acme/widget/master").
	//		WithSuggestion("Check the repository name").
	//		WithIssue(issue.ManifestUnavailableID).
	//		Wrap(cause).
	//		BuildError()
	ActionableError struct {
		// Operation is a verb phrase such as "load configuration".
		Operation   string
		Resource    string
		Suggestions []string
		Cause       error
		// Issue points at catalog guidance for the failure (optional).
		Issue Id
	}

	// ErrorContext accumulates the fields of an ActionableError.
	ErrorContext struct {
		e ActionableError
	}
)

// NewErrorContext creates a new ErrorContext builder.
func NewErrorContext() *ErrorContext {
	return &ErrorContext{}
}

// WrapWithContext wraps err with operation and resource. A nil err stays nil.
func WrapWithContext(err error, operation, resource string) *ActionableError {
	if err == nil {
		return nil
	}
	return &ActionableError{Operation: operation, Resource: resource, Cause: err}
}

// Error renders "failed to <operation>: <resource>: <cause>", omitting empty parts.
func (e *ActionableError) Error() string {
	parts := make([]string, 0, 3)
	parts = append(parts, "failed to "+e.Operation)
	if e.Resource != "" {
		parts = append(parts, e.Resource)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause error for use with errors.Is/As.
func (e *ActionableError) Unwrap() error {
	return e.Cause
}

// Format renders the message followed by the suggestions. Verbose output
// also lists every error of the cause chain, outermost first:
//
//	failed to <operation>: <resource>: <cause>
//
//	Try:
//	  - <suggestion>
//
//	Caused by:
//	  <cause>
//	  <cause of cause>
func (e *ActionableError) Format(verbose bool) string {
	var sb strings.Builder
	sb.WriteString(e.Error())

	if e.HasSuggestions() {
		sb.WriteString("\n\nTry:")
		for _, s := range e.Suggestions {
			sb.WriteString("\n  - " + s)
		}
	}

	if verbose && e.Cause != nil {
		sb.WriteString("\n\nCaused by:")
		for err := e.Cause; err != nil; err = errors.Unwrap(err) {
			sb.WriteString("\n  " + err.Error())
		}
	}
	return sb.String()
}

// HasSuggestions returns true if the error has any suggestions.
func (e *ActionableError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

func (c *ErrorContext) WithOperation(op string) *ErrorContext {
	c.e.Operation = op
	return c
}

func (c *ErrorContext) WithResource(res string) *ErrorContext {
	c.e.Resource = res
	return c
}

// WithSuggestion appends one suggestion; it may be called repeatedly.
func (c *ErrorContext) WithSuggestion(sug string) *ErrorContext {
	c.e.Suggestions = append(c.e.Suggestions, sug)
	return c
}

func (c *ErrorContext) WithSuggestions(sugs ...string) *ErrorContext {
	c.e.Suggestions = append(c.e.Suggestions, sugs...)
	return c
}

// WithIssue links the error to a catalog entry.
func (c *ErrorContext) WithIssue(id Id) *ErrorContext {
	c.e.Issue = id
	return c
}

func (c *ErrorContext) Wrap(err error) *ErrorContext {
	c.e.Cause = err
	return c
}

// Build returns the ActionableError, or nil when no operation was set.
func (c *ErrorContext) Build() *ActionableError {
	if c.e.Operation == "" {
		return nil
	}
	ae := c.e
	return &ae
}

// BuildError is Build for return statements: a missing operation yields a
// nil error interface rather than a typed nil.
func (c *ErrorContext) BuildError() error {
	if ae := c.Build(); ae != nil {
		return ae
	}
	return nil
}
