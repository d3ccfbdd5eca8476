// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries the failed operation, the resource involved and
// suggestions; the catalog holds Markdown guidance rendered for the most
// common gex failures.
package issue
