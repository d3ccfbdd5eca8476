// SPDX-License-Identifier: MPL-2.0

// Package runner starts a downloaded gex program in an embedded JavaScript
// engine.
//
// Modules address each other through the global imports object. Its top-level
// names come from an explicit Registry (logical name to directory) followed by
// the search path; below that, a property names either a subdirectory or a
// .js file in the directory, which is loaded once and exposes its top-level
// declarations.
package runner
