// SPDX-License-Identifier: MPL-2.0

// Package fetch downloads a module and its transitive dependencies into the
// temp root.
//
// A [Downloader] session walks the dependency graph: each module's manifest is
// resolved through the [ManifestResolver], its files are handed to the
// [Orchestrator] and its dependencies are walked in turn, every coordinate
// at most once. All walks and downloads run on one errgroup; the first error
// cancels the session. The [Tracker] counts modules and files in flight and
// reports when both drain to zero, which is when the session is complete.
package fetch
