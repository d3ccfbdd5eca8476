// SPDX-License-Identifier: MPL-2.0

// Package gexmod holds the value types shared by the fetcher, the runner and
// the CLI: module coordinates, gex.json manifests, the per-module rewrite
// table with its reference rewriter, the on-disk cache layout and the lock
// file written after a successful session.
//
// # Coordinates
//
// A [Coordinate] names one remote module version as owner/repo/version. Owner
// and repository are lowercased; an empty version becomes "master" and longer
// versions are cut to a 7 character short hash. A bare repository name gets
// the default owner.
//
// # Manifests
//
// A gex.json payload is either one manifest object or an array of them. Use
// [ParseManifest] with the requested module name to select an entry. Every
// selected object is validated against the embedded CUE schema.
//
// # Reference rewriting
//
// Fetched sources address other modules through the imports root, for
// example imports.util or imports['my-dep']. [Rewrite] retargets those
// references to the owner/repo/version directories they are installed under.
package gexmod
