// SPDX-License-Identifier: MPL-2.0

// Package selfupdate finds out whether a newer gex release exists.
//
// The latest release is discovered by requesting the release page redirect
// (…/releases/latest) and reading the tag from the final path segment of the
// resolved URL. Installing the release is left to the module downloader, which
// fetches gex's own repository at the found tag like any other module.
package selfupdate
