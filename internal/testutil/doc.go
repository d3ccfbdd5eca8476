// SPDX-License-Identifier: MPL-2.0

// Package testutil provides test helpers: fail-fast filesystem and
// environment wrappers and an httptest server that serves gex modules.
package testutil
