// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"maps"
	"slices"
)

// Registry maps the top-level names of the imports object to directories.
type Registry map[string]string

// Names returns the registered names in sorted order.
func (r Registry) Names() []string {
	return slices.Sorted(maps.Keys(r))
}

// Lookup returns the directory registered for name.
func (r Registry) Lookup(name string) (string, bool) {
	dir, ok := r[name]
	return dir, ok
}
