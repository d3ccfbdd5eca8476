// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"runtime"
	"testing"
)

// SetConfigHome points os.UserConfigDir at dir and returns the directory it
// will report together with a cleanup function.
//
//	configDir, cleanup := testutil.SetConfigHome(t, t.TempDir())
//	defer cleanup()
func SetConfigHome(t testing.TB, dir string) (string, func()) {
	t.Helper()

	switch runtime.GOOS {
	case "windows":
		return dir, MustSetenv(t, "AppData", dir)
	case "darwin", "ios":
		return filepath.Join(dir, "Library", "Application Support"), MustSetenv(t, "HOME", dir)
	case "plan9":
		return filepath.Join(dir, "lib"), MustSetenv(t, "home", dir)
	default:
		return dir, MustSetenv(t, "XDG_CONFIG_HOME", dir)
	}
}
