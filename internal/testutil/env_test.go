// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"os"
	"testing"
)

func lookup(key string) string {
	v, _ := os.LookupEnv(key)
	return v
}

func TestSetConfigHome(t *testing.T) {
	tmp := t.TempDir()

	want, cleanup := SetConfigHome(t, tmp)
	defer cleanup()

	got, err := os.UserConfigDir()
	if err != nil {
		t.Fatalf("UserConfigDir() error = %v", err)
	}
	if got != want {
		t.Errorf("UserConfigDir() = %q, want %q", got, want)
	}
}
