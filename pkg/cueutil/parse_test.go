// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"strings"
	"testing"
)

const testSchema = `
#Settings: {
	name:      string & !=""
	attempts:  int & >=1 | *3
	enabled?:  bool
}
`

type testSettings struct {
	Name     string `json:"name"`
	Attempts int    `json:"attempts"`
	Enabled  bool   `json:"enabled,omitempty"`
}

func TestParseAndDecode(t *testing.T) {
	t.Parallel()

	t.Run("JSON input decodes with defaults", func(t *testing.T) {
		t.Parallel()

		result, err := ParseAndDecode[testSettings]([]byte(testSchema), []byte(`{"name": "gex"}`), "#Settings",
			WithConcrete(false))
		if err != nil {
			t.Fatalf("ParseAndDecode() error = %v", err)
		}
		if result.Value.Name != "gex" {
			t.Errorf("Name = %q, want %q", result.Value.Name, "gex")
		}
		if result.Value.Attempts != 3 {
			t.Errorf("Attempts = %d, want default 3", result.Value.Attempts)
		}
	})

	t.Run("CUE input", func(t *testing.T) {
		t.Parallel()

		data := []byte("name: \"gex\"\nattempts: 5\nenabled: true\n")
		result, err := ParseAndDecode[testSettings]([]byte(testSchema), data, "#Settings")
		if err != nil {
			t.Fatalf("ParseAndDecode() error = %v", err)
		}
		if result.Value.Attempts != 5 || !result.Value.Enabled {
			t.Errorf("got %+v", result.Value)
		}
	})

	t.Run("constraint violation names the file", func(t *testing.T) {
		t.Parallel()

		_, err := ParseAndDecode[testSettings]([]byte(testSchema), []byte(`{"name": "gex", "attempts": 0}`), "#Settings",
			WithFilename("settings.json"))
		if err == nil {
			t.Fatal("expected error for attempts: 0")
		}
		if !strings.Contains(err.Error(), "settings.json") {
			t.Errorf("error should name the file, got: %v", err)
		}
	})

	t.Run("unknown field rejected by closed definition", func(t *testing.T) {
		t.Parallel()

		_, err := Validate([]byte(testSchema), []byte(`{"name": "gex", "extra": 1}`), "#Settings")
		if err == nil {
			t.Fatal("expected error for unknown field")
		}
	})

	t.Run("size limit", func(t *testing.T) {
		t.Parallel()

		_, err := Validate([]byte(testSchema), []byte(`{"name": "gex"}`), "#Settings", WithMaxFileSize(4))
		if err == nil {
			t.Fatal("expected size error")
		}
	})

	t.Run("missing definition is an internal error", func(t *testing.T) {
		t.Parallel()

		_, err := Validate([]byte(testSchema), []byte(`{}`), "#Missing")
		if err == nil || !strings.Contains(err.Error(), "#Missing") {
			t.Fatalf("expected missing definition error, got %v", err)
		}
	})
}
