// SPDX-License-Identifier: MPL-2.0

package runner

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"gex-cli/internal/testutil"
)

const entry = "acme/widget/master/widget/index.js"

// writeTree creates files (slash separated path to content) under a temp root.
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		testutil.MustWriteFile(t, filepath.Join(root, filepath.FromSlash(rel)), content)
	}
	return root
}

func TestRuntimeRun(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		entry: `var util = imports['acme']['utilkit']['master'].util.util;
function main() {
	print(util.VERSION, ARGV.length, ARGV[0]);
	util.bump();
	util.bump();
	printerr("count", util.count);
}`,
		"acme/utilkit/master/util/util.js": `var VERSION = '1.0';
let count = 0;
function bump() { count++; }`,
	})

	var stdout, stderr bytes.Buffer
	rt := New(Registry{"acme": filepath.Join(root, "acme")},
		WithStdout(&stdout), WithStderr(&stderr), WithArgs("first"))

	if err := rt.Run(context.Background(), entry); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got, want := stdout.String(), "1.0 1 first\n"; got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
	if got, want := stderr.String(), "count 2\n"; got != want {
		t.Errorf("stderr = %q, want %q", got, want)
	}
}

func TestRuntimeLoadsModulesOnce(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		entry: `function main() {
	imports.acme.lib.shared.touch();
	imports.acme.lib.shared.touch();
}`,
		"acme/lib/shared.js": `print("loaded");
function touch() {}`,
	})

	var stdout bytes.Buffer
	rt := New(Registry{"acme": filepath.Join(root, "acme")}, WithStdout(&stdout))
	if err := rt.Run(context.Background(), entry); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := strings.Count(stdout.String(), "loaded"); got != 1 {
		t.Errorf("module evaluated %d times, want 1", got)
	}
}

func TestRuntimeSearchPath(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"app/main.js":   `function main() { print(helper.greet()); }` + "\nvar helper = imports.helper;",
		"app/helper.js": `function greet() { return "hi"; }`,
	})

	var stdout bytes.Buffer
	rt := New(Registry{}, WithSearchPath(filepath.Join(root, "app")), WithStdout(&stdout))
	if err := rt.Run(context.Background(), "main.js"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := stdout.String(); got != "hi\n" {
		t.Errorf("stdout = %q, want %q", got, "hi\n")
	}
}

func TestRuntimeWithoutMain(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{entry: `var x = 1;`})
	rt := New(Registry{"acme": filepath.Join(root, "acme")})
	if err := rt.Run(context.Background(), entry); err != nil {
		t.Errorf("Run() error = %v, want nil for a module without main", err)
	}
}

func TestRuntimeEntryDotSegments(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{entry: `function main() { print("ran"); }`})

	tests := []struct {
		name  string
		entry string
	}{
		{name: "dot segment", entry: "acme/widget/master/widget/./index.js"},
		{name: "leading dot", entry: "./acme/widget/master/widget/index.js"},
		{name: "doubled slash", entry: "acme/widget/master//widget/index.js"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var stdout bytes.Buffer
			rt := New(Registry{"acme": filepath.Join(root, "acme")}, WithStdout(&stdout))
			if err := rt.Run(context.Background(), tt.entry); err != nil {
				t.Fatalf("Run(%q) error = %v", tt.entry, err)
			}
			if got := stdout.String(); got != "ran\n" {
				t.Errorf("stdout = %q, want %q", got, "ran\n")
			}
		})
	}
}

func TestRuntimeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		files   map[string]string
		entry   string
		wantErr string
		wantIs  error
	}{
		{
			name:    "exception in main",
			files:   map[string]string{entry: `function main() { throw new Error("kaboom"); }`},
			entry:   entry,
			wantErr: "kaboom",
		},
		{
			name:    "missing module",
			files:   map[string]string{entry: `var x;`},
			entry:   "acme/widget/master/widget/other.js",
			wantErr: "not found",
		},
		{
			name:    "syntax error",
			files:   map[string]string{entry: `function main( {`},
			entry:   entry,
			wantErr: "parse",
		},
		{
			name:   "not a script",
			files:  map[string]string{},
			entry:  "acme/widget/master/widget/README.md",
			wantIs: ErrNoEntryPoint,
		},
		{
			name:   "escaping path",
			files:  map[string]string{},
			entry:  "acme/../etc/passwd.js",
			wantIs: ErrNoEntryPoint,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := writeTree(t, tt.files)
			rt := New(Registry{"acme": filepath.Join(root, "acme")})
			err := rt.Run(context.Background(), tt.entry)
			if err == nil {
				t.Fatal("Run() error = nil")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("Run() error = %v, want %v", err, tt.wantIs)
			}
			if tt.wantErr != "" && !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Run() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestRuntimeInterruptedByContext(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{entry: `function main() { for (;;) {} }`})
	rt := New(Registry{"acme": filepath.Join(root, "acme")})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := rt.Run(ctx, entry); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestTopLevelNames(t *testing.T) {
	t.Parallel()

	src := `var a = 1, b;
let c = 2;
const d = 3;
function e() { var hidden; }
class F {}
if (true) { var g = 1; }
var { destructured } = {};`

	got, err := topLevelNames("test.js", src)
	if err != nil {
		t.Fatalf("topLevelNames() error = %v", err)
	}
	want := []string{"a", "b", "c", "d", "e", "F"}
	if !slices.Equal(got, want) {
		t.Errorf("topLevelNames() = %v, want %v", got, want)
	}
}

func TestRegistryNames(t *testing.T) {
	t.Parallel()

	r := Registry{"zeta": "/z", "acme": "/a"}
	if got := r.Names(); !slices.Equal(got, []string{"acme", "zeta"}) {
		t.Errorf("Names() = %v", got)
	}
	if dir, ok := r.Lookup("acme"); !ok || dir != "/a" {
		t.Errorf("Lookup(acme) = %q, %v", dir, ok)
	}
}
