// SPDX-License-Identifier: MPL-2.0

package gexmod

import (
	"maps"
	"strings"
	"testing"
)

var testTable = RewriteTable{
	"foo":    "a/b/v1",
	"my-dep": "c/d/v2",
	"lib":    "acme/widget/master/widget",
}

func TestRewrite(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "dotted reference",
			src:  "const foo = imports.foo;",
			want: "const foo = imports['a']['b']['v1'].foo;",
		},
		{
			name: "bracket reference",
			src:  "const dep = imports['my-dep'];",
			want: "const dep = imports['c']['d']['v2']['my-dep'];",
		},
		{
			name: "double quoted bracket reference",
			src:  `const dep = imports["my-dep"].thing;`,
			want: "const dep = imports['c']['d']['v2']['my-dep'].thing;",
		},
		{
			name: "member access continues after the reference",
			src:  "imports.foo.bar.baz();",
			want: "imports['a']['b']['v1'].foo.bar.baz();",
		},
		{
			name: "module directory path",
			src:  "const { helper } = imports.lib;",
			want: "const { helper } = imports['acme']['widget']['master']['widget'].lib;",
		},
		{
			name: "longer name sharing a prefix is untouched",
			src:  "imports.foobar.x();",
			want: "imports.foobar.x();",
		},
		{
			name: "unknown name is untouched",
			src:  "const { Gtk } = imports.gi;",
			want: "const { Gtk } = imports.gi;",
		},
		{
			name: "property named imports is untouched",
			src:  "this.imports.foo = 1;",
			want: "this.imports.foo = 1;",
		},
		{
			name: "strings are untouched",
			src:  `log("imports.foo"); log('imports.foo');`,
			want: `log("imports.foo"); log('imports.foo');`,
		},
		{
			name: "comments are untouched",
			src:  "// imports.foo\n/* imports.foo */ imports.foo",
			want: "// imports.foo\n/* imports.foo */ imports['a']['b']['v1'].foo",
		},
		{
			name: "template text is untouched but substitutions are code",
			src:  "`imports.foo ${imports.foo.name} {x}`",
			want: "`imports.foo ${imports['a']['b']['v1'].foo.name} {x}`",
		},
		{
			name: "regex literal with a quote does not start a string",
			src:  "const re = /'/g; imports.foo",
			want: "const re = /'/g; imports['a']['b']['v1'].foo",
		},
		{
			name: "division is not a regex",
			src:  "const half = total / 2; imports.foo / 3",
			want: "const half = total / 2; imports['a']['b']['v1'].foo / 3",
		},
		{
			name: "bare imports root",
			src:  "let root = imports;",
			want: "let root = imports;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Rewrite(testTable, tt.src)
			if got != tt.want {
				t.Errorf("Rewrite(%q)\n got: %q\nwant: %q", tt.src, got, tt.want)
			}
			if again := Rewrite(testTable, got); again != got {
				t.Errorf("Rewrite is not idempotent:\nfirst:  %q\nsecond: %q", got, again)
			}
		})
	}
}

func TestRewrite_EndToEndModule(t *testing.T) {
	t.Parallel()

	self := Coordinate{Owner: "acme", Repo: "widget", Version: "master"}
	util := Coordinate{Owner: "acme", Repo: "utilkit", Version: "master"}
	m := &Manifest{Name: "widget", Main: "index.js", Files: []string{"index.js", "lib.js"}}
	table := NewRewriteTable(self, "widget", m, map[string]Coordinate{"util": util})

	src := "const util = imports.util;\nconst lib = imports.lib;\n"
	want := "const util = imports['acme']['utilkit']['master'].util;\n" +
		"const lib = imports['acme']['widget']['master']['widget'].lib;\n"
	if got := Rewrite(table, src); got != want {
		t.Errorf("Rewrite()\n got: %q\nwant: %q", got, want)
	}
}

func TestNewRewriteTable(t *testing.T) {
	t.Parallel()

	self := Coordinate{Owner: "acme", Repo: "widget", Version: "master"}
	m := &Manifest{
		Name:  "widget",
		Main:  "index.js",
		Files: []string{"index.js", "lib.js", "ui/window.js", "ui/dialog.js", "data.json", "util.js"},
	}
	deps := map[string]Coordinate{"util": {Owner: "acme", Repo: "utilkit", Version: "master"}}

	want := RewriteTable{
		"widget": "acme/widget/master",
		"util":   "acme/utilkit/master",
		"index":  "acme/widget/master/widget",
		"lib":    "acme/widget/master/widget",
		"ui":     "acme/widget/master/widget",
	}
	got := NewRewriteTable(self, "widget", m, deps)
	if !maps.Equal(got, want) {
		t.Errorf("NewRewriteTable() = %v, want %v", got, want)
	}
	if names := strings.Join(got.Names(), ","); names != "index,lib,ui,util,widget" {
		t.Errorf("Names() = %s", names)
	}
}

func TestNewRewriteTable_RenamedDirectory(t *testing.T) {
	t.Parallel()

	self := Coordinate{Owner: "acme", Repo: "widget", Version: "master"}
	m := &Manifest{Name: "widget", Main: "index.js", Files: []string{"lib.js"}}

	tests := []struct {
		name    string
		dirName string
		want    RewriteTable
	}{
		{
			name:    "manifest name",
			dirName: "widget",
			want: RewriteTable{
				"widget": "acme/widget/master",
				"index":  "acme/widget/master/widget",
				"lib":    "acme/widget/master/widget",
			},
		},
		{
			name:    "requested name differs",
			dirName: "wid",
			want: RewriteTable{
				"widget": "acme/widget/master",
				"index":  "acme/widget/master/wid",
				"lib":    "acme/widget/master/wid",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := NewRewriteTable(self, tt.dirName, m, nil); !maps.Equal(got, tt.want) {
				t.Errorf("NewRewriteTable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	diff, err := Diff(testTable, "index.js", "const foo = imports.foo;\nconst x = 1;\n")
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	for _, want := range []string{
		"--- index.js",
		"+++ index.js (rewritten)",
		"-const foo = imports.foo;",
		"+const foo = imports['a']['b']['v1'].foo;",
	} {
		if !strings.Contains(diff, want) {
			t.Errorf("Diff() missing %q:\n%s", want, diff)
		}
	}

	unchanged, err := Diff(testTable, "index.js", "const x = 1;\n")
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if unchanged != "" {
		t.Errorf("Diff() of unchanged source = %q, want empty", unchanged)
	}
}

func TestFormatAccessor(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"util":    ".util",
		"$helper": ".$helper",
		"my-dep":  "['my-dep']",
		"it's":    `['it\'s']`,
		"1st":     "['1st']",
	}
	for in, want := range tests {
		if got := formatAccessor(in); got != want {
			t.Errorf("formatAccessor(%q) = %q, want %q", in, got, want)
		}
	}
}
