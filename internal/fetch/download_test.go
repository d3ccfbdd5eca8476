// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"gex-cli/pkg/gexmod"
)

type (
	// fakeGetter replays scripted responses per URL; the last response repeats.
	fakeGetter struct {
		mu        sync.Mutex
		responses map[string][]fakeResponse
		calls     map[string]int
	}

	fakeResponse struct {
		body string
		err  error
	}
)

func newFakeGetter() *fakeGetter {
	return &fakeGetter{responses: make(map[string][]fakeResponse), calls: make(map[string]int)}
}

func (f *fakeGetter) on(url string, responses ...fakeResponse) *fakeGetter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[url] = responses
	return f
}

func (f *fakeGetter) Get(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	n := f.calls[url]
	f.calls[url]++
	script, ok := f.responses[url]
	if !ok || len(script) == 0 {
		return nil, &StatusError{URL: url, StatusCode: http.StatusNotFound}
	}
	r := script[min(n, len(script)-1)]
	if r.err != nil {
		return nil, r.err
	}
	return []byte(r.body), nil
}

func (f *fakeGetter) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func serverError(url string) fakeResponse {
	return fakeResponse{err: &StatusError{URL: url, StatusCode: http.StatusBadGateway}}
}

func TestOrchestratorRetries(t *testing.T) {
	t.Parallel()

	const url = "https://example.test/a.js"

	tests := []struct {
		name      string
		responses []fakeResponse
		parseJSON bool
		wantCalls int
		wantBody  string
		wantErr   error
	}{
		{
			name:      "success on first attempt",
			responses: []fakeResponse{{body: "ok"}},
			wantCalls: 1,
			wantBody:  "ok",
		},
		{
			name:      "success on third attempt",
			responses: []fakeResponse{serverError(url), serverError(url), {body: "ok"}},
			wantCalls: 3,
			wantBody:  "ok",
		},
		{
			name:      "retries exhausted",
			responses: []fakeResponse{serverError(url)},
			wantCalls: 3,
			wantErr:   ErrRetriesExceeded,
		},
		{
			name:      "not found is not retried",
			responses: []fakeResponse{{err: &StatusError{URL: url, StatusCode: http.StatusNotFound}}},
			wantCalls: 1,
			wantErr:   ErrNotFound,
		},
		{
			name:      "malformed JSON is not retried",
			responses: []fakeResponse{{body: "{nope"}},
			parseJSON: true,
			wantCalls: 1,
			wantErr:   ErrParse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			getter := newFakeGetter().on(url, tt.responses...)
			o := NewOrchestrator(getter, newMemFS(), OrchestratorConfig{}, nil)

			data, cached, err := o.Fetch(context.Background(), Task{URL: url, ParseJSON: tt.parseJSON})
			if got := getter.count(url); got != tt.wantCalls {
				t.Errorf("requests = %d, want %d", got, tt.wantCalls)
			}
			if cached {
				t.Error("Fetch() reported a cached payload")
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Fetch() error = %v, want %v", err, tt.wantErr)
				}
				var de *DownloadError
				if !errors.As(err, &de) || de.URL != url {
					t.Errorf("Fetch() error = %#v, want *DownloadError for %s", err, url)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch() error = %v", err)
			}
			if string(data) != tt.wantBody {
				t.Errorf("Fetch() = %q, want %q", data, tt.wantBody)
			}
		})
	}
}

func TestOrchestratorCancelledStopsRetrying(t *testing.T) {
	t.Parallel()

	const url = "https://example.test/a.js"
	getter := newFakeGetter().on(url, serverError(url))
	o := NewOrchestrator(getter, newMemFS(), OrchestratorConfig{Attempts: 5}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := o.Fetch(ctx, Task{URL: url})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch() error = %v, want context.Canceled", err)
	}
	if got := getter.count(url); got > 1 {
		t.Errorf("requests = %d, want at most 1", got)
	}
}

func TestOrchestratorPersistence(t *testing.T) {
	t.Parallel()

	const url = "https://example.test/acme/widget/master/index.js"
	path := filepath.Join("/tmp-gex", "acme", "widget", "master", "widget", "index.js")
	table := gexmod.RewriteTable{"util": "acme/utilkit/master"}

	t.Run("writes rewritten source", func(t *testing.T) {
		t.Parallel()

		fsys := newMemFS()
		getter := newFakeGetter().on(url, fakeResponse{body: "imports.util.run();\n"})
		o := NewOrchestrator(getter, fsys, OrchestratorConfig{}, nil)

		data, cached, err := o.Fetch(context.Background(), Task{URL: url, Path: path, Rewrite: table})
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if cached {
			t.Error("Fetch() reported a cached payload")
		}
		if string(data) != "imports.util.run();\n" {
			t.Errorf("Fetch() returned %q, want the downloaded payload", data)
		}

		got, ok := fsys.get(path)
		if !ok {
			t.Fatalf("%s was not written", path)
		}
		want := "imports['acme']['utilkit']['master'].util.run();\n"
		if got != want {
			t.Errorf("persisted = %q, want %q", got, want)
		}
	})

	t.Run("existing file is not downloaded again", func(t *testing.T) {
		t.Parallel()

		fsys := newMemFS()
		fsys.put(path, "local")
		getter := newFakeGetter().on(url, fakeResponse{body: "remote"})
		o := NewOrchestrator(getter, fsys, OrchestratorConfig{}, nil)

		data, cached, err := o.Fetch(context.Background(), Task{URL: url, Path: path})
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if !cached || string(data) != "local" {
			t.Errorf("Fetch() = %q cached=%v, want local copy", data, cached)
		}
		if got := getter.count(url); got != 0 {
			t.Errorf("requests = %d, want 0", got)
		}
	})

	t.Run("force downloads again", func(t *testing.T) {
		t.Parallel()

		fsys := newMemFS()
		fsys.put(path, "local")
		getter := newFakeGetter().on(url, fakeResponse{body: "remote"})
		o := NewOrchestrator(getter, fsys, OrchestratorConfig{}, nil)

		if _, _, err := o.Fetch(context.Background(), Task{URL: url, Path: path, Force: true}); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if got, _ := fsys.get(path); got != "remote" {
			t.Errorf("persisted = %q, want remote", got)
		}
	})

	t.Run("non-source files are not rewritten", func(t *testing.T) {
		t.Parallel()

		fsys := newMemFS()
		jsonPath := strings.TrimSuffix(path, ".js") + ".json"
		getter := newFakeGetter().on(url, fakeResponse{body: `"imports.util"`})
		o := NewOrchestrator(getter, fsys, OrchestratorConfig{}, nil)

		if _, _, err := o.Fetch(context.Background(), Task{URL: url, Path: jsonPath, Rewrite: table}); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if got, _ := fsys.get(jsonPath); got != `"imports.util"` {
			t.Errorf("persisted = %q, want untouched payload", got)
		}
	})
}

func TestOrchestratorEnsureDirMemoizesLastDir(t *testing.T) {
	t.Parallel()

	fsys := newMemFS()
	getter := newFakeGetter()
	dir := filepath.Join("/tmp-gex", "acme", "widget", "master", "widget")
	for _, name := range []string{"a.js", "b.js", "c.js"} {
		getter.on("https://example.test/"+name, fakeResponse{body: name})
	}
	o := NewOrchestrator(getter, fsys, OrchestratorConfig{}, nil)

	for _, name := range []string{"a.js", "b.js", "c.js"} {
		task := Task{URL: "https://example.test/" + name, Path: filepath.Join(dir, name)}
		if _, _, err := o.Fetch(context.Background(), task); err != nil {
			t.Fatalf("Fetch(%s) error = %v", name, err)
		}
	}
	if fsys.mkdirs != 1 {
		t.Errorf("MkdirAll called %d times, want 1", fsys.mkdirs)
	}
}
