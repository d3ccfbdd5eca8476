// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// ModuleServer serves gex modules laid out as /<owner>/<repo>/<version>/<file>
// and counts the requests made for every path.
type ModuleServer struct {
	*httptest.Server

	mu     sync.Mutex
	files  map[string][]byte
	status map[string]int
	hits   map[string]int
}

// NewModuleServer starts a server that is closed when the test ends.
func NewModuleServer(t testing.TB) *ModuleServer {
	t.Helper()
	s := &ModuleServer{
		files:  make(map[string][]byte),
		status: make(map[string]int),
		hits:   make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// AddModule publishes manifest as <coordinate>/gex.json together with files
// (relative path to content).
func (s *ModuleServer) AddModule(coordinate, manifest string, files map[string]string) {
	s.SetFile(coordinate+"/gex.json", manifest)
	for name, content := range files {
		s.SetFile(coordinate+"/"+name, content)
	}
}

// SetFile publishes content at path.
func (s *ModuleServer) SetFile(path, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[normalize(path)] = []byte(content)
}

// SetStatus makes every request for path fail with code.
func (s *ModuleServer) SetStatus(path string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[normalize(path)] = code
}

// Hits returns the number of requests made for path.
func (s *ModuleServer) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[normalize(path)]
}

// TotalHits returns the number of requests served.
func (s *ModuleServer) TotalHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.hits {
		total += n
	}
	return total
}

func (s *ModuleServer) serve(w http.ResponseWriter, r *http.Request) {
	path := normalize(r.URL.Path)

	s.mu.Lock()
	s.hits[path]++
	code, failing := s.status[path]
	body, ok := s.files[path]
	s.mu.Unlock()

	switch {
	case failing:
		http.Error(w, http.StatusText(code), code)
	case !ok:
		http.NotFound(w, r)
	default:
		_, _ = w.Write(body)
	}
}

func normalize(path string) string {
	return "/" + strings.TrimLeft(path, "/")
}
