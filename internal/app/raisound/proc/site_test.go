package proc

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// testSite serves canned responses and counts requests per path
type testSite struct {
	*httptest.Server
	mu     sync.Mutex
	hits   map[string]int
	routes map[string]testRoute
}

type testRoute struct {
	status int
	body   []byte
}

func newTestSite(t *testing.T) *testSite {
	s := &testSite{hits: map[string]int{}, routes: map[string]testRoute{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		rt, ok := s.routes[r.URL.Path]
		s.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(rt.status)
		_, _ = w.Write(rt.body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *testSite) handle(path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[path] = testRoute{status: status, body: []byte(body)}
}

func (s *testSite) hitsFor(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func (s *testSite) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, h := range s.hits {
		n += h
	}
	return n
}

// labelsPage renders raiplay like page with one label per options json
func labelsPage(options ...string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>show</title></head><body><main>\n")
	for _, o := range options {
		fmt.Fprintf(&b, "<rps-play-with-labels options='%s'></rps-play-with-labels>\n", o)
	}
	b.WriteString("</main></body></html>")
	return b.String()
}
