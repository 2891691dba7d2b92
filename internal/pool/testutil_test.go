package pool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

const (
	s0 = "http://server0:1234"
	s1 = "http://server1:1234"
)

// newTwoServerPool returns a pool over s0 and s1 whose manifests never hit the network.
func newTwoServerPool(t *testing.T, opts ...Option) *Pool {
	t.Helper()
	opts = append([]Option{WithManifestSource(staticManifests{})}, opts...)
	return New([]string{s0, s1}, opts...)
}

// withModels overwrites a server's catalog directly, bypassing refresh.
func withModels(t *testing.T, p *Pool, url string, models ...string) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.byURL[url]
	if !ok {
		t.Fatalf("no server %s", url)
	}
	s.setModels(models)
}

// withMax overrides one server's capacity.
func withMax(t *testing.T, p *Pool, url string, n int) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byURL[url].maxConcurrency = n
}

func status(t *testing.T, p *Pool, url string) ServerStatus {
	t.Helper()
	for _, s := range p.Snapshot() {
		if s.URL == url {
			return s
		}
	}
	t.Fatalf("no server %s", url)
	return ServerStatus{}
}

// checkInvariants asserts the slot/pin invariants on every server.
func checkInvariants(t *testing.T, p *Pool) {
	t.Helper()
	for _, s := range p.Snapshot() {
		if s.ActiveRequests < 0 || s.ActiveRequests > s.MaxConcurrency {
			t.Fatalf("%s: active=%d max=%d", s.URL, s.ActiveRequests, s.MaxConcurrency)
		}
		if (s.CurrentModel == "") != (s.ActiveRequests == 0) {
			t.Fatalf("%s: current=%q active=%d", s.URL, s.CurrentModel, s.ActiveRequests)
		}
	}
}

// staticManifests serves catalogs from a map; unknown URLs fail.
type staticManifests map[string][]string

func (m staticManifests) FetchModels(_ context.Context, url string) ([]string, error) {
	ids, ok := m[url]
	if !ok {
		return nil, errNoManifest
	}
	return ids, nil
}

type manifestErr string

func (e manifestErr) Error() string { return string(e) }

const errNoManifest = manifestErr("no manifest")

// modelsServer starts a backend answering /v1/models with ids.
func modelsServer(t *testing.T, ids ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			http.NotFound(w, r)
			return
		}
		data := make([]map[string]string, 0, len(ids))
		for _, id := range ids {
			data = append(data, map[string]string{"id": id, "object": "model"})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	}))
	t.Cleanup(srv.Close)
	return srv
}
