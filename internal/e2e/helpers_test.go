package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"inferpool/internal/broker"
	"inferpool/internal/dispatcher"
	"inferpool/internal/gateway"
	"inferpool/internal/httpapi"
	"inferpool/internal/pool"
	"inferpool/pkg/types"
)

// backend imitates an OpenAI-compatible inference server.
type backend struct {
	name string
	srv  *httptest.Server
	hits atomic.Int32

	mu     sync.Mutex
	models []string
	gate   chan struct{} // completions block until closed; nil answers at once
}

func newBackend(t *testing.T, name string, models ...string) *backend {
	t.Helper()
	b := &backend{name: name, models: models}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/models", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		data := make([]map[string]string, 0, len(b.models))
		for _, id := range b.models {
			data = append(data, map[string]string{"id": id, "object": "model"})
		}
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data})
	})
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.hits.Add(1)
		b.mu.Lock()
		gate := b.gate
		b.mu.Unlock()
		if gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"served_by": b.name, "model": req.Model})
	})
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) setModels(models ...string) {
	b.mu.Lock()
	b.models = models
	b.mu.Unlock()
}

// hold makes subsequent completions block; the returned func lets them finish.
func (b *backend) hold() func() {
	g := make(chan struct{})
	b.mu.Lock()
	b.gate = g
	b.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(g) }) }
}

type stack struct {
	srv    *httptest.Server
	broker *broker.Broker
	pool   *pool.Pool
}

func newStack(t *testing.T, maxConcurrency int, backends ...*backend) *stack {
	t.Helper()
	urls := make([]string, 0, len(backends))
	for _, b := range backends {
		urls = append(urls, b.srv.URL)
	}
	p := pool.New(urls, pool.WithMaxConcurrency(maxConcurrency), pool.WithManifestTimeout(time.Second))
	br := broker.New(p, dispatcher.New(p), broker.Options{})
	br.Refresh(context.Background())
	srv := httptest.NewServer(httpapi.NewMux(br, gateway.New(br)))
	t.Cleanup(srv.Close)
	return &stack{srv: srv, broker: br, pool: p}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

func httpPostJSON(t *testing.T, url string, payload string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(payload))
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// chat sends a completion through the gateway; safe to call from goroutines.
func chat(url, model string) (int, string, error) {
	resp, err := http.Post(url+"/v1/chat/completions", "application/json",
		bytes.NewBufferString(`{"model":"`+model+`","messages":[{"role":"user","content":"hi"}]}`))
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()
	var out struct {
		ServedBy string `json:"served_by"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out.ServedBy, nil
}

func (s *stack) status(t *testing.T) types.StatusResponse {
	t.Helper()
	resp, body := httpGet(t, s.srv.URL+"/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: %d", resp.StatusCode)
	}
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("json: %v", err)
	}
	return st
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
