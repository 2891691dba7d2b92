package pool

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferpool/internal/events"
)

// Pool owns the state of every configured server.
type Pool struct {
	mu      sync.Mutex
	servers []*server // configuration order; also the tie-break order
	byURL   map[string]*server
	// changed is closed and replaced on every capacity change.
	changed     chan struct{}
	lastRefresh time.Time

	initialMax      int
	manifests       ManifestSource
	manifestTimeout time.Duration
	log             zerolog.Logger
	publisher       events.Publisher
}

// New builds a pool over the given base URLs. Blank and duplicate URLs are
// dropped and trailing slashes trimmed; every server starts unpinned, with no
// known models and the configured capacity (1 by default).
func New(urls []string, opts ...Option) *Pool {
	p := &Pool{
		byURL:           make(map[string]*server, len(urls)),
		changed:         make(chan struct{}),
		initialMax:      defaultMaxConcurrency,
		manifestTimeout: defaultManifestTimeout,
		log:             zerolog.Nop(),
		publisher:       events.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.manifests == nil {
		p.manifests = NewHTTPManifestClient(nil)
	}
	for _, u := range urls {
		u = normalizeURL(u)
		if u == "" {
			continue
		}
		if _, dup := p.byURL[u]; dup {
			continue
		}
		s := newServer(u, p.initialMax)
		p.servers = append(p.servers, s)
		p.byURL[u] = s
		observeServer(s)
	}
	return p
}

func normalizeURL(u string) string {
	return strings.TrimRight(strings.TrimSpace(u), "/")
}

// FindAndAcquire grants one slot on the least-loaded server that can serve
// modelID right now. It returns false, with no side effect, when no server is
// eligible.
func (p *Pool) FindAndAcquire(modelID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var best *server
	for _, s := range p.servers {
		if !s.serves(modelID) || s.busy() || !s.accepts(modelID) {
			continue
		}
		// strict < keeps the earliest server on ties
		if best == nil || s.active < best.active {
			best = s
		}
	}
	if best == nil {
		admissionMisses.Inc()
		return "", false
	}

	best.active++
	best.currentModel = modelID
	acquisitionsTotal.WithLabelValues(modelID).Inc()
	observeServer(best)
	p.log.Debug().Str("server", best.url).Str("model", modelID).
		Int("active", best.active).Int("max", best.maxConcurrency).Msg("slot acquired")
	p.publisher.Publish(events.Event{Name: "acquire", Subject: best.url, Fields: map[string]any{"model": modelID, "active": best.active}})
	return best.url, true
}

// Release returns one slot on url. The count never drops below zero, and a
// server that drains to zero forgets its pinned model. Every release of a
// known server broadcasts a capacity change.
func (p *Pool) Release(url string) error {
	url = normalizeURL(url)
	p.mu.Lock()
	s, ok := p.byURL[url]
	if !ok {
		p.mu.Unlock()
		p.log.Warn().Str("server", url).Msg("release for unknown server")
		return ErrUnknownServer
	}
	if s.active > 0 {
		s.active--
	} else {
		p.log.Warn().Str("server", url).Msg("release with no active requests")
	}
	if s.active == 0 {
		s.currentModel = ""
	}
	releasesTotal.Inc()
	observeServer(s)
	p.log.Debug().Str("server", url).Int("active", s.active).Int("max", s.maxConcurrency).
		Str("model", s.currentModel).Msg("slot released")
	p.publisher.Publish(events.Event{Name: "release", Subject: url, Fields: map[string]any{"active": s.active}})
	p.broadcastLocked()
	p.mu.Unlock()
	return nil
}

// SetMaxConcurrency applies n (clamped to at least 1) to every server and
// returns the effective value. Slots already granted above the new limit are
// kept until they are released.
func (p *Pool) SetMaxConcurrency(n int) int {
	n = clampConcurrency(n)
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.servers {
		s.maxConcurrency = n
		observeServer(s)
	}
	p.log.Info().Int("max_concurrency", n).Msg("max concurrency updated")
	p.publisher.Publish(events.Event{Name: "max_concurrency", Fields: map[string]any{"value": n}})
	p.broadcastLocked()
	return n
}

// MaxConcurrency returns the capacity of the first server; all servers share
// one value.
func (p *Pool) MaxConcurrency() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.servers) == 0 {
		return p.initialMax
	}
	return p.servers[0].maxConcurrency
}

// AvailableModels returns the sorted union of every server's catalog.
func (p *Pool) AvailableModels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	set := make(map[string]struct{})
	for _, s := range p.servers {
		for id := range s.models {
			set[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// URLByIndex returns the URL of the i-th configured server.
func (p *Pool) URLByIndex(i int) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.servers) {
		return "", false
	}
	return p.servers[i].url, true
}

// URLs returns every server URL in configuration order.
func (p *Pool) URLs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.servers))
	for i, s := range p.servers {
		out[i] = s.url
	}
	return out
}

// Snapshot returns a copy of every server's state in configuration order.
func (p *Pool) Snapshot() []ServerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ServerStatus, 0, len(p.servers))
	for _, s := range p.servers {
		out = append(out, ServerStatus{
			URL:            s.url,
			Models:         s.sortedModels(),
			ActiveRequests: s.active,
			MaxConcurrency: s.maxConcurrency,
			CurrentModel:   s.currentModel,
		})
	}
	return out
}

// CapacityChanged returns a channel that is closed at the next capacity
// change (release, manifest refresh or concurrency update). Fetch it before
// inspecting pool state so that a change in between is not missed.
func (p *Pool) CapacityChanged() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.changed
}

// LastRefresh returns when the last manifest refresh completed, or the zero
// time if none has.
func (p *Pool) LastRefresh() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastRefresh
}

func (p *Pool) broadcastLocked() {
	close(p.changed)
	p.changed = make(chan struct{})
}
