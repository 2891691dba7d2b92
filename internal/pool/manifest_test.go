package pool

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inferpool/internal/events"
)

func TestHTTPManifestClient_ParsesIDs(t *testing.T) {
	srv := modelsServer(t, "modelA", "modelB")
	ids, err := NewHTTPManifestClient(nil).FetchModels(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, []string{"modelA", "modelB"}, ids)
}

func TestHTTPManifestClient_Failures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) { http.Error(w, "nope", http.StatusInternalServerError) }},
		{"malformed", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("{not json")) }},
		{"missing id", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"data":[{"object":"model"}]}`)) }},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			srv := httptest.NewServer(c.handler)
			defer srv.Close()
			_, err := NewHTTPManifestClient(nil).FetchModels(context.Background(), srv.URL)
			assert.Error(t, err)
		})
	}
}

func TestHTTPManifestClient_NoDataIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object":"list"}`))
	}))
	defer srv.Close()
	ids, err := NewHTTPManifestClient(nil).FetchModels(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRefresh_PopulatesModels(t *testing.T) {
	a := modelsServer(t, "modelA", "modelB")
	b := modelsServer(t, "modelC")
	p := New([]string{a.URL, b.URL})

	p.RefreshAllManifests(context.Background())
	assert.Equal(t, []string{"modelA", "modelB", "modelC"}, p.AvailableModels())
}

func TestRefresh_UnreachableServerClearsModels(t *testing.T) {
	healthy := modelsServer(t, "modelA")
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close() // connection refused from now on

	pub := events.NewMemory()
	p := New([]string{deadURL, healthy.URL}, WithPublisher(pub))
	withModels(t, p, deadURL, "stale")

	p.RefreshAllManifests(context.Background())
	assert.Equal(t, []string{"modelA"}, p.AvailableModels())
	assert.Empty(t, status(t, p, deadURL).Models)
	assert.Equal(t, 1, pub.Count("manifest_failed"))
	assert.Equal(t, 1, pub.Count("manifest_ok"))
}

func TestRefresh_SlowServerTimesOutIndependently(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer slow.Close()
	fast := modelsServer(t, "modelA")

	p := New([]string{slow.URL, fast.URL}, WithManifestTimeout(50*time.Millisecond))
	start := time.Now()
	p.RefreshAllManifests(context.Background())
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, []string{"modelA"}, p.AvailableModels())
}

func TestRefresh_BroadcastsCapacityChange(t *testing.T) {
	p := newTwoServerPool(t, WithManifestSource(staticManifests{s0: {"modelA"}}))
	ch := p.CapacityChanged()
	p.RefreshAllManifests(context.Background())
	select {
	case <-ch:
	default:
		t.Fatal("refresh should broadcast")
	}
	assert.Equal(t, []string{"modelA"}, p.AvailableModels())
	assert.Empty(t, status(t, p, s1).Models)
}

func TestRefresh_DoesNotTouchSlots(t *testing.T) {
	p := newTwoServerPool(t, WithManifestSource(staticManifests{s0: {"modelA"}, s1: {"modelB"}}))
	withModels(t, p, s0, "modelA")
	url, ok := p.FindAndAcquire("modelA")
	require.True(t, ok)

	p.RefreshAllManifests(context.Background())
	st := status(t, p, url)
	assert.Equal(t, 1, st.ActiveRequests)
	assert.Equal(t, "modelA", st.CurrentModel)
}

func TestRunRefresher_StopsOnCancel(t *testing.T) {
	calls := make(chan struct{}, 16)
	src := countingSource{calls: calls}
	p := New([]string{s0}, WithManifestSource(src))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.RunRefresher(ctx, 10*time.Millisecond)
		close(done)
	}()
	for i := 0; i < 2; i++ {
		select {
		case <-calls:
		case <-time.After(2 * time.Second):
			t.Fatal("refresher did not tick")
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not stop")
	}
}

func TestManifestErrorWrapping(t *testing.T) {
	err := error(manifestError{url: s0, err: statusError{code: 503}})
	assert.Contains(t, err.Error(), s0)
	assert.Contains(t, err.Error(), "503")
	assert.ErrorIs(t, err, statusError{code: 503})
}

func TestRefresh_CancelledKeepsCatalogs(t *testing.T) {
	a := modelsServer(t, "m")
	b := modelsServer(t, "n")
	p := New([]string{a.URL, b.URL})
	p.RefreshAllManifests(context.Background())
	require.Equal(t, []string{"m", "n"}, p.AvailableModels())
	refreshed := p.LastRefresh()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.RefreshAllManifests(ctx)

	assert.Equal(t, []string{"m", "n"}, p.AvailableModels())
	assert.Equal(t, refreshed, p.LastRefresh())
}

// blockingSource answers for fast URLs and blocks the rest until ctx is done.
type blockingSource struct {
	fast    map[string][]string
	started chan struct{}
}

func (b blockingSource) FetchModels(ctx context.Context, url string) ([]string, error) {
	if ids, ok := b.fast[url]; ok {
		return ids, nil
	}
	b.started <- struct{}{}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRefresh_CancelMidFlightKeepsSlowServer(t *testing.T) {
	src := &switchSource{ids: map[string][]string{s0: {"a"}, s1: {"b"}}}
	p := New([]string{s0, s1}, WithManifestSource(src))
	p.RefreshAllManifests(context.Background())
	require.Equal(t, []string{"a", "b"}, p.AvailableModels())

	started := make(chan struct{}, 1)
	src.set(blockingSource{fast: map[string][]string{s0: {"a2"}}, started: started})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.RefreshAllManifests(ctx)
		close(done)
	}()
	<-started
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not return after cancel")
	}

	assert.Equal(t, []string{"a2"}, status(t, p, s0).Models)
	assert.Equal(t, []string{"b"}, status(t, p, s1).Models)
}

func TestRefresh_ServerTimeoutStillEmpties(t *testing.T) {
	src := &switchSource{ids: map[string][]string{s0: {"a"}, s1: {"b"}}}
	p := New([]string{s0, s1}, WithManifestSource(src), WithManifestTimeout(20*time.Millisecond))
	p.RefreshAllManifests(context.Background())

	src.set(blockingSource{fast: map[string][]string{s0: {"a"}}, started: make(chan struct{}, 2)})
	p.RefreshAllManifests(context.Background())

	assert.Equal(t, []string{"a"}, p.AvailableModels())
	assert.Empty(t, status(t, p, s1).Models)
}

// switchSource serves static catalogs until another source is installed.
type switchSource struct {
	mu   sync.Mutex
	ids  map[string][]string
	next ManifestSource
}

func (s *switchSource) set(m ManifestSource) {
	s.mu.Lock()
	s.next = m
	s.mu.Unlock()
}

func (s *switchSource) FetchModels(ctx context.Context, url string) ([]string, error) {
	s.mu.Lock()
	next := s.next
	ids, ok := s.ids[url]
	s.mu.Unlock()
	if next != nil {
		return next.FetchModels(ctx, url)
	}
	if !ok {
		return nil, errNoManifest
	}
	return ids, nil
}

type countingSource struct{ calls chan struct{} }

func (c countingSource) FetchModels(context.Context, string) ([]string, error) {
	select {
	case c.calls <- struct{}{}:
	default:
	}
	return []string{"m"}, nil
}
