package pool

import (
	"context"
	"sync"
	"time"

	"inferpool/internal/events"
)

// RefreshAllManifests queries every server concurrently and replaces each
// catalog with what it reports. A server that fails for any reason ends up
// with an empty catalog; failures never affect the other servers and are
// logged rather than returned. Once ctx itself is done, servers that have
// not answered yet keep their previous catalog.
func (p *Pool) RefreshAllManifests(ctx context.Context) {
	urls := p.URLs()
	if len(urls) == 0 {
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(urls))
	for _, u := range urls {
		go func(url string) {
			defer wg.Done()
			p.refreshOne(ctx, url)
		}(u)
	}
	wg.Wait()

	p.mu.Lock()
	if ctx.Err() == nil {
		p.lastRefresh = time.Now()
	}
	p.broadcastLocked()
	p.mu.Unlock()
}

func (p *Pool) refreshOne(ctx context.Context, url string) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.manifestTimeout)
	defer cancel()

	ids, err := p.manifests.FetchModels(fetchCtx, url)
	if err != nil && ctx.Err() != nil {
		// the caller gave up, not the server
		p.log.Debug().Str("server", url).Err(err).Msg("manifest refresh abandoned")
		return
	}
	if err != nil {
		err = manifestError{url: url, err: err}
		ids = nil
	}

	p.mu.Lock()
	s := p.byURL[url]
	s.setModels(ids)
	observeServer(s)
	p.mu.Unlock()

	if err != nil {
		manifestRefreshTotal.WithLabelValues(url, "error").Inc()
		p.log.Warn().Str("server", url).Err(err).Msg("manifest refresh failed")
		p.publisher.Publish(events.Event{Name: "manifest_failed", Subject: url, Fields: map[string]any{"error": err.Error()}})
		return
	}
	manifestRefreshTotal.WithLabelValues(url, "ok").Inc()
	p.log.Info().Str("server", url).Strs("models", ids).Msg("manifest refreshed")
	p.publisher.Publish(events.Event{Name: "manifest_ok", Subject: url, Fields: map[string]any{"models": len(ids)}})
}

// RunRefresher refreshes manifests immediately and then every interval until
// ctx is cancelled. With interval <= 0 it refreshes once and returns.
func (p *Pool) RunRefresher(ctx context.Context, interval time.Duration) {
	p.RefreshAllManifests(ctx)
	if interval <= 0 {
		return
	}
	p.log.Info().Dur("interval", interval).Msg("manifest refresher started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("manifest refresher stopped")
			return
		case <-ticker.C:
			p.RefreshAllManifests(ctx)
		}
	}
}
