// Package broker ties the server pool and the dispatcher together behind the
// operations the HTTP layer and the gateway need.
package broker

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"inferpool/internal/dispatcher"
	"inferpool/internal/pool"
	"inferpool/pkg/types"
)

// ErrModelRequired is returned by Acquire for an empty model id.
var ErrModelRequired = errors.New("model is required")

// Options tunes the broker.
type Options struct {
	// RefreshInterval between manifest refreshes in Run; <= 0 refreshes once.
	RefreshInterval time.Duration
	Logger          zerolog.Logger
}

// Broker owns one pool and its dispatcher.
type Broker struct {
	pool            *pool.Pool
	dispatcher      *dispatcher.Dispatcher
	refreshInterval time.Duration
	log             zerolog.Logger
	startTime       time.Time
}

func New(p *pool.Pool, d *dispatcher.Dispatcher, opts Options) *Broker {
	return &Broker{
		pool:            p,
		dispatcher:      d,
		refreshInterval: opts.RefreshInterval,
		log:             opts.Logger,
		startTime:       time.Now(),
	}
}

// Acquire blocks until a slot for model is granted or ctx ends. Models no
// server reports yet are queued too: a later refresh may make them servable.
func (b *Broker) Acquire(ctx context.Context, model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return "", ErrModelRequired
	}
	return b.dispatcher.Submit(ctx, model)
}

// Release returns a slot obtained from Acquire.
func (b *Broker) Release(url string) error { return b.pool.Release(url) }

// Refresh re-reads every server's manifest and returns the resulting catalog.
func (b *Broker) Refresh(ctx context.Context) []string {
	b.pool.RefreshAllManifests(ctx)
	return b.pool.AvailableModels()
}

// ServerURL returns the base URL of the i-th configured server.
func (b *Broker) ServerURL(i int) (string, bool) { return b.pool.URLByIndex(i) }

func (b *Broker) SetMaxConcurrency(n int) int { return b.pool.SetMaxConcurrency(n) }

func (b *Broker) AvailableModels() []string { return b.pool.AvailableModels() }

// Ready reports whether at least one server advertises a model.
func (b *Broker) Ready() bool { return len(b.pool.AvailableModels()) > 0 }

// Status builds the /status payload.
func (b *Broker) Status() types.StatusResponse {
	snap := b.pool.Snapshot()
	resp := types.StatusResponse{
		Servers:        make([]types.ServerStatus, 0, len(snap)),
		QueueLen:       b.dispatcher.QueueLen(),
		MaxConcurrency: b.pool.MaxConcurrency(),
		Dispatcher:     b.dispatcher.LoopState(),
		UptimeSeconds:  int64(time.Since(b.startTime).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
	}
	if t := b.pool.LastRefresh(); !t.IsZero() {
		resp.LastRefreshUnix = t.Unix()
	}
	for _, s := range snap {
		resp.ActiveRequests += s.ActiveRequests
		resp.Servers = append(resp.Servers, types.ServerStatus{
			URL:            s.URL,
			Models:         s.Models,
			ActiveRequests: s.ActiveRequests,
			MaxConcurrency: s.MaxConcurrency,
			CurrentModel:   s.CurrentModel,
		})
	}
	return resp
}

// Run keeps manifests fresh until ctx is cancelled.
func (b *Broker) Run(ctx context.Context) {
	b.log.Info().Int("servers", len(b.pool.URLs())).Dur("refresh_interval", b.refreshInterval).Msg("broker running")
	b.pool.RunRefresher(ctx, b.refreshInterval)
}
