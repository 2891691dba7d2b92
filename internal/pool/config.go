package pool

import (
	"time"

	"github.com/rs/zerolog"

	"inferpool/internal/events"
)

// Defaults applied when the corresponding option is unset.
const (
	defaultMaxConcurrency  = 1
	defaultManifestTimeout = 10 * time.Second
)

// Option configures a Pool.
type Option func(*Pool)

// WithLogger installs a structured logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pool) { p.log = l }
}

// WithPublisher installs an event publisher.
func WithPublisher(pub events.Publisher) Option {
	return func(p *Pool) {
		if pub != nil {
			p.publisher = pub
		}
	}
}

// WithManifestSource replaces the HTTP manifest client.
func WithManifestSource(src ManifestSource) Option {
	return func(p *Pool) {
		if src != nil {
			p.manifests = src
		}
	}
}

// WithManifestTimeout bounds each per-server manifest fetch. Values <= 0 keep
// the default.
func WithManifestTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.manifestTimeout = d
		}
	}
}

// WithMaxConcurrency sets the initial per-server slot count, clamped to >= 1.
func WithMaxConcurrency(n int) Option {
	return func(p *Pool) { p.initialMax = clampConcurrency(n) }
}

func clampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
