// Package events carries lifecycle notifications out of the pool and the
// dispatcher without coupling them to a particular sink.
package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Event is a named notification about a subject (a server URL or a model id)
// with optional key/value fields.
type Event struct {
	Name    string
	Subject string
	Fields  map[string]any
}

// Publisher receives events. Implementations should be lightweight and
// non-blocking; Publish is called while callers may hold internal locks and
// must not call back into the publisher's source.
type Publisher interface {
	Publish(Event)
}

type noop struct{}

func (noop) Publish(Event) {}

// Nop returns a publisher that drops every event.
func Nop() Publisher { return noop{} }

// Memory stores events in-memory for tests.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory { return &Memory{} }

func (p *Memory) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

func (p *Memory) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Count returns how many events named name were published.
func (p *Memory) Count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

// Log writes every event to a zerolog logger at debug level.
type Log struct {
	Logger zerolog.Logger
}

func (p Log) Publish(e Event) {
	ev := p.Logger.Debug().Str("event", e.Name)
	if e.Subject != "" {
		ev = ev.Str("subject", e.Subject)
	}
	if len(e.Fields) > 0 {
		ev = ev.Fields(e.Fields)
	}
	ev.Msg("event")
}
