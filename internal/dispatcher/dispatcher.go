// Package dispatcher queues slot requests that the pool cannot admit
// immediately and hands them out as capacity frees up.
//
// A single background loop per Dispatcher owns the matching: it walks the
// queue in passes, rotating requests it cannot place to the tail so that one
// unservable model never blocks the ones behind it. Between passes it sleeps
// until either the pool reports a capacity change or a new request arrives.
//
// Rotation bounds the delay a request imposes on others to one pass, but it
// is not a starvation-freedom guarantee: under a continuously refilled queue
// a request whose model keeps losing the race for a slot can wait
// indefinitely.
package dispatcher

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferpool/internal/events"
)

// SlotPool is the admission primitive the dispatcher builds on. *pool.Pool
// satisfies it.
type SlotPool interface {
	FindAndAcquire(modelID string) (string, bool)
	Release(url string) error
	CapacityChanged() <-chan struct{}
}

type loopState int

const (
	loopNotStarted loopState = iota
	loopRunning
	loopTerminated
)

func (s loopState) String() string {
	switch s {
	case loopRunning:
		return "running"
	case loopTerminated:
		return "terminated"
	default:
		return "not_started"
	}
}

// Dispatcher matches queued requests to pool slots.
type Dispatcher struct {
	pool SlotPool

	mu     sync.Mutex
	q      queue
	state  loopState
	starts int

	// wake carries "queue changed"; capacity 1 so a signal sent while the
	// loop is busy is kept for its next wait.
	wake chan struct{}

	log       zerolog.Logger
	publisher events.Publisher
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger installs a structured logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// WithPublisher installs an event publisher.
func WithPublisher(pub events.Publisher) Option {
	return func(d *Dispatcher) {
		if pub != nil {
			d.publisher = pub
		}
	}
}

// New returns a dispatcher over p. The matching loop starts on the first Submit.
func New(p SlotPool, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		pool:      p,
		wake:      make(chan struct{}, 1),
		log:       zerolog.Nop(),
		publisher: events.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Submit waits until a slot for modelID is granted and returns the server URL.
// The caller owns the slot and must release it on the pool exactly once.
//
// When ctx ends first, Submit returns ctx.Err(). A slot granted concurrently
// with the cancellation is released before returning, so a cancelled Submit
// never leaves a slot behind.
func (d *Dispatcher) Submit(ctx context.Context, modelID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.ensureLoop()

	req := newPendingRequest(modelID)
	d.mu.Lock()
	d.q.pushBack(req)
	depth := d.q.len()
	d.mu.Unlock()
	queueDepth.Set(float64(depth))
	d.notify()
	d.log.Debug().Str("request_id", req.id).Str("model", modelID).Int("queue", depth).Msg("request queued")

	select {
	case <-req.res.done:
		url, _ := req.res.value()
		waitSeconds.Observe(time.Since(req.enqueuedAt).Seconds())
		return url, nil
	case <-ctx.Done():
		if url, granted := req.res.cancel(); granted {
			_ = d.pool.Release(url)
			cancellationsTotal.WithLabelValues("granted").Inc()
			d.log.Info().Str("request_id", req.id).Str("model", modelID).Str("server", url).
				Msg("cancelled after grant; slot released")
			d.publisher.Publish(events.Event{Name: "cancel_release", Subject: url, Fields: map[string]any{"model": modelID}})
		} else {
			cancellationsTotal.WithLabelValues("queued").Inc()
			d.log.Debug().Str("request_id", req.id).Str("model", modelID).Msg("cancelled while queued")
			// let the loop drop the entry now rather than on the next release
			d.notify()
		}
		return "", ctx.Err()
	}
}

// QueueLen returns the number of queued entries, including cancelled ones the
// loop has not collected yet (it is woken to do so on every cancellation).
func (d *Dispatcher) QueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.q.len()
}

// LoopState reports the matching loop lifecycle: not_started, running or terminated.
func (d *Dispatcher) LoopState() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.String()
}

// LoopStarts returns how many matching loops this dispatcher has started.
func (d *Dispatcher) LoopStarts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts
}

func (d *Dispatcher) ensureLoop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == loopRunning {
		return
	}
	if d.state == loopTerminated {
		d.log.Warn().Int("queued", d.q.len()).Msg("restarting matching loop")
	}
	d.state = loopRunning
	d.starts++
	loopStartsTotal.Inc()
	d.publisher.Publish(events.Event{Name: "loop_start", Fields: map[string]any{"starts": d.starts}})
	go d.run()
}

func (d *Dispatcher) notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Dispatcher) clearWake() {
	select {
	case <-d.wake:
	default:
	}
}

// run is the matching loop. It only ends on a fault; queued requests survive
// and are picked up by the loop the next Submit starts.
func (d *Dispatcher) run() {
	defer func() {
		if r := recover(); r != nil {
			loopFaultsTotal.Inc()
			d.log.Error().Str("panic", fmt.Sprint(r)).Bytes("stack", debug.Stack()).Msg("matching loop crashed")
			d.publisher.Publish(events.Event{Name: "loop_fault", Fields: map[string]any{"panic": fmt.Sprint(r)}})
		}
		d.mu.Lock()
		d.state = loopTerminated
		d.mu.Unlock()
	}()

	for {
		// Capture both wake conditions before reading the queue so that a
		// release or submit racing with the pass still wakes the next wait.
		capacity := d.pool.CapacityChanged()
		d.clearWake()

		if d.pass() == 0 {
			<-d.wake
			continue
		}
		select {
		case <-capacity:
		case <-d.wake:
		}
	}
}

// pass visits each request queued at its start once and returns how many
// remain queued.
func (d *Dispatcher) pass() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := d.q.len()
	for i := 0; i < n && d.q.len() > 0; i++ {
		req := d.q.front()
		if req.res.finished() {
			d.q.popFront()
			continue
		}
		url, ok := d.pool.FindAndAcquire(req.modelID)
		if !ok {
			d.q.rotate()
			continue
		}
		d.q.popFront()
		if !req.res.resolve(url) {
			// cancelled between the finished check and now
			_ = d.pool.Release(url)
			doubleResolveTotal.Inc()
			d.log.Info().Str("request_id", req.id).Str("server", url).Msg("request cancelled during grant; slot released")
			d.publisher.Publish(events.Event{Name: "double_resolve_release", Subject: url, Fields: map[string]any{"model": req.modelID}})
			continue
		}
		d.log.Debug().Str("request_id", req.id).Str("model", req.modelID).Str("server", url).
			Dur("waited", time.Since(req.enqueuedAt)).Msg("request granted")
	}
	queueDepth.Set(float64(d.q.len()))
	return d.q.len()
}
