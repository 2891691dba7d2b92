package dispatcher

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type resultState int

const (
	resultPending resultState = iota
	resultResolved
	resultCancelled
)

// result is a single-assignment slot shared by the submitting goroutine and
// the matching loop. Exactly one of resolve or cancel wins; the loser learns
// it from the return value and must reclaim whatever it was handing over.
type result struct {
	mu    sync.Mutex
	state resultState
	url   string
	done  chan struct{}
}

func newResult() *result { return &result{done: make(chan struct{})} }

// resolve hands url to the waiter. It returns false if the result was already
// finalized.
func (r *result) resolve(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != resultPending {
		return false
	}
	r.state = resultResolved
	r.url = url
	close(r.done)
	return true
}

// cancel marks a pending result cancelled. When the result had already been
// resolved it returns the granted url and true so the caller can release it.
func (r *result) cancel() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case resultResolved:
		return r.url, true
	case resultPending:
		r.state = resultCancelled
		close(r.done)
	}
	return "", false
}

func (r *result) finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state != resultPending
}

// value returns the resolved url, if any.
func (r *result) value() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.url, r.state == resultResolved
}

// pendingRequest is one queued submission.
type pendingRequest struct {
	id         string
	modelID    string
	res        *result
	enqueuedAt time.Time
}

func newPendingRequest(modelID string) *pendingRequest {
	return &pendingRequest{
		id:         uuid.NewString(),
		modelID:    modelID,
		res:        newResult(),
		enqueuedAt: time.Now(),
	}
}
