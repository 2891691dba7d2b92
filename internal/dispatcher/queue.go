package dispatcher

// queue is a slice-backed FIFO of pending requests with head-to-tail rotation.
// It is not safe for concurrent use; Dispatcher.mu guards it.
type queue struct {
	items []*pendingRequest
}

func (q *queue) len() int { return len(q.items) }

func (q *queue) pushBack(r *pendingRequest) { q.items = append(q.items, r) }

func (q *queue) front() *pendingRequest {
	if len(q.items) == 0 {
		return nil
	}
	return q.items[0]
}

func (q *queue) popFront() *pendingRequest {
	if len(q.items) == 0 {
		return nil
	}
	r := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil // let the backing array go
	}
	return r
}

// rotate moves the head to the tail.
func (q *queue) rotate() {
	if len(q.items) < 2 {
		return
	}
	q.pushBack(q.popFront())
}
