package mesh

import "sync"

// queue is an unbounded FIFO feeding the reactor. Producers never block, so
// transport callbacks cannot deadlock against the reactor.
type queue struct {
	mu     sync.Mutex
	items  []event
	closed bool
	ready  chan struct{}
}

func newQueue() *queue {
	return &queue{ready: make(chan struct{}, 1)}
}

// push appends ev. It reports false once the queue is closed.
func (q *queue) push(ev event) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return true
}

// take removes and returns everything queued.
func (q *queue) take() []event {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// close rejects further pushes and returns what was still queued.
func (q *queue) close() []event {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	items := q.items
	q.items = nil
	return items
}
