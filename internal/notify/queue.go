package notify

import (
	"context"
	"sync"
)

// Queue is an unbounded FIFO of messages with a single consumer. Queues
// are compared by identity when registered with a source.
type Queue struct {
	mu    sync.Mutex
	items []Message
	ready chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Put appends m. It never blocks.
func (q *Queue) Put(m Message) {
	q.mu.Lock()
	q.items = append(q.items, m)
	q.mu.Unlock()
	q.signal()
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// TryGet removes and returns the oldest message, if any.
func (q *Queue) TryGet() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Message{}, false
	}
	m := q.items[0]
	q.items[0] = Message{}
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return m, true
}

// Ready is signalled whenever the queue may be non-empty. Consumers that
// also wait on timers select on it and then call TryGet.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Get blocks until a message arrives or ctx is done.
func (q *Queue) Get(ctx context.Context) (Message, error) {
	for {
		if m, ok := q.TryGet(); ok {
			return m, nil
		}
		select {
		case <-q.ready:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
