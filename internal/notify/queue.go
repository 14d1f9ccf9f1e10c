package notify

import (
	"context"
	"errors"
	"sync"
)

// ErrPipelineClosed is returned by the consumer when the queue was closed
// and by Publish after Close.
var ErrPipelineClosed = errors.New("notification pipeline closed")

// Queue is a single-slot FIFO between the webhook endpoint and the consumer.
// Publish blocks until the previous notification was taken.
type Queue struct {
	ch        chan Notification
	closed    chan struct{}
	closeOnce sync.Once
	mu        sync.RWMutex // held for reading while sending, for writing while closing
}

// NewQueue returns an open queue with capacity 1.
func NewQueue() *Queue {
	return &Queue{
		ch:     make(chan Notification, 1),
		closed: make(chan struct{}),
	}
}

// Publish enqueues n, waiting for room until ctx is done.
func (q *Queue) Publish(ctx context.Context, n Notification) error {
	select {
	case <-q.closed:
		return ErrPipelineClosed
	default:
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	select {
	case <-q.closed:
		return ErrPipelineClosed
	default:
	}

	select {
	case q.ch <- n:
		return nil
	case <-q.closed:
		return ErrPipelineClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting notifications. Queued ones are still delivered.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.closed)
		q.mu.Lock()
		close(q.ch)
		q.mu.Unlock()
	})
}

// C is the receive side of the queue.
func (q *Queue) C() <-chan Notification {
	return q.ch
}
