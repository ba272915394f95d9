// Package queue provides the bounded staging queues that decouple producer
// timing from consumer timing.
//
// The ingress queue carries stamped device samples from the collector to
// the pipeline; the record queue carries log records to the recorder. Both
// are instances of the same channel-backed bounded queue.
package queue

import (
	"context"
	"sync"

	"github.com/okian/inkline/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 10000
)

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue[T any] interface {
	// Enqueue adds an element to the queue. It never blocks; when the
	// queue is full it returns ErrBufferFull, when closed ErrClosed.
	Enqueue(ctx context.Context, e T) error

	// Dequeue returns a channel that will receive elements as they become
	// available. The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan T

	// Len returns the current number of queued elements.
	Len(ctx context.Context) int

	// Close gracefully shuts down the queue. Elements already enqueued
	// remain consumable; new enqueues fail.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// Bounded implements Queue using a buffered channel.
type Bounded[T any] struct {
	elems    chan T
	capacity int
	name     string

	mu     sync.RWMutex
	closed bool
}

// New creates a bounded queue with configuration options.
func New[T any](opts ...Option[T]) *Bounded[T] {
	q := &Bounded[T]{
		capacity: defaultCapacity,
		name:     "queue",
	}

	// Apply all options
	for _, opt := range opts {
		opt(q)
	}

	q.elems = make(chan T, q.capacity)

	metrics.UpdateQueueCapacity(q.name, q.capacity)
	metrics.UpdateQueueSize(q.name, 0)
	metrics.UpdateQueueUtilization(q.name, 0.0)

	return q
}

// Enqueue adds an element to the queue without blocking the caller.
func (q *Bounded[T]) Enqueue(ctx context.Context, e T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError(q.name)
		return ErrClosed
	}

	select {
	case q.elems <- e:
		size := len(q.elems)
		metrics.UpdateQueueSize(q.name, size)
		metrics.UpdateQueueUtilization(q.name, float64(size)/float64(q.capacity))
		return nil
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError(q.name)
		return ctx.Err()
	default:
		metrics.RecordQueueEnqueueError(q.name)
		return ErrBufferFull
	}
}

// Dequeue returns a channel that will receive elements as they become available.
func (q *Bounded[T]) Dequeue(ctx context.Context) <-chan T {
	out := make(chan T)
	go func() {
		defer close(out)
		for e := range q.elems {
			select {
			case out <- e:
				size := len(q.elems)
				metrics.UpdateQueueSize(q.name, size)
				metrics.UpdateQueueUtilization(q.name, float64(size)/float64(q.capacity))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued elements.
func (q *Bounded[T]) Len(ctx context.Context) int {
	size := len(q.elems)
	metrics.UpdateQueueSize(q.name, size)
	return size
}

// Close gracefully shuts down the queue.
func (q *Bounded[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil // already closed
	}

	close(q.elems)
	q.closed = true

	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *Bounded[T]) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
