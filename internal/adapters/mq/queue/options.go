package queue

// Option applies a configuration option to a Bounded queue.
type Option[T any] func(*Bounded[T])

// WithCapacity sets the maximum capacity of the queue.
func WithCapacity[T any](capacity int) Option[T] {
	return func(q *Bounded[T]) {
		if capacity > 0 {
			q.capacity = capacity
		}
	}
}

// WithName sets the queue name used for metrics labels.
func WithName[T any](name string) Option[T] {
	return func(q *Bounded[T]) {
		if name != "" {
			q.name = name
		}
	}
}
