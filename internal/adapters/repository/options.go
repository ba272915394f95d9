package repository

import "github.com/okian/inkline/pkg/logger"

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithCapacity bounds the committed set. Beyond it, the oldest persisted
// stroke is evicted on commit.
func WithCapacity(capacity int) Option {
	return func(s *MemStore) {
		if capacity > 0 {
			s.capacity = capacity
		}
	}
}

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *MemStore) {
		if l != nil {
			s.logger = l
		}
	}
}
