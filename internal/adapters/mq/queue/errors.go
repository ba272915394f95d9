package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	// ErrBufferFull signals a bounded queue at capacity; the caller drops
	// and counts rather than blocking.
	ErrBufferFull = errors.New("buffer full")

	// ErrClosed signals an enqueue after Close.
	ErrClosed = errors.New("queue closed")
)
