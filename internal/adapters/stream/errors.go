package stream

import "errors"

// Sentinel kinds for stream errors.
var (
	// ErrStreamUnavailable signals that no matching source appeared within
	// the discovery timeout. Recording degrades to ink-only.
	ErrStreamUnavailable = errors.New("external stream unavailable")

	// ErrClockDesync signals an offset measurement beyond the sanity bound.
	// Recording continues with a flagged gap.
	ErrClockDesync = errors.New("external clock desync")
)
