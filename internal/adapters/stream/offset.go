package stream

import (
	"fmt"
	"sync"

	"github.com/okian/inkline/pkg/metrics"
)

// Default offset estimation constants.
const (
	defaultAlpha       = 0.2
	defaultDesyncBound = 0.050 // seconds
	defaultMaxStep     = 0.010 // seconds, bounded correction per observation
)

// OffsetOption applies a configuration option to the OffsetEstimator.
type OffsetOption func(*OffsetEstimator)

// WithAlpha sets the EMA smoothing factor in (0,1].
func WithAlpha(alpha float64) OffsetOption {
	return func(e *OffsetEstimator) {
		if alpha > 0 && alpha <= 1 {
			e.alpha = alpha
		}
	}
}

// WithDesyncBound sets the deviation (seconds) beyond which a measurement
// is flagged as a desync.
func WithDesyncBound(bound float64) OffsetOption {
	return func(e *OffsetEstimator) {
		if bound > 0 {
			e.desyncBound = bound
		}
	}
}

// WithMaxStep caps how far one observation may move the estimate, in seconds.
func WithMaxStep(step float64) OffsetOption {
	return func(e *OffsetEstimator) {
		if step > 0 {
			e.maxStep = step
		}
	}
}

// OffsetEstimator tracks the offset between an external source clock and
// the session clock: offset = session time - source time. Raw measurements
// come from comparing reported source timestamps against local receipt
// times; an exponential moving average smooths receipt jitter. A
// measurement deviating beyond the desync bound is flagged rather than
// silently re-aligned, and its correction is clamped to the bounded step.
type OffsetEstimator struct {
	mu          sync.RWMutex
	alpha       float64
	desyncBound float64
	maxStep     float64

	offset      float64
	initialized bool
	desyncs     uint64
}

// NewOffsetEstimator creates an estimator with configuration options.
func NewOffsetEstimator(opts ...OffsetOption) *OffsetEstimator {
	e := &OffsetEstimator{
		alpha:       defaultAlpha,
		desyncBound: defaultDesyncBound,
		maxStep:     defaultMaxStep,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Observe folds one (source timestamp, local receipt time) pair into the
// estimate. It returns the updated offset; a measurement deviating beyond
// the desync bound is still folded in with a clamped step, and reported as
// ErrClockDesync.
func (e *OffsetEstimator) Observe(sourceTS, localTS float64) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	measurement := localTS - sourceTS

	if !e.initialized {
		e.offset = measurement
		e.initialized = true
		metrics.UpdateClockOffset(e.offset)
		return e.offset, nil
	}

	delta := measurement - e.offset
	var err error
	if delta > e.desyncBound || delta < -e.desyncBound {
		e.desyncs++
		metrics.RecordClockDesync()
		err = fmt.Errorf("%w: measurement deviates %.3fs from estimate", ErrClockDesync, delta)
		// bounded correction step instead of a silent re-alignment jump
		if delta > e.maxStep {
			delta = e.maxStep
		} else if delta < -e.maxStep {
			delta = -e.maxStep
		}
	}

	e.offset += e.alpha * delta
	metrics.UpdateClockOffset(e.offset)
	return e.offset, err
}

// Align converts a source timestamp into session-clock units using the
// current estimate.
func (e *OffsetEstimator) Align(sourceTS float64) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return sourceTS + e.offset
}

// Offset returns the current estimate in seconds.
func (e *OffsetEstimator) Offset() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.offset
}

// Desyncs returns how many measurements exceeded the sanity bound.
func (e *OffsetEstimator) Desyncs() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.desyncs
}
