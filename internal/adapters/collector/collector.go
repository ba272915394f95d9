// Package collector receives raw samples from the pen driver callback.
//
// The callback may fire on a foreign execution context, so OnSample does
// nothing beyond stamping the sample with the session clock and a
// non-blocking enqueue. When the ingress queue is full the sample is
// dropped and counted; the producer is never blocked or deadlocked.
package collector

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/okian/inkline/internal/adapters/mq/queue"
	"github.com/okian/inkline/internal/domain/clock"
	"github.com/okian/inkline/internal/domain/model"
	"github.com/okian/inkline/pkg/logger"
	"github.com/okian/inkline/pkg/metrics"
)

// Stamped is a raw sample paired with its session-clock receipt time.
// The device clock is kept for diagnostics; the pipeline orders on SessionTS.
type Stamped struct {
	Raw       model.RawSample
	SessionTS float64
}

// Option applies a configuration option to the Collector.
type Option func(*Collector)

// WithLogger sets a custom logger for the collector.
func WithLogger(l logger.Logger) Option {
	return func(c *Collector) {
		if l != nil {
			c.logger = l
		}
	}
}

// Collector is the ingress producer at the device boundary.
type Collector struct {
	ingress  queue.Queue[Stamped]
	clock    *clock.SessionClock
	accepted atomic.Uint64
	dropped  atomic.Uint64

	logger logger.Logger
}

// New creates a Collector pushing into the given ingress queue.
func New(ingress queue.Queue[Stamped], sessionClock *clock.SessionClock, opts ...Option) *Collector {
	c := &Collector{
		ingress: ingress,
		clock:   sessionClock,
		logger:  logger.Get().Named("collector"),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// OnSample is the driver callback contract. It must not block the caller
// beyond the enqueue itself.
func (c *Collector) OnSample(raw model.RawSample) {
	stamped := Stamped{Raw: raw, SessionTS: c.clock.Now()}

	if err := c.ingress.Enqueue(context.Background(), stamped); err != nil {
		c.dropped.Add(1)
		metrics.RecordSampleDropped()
		if errors.Is(err, queue.ErrBufferFull) {
			return
		}
		// enqueue after close happens during shutdown races; drop silently
		return
	}

	c.accepted.Add(1)
	metrics.RecordSampleCaptured()
}

// Accepted returns the number of samples enqueued so far.
func (c *Collector) Accepted() uint64 {
	return c.accepted.Load()
}

// Dropped returns the number of samples dropped on a full queue.
func (c *Collector) Dropped() uint64 {
	return c.dropped.Load()
}
