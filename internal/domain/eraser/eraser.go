// Package eraser applies erase gestures to the stroke store and records
// them on the session timeline.
package eraser

import (
	"context"

	"github.com/okian/inkline/internal/adapters/mq/queue"
	"github.com/okian/inkline/internal/adapters/recorder"
	"github.com/okian/inkline/internal/adapters/repository"
	"github.com/okian/inkline/internal/domain/clock"
	"github.com/okian/inkline/internal/domain/model"
	"github.com/okian/inkline/pkg/logger"
)

// Option applies a configuration option to the Eraser.
type Option func(*Eraser)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Eraser) {
		if l != nil {
			e.logger = l
		}
	}
}

// Eraser removes strokes from the store and stamps an erase marker into
// the session log so reconstruction can tell intent from loss. The marker
// queue may be nil when no recording is active.
type Eraser struct {
	store   repository.Store
	records queue.Queue[recorder.Record]
	clock   *clock.SessionClock
	logger  logger.Logger
}

// New creates an Eraser over the given store.
func New(store repository.Store, records queue.Queue[recorder.Record], sessionClock *clock.SessionClock, opts ...Option) *Eraser {
	e := &Eraser{
		store:   store,
		records: records,
		clock:   sessionClock,
		logger:  logger.Get().Named("eraser"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Erase removes the stroke with the given id. Unknown and already-erased
// ids report ErrNotFound to the caller and change nothing.
func (e *Eraser) Erase(ctx context.Context, id uint64) error {
	if err := e.store.Erase(ctx, id); err != nil {
		return err
	}

	e.logger.Info(ctx, "stroke erased", logger.Uint64("stroke_id", id))
	e.mark(ctx)
	return nil
}

// EraseRegion removes every stroke intersecting the given canvas box and
// returns how many were removed.
func (e *Eraser) EraseRegion(ctx context.Context, box model.BoundingBox) int {
	erased := e.store.EraseRegion(ctx, box)
	if len(erased) == 0 {
		return 0
	}

	e.logger.Info(ctx, "region erased",
		logger.Int("strokes", len(erased)),
		logger.Float64("min_x", box.MinX),
		logger.Float64("min_y", box.MinY),
		logger.Float64("max_x", box.MaxX),
		logger.Float64("max_y", box.MaxY),
	)
	e.mark(ctx)
	return len(erased)
}

func (e *Eraser) mark(ctx context.Context) {
	if e.records == nil {
		return
	}
	if err := recorder.EnqueueMarker(ctx, e.records, e.clock.Now(), recorder.MarkerErase); err != nil {
		e.logger.Warn(ctx, "erase marker dropped", logger.Error(err))
	}
}
