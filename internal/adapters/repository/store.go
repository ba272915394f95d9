// Package repository defines the committed stroke store interface and errors.
package repository

import (
	"context"

	"github.com/okian/inkline/internal/domain/model"
)

// Store provides access to the committed stroke set. It is the single
// mutation point shared by the pipeline (commit), the recorder
// (persistence acknowledgment) and the eraser; all operations are
// serialized per instance.
type Store interface {
	// CommitStroke moves a closed stroke into the committed set. It never
	// fails: when the capacity bound is exceeded it evicts the oldest
	// stroke already persisted by the recorder, never an unpersisted one.
	CommitStroke(ctx context.Context, stroke *model.Stroke)

	// Stroke returns the committed stroke with the given id.
	// Returns ErrNotFound for unknown or erased strokes.
	Stroke(ctx context.Context, id uint64) (model.Stroke, error)

	// Snapshot returns a consistent point-in-time copy of the committed,
	// non-erased strokes in commit order. It never blocks producers for
	// longer than the copy.
	Snapshot(ctx context.Context) []model.Stroke

	// MarkPersisted records the recorder's durable-write acknowledgment
	// for a stroke, unlocking eviction and deferred erasure.
	MarkPersisted(ctx context.Context, id uint64)

	// Erase removes a stroke. Unpersisted strokes are tombstoned until the
	// recorder acknowledges them, then deleted; persisted strokes are
	// deleted immediately. Returns ErrNotFound if the id is unknown or
	// already erased.
	Erase(ctx context.Context, id uint64) error

	// EraseRegion erases every stroke whose bounding box intersects the
	// given box and returns their ids.
	EraseRegion(ctx context.Context, box model.BoundingBox) []uint64

	// Count returns the number of committed, non-erased strokes.
	Count(ctx context.Context) int
}
