// In-memory Store implementation.
//
// Ordering: commit order (stroke ids are assigned sequentially upstream,
// so commit order equals temporal order). Eviction walks from the oldest
// commit and only removes strokes the recorder has acknowledged, so a
// committed stroke is never lost before it is durably written.
package repository

import (
	"context"
	"sync"

	"github.com/okian/inkline/internal/domain/model"
	"github.com/okian/inkline/pkg/logger"
	"github.com/okian/inkline/pkg/metrics"
)

// Default store configuration constants.
const (
	defaultCapacity = 1000
)

// entry wraps a committed stroke with its persistence and erasure state.
type entry struct {
	stroke    *model.Stroke
	persisted bool
	erased    bool // tombstone: erased before the recorder acknowledged it
}

// MemStore implements Store with a mutex-guarded map plus commit order.
type MemStore struct {
	mu       sync.RWMutex
	entries  map[uint64]*entry
	order    []uint64 // commit order, oldest first
	capacity int

	logger logger.Logger
}

// NewMemStore creates a new in-memory store with configuration options.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		entries:  make(map[uint64]*entry),
		capacity: defaultCapacity,
		logger:   logger.Get().Named("store"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CommitStroke moves a closed stroke into the committed set.
func (s *MemStore) CommitStroke(ctx context.Context, stroke *model.Stroke) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[stroke.ID] = &entry{stroke: stroke}
	s.order = append(s.order, stroke.ID)

	s.evictLocked(ctx)
	s.updateGaugesLocked()
}

// Stroke returns a copy of the committed stroke with the given id.
func (s *MemStore) Stroke(ctx context.Context, id uint64) (model.Stroke, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[id]
	if !ok || e.erased {
		return model.Stroke{}, ErrNotFound
	}
	return *e.stroke, nil
}

// Snapshot returns a point-in-time copy of the committed, non-erased strokes.
func (s *MemStore) Snapshot(ctx context.Context) []model.Stroke {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Stroke, 0, len(s.order))
	for _, id := range s.order {
		e, ok := s.entries[id]
		if !ok || e.erased {
			continue
		}
		// stroke contents are immutable once committed; copying the header
		// is enough to keep readers independent of later erasure
		out = append(out, *e.stroke)
	}
	return out
}

// MarkPersisted records the recorder's acknowledgment for a stroke.
func (s *MemStore) MarkPersisted(ctx context.Context, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return
	}
	e.persisted = true

	// a tombstoned stroke becomes a hard delete once it is durable
	if e.erased {
		s.removeLocked(id)
		s.logger.Debug(ctx, "tombstoned stroke deleted after persistence",
			logger.Uint64("strokeID", id),
		)
	}

	// an acknowledgment can make a previously protected stroke evictable,
	// so the bound is re-checked here as well as on commit
	s.evictLocked(ctx)
	s.updateGaugesLocked()
}

// Erase removes a stroke, deferring the hard delete until persistence.
func (s *MemStore) Erase(ctx context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok || e.erased {
		return ErrNotFound
	}

	if e.persisted {
		s.removeLocked(id)
	} else {
		// recorder still owes a write on this exact stroke object, so only
		// the entry is tombstoned; readers skip it via the flag and the
		// hard delete happens on the persistence acknowledgment
		e.erased = true
	}

	metrics.RecordErasure()
	s.updateGaugesLocked()
	return nil
}

// EraseRegion erases every stroke intersecting the box.
func (s *MemStore) EraseRegion(ctx context.Context, box model.BoundingBox) []uint64 {
	s.mu.Lock()

	var targets []uint64
	for _, id := range s.order {
		e, ok := s.entries[id]
		if !ok || e.erased {
			continue
		}
		if e.stroke.Features != nil && e.stroke.Features.Bounds.Intersects(box) {
			targets = append(targets, id)
			continue
		}
		// features missing: fall back to scanning the points
		if e.stroke.Features == nil {
			for i := range e.stroke.Points {
				if box.Contains(e.stroke.Points[i].X, e.stroke.Points[i].Y) {
					targets = append(targets, id)
					break
				}
			}
		}
	}
	s.mu.Unlock()

	erased := make([]uint64, 0, len(targets))
	for _, id := range targets {
		if err := s.Erase(ctx, id); err == nil {
			erased = append(erased, id)
		}
	}
	return erased
}

// Count returns the number of committed, non-erased strokes.
func (s *MemStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, e := range s.entries {
		if !e.erased {
			count++
		}
	}
	return count
}

// evictLocked enforces the capacity bound among persisted strokes.
func (s *MemStore) evictLocked(ctx context.Context) {
	if s.capacity <= 0 || len(s.entries) <= s.capacity {
		return
	}

	// collect victims oldest-first before removing anything: removeLocked
	// compacts s.order, which would shift elements under a live iterator
	excess := len(s.entries) - s.capacity
	victims := make([]uint64, 0, excess)
	for _, id := range s.order {
		if len(victims) == excess {
			break
		}
		e, ok := s.entries[id]
		if !ok || !e.persisted || e.erased {
			// unpersisted strokes are protected; the store grows past its
			// bound rather than lose data
			continue
		}
		victims = append(victims, id)
	}

	for _, id := range victims {
		s.removeLocked(id)
		metrics.RecordStoreEviction()
		s.logger.Debug(ctx, "evicted persisted stroke", logger.Uint64("strokeID", id))
	}
}

// removeLocked deletes an entry and compacts the commit order.
func (s *MemStore) removeLocked(id uint64) {
	delete(s.entries, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// updateGaugesLocked refreshes the store gauges.
func (s *MemStore) updateGaugesLocked() {
	live, tombstones := 0, 0
	for _, e := range s.entries {
		if e.erased {
			tombstones++
		} else {
			live++
		}
	}
	metrics.UpdateStoreStrokes(live)
	metrics.UpdateStoreTombstones(tombstones)
}
