// Package detect segments a normalized point stream into discrete strokes.
package detect

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/okian/inkline/internal/domain/model"
	"github.com/okian/inkline/pkg/logger"
	"github.com/okian/inkline/pkg/metrics"
)

// State is the detector's position in the segmentation state machine.
type State int

// Detector states. Flushing is the transient close path between Open and
// Idle; it is observable only from close callbacks, never between calls.
const (
	Idle State = iota
	Open
	Flushing
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Open:
		return "open"
	case Flushing:
		return "flushing"
	default:
		return "unknown"
	}
}

// Option applies a configuration option to the Detector.
type Option func(*Detector)

// WithIdleTimeout sets how long an open stroke may go without a new point
// before it is flushed, in seconds of session time.
func WithIdleTimeout(seconds float64) Option {
	return func(d *Detector) {
		if seconds > 0 {
			d.idleTimeout = seconds
		}
	}
}

// WithMinStrokeLength discards closed strokes shorter than the given path
// length. Zero keeps everything, taps included.
func WithMinStrokeLength(length float64) Option {
	return func(d *Detector) {
		if length >= 0 {
			d.minLength = length
		}
	}
}

// WithLogger sets a custom logger for the detector.
func WithLogger(l logger.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// Detector turns a point stream into stroke boundaries. It is driven by a
// single pipeline goroutine and is not safe for concurrent use, except for
// Stats, which monitoring reads from other goroutines; exactly one stroke
// is open at any time.
type Detector struct {
	state       State
	current     *model.Stroke
	nextID      uint64
	idleTimeout float64 // seconds, 0 disables
	minLength   float64

	strokesOpened    atomic.Uint64
	strokesClosed    atomic.Uint64
	strokesDiscarded atomic.Uint64
	pointsAccepted   atomic.Uint64
	pointsOutOfOrder atomic.Uint64

	logger logger.Logger
}

// Stats holds detection counters.
type Stats struct {
	StrokesOpened    uint64
	StrokesClosed    uint64
	StrokesDiscarded uint64
	PointsAccepted   uint64
	PointsOutOfOrder uint64
}

// New creates a Detector with configuration options.
func New(opts ...Option) *Detector {
	d := &Detector{
		state:  Idle,
		nextID: 1,
		logger: logger.Get().Named("detector"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Offer feeds the next point through the state machine using the pressure
// convention of the device boundary: pressure > 0 is pen contact, a
// pressure-0 point while a stroke is open is a pen-up. It returns the
// stroke closed by this point, or nil.
func (d *Detector) Offer(ctx context.Context, point model.Point) *model.Stroke {
	switch d.state {
	case Idle:
		if point.Pressure > 0 {
			d.open(ctx, point)
		}
		return nil
	case Open:
		if point.Pressure > 0 {
			d.append(point)
			return nil
		}
		return d.close(ctx, point.TS, model.ClosePenUp)
	case Flushing:
		// close never yields control mid-flush; reaching here is a bug
		d.logger.Error(ctx, "point offered while flushing", logger.Float64("ts", point.TS))
		return nil
	default:
		return nil
	}
}

// PenDown handles an explicit pen-down event from drivers that report lift
// state. If a stroke is still open (missed pen-up) it is force-closed
// before the new one opens. Returns the force-closed stroke, or nil.
func (d *Detector) PenDown(ctx context.Context, point model.Point) *model.Stroke {
	var closed *model.Stroke
	if d.state == Open {
		d.logger.Warn(ctx, "pen down while stroke open, force closing",
			logger.Uint64("strokeID", d.current.ID),
		)
		closed = d.close(ctx, point.TS, model.CloseOverlap)
	}
	d.open(ctx, point)
	return closed
}

// PenUp handles an explicit pen-up event at the given session time.
// Returns the closed stroke, or nil if no stroke was open.
func (d *Detector) PenUp(ctx context.Context, ts float64) *model.Stroke {
	if d.state != Open {
		return nil
	}
	return d.close(ctx, ts, model.ClosePenUp)
}

// FlushIdle closes the open stroke if no point has arrived within the idle
// timeout, treating a stalled pen as a lifted pen. now is session time.
// Returns the closed stroke, or nil.
func (d *Detector) FlushIdle(ctx context.Context, now float64) *model.Stroke {
	if d.state != Open || d.idleTimeout <= 0 {
		return nil
	}
	last := d.current.LastPoint()
	if last == nil || now-last.TS <= d.idleTimeout {
		return nil
	}
	d.logger.Info(ctx, "idle timeout exceeded, flushing stroke",
		logger.Uint64("strokeID", d.current.ID),
		logger.Float64("idleSeconds", now-last.TS),
	)
	return d.close(ctx, last.TS, model.CloseTimeout)
}

// ForceClose closes the open stroke regardless of input, used on session
// stop. Returns the closed stroke, or nil.
func (d *Detector) ForceClose(ctx context.Context, ts float64) *model.Stroke {
	if d.state != Open {
		return nil
	}
	return d.close(ctx, ts, model.CloseShutdown)
}

// Deadline returns the session time at which the open stroke becomes idle,
// and whether such a deadline exists.
func (d *Detector) Deadline() (float64, bool) {
	if d.state != Open || d.idleTimeout <= 0 {
		return 0, false
	}
	last := d.current.LastPoint()
	if last == nil {
		return 0, false
	}
	return last.TS + d.idleTimeout, true
}

// State returns the current machine state.
func (d *Detector) State() State {
	return d.state
}

// Current returns the open stroke, or nil.
func (d *Detector) Current() *model.Stroke {
	if d.state != Open {
		return nil
	}
	return d.current
}

// Stats returns a copy of the detection counters.
func (d *Detector) Stats() Stats {
	return Stats{
		StrokesOpened:    d.strokesOpened.Load(),
		StrokesClosed:    d.strokesClosed.Load(),
		StrokesDiscarded: d.strokesDiscarded.Load(),
		PointsAccepted:   d.pointsAccepted.Load(),
		PointsOutOfOrder: d.pointsOutOfOrder.Load(),
	}
}

func (d *Detector) open(ctx context.Context, point model.Point) {
	stroke := &model.Stroke{
		ID:        d.nextID,
		Points:    []model.Point{point},
		StartTime: point.TS,
		EndTime:   point.TS,
		State:     model.StrokeOpen,
	}
	d.nextID++
	d.current = stroke
	d.state = Open
	d.strokesOpened.Add(1)
	d.pointsAccepted.Add(1)
	metrics.RecordStrokeOpened()
	metrics.UpdateOpenStrokePoints(1)
	d.logger.Debug(ctx, "stroke opened", logger.Uint64("strokeID", stroke.ID))
}

func (d *Detector) append(point model.Point) {
	last := d.current.LastPoint()
	if last != nil && point.TS < last.TS {
		// point ordering within a stroke must stay non-decreasing
		d.pointsOutOfOrder.Add(1)
		return
	}
	d.current.Points = append(d.current.Points, point)
	d.current.EndTime = point.TS
	d.pointsAccepted.Add(1)
	metrics.UpdateOpenStrokePoints(len(d.current.Points))
}

func (d *Detector) close(ctx context.Context, ts float64, reason model.CloseReason) *model.Stroke {
	d.state = Flushing

	stroke := d.current
	d.current = nil
	if ts > stroke.EndTime {
		stroke.EndTime = ts
	}
	stroke.CloseReason = reason

	if d.minLength > 0 && pathLength(stroke.Points) < d.minLength {
		stroke.State = model.StrokeDiscarded
		d.strokesDiscarded.Add(1)
		metrics.RecordStrokeDiscarded()
		d.logger.Debug(ctx, "stroke discarded below minimum length",
			logger.Uint64("strokeID", stroke.ID),
			logger.Int("points", len(stroke.Points)),
		)
	} else {
		stroke.State = model.StrokeClosed
		d.strokesClosed.Add(1)
		metrics.RecordStrokeClosed(string(reason))
		d.logger.Debug(ctx, "stroke closed",
			logger.Uint64("strokeID", stroke.ID),
			logger.Int("points", len(stroke.Points)),
			logger.String("reason", string(reason)),
		)
	}

	metrics.UpdateOpenStrokePoints(0)
	d.state = Idle
	return stroke
}

func pathLength(points []model.Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += math.Hypot(points[i].X-points[i-1].X, points[i].Y-points[i-1].Y)
	}
	return total
}
