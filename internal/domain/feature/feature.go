// Package feature computes per-stroke metrics from closed strokes.
package feature

import (
	"math"

	"github.com/okian/inkline/internal/domain/model"
)

// Calculator derives per-point velocities and per-stroke aggregates.
// Compute is a pure function over the stroke's ordered points, so it
// needs no locking once a stroke is closed.
type Calculator struct{}

// New creates a Calculator.
func New() *Calculator {
	return &Calculator{}
}

// Compute fills per-point velocities on the stroke and returns its feature
// record. Velocity of the first point is 0 by convention; a zero time delta
// yields velocity 0 rather than an error (duplicate timestamps are filtered
// upstream, this is defensive).
func (c *Calculator) Compute(stroke *model.Stroke) *model.Features {
	f := &model.Features{}

	if len(stroke.Points) == 0 {
		return f
	}

	f.Duration = stroke.Duration()

	first := stroke.Points[0]
	f.PeakPressure = first.Pressure
	f.Bounds = model.BoundingBox{MinX: first.X, MinY: first.Y, MaxX: first.X, MaxY: first.Y}
	stroke.Points[0].Velocity = 0

	pressureSum := first.Pressure
	velocitySum := 0.0

	for i := 1; i < len(stroke.Points); i++ {
		prev := stroke.Points[i-1]
		cur := &stroke.Points[i]

		dx := cur.X - prev.X
		dy := cur.Y - prev.Y
		segment := math.Hypot(dx, dy)
		f.PathLength += segment

		dt := cur.TS - prev.TS
		if dt > 0 {
			cur.Velocity = segment / dt
		} else {
			cur.Velocity = 0
		}

		pressureSum += cur.Pressure
		velocitySum += cur.Velocity
		f.PeakPressure = math.Max(f.PeakPressure, cur.Pressure)
		f.PeakVelocity = math.Max(f.PeakVelocity, cur.Velocity)

		f.Bounds.MinX = math.Min(f.Bounds.MinX, cur.X)
		f.Bounds.MinY = math.Min(f.Bounds.MinY, cur.Y)
		f.Bounds.MaxX = math.Max(f.Bounds.MaxX, cur.X)
		f.Bounds.MaxY = math.Max(f.Bounds.MaxY, cur.Y)
	}

	n := float64(len(stroke.Points))
	f.MeanPressure = pressureSum / n
	f.MeanVelocity = velocitySum / n

	f.Straightness = straightness(stroke.Points, f.PathLength)
	f.DirectionChanges = directionChanges(stroke.Points)

	return f
}

// straightness is the chord-to-path ratio: 1 for a perfect line, lower for
// curved strokes. A degenerate stroke (zero path length) counts as straight.
func straightness(points []model.Point, pathLength float64) float64 {
	if pathLength == 0 {
		return 1
	}
	first, last := points[0], points[len(points)-1]
	chord := math.Hypot(last.X-first.X, last.Y-first.Y)
	return chord / pathLength
}

// directionChanges counts sign flips of the turning direction along the
// stroke, a cheap proxy for the number of curvature reversals.
func directionChanges(points []model.Point) int {
	changes := 0
	lastSign := 0
	for i := 2; i < len(points); i++ {
		ax := points[i-1].X - points[i-2].X
		ay := points[i-1].Y - points[i-2].Y
		bx := points[i].X - points[i-1].X
		by := points[i].Y - points[i-1].Y

		cross := ax*by - ay*bx
		sign := 0
		switch {
		case cross > 0:
			sign = 1
		case cross < 0:
			sign = -1
		}
		if sign != 0 && lastSign != 0 && sign != lastSign {
			changes++
		}
		if sign != 0 {
			lastSign = sign
		}
	}
	return changes
}
