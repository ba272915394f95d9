// Package process transforms raw device samples into normalized points.
package process

import (
	"sync/atomic"

	"github.com/okian/inkline/internal/domain/model"
	"github.com/okian/inkline/pkg/metrics"
)

// Default device bounds, used until the driver reports real ones.
const (
	defaultDeviceWidth  = 1920.0
	defaultDeviceHeight = 1080.0
)

// Option applies a configuration option to the Processor.
type Option func(*Processor)

// WithCanvasSize sets the logical canvas the points are normalized into.
func WithCanvasSize(width, height float64) Option {
	return func(p *Processor) {
		if width > 0 && height > 0 {
			p.canvasW = width
			p.canvasH = height
		}
	}
}

// WithDeviceBounds sets the device coordinate range reported by the driver.
func WithDeviceBounds(minX, minY, maxX, maxY float64) Option {
	return func(p *Processor) {
		if maxX > minX && maxY > minY {
			p.devMinX, p.devMinY = minX, minY
			p.devMaxX, p.devMaxY = maxX, maxY
		}
	}
}

// Processor normalizes raw samples: coordinate transform onto the logical
// canvas, pressure clamping and duplicate-timestamp rejection. It is a
// deterministic function of its input plus the previous point handed in
// for duplicate detection; there is no other hidden state.
type Processor struct {
	canvasW, canvasH float64
	devMinX, devMinY float64
	devMaxX, devMaxY float64

	processed atomic.Uint64
	rejected  atomic.Uint64
}

// New creates a Processor with configuration options.
func New(opts ...Option) *Processor {
	p := &Processor{
		canvasW: defaultDeviceWidth,
		canvasH: defaultDeviceHeight,
		devMaxX: defaultDeviceWidth,
		devMaxY: defaultDeviceHeight,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Process converts a raw sample stamped at sessionTS into a normalized
// point. prev is the last point of the currently open stroke, or nil.
// Returns ok=false when the sample repeats prev's device timestamp and
// must be dropped; the receipt stamp is unique per sample and useless for
// duplicate detection.
func (p *Processor) Process(raw model.RawSample, sessionTS float64, prev *model.Point) (model.Point, bool) {
	if prev != nil && raw.DeviceTS == prev.DeviceTS {
		p.rejected.Add(1)
		metrics.RecordPointRejected()
		return model.Point{}, false
	}

	point := model.Point{
		X:        clamp(p.normX(raw.X), 0, p.canvasW),
		Y:        clamp(p.normY(raw.Y), 0, p.canvasH),
		Pressure: clamp(raw.Pressure, 0, 1),
		TiltX:    raw.TiltX,
		TiltY:    raw.TiltY,
		TS:       sessionTS,
		DeviceTS: raw.DeviceTS,
	}

	p.processed.Add(1)
	metrics.RecordPointProcessed()
	return point, true
}

// UpdateDeviceBounds replaces the device coordinate range at runtime, for
// drivers that report resolution only after the first sample.
func (p *Processor) UpdateDeviceBounds(minX, minY, maxX, maxY float64) {
	if maxX > minX && maxY > minY {
		p.devMinX, p.devMinY = minX, minY
		p.devMaxX, p.devMaxY = maxX, maxY
	}
}

// Stats returns processing counters for monitoring.
func (p *Processor) Stats() map[string]uint64 {
	return map[string]uint64{
		"processed": p.processed.Load(),
		"rejected":  p.rejected.Load(),
	}
}

func (p *Processor) normX(x float64) float64 {
	return (x - p.devMinX) / (p.devMaxX - p.devMinX) * p.canvasW
}

func (p *Processor) normY(y float64) float64 {
	return (y - p.devMinY) / (p.devMaxY - p.devMinY) * p.canvasH
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
