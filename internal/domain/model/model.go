// Package model contains domain models passed between layers.
package model

// RawSample is one device callback payload: position, pressure and tilt in
// device units, stamped with the device clock. Immutable once produced.
type RawSample struct {
	X        float64 // device coordinate
	Y        float64 // device coordinate
	Pressure float64 // 0.0-1.0, 0 means the pen is not touching
	TiltX    float64 // degrees
	TiltY    float64 // degrees
	DeviceTS float64 // device clock, seconds
}

// Point is a normalized sample on the session timeline. Once assigned to a
// stroke it is owned by that stroke and never mutated, except for Velocity
// which the feature calculator fills in on stroke close.
type Point struct {
	X        float64 `json:"x"`        // normalized to the logical canvas
	Y        float64 `json:"y"`        // normalized to the logical canvas
	Pressure float64 `json:"pressure"` // clamped to [0,1]
	TiltX    float64 `json:"tilt_x,omitempty"`
	TiltY    float64 `json:"tilt_y,omitempty"`
	TS       float64 `json:"t"`                  // session clock, seconds
	Velocity float64 `json:"velocity,omitempty"` // canvas units per second
	DeviceTS float64 `json:"-"`                  // device clock, kept for duplicate detection
}

// StrokeState tags the lifecycle of a stroke.
type StrokeState int

// Stroke lifecycle states.
const (
	StrokeOpen StrokeState = iota
	StrokeClosed
	StrokeDiscarded
)

// String returns the lowercase state name.
func (s StrokeState) String() string {
	switch s {
	case StrokeOpen:
		return "open"
	case StrokeClosed:
		return "closed"
	case StrokeDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// CloseReason records why a stroke was closed.
type CloseReason string

// Stroke close reasons.
const (
	ClosePenUp    CloseReason = "pen_up"
	CloseTimeout  CloseReason = "timeout"
	CloseOverlap  CloseReason = "overlap"
	CloseShutdown CloseReason = "shutdown"
)

// Stroke is one continuous pen-down-to-pen-up point sequence. The detector
// owns the single open stroke; once committed the store owns it exclusively.
type Stroke struct {
	ID          uint64      `json:"stroke_id"`
	Points      []Point     `json:"points"` // insertion order = temporal order
	StartTime   float64     `json:"start_time"`
	EndTime     float64     `json:"end_time"`
	State       StrokeState `json:"-"`
	CloseReason CloseReason `json:"close_reason,omitempty"`
	Features    *Features   `json:"features,omitempty"` // filled once on close
}

// Duration returns the stroke duration in seconds.
func (s *Stroke) Duration() float64 {
	return s.EndTime - s.StartTime
}

// LastPoint returns the most recently appended point, or nil for an empty stroke.
func (s *Stroke) LastPoint() *Point {
	if len(s.Points) == 0 {
		return nil
	}
	return &s.Points[len(s.Points)-1]
}

// BoundingBox is an axis-aligned box in canvas coordinates.
type BoundingBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Contains reports whether the point (x, y) lies inside the box, edges included.
func (b BoundingBox) Contains(x, y float64) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

// Intersects reports whether two boxes overlap, edges included.
func (b BoundingBox) Intersects(o BoundingBox) bool {
	return b.MinX <= o.MaxX && o.MinX <= b.MaxX && b.MinY <= o.MaxY && o.MinY <= b.MaxY
}

// Features holds the per-stroke metrics computed exactly once when a stroke
// closes. Immutable after creation.
type Features struct {
	PathLength       float64     `json:"path_length"`
	Duration         float64     `json:"duration"`
	MeanPressure     float64     `json:"mean_pressure"`
	PeakPressure     float64     `json:"peak_pressure"`
	MeanVelocity     float64     `json:"mean_velocity"`
	PeakVelocity     float64     `json:"peak_velocity"`
	Straightness     float64     `json:"straightness"` // chord length / path length
	DirectionChanges int         `json:"direction_changes"`
	Bounds           BoundingBox `json:"bounds"`
}

// ExternalSample is one multichannel sample from the external stream source,
// stamped with the source's own clock.
type ExternalSample struct {
	Channels []float64 // ordered channel values
	SourceTS float64   // source clock, seconds
}

// StreamInfo describes a discoverable external stream source.
type StreamInfo struct {
	Name         string
	ChannelCount int
	SampleRate   float64 // nominal, Hz
}
