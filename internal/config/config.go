// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import "time"

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the metrics/health HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// OutputDir is the directory where session logs are written.
	OutputDir string `koanf:"output_dir"`

	// IdleTimeoutMS closes an open stroke when no sample arrives within it.
	IdleTimeoutMS int `koanf:"idle_timeout_ms"`

	// BufferCapacity bounds the point ingress queue.
	BufferCapacity int `koanf:"buffer_capacity"`

	// StrokeCapacity bounds the committed stroke store. Only strokes already
	// persisted by the recorder are evicted under this bound.
	StrokeCapacity int `koanf:"stroke_capacity"`

	// RecordCapacity bounds the recorder's staging queue.
	RecordCapacity int `koanf:"record_capacity"`

	// DiscoveryTimeoutMS bounds the wait for an external stream source.
	DiscoveryTimeoutMS int `koanf:"discovery_timeout_ms"`

	// CanvasWidth and CanvasHeight define the logical canvas that device
	// coordinates are normalized into.
	CanvasWidth  float64 `koanf:"canvas_width"`
	CanvasHeight float64 `koanf:"canvas_height"`

	// MinStrokeLength discards strokes whose path length is below it,
	// in logical canvas units. Zero keeps every stroke, taps included.
	MinStrokeLength float64 `koanf:"min_stroke_length"`

	// OffsetIntervalMS sets how often the external clock offset is re-estimated.
	OffsetIntervalMS int `koanf:"offset_interval_ms"`

	// OffsetAlpha is the EMA smoothing factor for offset estimation (0,1].
	OffsetAlpha float64 `koanf:"offset_alpha"`

	// DesyncThresholdMS flags offset measurements deviating beyond it.
	DesyncThresholdMS int `koanf:"desync_threshold_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		OutputDir:          "./recordings",
		IdleTimeoutMS:      500,
		BufferCapacity:     10_000,
		StrokeCapacity:     1_000,
		RecordCapacity:     10_000,
		DiscoveryTimeoutMS: 2_000,
		CanvasWidth:        1920,
		CanvasHeight:       1080,
		MinStrokeLength:    0,
		OffsetIntervalMS:   1_000,
		OffsetAlpha:        0.2,
		DesyncThresholdMS:  50,
	}
}

// IdleTimeout returns the stroke idle timeout as a duration.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMS) * time.Millisecond
}

// DiscoveryTimeout returns the stream discovery timeout as a duration.
func (c *Config) DiscoveryTimeout() time.Duration {
	return time.Duration(c.DiscoveryTimeoutMS) * time.Millisecond
}

// OffsetInterval returns the offset re-estimation interval as a duration.
func (c *Config) OffsetInterval() time.Duration {
	return time.Duration(c.OffsetIntervalMS) * time.Millisecond
}

// DesyncThreshold returns the clock desync bound as a duration.
func (c *Config) DesyncThreshold() time.Duration {
	return time.Duration(c.DesyncThresholdMS) * time.Millisecond
}
