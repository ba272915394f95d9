// Package sim is a synthetic pen driver. It plays scripted gestures
// through the same callback contract a real tablet driver would use,
// which makes the full pipeline exercisable without hardware.
package sim

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/okian/inkline/internal/domain/model"
	"github.com/okian/inkline/pkg/logger"
)

// Default driver configuration constants.
const (
	defaultSampleRate = 200.0 // Hz, matches common pen hardware
	defaultPressure   = 0.6
	jitterDivisor     = 1000000
	jitterAmplitude   = 0.5 // device units
)

// Handler receives each generated sample. The collector's OnSample
// satisfies this.
type Handler func(model.RawSample)

// Gesture is one scripted pen-down line from start to end, drawn over
// Duration at constant speed, followed by a pen lift and a Gap pause.
type Gesture struct {
	FromX, FromY float64
	ToX, ToY     float64
	Pressure     float64
	Duration     time.Duration
	Gap          time.Duration
}

// Option applies a configuration option to the Driver.
type Option func(*Driver)

// WithSampleRate sets the sampling rate in Hz.
func WithSampleRate(hz float64) Option {
	return func(d *Driver) {
		if hz > 0 {
			d.sampleRate = hz
		}
	}
}

// WithJitter adds random positional noise, in device units, to every sample.
func WithJitter(amplitude float64) Option {
	return func(d *Driver) {
		d.jitter = amplitude
	}
}

// WithRealtime controls pacing. When false the driver emits the whole
// script back to back, advancing only the device clock; tests use this.
func WithRealtime(realtime bool) Option {
	return func(d *Driver) {
		d.realtime = realtime
	}
}

// WithLogger sets a custom logger for the driver.
func WithLogger(l logger.Logger) Option {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// Driver replays gesture scripts as raw samples.
type Driver struct {
	sampleRate float64
	jitter     float64
	realtime   bool

	logger logger.Logger
}

// New creates a Driver with configuration options.
func New(opts ...Option) *Driver {
	d := &Driver{
		sampleRate: defaultSampleRate,
		realtime:   true,
		logger:     logger.Get().Named("sim"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// randomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func randomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(jitterDivisor))
	return float64(n.Int64()) / float64(jitterDivisor)
}

// Play emits every gesture in the script through the handler. The device
// clock starts at zero and advances by the sample interval; in realtime
// mode emission is paced by a ticker and stops early when ctx is done.
func (d *Driver) Play(ctx context.Context, script []Gesture, handler Handler) error {
	interval := 1.0 / d.sampleRate
	deviceTS := 0.0

	var tick *time.Ticker
	if d.realtime {
		tick = time.NewTicker(time.Duration(interval * float64(time.Second)))
		defer tick.Stop()
	}

	d.logger.Info(ctx, "script playback started",
		logger.Int("gestures", len(script)),
		logger.Float64("sampleRateHz", d.sampleRate),
	)

	for _, g := range script {
		steps := int(g.Duration.Seconds() * d.sampleRate)
		if steps < 2 {
			steps = 2
		}
		pressure := g.Pressure
		if pressure <= 0 {
			pressure = defaultPressure
		}

		for i := 0; i <= steps; i++ {
			if err := d.pace(ctx, tick); err != nil {
				return err
			}
			frac := float64(i) / float64(steps)
			handler(model.RawSample{
				X:        g.FromX + (g.ToX-g.FromX)*frac + d.noise(),
				Y:        g.FromY + (g.ToY-g.FromY)*frac + d.noise(),
				Pressure: pressure,
				DeviceTS: deviceTS,
			})
			deviceTS += interval
		}

		// pen lift: a single zero-pressure sample at the gesture's end point
		if err := d.pace(ctx, tick); err != nil {
			return err
		}
		handler(model.RawSample{X: g.ToX, Y: g.ToY, Pressure: 0, DeviceTS: deviceTS})
		deviceTS += interval

		gapSteps := int(g.Gap.Seconds() * d.sampleRate)
		for i := 0; i < gapSteps; i++ {
			if err := d.pace(ctx, tick); err != nil {
				return err
			}
			deviceTS += interval
		}
	}

	d.logger.Info(ctx, "script playback finished", logger.Float64("deviceTS", deviceTS))
	return nil
}

func (d *Driver) pace(ctx context.Context, tick *time.Ticker) error {
	if tick == nil {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-tick.C:
		return nil
	}
}

func (d *Driver) noise() float64 {
	if d.jitter <= 0 {
		return 0
	}
	return (randomFloat() - 0.5) * 2 * d.jitter
}

// DemoScript returns a small handwriting-like script: three strokes with
// pauses long enough to keep them separate.
func DemoScript() []Gesture {
	return []Gesture{
		{FromX: 100, FromY: 200, ToX: 400, ToY: 220, Pressure: 0.55, Duration: 300 * time.Millisecond, Gap: 150 * time.Millisecond},
		{FromX: 420, FromY: 180, ToX: 450, ToY: 400, Pressure: 0.70, Duration: 250 * time.Millisecond, Gap: 150 * time.Millisecond},
		{FromX: 480, FromY: 200, ToX: 800, ToY: 210, Pressure: 0.62, Duration: 400 * time.Millisecond, Gap: 200 * time.Millisecond},
	}
}
