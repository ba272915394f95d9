package stream

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/okian/inkline/internal/domain/model"
)

// Default synthetic source constants.
const (
	defaultSineName     = "SyntheticBio"
	defaultSineChannels = 4
	defaultSineRate     = 100.0 // Hz
	sineBaseFrequency   = 1.0   // Hz of the slowest channel
)

// SineOption applies a configuration option to the SineSource.
type SineOption func(*SineSource)

// WithSourceName sets the stream name used for discovery.
func WithSourceName(name string) SineOption {
	return func(s *SineSource) {
		if name != "" {
			s.info.Name = name
		}
	}
}

// WithChannels sets the channel count.
func WithChannels(count int) SineOption {
	return func(s *SineSource) {
		if count > 0 {
			s.info.ChannelCount = count
		}
	}
}

// WithSampleRate sets the nominal sample rate in Hz.
func WithSampleRate(rate float64) SineOption {
	return func(s *SineSource) {
		if rate > 0 {
			s.info.SampleRate = rate
		}
	}
}

// WithClockSkew offsets the source clock by the given seconds, simulating
// a device whose clock disagrees with the session clock.
func WithClockSkew(seconds float64) SineOption {
	return func(s *SineSource) {
		s.skew = seconds
	}
}

// SineSource is a synthetic multichannel source emitting phase-shifted
// sine waves. It stands in for physiological hardware during development
// and tests.
type SineSource struct {
	info model.StreamInfo
	skew float64

	out  chan model.ExternalSample
	stop chan struct{}

	mu      sync.Mutex
	started bool
	closed  bool
}

// NewSineSource creates a synthetic source with configuration options.
func NewSineSource(opts ...SineOption) *SineSource {
	s := &SineSource{
		info: model.StreamInfo{
			Name:         defaultSineName,
			ChannelCount: defaultSineChannels,
			SampleRate:   defaultSineRate,
		},
		stop: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.out = make(chan model.ExternalSample, int(s.info.SampleRate))

	return s
}

// Start begins emitting samples until ctx is canceled or Close is called.
func (s *SineSource) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run(ctx)
}

func (s *SineSource) run(ctx context.Context) {
	defer close(s.out)

	period := time.Duration(float64(time.Second) / s.info.SampleRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			elapsed := time.Since(start).Seconds()
			sample := model.ExternalSample{
				Channels: make([]float64, s.info.ChannelCount),
				SourceTS: elapsed + s.skew,
			}
			for ch := range sample.Channels {
				freq := sineBaseFrequency * float64(ch+1)
				sample.Channels[ch] = math.Sin(2 * math.Pi * freq * elapsed)
			}
			select {
			case s.out <- sample:
			default:
				// receiver is behind; skip rather than block the generator
			}
		}
	}
}

// Info describes the stream.
func (s *SineSource) Info() model.StreamInfo {
	return s.info
}

// Samples returns the delivery channel.
func (s *SineSource) Samples() <-chan model.ExternalSample {
	return s.out
}

// Close stops the source. Idempotent.
func (s *SineSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.stop)
	return nil
}
