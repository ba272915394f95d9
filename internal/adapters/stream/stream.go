// Package stream discovers and subscribes to external multichannel
// time-series sources and aligns their clocks with the session clock.
//
// Transport is local and in-process: sources register themselves on a
// Registry and deliver samples over a channel. The Manager adds the
// discovery-timeout and connect semantics on top.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/okian/inkline/internal/domain/model"
	"github.com/okian/inkline/pkg/logger"
)

// Default manager configuration constants.
const (
	defaultDiscoveryTimeout = 2 * time.Second
	discoveryPollInterval   = 50 * time.Millisecond
)

// Source is a connected external stream delivering samples stamped with
// the source's own clock.
type Source interface {
	// Info describes the stream.
	Info() model.StreamInfo

	// Samples returns the delivery channel. It is closed when the source
	// stops.
	Samples() <-chan model.ExternalSample

	// Close stops the source.
	Close() error
}

// Registry is the in-process discovery surface sources register on.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: make(map[string]Source)}
}

// Register makes a source discoverable under its info name.
func (r *Registry) Register(src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources[src.Info().Name] = src
}

// Unregister removes a source by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sources, name)
}

// List returns the infos of all registered sources.
func (r *Registry) List() []model.StreamInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]model.StreamInfo, 0, len(r.sources))
	for _, src := range r.sources {
		infos = append(infos, src.Info())
	}
	return infos
}

// lookup returns a source by name.
func (r *Registry) lookup(name string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.sources[name]
	return src, ok
}

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithDiscoveryTimeout bounds how long discovery waits for a source.
func WithDiscoveryTimeout(timeout time.Duration) Option {
	return func(m *Manager) {
		if timeout > 0 {
			m.discoveryTimeout = timeout
		}
	}
}

// WithLogger sets a custom logger for the manager.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// Manager finds and connects external stream sources.
type Manager struct {
	registry         *Registry
	discoveryTimeout time.Duration

	logger logger.Logger
}

// NewManager creates a Manager over a registry with configuration options.
func NewManager(registry *Registry, opts ...Option) *Manager {
	m := &Manager{
		registry:         registry,
		discoveryTimeout: defaultDiscoveryTimeout,
		logger:           logger.Get().Named("stream"),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Discover waits up to the discovery timeout for at least one source and
// returns all available stream infos. Fails with ErrStreamUnavailable when
// none appears in time; the caller degrades to ink-only recording.
func (m *Manager) Discover(ctx context.Context) ([]model.StreamInfo, error) {
	deadline := time.NewTimer(m.discoveryTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(discoveryPollInterval)
	defer tick.Stop()

	for {
		if infos := m.registry.List(); len(infos) > 0 {
			m.logger.Info(ctx, "discovered external streams", logger.Int("count", len(infos)))
			return infos, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			m.logger.Warn(ctx, "no external stream found within discovery timeout",
				logger.Duration("timeout", m.discoveryTimeout),
			)
			return nil, ErrStreamUnavailable
		case <-tick.C:
		}
	}
}

// Connect returns the source registered under name.
func (m *Manager) Connect(ctx context.Context, name string) (Source, error) {
	src, ok := m.registry.lookup(name)
	if !ok {
		return nil, ErrStreamUnavailable
	}
	m.logger.Info(ctx, "connected to external stream",
		logger.String("name", name),
		logger.Int("channels", src.Info().ChannelCount),
		logger.Float64("sampleRate", src.Info().SampleRate),
	)
	return src, nil
}
