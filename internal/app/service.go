// Package service provides the session controller that wires the capture
// pipeline together: device callback, ingress queue, stroke pipeline,
// external stream receiver and session recorder.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/inkline/internal/adapters/collector"
	"github.com/okian/inkline/internal/adapters/mq/queue"
	"github.com/okian/inkline/internal/adapters/recorder"
	"github.com/okian/inkline/internal/adapters/repository"
	"github.com/okian/inkline/internal/adapters/stream"
	"github.com/okian/inkline/internal/domain/clock"
	"github.com/okian/inkline/internal/domain/detect"
	"github.com/okian/inkline/internal/domain/eraser"
	"github.com/okian/inkline/internal/domain/feature"
	"github.com/okian/inkline/internal/domain/model"
	"github.com/okian/inkline/internal/domain/process"
	"github.com/okian/inkline/pkg/logger"
	"github.com/okian/inkline/pkg/metrics"
)

// Session lifecycle states.
type SessionState int

const (
	Stopped SessionState = iota
	Starting
	Recording
	Stopping
)

// String returns the lowercase state name.
func (s SessionState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Starting:
		return "starting"
	case Recording:
		return "recording"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Queue names used for metric labels.
const (
	ingressQueueName = "ingress"
	recordQueueName  = "records"
)

// Service orchestrates one recording session at a time. All lifecycle
// calls are serialized; OnSample and the snapshot/eraser operations are
// safe from any goroutine while Recording.
type Service struct {
	mu    sync.RWMutex
	state SessionState

	// Configuration
	idleTimeout     time.Duration
	bufferCapacity  int
	strokeCapacity  int
	recordCapacity  int
	canvasWidth     float64
	canvasHeight    float64
	minStrokeLength float64
	outputDir       string
	streamName      string
	discoveryWait   time.Duration
	offsetInterval  time.Duration
	offsetAlpha     float64
	desyncThreshold time.Duration
	gapTimeout      time.Duration
	registry        *stream.Registry

	// Per-session components, rebuilt on every Start
	sessionID string
	clock     *clock.SessionClock
	ingress   *queue.Bounded[collector.Stamped]
	records   *queue.Bounded[recorder.Record]
	ink       *collector.Collector
	processor *process.Processor
	detector  *detect.Detector
	features  *feature.Calculator
	store     repository.Store
	rec       *recorder.Recorder
	rubber    *eraser.Eraser
	source    stream.Source

	cancel       context.CancelFunc
	pipelineDone chan struct{}
	externalDone chan struct{}

	fatalMu  sync.Mutex
	fatalErr error

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithIdleTimeout sets the stroke idle flush delay.
func WithIdleTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.idleTimeout = timeout
		}
	}
}

// WithBufferCapacity sets the ingress queue capacity.
func WithBufferCapacity(capacity int) Option {
	return func(s *Service) {
		if capacity > 0 {
			s.bufferCapacity = capacity
		}
	}
}

// WithStrokeCapacity bounds the committed stroke store.
func WithStrokeCapacity(capacity int) Option {
	return func(s *Service) {
		if capacity > 0 {
			s.strokeCapacity = capacity
		}
	}
}

// WithRecordCapacity sets the recorder staging queue capacity.
func WithRecordCapacity(capacity int) Option {
	return func(s *Service) {
		if capacity > 0 {
			s.recordCapacity = capacity
		}
	}
}

// WithCanvasSize sets the logical canvas points are normalized to.
func WithCanvasSize(width, height float64) Option {
	return func(s *Service) {
		if width > 0 && height > 0 {
			s.canvasWidth = width
			s.canvasHeight = height
		}
	}
}

// WithMinStrokeLength sets the validation threshold below which a closed
// stroke is discarded.
func WithMinStrokeLength(length float64) Option {
	return func(s *Service) {
		if length >= 0 {
			s.minStrokeLength = length
		}
	}
}

// WithOutputDir sets where session logs are written.
func WithOutputDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.outputDir = dir
		}
	}
}

// WithStreamRegistry sets the external stream registry. Without one the
// session records ink only.
func WithStreamRegistry(registry *stream.Registry) Option {
	return func(s *Service) {
		s.registry = registry
	}
}

// WithStreamName pins discovery to a named external stream instead of
// taking the first one found.
func WithStreamName(name string) Option {
	return func(s *Service) {
		s.streamName = name
	}
}

// WithDiscoveryTimeout bounds the external stream discovery wait.
func WithDiscoveryTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.discoveryWait = timeout
		}
	}
}

// WithOffsetInterval sets how often the external clock offset is re-estimated.
func WithOffsetInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.offsetInterval = interval
		}
	}
}

// WithOffsetAlpha sets the offset estimator's smoothing factor.
func WithOffsetAlpha(alpha float64) Option {
	return func(s *Service) {
		if alpha > 0 && alpha <= 1 {
			s.offsetAlpha = alpha
		}
	}
}

// WithDesyncThreshold sets the offset deviation treated as a clock desync.
func WithDesyncThreshold(threshold time.Duration) Option {
	return func(s *Service) {
		if threshold > 0 {
			s.desyncThreshold = threshold
		}
	}
}

// WithGapTimeout sets the external silence interval recorded as a gap.
func WithGapTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.gapTimeout = timeout
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		idleTimeout:     500 * time.Millisecond,
		bufferCapacity:  10000,
		strokeCapacity:  1000,
		recordCapacity:  10000,
		canvasWidth:     1920,
		canvasHeight:    1080,
		outputDir:       "./recordings",
		discoveryWait:   2 * time.Second,
		offsetInterval:  time.Second,
		offsetAlpha:     0.2,
		desyncThreshold: 50 * time.Millisecond,
		gapTimeout:      time.Second,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("session")
	}

	return s
}

// State returns the current session state.
func (s *Service) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SessionID returns the id of the active or most recent session.
func (s *Service) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// LogPath returns the session log location, empty before the first Start.
func (s *Service) LogPath() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rec == nil {
		return ""
	}
	return s.rec.Path()
}

// Err returns the fatal storage error that ended the session, if any.
func (s *Service) Err() error {
	s.fatalMu.Lock()
	defer s.fatalMu.Unlock()
	return s.fatalErr
}

// Start begins a new recording session. metadata is attached to the log
// header; nil is fine.
func (s *Service) Start(ctx context.Context, metadata map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Stopped {
		return ErrSessionState
	}
	s.state = Starting

	s.sessionID = uuid.New().String()
	s.clock = clock.NewSessionClock()
	s.fatalMu.Lock()
	s.fatalErr = nil
	s.fatalMu.Unlock()

	s.ingress = queue.New(
		queue.WithCapacity[collector.Stamped](s.bufferCapacity),
		queue.WithName[collector.Stamped](ingressQueueName),
	)
	s.records = queue.New(
		queue.WithCapacity[recorder.Record](s.recordCapacity),
		queue.WithName[recorder.Record](recordQueueName),
	)
	metrics.UpdateQueueCapacity(ingressQueueName, s.bufferCapacity)
	metrics.UpdateQueueCapacity(recordQueueName, s.recordCapacity)

	s.ink = collector.New(s.ingress, s.clock)
	s.processor = process.New(process.WithCanvasSize(s.canvasWidth, s.canvasHeight))
	s.detector = detect.New(
		detect.WithIdleTimeout(s.idleTimeout.Seconds()),
		detect.WithMinStrokeLength(s.minStrokeLength),
	)
	s.features = feature.New()
	s.store = repository.NewMemStore(repository.WithCapacity(s.strokeCapacity))
	s.rubber = eraser.New(s.store, s.records, s.clock)

	rec, err := recorder.New(s.outputDir, s.sessionID, s.records, s.store)
	if err != nil {
		s.state = Stopped
		return err
	}
	s.rec = rec

	header := &recorder.SessionHeader{
		SessionID:    s.sessionID,
		StartedAt:    time.Now().UTC(),
		CanvasWidth:  s.canvasWidth,
		CanvasHeight: s.canvasHeight,
		Metadata:     metadata,
	}
	if err := recorder.EnqueueHeader(ctx, s.records, header); err != nil {
		s.state = Stopped
		return err
	}
	if err := recorder.EnqueueMarker(ctx, s.records, s.clock.Now(), recorder.MarkerRecordingStart); err != nil {
		s.state = Stopped
		return err
	}

	// session goroutines outlive the Start call's context
	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.pipelineDone = make(chan struct{})
	s.externalDone = make(chan struct{})

	// the recorder terminates by record-queue close, not cancellation, so
	// everything staged before Stop is drained to disk
	go s.rec.Run(context.Background())
	go s.watchRecorder(runCtx)
	go s.runPipeline(runCtx)
	go s.runExternal(runCtx)

	s.state = Recording
	s.logger.Info(ctx, "session started",
		logger.String("sessionID", s.sessionID),
		logger.String("log", s.rec.Path()),
	)
	return nil
}

// Stop ends the session: in-flight points drain, an open stroke is force
// closed, the recorder flushes, then the session clock freezes.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Recording {
		return ErrSessionState
	}
	s.state = Stopping
	s.logger.Info(ctx, "stopping session", logger.String("sessionID", s.sessionID))

	// stop accepting and drain: the pipeline consumes what is already
	// queued, then force-closes any open stroke
	_ = s.ingress.Close()
	<-s.pipelineDone

	// the receiver goroutines stop before the record queue closes so no
	// enqueue races the drain
	s.cancel()
	<-s.externalDone
	if s.source != nil {
		_ = s.source.Close()
		s.source = nil
	}

	if err := recorder.EnqueueMarker(ctx, s.records, s.clock.Now(), recorder.MarkerRecordingStop); err != nil {
		s.logger.Warn(ctx, "stop marker dropped", logger.Error(err))
	}
	_ = s.records.Close()
	<-s.rec.Done()

	s.clock.Freeze()
	s.state = Stopped
	s.logger.Info(ctx, "session stopped",
		logger.String("sessionID", s.sessionID),
		logger.Uint64("samplesAccepted", s.ink.Accepted()),
		logger.Uint64("samplesDropped", s.ink.Dropped()),
	)
	return s.Err()
}

// OnSample is the device driver callback. Samples arriving outside an
// active session are ignored.
func (s *Service) OnSample(raw model.RawSample) {
	s.mu.RLock()
	ink := s.ink
	recording := s.state == Recording
	s.mu.RUnlock()

	if !recording || ink == nil {
		return
	}
	ink.OnSample(raw)
}

// CurrentStrokes returns a point-in-time snapshot of the committed,
// non-erased strokes.
func (s *Service) CurrentStrokes(ctx context.Context) []model.Stroke {
	s.mu.RLock()
	store := s.store
	s.mu.RUnlock()

	if store == nil {
		return nil
	}
	return store.Snapshot(ctx)
}

// Erase removes the stroke with the given id.
func (s *Service) Erase(ctx context.Context, id uint64) error {
	s.mu.RLock()
	rubber := s.rubber
	s.mu.RUnlock()

	if rubber == nil {
		return ErrSessionState
	}
	return rubber.Erase(ctx, id)
}

// EraseRegion removes every stroke intersecting the box and returns how
// many were removed.
func (s *Service) EraseRegion(ctx context.Context, box model.BoundingBox) (int, error) {
	s.mu.RLock()
	rubber := s.rubber
	s.mu.RUnlock()

	if rubber == nil {
		return 0, ErrSessionState
	}
	return rubber.EraseRegion(ctx, box), nil
}

// GetStats returns session statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"state":     s.state.String(),
		"sessionID": s.sessionID,
	}

	if s.ink != nil {
		stats["samplesAccepted"] = s.ink.Accepted()
		stats["samplesDropped"] = s.ink.Dropped()
	}
	if s.processor != nil {
		for k, v := range s.processor.Stats() {
			stats[k] = v
		}
	}
	if s.detector != nil {
		d := s.detector.Stats()
		stats["strokesOpened"] = d.StrokesOpened
		stats["strokesClosed"] = d.StrokesClosed
		stats["strokesDiscarded"] = d.StrokesDiscarded
		stats["pointsOutOfOrder"] = d.PointsOutOfOrder
	}
	if s.store != nil {
		count := s.store.Count(ctx)
		stats["committedStrokes"] = count
		metrics.UpdateStoreStrokes(count)
	}

	return stats
}

// runPipeline is consumer C: dequeue, normalize, segment, compute
// features, commit and stage for recording. It owns the detector; nothing
// else touches it while the session runs.
func (s *Service) runPipeline(ctx context.Context) {
	defer close(s.pipelineDone)

	deq := s.ingress.Dequeue(ctx)
	idle := time.NewTimer(s.idleTimeout)
	defer idle.Stop()

	for {
		select {
		case stamped, ok := <-deq:
			if !ok {
				// ingress closed and drained: final forced close
				if stroke := s.detector.ForceClose(ctx, s.clock.Now()); stroke != nil {
					s.finishStroke(ctx, stroke)
				}
				return
			}
			s.handleSample(ctx, stamped)
			s.resetIdle(idle)
		case <-idle.C:
			if stroke := s.detector.FlushIdle(ctx, s.clock.Now()); stroke != nil {
				s.finishStroke(ctx, stroke)
			}
			s.resetIdle(idle)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) handleSample(ctx context.Context, stamped collector.Stamped) {
	var prev *model.Point
	if current := s.detector.Current(); current != nil {
		prev = current.LastPoint()
	}

	point, ok := s.processor.Process(stamped.Raw, stamped.SessionTS, prev)
	if !ok {
		return
	}

	if stroke := s.detector.Offer(ctx, point); stroke != nil {
		s.finishStroke(ctx, stroke)
	}
}

// finishStroke completes a closed stroke: features once, commit, stage
// for recording. Discarded strokes consumed an id but are not kept.
func (s *Service) finishStroke(ctx context.Context, stroke *model.Stroke) {
	if stroke.State != model.StrokeClosed {
		return
	}

	stroke.Features = s.features.Compute(stroke)
	s.store.CommitStroke(ctx, stroke)
	if err := recorder.EnqueueStroke(ctx, s.records, stroke); err != nil {
		s.logger.Warn(ctx, "stroke record dropped",
			logger.Uint64("strokeID", stroke.ID),
			logger.Error(err),
		)
	}
}

// resetIdle re-arms the flush timer from the detector's deadline.
func (s *Service) resetIdle(idle *time.Timer) {
	if !idle.Stop() {
		select {
		case <-idle.C:
		default:
		}
	}

	wait := s.idleTimeout
	if deadline, ok := s.detector.Deadline(); ok {
		if remaining := deadline - s.clock.Now(); remaining > 0 {
			wait = time.Duration(remaining * float64(time.Second))
		} else {
			wait = time.Millisecond
		}
	}
	idle.Reset(wait)
}

// runExternal is producer B: discover, connect and merge the external
// stream. Discovery failure degrades the session to ink-only.
func (s *Service) runExternal(ctx context.Context) {
	defer close(s.externalDone)

	if s.registry == nil {
		return
	}

	manager := stream.NewManager(s.registry, stream.WithDiscoveryTimeout(s.discoveryWait))
	infos, err := manager.Discover(ctx)
	if err != nil {
		s.logger.Warn(ctx, "external stream discovery failed, recording ink only",
			logger.Error(err),
		)
		return
	}

	name := s.streamName
	if name == "" {
		name = infos[0].Name
	}
	source, err := manager.Connect(ctx, name)
	if err != nil {
		s.logger.Warn(ctx, "external stream connect failed, recording ink only",
			logger.String("stream", name),
			logger.Error(err),
		)
		return
	}
	s.mu.Lock()
	s.source = source
	s.mu.Unlock()

	s.logger.Info(ctx, "external stream connected",
		logger.String("stream", name),
		logger.Int("channels", source.Info().ChannelCount),
	)
	s.receiveExternal(ctx, source)
}

func (s *Service) receiveExternal(ctx context.Context, source stream.Source) {
	estimator := stream.NewOffsetEstimator(
		stream.WithAlpha(s.offsetAlpha),
		stream.WithDesyncBound(s.desyncThreshold.Seconds()),
	)

	gap := time.NewTimer(s.gapTimeout)
	defer gap.Stop()
	var lastEstimate time.Time
	inGap := false

	for {
		select {
		case sample, ok := <-source.Samples():
			if !ok {
				return
			}
			localTS := s.clock.Now()

			// re-estimate on the first sample and then at most once per
			// interval; aligning every sample with a fresh offset would
			// let jitter wander the timeline
			if lastEstimate.IsZero() || time.Since(lastEstimate) >= s.offsetInterval {
				offset, err := estimator.Observe(sample.SourceTS, localTS)
				if errors.Is(err, stream.ErrClockDesync) {
					s.logger.Warn(ctx, "external clock desync",
						logger.Float64("offsetSeconds", offset),
						logger.Error(err),
					)
				}
				lastEstimate = time.Now()
			}

			if inGap {
				inGap = false
				s.logger.Info(ctx, "external stream resumed")
			}

			aligned := estimator.Align(sample.SourceTS)
			if err := recorder.EnqueueExternal(ctx, s.records, aligned, sample.Channels); err != nil {
				s.logger.Warn(ctx, "external record dropped", logger.Error(err))
			}
			metrics.RecordExternalSample()

			if !gap.Stop() {
				select {
				case <-gap.C:
				default:
				}
			}
			gap.Reset(s.gapTimeout)
		case <-gap.C:
			if !inGap {
				inGap = true
				metrics.RecordExternalGap()
				if err := recorder.EnqueueMarker(ctx, s.records, s.clock.Now(), recorder.MarkerExternalGap); err != nil {
					s.logger.Warn(ctx, "gap marker dropped", logger.Error(err))
				}
				s.logger.Warn(ctx, "external stream silent beyond gap timeout")
			}
			gap.Reset(s.gapTimeout)
		case <-ctx.Done():
			return
		}
	}
}

// watchRecorder turns a fatal storage error into a clean session stop.
func (s *Service) watchRecorder(ctx context.Context) {
	select {
	case err, ok := <-s.rec.Errors():
		if !ok || err == nil {
			return
		}
		s.fatalMu.Lock()
		s.fatalErr = err
		s.fatalMu.Unlock()
		s.logger.Error(ctx, "recorder failed, stopping session", logger.Error(err))
		go func() {
			_ = s.Stop(context.Background())
		}()
	case <-ctx.Done():
	}
}
