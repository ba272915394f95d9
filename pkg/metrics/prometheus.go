// Package metrics provides Prometheus metrics for the inkline capture service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the inkline service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Capture Metrics - device samples entering the pipeline
	samplesCaptured prometheus.Counter
	samplesDropped  prometheus.Counter
	pointsProcessed prometheus.Counter
	pointsRejected  prometheus.Counter

	// Stroke Metrics - segmentation outcomes
	strokesOpened    prometheus.Counter
	strokesClosed    *prometheus.CounterVec
	strokesDiscarded prometheus.Counter
	openStrokePoints prometheus.Gauge

	// Queue Metrics - bounded staging queues
	queueSize          *prometheus.GaugeVec
	queueCapacity      *prometheus.GaugeVec
	queueUtilization   *prometheus.GaugeVec
	queueEnqueueErrors *prometheus.CounterVec

	// Store Metrics - committed stroke set
	storeStrokes    prometheus.Gauge
	storeTombstones prometheus.Gauge
	storeEvictions  prometheus.Counter
	erasures        prometheus.Counter

	// Recorder Metrics - durable log writes
	recorderWrites       *prometheus.CounterVec
	recorderWriteErrors  prometheus.Counter
	recorderWriteLatency prometheus.Histogram

	// External Stream Metrics - clock alignment and sample flow
	externalSamples prometheus.Counter
	externalGaps    prometheus.Counter
	clockOffset     prometheus.Gauge
	clockDesyncs    prometheus.Counter

	// Replay Metrics - reconstruction health
	replayRecords prometheus.Counter
	replayCorrupt prometheus.Counter

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "inkline",
		subsystem:        "capture",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Capture Metrics - ingest volume and loss at the device boundary
	m.samplesCaptured = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "samples_captured_total",
		Help:      "Total number of raw device samples accepted by the collector",
	})

	m.samplesDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "samples_dropped_total",
		Help:      "Total number of raw device samples dropped because the ingress queue was full",
	})

	m.pointsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "points_processed_total",
		Help:      "Total number of normalized points produced by the point processor",
	})

	m.pointsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "points_rejected_total",
		Help:      "Total number of samples rejected during processing (duplicate timestamps)",
	})

	// Stroke Metrics - segmentation outcomes
	m.strokesOpened = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "strokes_opened_total",
		Help:      "Total number of strokes opened by the detector",
	})

	m.strokesClosed = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "strokes_closed_total",
			Help:      "Total number of strokes closed, by close reason",
		},
		[]string{"reason"},
	)

	m.strokesDiscarded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "strokes_discarded_total",
		Help:      "Total number of strokes discarded by validation (below minimum length)",
	})

	m.openStrokePoints = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "open_stroke_points",
		Help:      "Number of points accumulated in the currently open stroke",
	})

	// Queue Metrics - ingress and recorder staging queues
	m.queueSize = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "queue_size",
			Help:      "Current size of a bounded queue (backlog indicator)",
		},
		[]string{"queue"},
	)

	m.queueCapacity = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "queue_capacity",
			Help:      "Configured capacity of a bounded queue",
		},
		[]string{"queue"},
	)

	m.queueUtilization = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "queue_utilization_ratio",
			Help:      "Queue utilization ratio (size / capacity)",
		},
		[]string{"queue"},
	)

	m.queueEnqueueErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "queue_enqueue_errors_total",
			Help:      "Total number of failed enqueue attempts, by queue",
		},
		[]string{"queue"},
	)

	// Store Metrics - committed stroke set health
	m.storeStrokes = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_strokes",
		Help:      "Number of committed strokes currently held in the store",
	})

	m.storeTombstones = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_tombstones",
		Help:      "Number of erased strokes awaiting persistence acknowledgment",
	})

	m.storeEvictions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_evictions_total",
		Help:      "Total number of persisted strokes evicted under the capacity bound",
	})

	m.erasures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "erasures_total",
		Help:      "Total number of strokes erased by the eraser tool",
	})

	// Recorder Metrics - durable log writes
	m.recorderWrites = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "recorder_writes_total",
			Help:      "Total number of records written to the session log, by kind",
		},
		[]string{"kind"},
	)

	m.recorderWriteErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recorder_write_errors_total",
		Help:      "Total number of failed session log writes",
	})

	m.recorderWriteLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "recorder_write_latency_milliseconds",
		Help:      "Histogram of session log write latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	// External Stream Metrics - alignment quality
	m.externalSamples = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "external_samples_total",
		Help:      "Total number of external stream samples received",
	})

	m.externalGaps = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "external_gaps_total",
		Help:      "Total number of detected gaps in the external stream",
	})

	m.clockOffset = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "clock_offset_seconds",
		Help:      "Current estimated offset between the external clock and the session clock",
	})

	m.clockDesyncs = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "clock_desyncs_total",
		Help:      "Total number of offset measurements exceeding the desync sanity bound",
	})

	// Replay Metrics - reconstruction health
	m.replayRecords = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "replay_records_total",
		Help:      "Total number of records successfully replayed from session logs",
	})

	m.replayCorrupt = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "replay_corrupt_records_total",
		Help:      "Total number of corrupt records skipped during replay",
	})

	// System Performance Metrics
	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "system_goroutine_count",
		Help:      "Number of goroutines",
	})
}

// RecordSampleCaptured increments the captured samples counter.
func RecordSampleCaptured() {
	globalManager.samplesCaptured.Inc()
}

// RecordSampleDropped increments the dropped samples counter.
func RecordSampleDropped() {
	globalManager.samplesDropped.Inc()
}

// RecordPointProcessed increments the processed points counter.
func RecordPointProcessed() {
	globalManager.pointsProcessed.Inc()
}

// RecordPointRejected increments the rejected points counter.
func RecordPointRejected() {
	globalManager.pointsRejected.Inc()
}

// RecordStrokeOpened increments the opened strokes counter.
func RecordStrokeOpened() {
	globalManager.strokesOpened.Inc()
}

// RecordStrokeClosed increments the closed strokes counter for a close reason.
func RecordStrokeClosed(reason string) {
	globalManager.strokesClosed.WithLabelValues(reason).Inc()
}

// RecordStrokeDiscarded increments the discarded strokes counter.
func RecordStrokeDiscarded() {
	globalManager.strokesDiscarded.Inc()
}

// UpdateOpenStrokePoints sets the open stroke point count gauge.
func UpdateOpenStrokePoints(count int) {
	globalManager.openStrokePoints.Set(float64(count))
}

// UpdateQueueSize sets the size gauge for a named queue.
func UpdateQueueSize(queue string, size int) {
	globalManager.queueSize.WithLabelValues(queue).Set(float64(size))
}

// UpdateQueueCapacity sets the capacity gauge for a named queue.
func UpdateQueueCapacity(queue string, capacity int) {
	globalManager.queueCapacity.WithLabelValues(queue).Set(float64(capacity))
}

// UpdateQueueUtilization sets the utilization gauge for a named queue.
func UpdateQueueUtilization(queue string, utilization float64) {
	globalManager.queueUtilization.WithLabelValues(queue).Set(utilization)
}

// RecordQueueEnqueueError increments the enqueue error counter for a named queue.
func RecordQueueEnqueueError(queue string) {
	globalManager.queueEnqueueErrors.WithLabelValues(queue).Inc()
}

// UpdateStoreStrokes sets the committed stroke count gauge.
func UpdateStoreStrokes(count int) {
	globalManager.storeStrokes.Set(float64(count))
}

// UpdateStoreTombstones sets the tombstone count gauge.
func UpdateStoreTombstones(count int) {
	globalManager.storeTombstones.Set(float64(count))
}

// RecordStoreEviction increments the eviction counter.
func RecordStoreEviction() {
	globalManager.storeEvictions.Inc()
}

// RecordErasure increments the erasure counter.
func RecordErasure() {
	globalManager.erasures.Inc()
}

// RecordRecorderWrite increments the recorder write counter for a record kind.
func RecordRecorderWrite(kind string) {
	globalManager.recorderWrites.WithLabelValues(kind).Inc()
}

// RecordRecorderWriteError increments the recorder write error counter.
func RecordRecorderWriteError() {
	globalManager.recorderWriteErrors.Inc()
}

// RecordRecorderWriteLatency records a session log write latency in milliseconds.
func RecordRecorderWriteLatency(latencyMs float64) {
	globalManager.recorderWriteLatency.Observe(latencyMs)
}

// RecordExternalSample increments the external sample counter.
func RecordExternalSample() {
	globalManager.externalSamples.Inc()
}

// RecordExternalGap increments the external gap counter.
func RecordExternalGap() {
	globalManager.externalGaps.Inc()
}

// UpdateClockOffset sets the estimated clock offset gauge in seconds.
func UpdateClockOffset(offsetSeconds float64) {
	globalManager.clockOffset.Set(offsetSeconds)
}

// RecordClockDesync increments the clock desync counter.
func RecordClockDesync() {
	globalManager.clockDesyncs.Inc()
}

// RecordReplayRecord increments the replayed record counter.
func RecordReplayRecord() {
	globalManager.replayRecords.Inc()
}

// RecordReplayCorrupt increments the corrupt record counter.
func RecordReplayCorrupt() {
	globalManager.replayCorrupt.Inc()
}

// UpdateSystemMemoryUsage sets the memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
