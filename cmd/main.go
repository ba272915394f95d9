package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/inkline/internal/adapters/stream"
	app "github.com/okian/inkline/internal/app"
	"github.com/okian/inkline/internal/config"
	"github.com/okian/inkline/internal/device/sim"
	"github.com/okian/inkline/pkg/logger"
	"github.com/okian/inkline/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

// Synthetic signal source defaults for hardware-free runs.
const (
	synthStreamName = "synth-biosignal"
	synthChannels   = 4
	synthSampleRate = 250.0
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics
	// We collect our own custom system metrics instead
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	loggerInstance := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		loggerInstance.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// Synthetic external stream so the pipeline runs without hardware.
	registry := stream.NewRegistry()
	source := stream.NewSineSource(
		stream.WithSourceName(synthStreamName),
		stream.WithChannels(synthChannels),
		stream.WithSampleRate(synthSampleRate),
	)
	source.Start(ctx)
	registry.Register(source)

	// Create and start the capture session with configuration options
	svc := app.New(
		app.WithLogger(loggerInstance),
		app.WithIdleTimeout(cfg.IdleTimeout()),
		app.WithBufferCapacity(cfg.BufferCapacity),
		app.WithStrokeCapacity(cfg.StrokeCapacity),
		app.WithRecordCapacity(cfg.RecordCapacity),
		app.WithCanvasSize(cfg.CanvasWidth, cfg.CanvasHeight),
		app.WithMinStrokeLength(cfg.MinStrokeLength),
		app.WithOutputDir(cfg.OutputDir),
		app.WithStreamRegistry(registry),
		app.WithStreamName(synthStreamName),
		app.WithDiscoveryTimeout(cfg.DiscoveryTimeout()),
		app.WithOffsetInterval(cfg.OffsetInterval()),
		app.WithOffsetAlpha(cfg.OffsetAlpha),
		app.WithDesyncThreshold(cfg.DesyncThreshold()),
	)
	if err := svc.Start(ctx, map[string]string{"device": "sim"}); err != nil {
		os.Stderr.WriteString("failed to start session: " + err.Error() + "\n")
		return
	}
	defer func() {
		_ = svc.Stop(context.Background())
	}()

	// Synthetic pen keeps drawing until shutdown.
	go func() {
		driver := sim.New(sim.WithJitter(0.5))
		for ctx.Err() == nil {
			if err := driver.Play(ctx, sim.DemoScript(), svc.OnSample); err != nil {
				return
			}
		}
	}()

	// Start system metrics updater
	go startSystemMetricsUpdater(ctx)

	// HTTP mux: metrics and health only; rendering surfaces live elsewhere.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	// Start the HTTP server
	go func() {
		loggerInstance.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	loggerInstance.Info(ctx, "shutting down...")

	if err := svc.Stop(context.Background()); err != nil && err != app.ErrSessionState {
		loggerInstance.Error(ctx, "session stop failed", logger.Error(err))
	}
	loggerInstance.Info(ctx, "session log written", logger.String("path", svc.LogPath()))

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		loggerInstance.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	loggerInstance.Info(ctx, "stopped")
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
