package recorder

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/inkline/internal/adapters/mq/queue"
	"github.com/okian/inkline/internal/domain/model"
	"github.com/okian/inkline/pkg/logger"
	"github.com/okian/inkline/pkg/metrics"
)

// Default recorder configuration constants.
const (
	logFilePerm = 0o644
	logDirPerm  = 0o755
	flushEvery  = 64 // records between explicit flushes
)

// Acker receives the durable-write acknowledgment for a stroke. The
// repository store satisfies this.
type Acker interface {
	MarkPersisted(ctx context.Context, id uint64)
}

// Option applies a configuration option to the Recorder.
type Option func(*Recorder)

// WithLogger sets a custom logger for the recorder.
func WithLogger(l logger.Logger) Option {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// Recorder consumes records from its staging queue and writes them to the
// session log. Producers enqueue and never wait on disk I/O; a write
// failure is fatal and surfaces on Errors so the session can stop cleanly
// instead of silently losing data.
type Recorder struct {
	records queue.Queue[Record]
	acker   Acker

	path string
	file *os.File
	buf  *bufio.Writer

	written uint64
	errs    chan error
	done    chan struct{}

	logger logger.Logger
}

// New creates a Recorder writing to outputDir/session_<id>.jsonl.
func New(outputDir, sessionID string, records queue.Queue[Record], acker Acker, opts ...Option) (*Recorder, error) {
	if err := os.MkdirAll(outputDir, logDirPerm); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(outputDir, "session_"+sessionID+".jsonl")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerm)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}

	r := &Recorder{
		records: records,
		acker:   acker,
		path:    path,
		file:    file,
		buf:     bufio.NewWriter(file),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
		logger:  logger.Get().Named("recorder"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Path returns the session log location.
func (r *Recorder) Path() string {
	return r.path
}

// Errors delivers the first fatal storage error, if any.
func (r *Recorder) Errors() <-chan error {
	return r.errs
}

// Done is closed once the consume loop has drained and the log is flushed.
func (r *Recorder) Done() <-chan struct{} {
	return r.done
}

// Run consumes the record queue until it is closed and drained, then
// flushes and closes the log file. Run blocks; start it on its own
// goroutine.
//
// After a fatal write error the loop keeps draining and discards the
// remaining records; abandoning the channel would strand the queue's
// delivery goroutine on its send forever.
func (r *Recorder) Run(ctx context.Context) {
	defer close(r.done)
	defer r.closeFile(ctx)

	failed := false
	discarded := uint64(0)
	for rec := range r.records.Dequeue(ctx) {
		if failed {
			discarded++
			continue
		}
		if err := r.write(ctx, rec); err != nil {
			// unrecoverable storage failure: report upward so the
			// session can shut down cleanly
			metrics.RecordRecorderWriteError()
			r.logger.Error(ctx, "session log write failed", logger.Error(err))
			select {
			case r.errs <- err:
			default:
			}
			failed = true
		}
	}
	if discarded > 0 {
		r.logger.Warn(ctx, "records discarded after write failure",
			logger.Uint64("discarded", discarded),
		)
	}
}

// write appends one record and acknowledges stroke persistence.
func (r *Recorder) write(ctx context.Context, rec Record) error {
	start := time.Now()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal %s record: %w", rec.Kind, err)
	}
	line = append(line, '\n')

	if _, err := r.buf.Write(line); err != nil {
		return fmt.Errorf("append %s record: %w", rec.Kind, err)
	}

	r.written++
	if r.written%flushEvery == 0 {
		if err := r.buf.Flush(); err != nil {
			return fmt.Errorf("flush session log: %w", err)
		}
	}

	// stroke durability gates store eviction; flush before acknowledging
	if rec.Kind == KindStroke && rec.Stroke != nil {
		if err := r.buf.Flush(); err != nil {
			return fmt.Errorf("flush session log: %w", err)
		}
		r.acker.MarkPersisted(ctx, rec.Stroke.ID)
	}

	metrics.RecordRecorderWrite(rec.Kind)
	metrics.RecordRecorderWriteLatency(float64(time.Since(start).Milliseconds()))
	return nil
}

func (r *Recorder) closeFile(ctx context.Context) {
	if err := r.buf.Flush(); err != nil {
		r.logger.Error(ctx, "final session log flush failed", logger.Error(err))
	}
	if err := r.file.Close(); err != nil {
		r.logger.Error(ctx, "session log close failed", logger.Error(err))
	}
	r.logger.Info(ctx, "session log closed",
		logger.String("path", r.path),
		logger.Uint64("records", r.written),
	)
}

// EnqueueHeader stages the session header record.
func EnqueueHeader(ctx context.Context, q queue.Queue[Record], header *SessionHeader) error {
	return q.Enqueue(ctx, Record{Kind: KindSession, TS: 0, Session: header})
}

// EnqueueStroke stages a stroke record stamped at its close time.
func EnqueueStroke(ctx context.Context, q queue.Queue[Record], stroke *model.Stroke) error {
	return q.Enqueue(ctx, Record{Kind: KindStroke, TS: stroke.EndTime, Stroke: stroke})
}

// EnqueueExternal stages an aligned external sample record.
func EnqueueExternal(ctx context.Context, q queue.Queue[Record], alignedTS float64, channels []float64) error {
	return q.Enqueue(ctx, Record{Kind: KindExternal, TS: alignedTS, External: &ExternalPayload{Channels: channels}})
}

// EnqueueMarker stages a marker record.
func EnqueueMarker(ctx context.Context, q queue.Queue[Record], ts float64, marker string) error {
	return q.Enqueue(ctx, Record{Kind: KindMarker, TS: ts, Marker: marker})
}
