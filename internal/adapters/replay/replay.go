// Package replay reconstructs a recording session from its log file.
//
// Reconstruction is a pure read of what was persisted: strokes come back
// exactly as recorded, features included, with no recomputation. Malformed
// lines are skipped and counted rather than failing the whole read, so a
// log truncated by a crash still yields every complete record before the
// damage.
package replay

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/okian/inkline/internal/adapters/recorder"
	"github.com/okian/inkline/internal/domain/model"
	"github.com/okian/inkline/pkg/logger"
	"github.com/okian/inkline/pkg/metrics"
)

// maxLineBytes bounds a single log line; strokes with many points can be long.
const maxLineBytes = 16 << 20

// Marker is a labeled instant on the session timeline.
type Marker struct {
	TS   float64
	Text string
}

// ExternalSample is one aligned external record read back from the log.
type ExternalSample struct {
	TS       float64
	Channels []float64
}

// Session is a reconstructed recording.
type Session struct {
	Header    recorder.SessionHeader
	Strokes   []model.Stroke
	Externals []ExternalSample
	Markers   []Marker
	// Corrupt counts log lines that could not be decoded and were skipped.
	Corrupt int
}

// Stroke returns the reconstructed stroke with the given id.
func (s *Session) Stroke(id uint64) (model.Stroke, bool) {
	for i := range s.Strokes {
		if s.Strokes[i].ID == id {
			return s.Strokes[i], true
		}
	}
	return model.Stroke{}, false
}

// ReadFile reconstructs a session from the log at path.
func ReadFile(ctx context.Context, path string) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open session log: %w", err)
	}
	defer f.Close()

	return Read(ctx, f)
}

// Read reconstructs a session from r. The first decodable record must be
// the session header.
func Read(ctx context.Context, r io.Reader) (*Session, error) {
	log := logger.Get().Named("replay")
	session := &Session{}
	sawHeader := false

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec recorder.Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			session.Corrupt++
			metrics.RecordReplayCorrupt()
			log.Warn(ctx, "skipping corrupt record",
				logger.Int("line", line),
				logger.Error(fmt.Errorf("%w: %v", ErrCorruptRecord, err)),
			)
			continue
		}

		switch rec.Kind {
		case recorder.KindSession:
			if rec.Session == nil {
				session.Corrupt++
				metrics.RecordReplayCorrupt()
				continue
			}
			session.Header = *rec.Session
			sawHeader = true
		case recorder.KindStroke:
			if rec.Stroke == nil {
				session.Corrupt++
				metrics.RecordReplayCorrupt()
				continue
			}
			session.Strokes = append(session.Strokes, *rec.Stroke)
		case recorder.KindExternal:
			if rec.External == nil {
				session.Corrupt++
				metrics.RecordReplayCorrupt()
				continue
			}
			session.Externals = append(session.Externals, ExternalSample{
				TS:       rec.TS,
				Channels: rec.External.Channels,
			})
		case recorder.KindMarker:
			session.Markers = append(session.Markers, Marker{TS: rec.TS, Text: rec.Marker})
		default:
			session.Corrupt++
			metrics.RecordReplayCorrupt()
			log.Warn(ctx, "skipping record of unknown kind",
				logger.Int("line", line),
				logger.String("kind", rec.Kind),
			)
			continue
		}
		metrics.RecordReplayRecord()
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read session log: %w", err)
	}
	if !sawHeader {
		return nil, ErrMissingHeader
	}

	return session, nil
}
