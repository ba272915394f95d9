// Package recorder persists the merged ink and external streams to an
// append-only session log.
//
// The log is JSON lines: one self-describing record per line, ordered by
// aligned timestamp as records are produced. A session header opens the
// log; stroke, external and marker records follow. The recorder is the
// eviction-safety gate: only after a stroke record is durably written does
// it acknowledge the stroke back to the store.
package recorder

import (
	"time"

	"github.com/okian/inkline/internal/domain/model"
)

// Record kinds found in a session log.
const (
	KindSession  = "session"
	KindStroke   = "stroke"
	KindExternal = "external"
	KindMarker   = "marker"
)

// Well-known marker texts.
const (
	MarkerRecordingStart = "recording_start"
	MarkerRecordingStop  = "recording_stop"
	MarkerExternalGap    = "external_gap"
	MarkerErase          = "erase"
)

// SessionHeader is the first record of every log.
type SessionHeader struct {
	SessionID    string            `json:"session_id"`
	StartedAt    time.Time         `json:"started_at"`
	CanvasWidth  float64           `json:"canvas_width"`
	CanvasHeight float64           `json:"canvas_height"`
	Metadata     map[string]string `json:"metadata,omitempty"` // subject info
}

// ExternalPayload carries one aligned external sample.
type ExternalPayload struct {
	Channels []float64 `json:"channels"`
}

// Record is one line of the session log. Exactly one payload field is set,
// selected by Kind; TS is the aligned session timestamp.
//
// Records are appended in production order, not in TS order. A stroke
// closed by the idle timeout carries the timestamp of its last point, so
// its TS can trail external records appended before it by up to the idle
// timeout. Readers that need strict time order must sort by TS after
// loading; the disorder is bounded by that timeout.
type Record struct {
	Kind     string           `json:"kind"`
	TS       float64          `json:"t"`
	Session  *SessionHeader   `json:"session,omitempty"`
	Stroke   *model.Stroke    `json:"stroke,omitempty"`
	External *ExternalPayload `json:"external,omitempty"`
	Marker   string           `json:"marker,omitempty"`
}
