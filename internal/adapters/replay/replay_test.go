package replay

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/inkline/internal/adapters/mq/queue"
	"github.com/okian/inkline/internal/adapters/recorder"
	"github.com/okian/inkline/internal/domain/model"
	"github.com/okian/inkline/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

type noopAcker struct{}

func (noopAcker) MarkPersisted(context.Context, uint64) {}

func TestReadRoundTrip(t *testing.T) {
	Convey("Given a session log written by the recorder", t, func() {
		ctx := context.Background()
		dir := t.TempDir()
		q := queue.New(queue.WithCapacity[recorder.Record](32), queue.WithName[recorder.Record]("records"))

		rec, err := recorder.New(dir, "roundtrip", q, noopAcker{})
		So(err, ShouldBeNil)
		go rec.Run(ctx)

		header := &recorder.SessionHeader{
			SessionID:    "roundtrip",
			StartedAt:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
			CanvasWidth:  1920,
			CanvasHeight: 1080,
			Metadata:     map[string]string{"subject": "s01"},
		}
		stroke := &model.Stroke{
			ID:        7,
			StartTime: 0.100,
			EndTime:   0.120,
			Points: []model.Point{
				{X: 0, Y: 0, Pressure: 0.5, TS: 0.100},
				{X: 1, Y: 1, Pressure: 0.6, TS: 0.110, Velocity: 141.42},
				{X: 2, Y: 2, Pressure: 0.7, TS: 0.120, Velocity: 141.42},
			},
			CloseReason: model.ClosePenUp,
			Features: &model.Features{
				PathLength: 2.8284,
				Duration:   0.020,
			},
		}

		So(recorder.EnqueueHeader(ctx, q, header), ShouldBeNil)
		So(recorder.EnqueueMarker(ctx, q, 0.0, recorder.MarkerRecordingStart), ShouldBeNil)
		So(recorder.EnqueueStroke(ctx, q, stroke), ShouldBeNil)
		So(recorder.EnqueueExternal(ctx, q, 0.115, []float64{1.5, -0.5}), ShouldBeNil)
		So(recorder.EnqueueMarker(ctx, q, 0.130, recorder.MarkerRecordingStop), ShouldBeNil)
		So(q.Close(), ShouldBeNil)
		<-rec.Done()

		Convey("When the log is read back", func() {
			session, err := ReadFile(ctx, rec.Path())
			So(err, ShouldBeNil)

			Convey("Then the header round-trips", func() {
				So(session.Header.SessionID, ShouldEqual, "roundtrip")
				So(session.Header.CanvasWidth, ShouldEqual, 1920)
				So(session.Header.Metadata["subject"], ShouldEqual, "s01")
			})

			Convey("Then strokes come back exactly as persisted", func() {
				So(len(session.Strokes), ShouldEqual, 1)
				got, ok := session.Stroke(7)
				So(ok, ShouldBeTrue)
				So(got.Points, ShouldResemble, stroke.Points)
				So(got.CloseReason, ShouldEqual, model.ClosePenUp)
				So(got.Features, ShouldNotBeNil)
				So(got.Features.PathLength, ShouldEqual, 2.8284)
			})

			Convey("Then externals and markers are preserved in order", func() {
				So(len(session.Externals), ShouldEqual, 1)
				So(session.Externals[0].TS, ShouldEqual, 0.115)
				So(session.Externals[0].Channels, ShouldResemble, []float64{1.5, -0.5})
				So(len(session.Markers), ShouldEqual, 2)
				So(session.Markers[0].Text, ShouldEqual, recorder.MarkerRecordingStart)
				So(session.Markers[1].Text, ShouldEqual, recorder.MarkerRecordingStop)
				So(session.Corrupt, ShouldEqual, 0)
			})
		})
	})
}

func TestReadCorruptLines(t *testing.T) {
	Convey("Given a log with damaged lines between good records", t, func() {
		ctx := context.Background()
		log := strings.Join([]string{
			`{"kind":"session","t":0,"session":{"session_id":"s","started_at":"2026-03-01T10:00:00Z","canvas_width":100,"canvas_height":100}}`,
			`{"kind":"marker","t":0,"marker":"recording_start"}`,
			`{"kind":"stroke","t":0.2,"stroke":{"stroke_id":1,"points":[{"x":1,"y":2,"pressure":0.5,"t":0.1}],"start_time":0.1,"end_time":0.2,"close_reason":"pen_up"}}`,
			`{"kind":"stroke","t":0.4,"stroke":{truncated`,
			`not json at all`,
			`{"kind":"external","t":0.5,"external":{"channels":[3.14]}}`,
		}, "\n")

		Convey("When the log is read", func() {
			session, err := Read(ctx, strings.NewReader(log))
			So(err, ShouldBeNil)

			Convey("Then good records survive and damage is counted", func() {
				So(session.Corrupt, ShouldEqual, 2)
				So(len(session.Strokes), ShouldEqual, 1)
				So(session.Strokes[0].ID, ShouldEqual, 1)
				So(len(session.Externals), ShouldEqual, 1)
				So(len(session.Markers), ShouldEqual, 1)
			})
		})
	})
}

func TestReadMissingHeader(t *testing.T) {
	Convey("Given a log with no session record", t, func() {
		ctx := context.Background()
		log := `{"kind":"marker","t":0,"marker":"recording_start"}`

		Convey("When the log is read", func() {
			_, err := Read(ctx, strings.NewReader(log))

			Convey("Then the missing header is reported", func() {
				So(err, ShouldEqual, ErrMissingHeader)
			})
		})
	})
}

func TestReadTimeoutStrokeAfterExternals(t *testing.T) {
	Convey("Given a log where a timeout-closed stroke trails later externals", t, func() {
		ctx := context.Background()
		log := strings.Join([]string{
			`{"kind":"session","t":0,"session":{"session_id":"s","started_at":"2026-03-01T10:00:00Z","canvas_width":100,"canvas_height":100}}`,
			`{"kind":"external","t":1.10,"external":{"channels":[0.1]}}`,
			`{"kind":"external","t":1.20,"external":{"channels":[0.2]}}`,
			`{"kind":"stroke","t":1.05,"stroke":{"stroke_id":3,"points":[{"x":1,"y":2,"pressure":0.5,"t":1.00}],"start_time":1.00,"end_time":1.05,"close_reason":"timeout"}}`,
		}, "\n")

		Convey("When the log is read", func() {
			session, err := Read(ctx, strings.NewReader(log))
			So(err, ShouldBeNil)

			Convey("Then the stroke reconstructs despite its earlier timestamp", func() {
				So(session.Corrupt, ShouldEqual, 0)
				got, ok := session.Stroke(3)
				So(ok, ShouldBeTrue)
				So(got.CloseReason, ShouldEqual, model.CloseTimeout)
				So(got.EndTime, ShouldEqual, 1.05)
			})

			Convey("Then externals keep their own order", func() {
				So(len(session.Externals), ShouldEqual, 2)
				So(session.Externals[0].TS, ShouldEqual, 1.10)
				So(session.Externals[1].TS, ShouldEqual, 1.20)
			})
		})
	})
}
