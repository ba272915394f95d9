package detect_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/okian/inkline/internal/domain/detect"
	"github.com/okian/inkline/internal/domain/model"
	"github.com/okian/inkline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func point(x, y, pressure, ts float64) model.Point {
	return model.Point{X: x, Y: y, Pressure: pressure, TS: ts}
}

func TestDetectorPressureSegmentation(t *testing.T) {
	Convey("Given an idle detector", t, func() {
		ctx := context.Background()
		d := detect.New()

		So(d.State(), ShouldEqual, detect.Idle)
		So(d.Current(), ShouldBeNil)

		Convey("When a pressure-0 point arrives while idle", func() {
			closed := d.Offer(ctx, point(0, 0, 0, 0.1))

			Convey("Then nothing happens", func() {
				So(closed, ShouldBeNil)
				So(d.State(), ShouldEqual, detect.Idle)
			})
		})

		Convey("When a contact point arrives", func() {
			closed := d.Offer(ctx, point(0, 0, 0.5, 0))

			Convey("Then a stroke opens", func() {
				So(closed, ShouldBeNil)
				So(d.State(), ShouldEqual, detect.Open)
				So(d.Current(), ShouldNotBeNil)
				So(d.Current().ID, ShouldEqual, 1)
				So(d.Current().State, ShouldEqual, model.StrokeOpen)
			})

			Convey("And more contact points extend it", func() {
				d.Offer(ctx, point(1, 1, 0.6, 0.010))
				d.Offer(ctx, point(2, 2, 0.4, 0.020))

				So(len(d.Current().Points), ShouldEqual, 3)
				So(d.Current().EndTime, ShouldAlmostEqual, 0.020)

				Convey("And a pressure-0 point closes it", func() {
					closed := d.Offer(ctx, point(2, 2, 0, 0.020))

					So(closed, ShouldNotBeNil)
					So(closed.State, ShouldEqual, model.StrokeClosed)
					So(closed.CloseReason, ShouldEqual, model.ClosePenUp)
					So(len(closed.Points), ShouldEqual, 3)
					So(closed.Duration(), ShouldAlmostEqual, 0.020)
					So(d.State(), ShouldEqual, detect.Idle)
				})
			})
		})

		Convey("When two strokes are drawn in sequence", func() {
			d.Offer(ctx, point(0, 0, 0.5, 0))
			first := d.Offer(ctx, point(0, 0, 0, 0.010))
			d.Offer(ctx, point(5, 5, 0.5, 0.100))
			second := d.Offer(ctx, point(5, 5, 0, 0.110))

			Convey("Then ids are sequential", func() {
				So(first.ID, ShouldEqual, 1)
				So(second.ID, ShouldEqual, 2)
			})
		})
	})
}

func TestDetectorOrdering(t *testing.T) {
	Convey("Given an open stroke", t, func() {
		ctx := context.Background()
		d := detect.New()
		d.Offer(ctx, point(0, 0, 0.5, 1.0))

		Convey("When an out-of-order point arrives", func() {
			d.Offer(ctx, point(1, 1, 0.5, 0.5))

			Convey("Then it is dropped and ordering stays non-decreasing", func() {
				So(len(d.Current().Points), ShouldEqual, 1)
				So(d.Stats().PointsOutOfOrder, ShouldEqual, 1)
			})
		})

		Convey("When points with strictly increasing timestamps arrive", func() {
			for i := 1; i <= 10; i++ {
				d.Offer(ctx, point(float64(i), 0, 0.5, 1.0+float64(i)*0.01))
			}

			Convey("Then every timestamp is >= its predecessor", func() {
				pts := d.Current().Points
				for i := 1; i < len(pts); i++ {
					So(pts[i].TS, ShouldBeGreaterThanOrEqualTo, pts[i-1].TS)
				}
			})
		})
	})
}

func TestDetectorExplicitEvents(t *testing.T) {
	Convey("Given a detector driven by explicit pen events", t, func() {
		ctx := context.Background()
		d := detect.New()

		Convey("When pen down arrives while a stroke is open", func() {
			d.PenDown(ctx, point(0, 0, 0.5, 0))
			d.Offer(ctx, point(1, 1, 0.5, 0.010))
			closed := d.PenDown(ctx, point(9, 9, 0.7, 0.200))

			Convey("Then the previous stroke is force-closed with reason overlap", func() {
				So(closed, ShouldNotBeNil)
				So(closed.ID, ShouldEqual, 1)
				So(closed.CloseReason, ShouldEqual, model.CloseOverlap)
			})

			Convey("And a fresh stroke is open", func() {
				So(d.State(), ShouldEqual, detect.Open)
				So(d.Current().ID, ShouldEqual, 2)
				So(len(d.Current().Points), ShouldEqual, 1)
			})
		})

		Convey("When pen up arrives with no open stroke", func() {
			closed := d.PenUp(ctx, 1.0)

			Convey("Then nothing closes", func() {
				So(closed, ShouldBeNil)
			})
		})

		Convey("When a tap produces a single point", func() {
			d.PenDown(ctx, point(3, 3, 0.8, 0.5))
			closed := d.PenUp(ctx, 0.5)

			Convey("Then it closes as a degenerate stroke", func() {
				So(closed, ShouldNotBeNil)
				So(len(closed.Points), ShouldEqual, 1)
				So(closed.State, ShouldEqual, model.StrokeClosed)
				So(closed.Duration(), ShouldEqual, 0)
			})
		})
	})
}

func TestDetectorIdleTimeout(t *testing.T) {
	Convey("Given a detector with a 100ms idle timeout", t, func() {
		ctx := context.Background()
		d := detect.New(detect.WithIdleTimeout(0.100))

		d.Offer(ctx, point(0, 0, 0.5, 1.0))
		d.Offer(ctx, point(1, 1, 0.5, 1.050))

		Convey("When time passes within the timeout", func() {
			closed := d.FlushIdle(ctx, 1.100)

			Convey("Then the stroke stays open", func() {
				So(closed, ShouldBeNil)
				So(d.State(), ShouldEqual, detect.Open)
			})
		})

		Convey("When the timeout elapses", func() {
			closed := d.FlushIdle(ctx, 1.200)

			Convey("Then exactly one close with reason timeout occurs", func() {
				So(closed, ShouldNotBeNil)
				So(closed.CloseReason, ShouldEqual, model.CloseTimeout)
				So(d.State(), ShouldEqual, detect.Idle)

				So(d.FlushIdle(ctx, 1.300), ShouldBeNil)
			})
		})

		Convey("When asking for the idle deadline", func() {
			deadline, ok := d.Deadline()

			Convey("Then it is the last point time plus the timeout", func() {
				So(ok, ShouldBeTrue)
				So(deadline, ShouldAlmostEqual, 1.150)
			})
		})
	})

	Convey("Given a detector with no idle timeout", t, func() {
		ctx := context.Background()
		d := detect.New()
		d.Offer(ctx, point(0, 0, 0.5, 1.0))

		Convey("Then FlushIdle never closes", func() {
			So(d.FlushIdle(ctx, 100), ShouldBeNil)
			_, ok := d.Deadline()
			So(ok, ShouldBeFalse)
		})
	})
}

func TestDetectorValidation(t *testing.T) {
	Convey("Given a detector with a minimum stroke length", t, func() {
		ctx := context.Background()
		d := detect.New(detect.WithMinStrokeLength(10))

		Convey("When a short scribble closes", func() {
			d.Offer(ctx, point(0, 0, 0.5, 0))
			d.Offer(ctx, point(1, 0, 0.5, 0.010))
			closed := d.Offer(ctx, point(1, 0, 0, 0.020))

			Convey("Then it is discarded but the id is consumed", func() {
				So(closed, ShouldNotBeNil)
				So(closed.State, ShouldEqual, model.StrokeDiscarded)
				So(d.Stats().StrokesDiscarded, ShouldEqual, 1)

				d.Offer(ctx, point(0, 0, 0.5, 1))
				So(d.Current().ID, ShouldEqual, 2)
			})
		})

		Convey("When a long stroke closes", func() {
			d.Offer(ctx, point(0, 0, 0.5, 0))
			d.Offer(ctx, point(20, 0, 0.5, 0.010))
			closed := d.Offer(ctx, point(20, 0, 0, 0.020))

			Convey("Then it is kept", func() {
				So(closed.State, ShouldEqual, model.StrokeClosed)
			})
		})
	})
}

func TestDetectorForceClose(t *testing.T) {
	Convey("Given an open stroke at session stop", t, func() {
		ctx := context.Background()
		d := detect.New()
		d.Offer(ctx, point(0, 0, 0.5, 1.0))

		Convey("When the session forces a close", func() {
			closed := d.ForceClose(ctx, 1.5)

			Convey("Then the stroke closes with reason shutdown", func() {
				So(closed, ShouldNotBeNil)
				So(closed.CloseReason, ShouldEqual, model.CloseShutdown)
				So(closed.EndTime, ShouldAlmostEqual, 1.5)
				So(d.State(), ShouldEqual, detect.Idle)
			})

			Convey("And a second force close is a no-op", func() {
				So(d.ForceClose(ctx, 2.0), ShouldBeNil)
			})
		})
	})
}

func TestDetectorConcurrentStats(t *testing.T) {
	Convey("Given a detector driven by its pipeline goroutine", t, func() {
		ctx := context.Background()
		d := detect.New()

		done := make(chan struct{})
		var readers sync.WaitGroup
		for r := 0; r < 4; r++ {
			readers.Add(1)
			go func() {
				defer readers.Done()
				for {
					select {
					case <-done:
						return
					default:
						_ = d.Stats()
					}
				}
			}()
		}

		Convey("When strokes stream through while monitors poll Stats", func() {
			ts := 0.0
			for i := 0; i < 200; i++ {
				for j := 0; j < 5; j++ {
					d.Offer(ctx, point(float64(j), 0, 0.5, ts))
					ts += 0.001
				}
				d.Offer(ctx, point(5, 0, 0, ts))
				ts += 0.001
			}
			close(done)
			readers.Wait()

			Convey("Then the counters are exact", func() {
				stats := d.Stats()
				So(stats.StrokesOpened, ShouldEqual, 200)
				So(stats.StrokesClosed, ShouldEqual, 200)
				So(stats.PointsAccepted, ShouldEqual, 1000)
			})
		})
	})
}
