package model_test

import (
	"testing"

	"github.com/okian/inkline/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStroke(t *testing.T) {
	Convey("Given a stroke with points", t, func() {
		s := &model.Stroke{
			ID: 1,
			Points: []model.Point{
				{X: 0, Y: 0, Pressure: 0.5, TS: 0},
				{X: 0.1, Y: 0.1, Pressure: 0.6, TS: 0.01},
			},
			StartTime: 0,
			EndTime:   0.01,
			State:     model.StrokeOpen,
		}

		Convey("When reading derived accessors", func() {
			Convey("Then duration is end minus start", func() {
				So(s.Duration(), ShouldAlmostEqual, 0.01)
			})

			Convey("Then LastPoint returns the newest point", func() {
				So(s.LastPoint(), ShouldNotBeNil)
				So(s.LastPoint().TS, ShouldAlmostEqual, 0.01)
			})
		})

		Convey("When the stroke has no points", func() {
			empty := &model.Stroke{ID: 2}

			Convey("Then LastPoint returns nil", func() {
				So(empty.LastPoint(), ShouldBeNil)
			})
		})
	})
}

func TestStrokeState(t *testing.T) {
	Convey("Given stroke states", t, func() {
		Convey("Then String names each state", func() {
			So(model.StrokeOpen.String(), ShouldEqual, "open")
			So(model.StrokeClosed.String(), ShouldEqual, "closed")
			So(model.StrokeDiscarded.String(), ShouldEqual, "discarded")
			So(model.StrokeState(42).String(), ShouldEqual, "unknown")
		})
	})
}

func TestBoundingBox(t *testing.T) {
	Convey("Given a bounding box", t, func() {
		b := model.BoundingBox{MinX: 0, MinY: 0, MaxX: 1, MaxY: 1}

		Convey("When testing containment", func() {
			So(b.Contains(0.5, 0.5), ShouldBeTrue)
			So(b.Contains(0, 1), ShouldBeTrue) // edges included
			So(b.Contains(1.1, 0.5), ShouldBeFalse)
		})

		Convey("When testing intersection", func() {
			So(b.Intersects(model.BoundingBox{MinX: 0.5, MinY: 0.5, MaxX: 2, MaxY: 2}), ShouldBeTrue)
			So(b.Intersects(model.BoundingBox{MinX: 1, MinY: 1, MaxX: 2, MaxY: 2}), ShouldBeTrue) // touching edges
			So(b.Intersects(model.BoundingBox{MinX: 2, MinY: 2, MaxX: 3, MaxY: 3}), ShouldBeFalse)
		})
	})
}
