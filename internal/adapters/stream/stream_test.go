package stream_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/inkline/internal/adapters/stream"
	"github.com/okian/inkline/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func TestManagerDiscovery(t *testing.T) {
	Convey("Given a registry and a manager with a short discovery timeout", t, func() {
		ctx := context.Background()
		registry := stream.NewRegistry()
		manager := stream.NewManager(registry, stream.WithDiscoveryTimeout(150*time.Millisecond))

		Convey("When no source is registered", func() {
			infos, err := manager.Discover(ctx)

			Convey("Then discovery fails with ErrStreamUnavailable", func() {
				So(err, ShouldEqual, stream.ErrStreamUnavailable)
				So(infos, ShouldBeNil)
			})
		})

		Convey("When a source is registered", func() {
			src := stream.NewSineSource(stream.WithSourceName("TestBio"), stream.WithChannels(2))
			registry.Register(src)

			infos, err := manager.Discover(ctx)

			Convey("Then discovery returns its info", func() {
				So(err, ShouldBeNil)
				So(len(infos), ShouldEqual, 1)
				So(infos[0].Name, ShouldEqual, "TestBio")
				So(infos[0].ChannelCount, ShouldEqual, 2)
			})

			Convey("And Connect returns the source", func() {
				connected, err := manager.Connect(ctx, "TestBio")
				So(err, ShouldBeNil)
				So(connected.Info().Name, ShouldEqual, "TestBio")
			})

			Convey("And Connect to an unknown name fails", func() {
				_, err := manager.Connect(ctx, "NoSuchStream")
				So(err, ShouldEqual, stream.ErrStreamUnavailable)
			})
		})

		Convey("When a source registers mid-discovery", func() {
			go func() {
				time.Sleep(60 * time.Millisecond)
				registry.Register(stream.NewSineSource())
			}()

			infos, err := manager.Discover(ctx)

			Convey("Then discovery picks it up before the timeout", func() {
				So(err, ShouldBeNil)
				So(len(infos), ShouldEqual, 1)
			})
		})
	})
}

func TestSineSource(t *testing.T) {
	Convey("Given a running sine source", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		src := stream.NewSineSource(
			stream.WithChannels(3),
			stream.WithSampleRate(200),
			stream.WithClockSkew(5),
		)
		src.Start(ctx)
		defer func() { _ = src.Close() }()

		Convey("When receiving samples", func() {
			first := <-src.Samples()
			second := <-src.Samples()

			Convey("Then samples carry the configured channel count", func() {
				So(len(first.Channels), ShouldEqual, 3)
			})

			Convey("Then source timestamps include the skew and increase", func() {
				So(first.SourceTS, ShouldBeGreaterThan, 4.9)
				So(second.SourceTS, ShouldBeGreaterThan, first.SourceTS)
			})

			Convey("Then channel values stay within the sine range", func() {
				for _, v := range first.Channels {
					So(v, ShouldBeBetweenOrEqual, -1, 1)
				}
			})
		})

		Convey("When the source is closed", func() {
			So(src.Close(), ShouldBeNil)

			Convey("Then the sample channel drains and closes", func() {
				deadline := time.After(time.Second)
				for {
					select {
					case _, ok := <-src.Samples():
						if !ok {
							So(true, ShouldBeTrue)
							return
						}
					case <-deadline:
						t.Fatal("sample channel did not close")
					}
				}
			})

			Convey("And closing again is a no-op", func() {
				So(src.Close(), ShouldBeNil)
			})
		})
	})
}

func TestOffsetEstimator(t *testing.T) {
	Convey("Given an offset estimator", t, func() {
		e := stream.NewOffsetEstimator(
			stream.WithAlpha(0.5),
			stream.WithDesyncBound(0.050),
			stream.WithMaxStep(0.010),
		)

		Convey("When the first observation arrives", func() {
			offset, err := e.Observe(10.0, 12.0)

			Convey("Then the estimate seeds directly", func() {
				So(offset, ShouldAlmostEqual, 2.0)
				So(err, ShouldBeNil)
			})

			Convey("And Align applies the estimate", func() {
				So(e.Align(11.0), ShouldAlmostEqual, 13.0)
			})
		})

		Convey("When observations drift slightly", func() {
			e.Observe(10.0, 12.0)
			offset, err := e.Observe(11.0, 13.02)

			Convey("Then the EMA pulls the estimate toward the measurement", func() {
				So(err, ShouldBeNil)
				So(offset, ShouldAlmostEqual, 2.01)
			})
		})

		Convey("When a measurement jumps beyond the desync bound", func() {
			e.Observe(10.0, 12.0)
			offset, err := e.Observe(11.0, 14.0) // measurement 3.0, delta 1.0

			Convey("Then the desync surfaces and the correction is clamped", func() {
				So(errors.Is(err, stream.ErrClockDesync), ShouldBeTrue)
				So(e.Desyncs(), ShouldEqual, 1)
				// clamped delta 0.010 scaled by alpha 0.5
				So(offset, ShouldAlmostEqual, 2.005)
			})
		})
	})
}
