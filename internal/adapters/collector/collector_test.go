package collector_test

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/okian/inkline/internal/adapters/collector"
	"github.com/okian/inkline/internal/adapters/mq/queue"
	"github.com/okian/inkline/internal/domain/clock"
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

func TestCollector(t *testing.T) {
	Convey("Given a collector with a small ingress queue", t, func() {
		ctx := context.Background()
		ingress := queue.New[collector.Stamped](queue.WithCapacity[collector.Stamped](2))
		c := collector.New(ingress, clock.NewSessionClock())

		Convey("When samples arrive within capacity", func() {
			c.OnSample(model.RawSample{X: 1, Y: 1, Pressure: 0.5})
			c.OnSample(model.RawSample{X: 2, Y: 2, Pressure: 0.5})

			Convey("Then they are enqueued with session timestamps", func() {
				So(c.Accepted(), ShouldEqual, 2)
				So(c.Dropped(), ShouldEqual, 0)
				So(ingress.Len(ctx), ShouldEqual, 2)

				ch := ingress.Dequeue(ctx)
				first := <-ch
				second := <-ch
				So(first.Raw.X, ShouldEqual, 1)
				So(second.SessionTS, ShouldBeGreaterThanOrEqualTo, first.SessionTS)
			})
		})

		Convey("When the queue is full", func() {
			c.OnSample(model.RawSample{X: 1})
			c.OnSample(model.RawSample{X: 2})
			c.OnSample(model.RawSample{X: 3})

			Convey("Then the overflow sample is dropped and counted", func() {
				So(c.Accepted(), ShouldEqual, 2)
				So(c.Dropped(), ShouldEqual, 1)
				So(ingress.Len(ctx), ShouldEqual, 2)
			})
		})

		Convey("When the queue is closed", func() {
			So(ingress.Close(), ShouldBeNil)
			c.OnSample(model.RawSample{X: 1})

			Convey("Then the sample is dropped without blocking", func() {
				So(c.Dropped(), ShouldEqual, 1)
			})
		})
	})
}

func TestCollectorConcurrentProducers(t *testing.T) {
	Convey("Given multiple driver threads calling OnSample", t, func() {
		ingress := queue.New[collector.Stamped](queue.WithCapacity[collector.Stamped](100000))
		c := collector.New(ingress, clock.NewSessionClock())

		var wg sync.WaitGroup
		for p := 0; p < 8; p++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 1000; i++ {
					c.OnSample(model.RawSample{Pressure: 0.5})
				}
			}()
		}
		wg.Wait()

		Convey("Then every sample is accounted for", func() {
			So(c.Accepted()+c.Dropped(), ShouldEqual, 8000)
			So(c.Accepted(), ShouldEqual, 8000)
		})
	})
}
