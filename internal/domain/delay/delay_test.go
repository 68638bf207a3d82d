package delay_test

import (
	"errors"
	"math"
	"testing"

	"github.com/okian/tdoa/internal/domain/delay"
	"github.com/okian/tdoa/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestExtract(t *testing.T) {
	Convey("Given an event observed by four nodes", t, func() {
		ev := model.Event{
			ID: "1",
			Timestamps: map[model.NodeID]int64{
				1: 1_700_000_000_450,
				2: 1_700_000_000_120,
				3: 1_700_000_000_980,
				4: 1_700_000_000_121,
			},
		}

		Convey("When extracting relative delays", func() {
			set, err := delay.Extract(ev)

			Convey("Then the earliest node is the reference with a zero delay", func() {
				So(err, ShouldBeNil)
				So(set.Reference, ShouldEqual, model.NodeID(2))
				So(set.Delays[2], ShouldEqual, 0.0)
			})

			Convey("And every other delay is the offset from the reference", func() {
				So(set.Delays[1], ShouldEqual, 330.0)
				So(set.Delays[3], ShouldEqual, 860.0)
				So(set.Delays[4], ShouldEqual, 1.0)
			})

			Convey("And the key set is preserved", func() {
				So(len(set.Delays), ShouldEqual, len(ev.Timestamps))
				for id := range ev.Timestamps {
					_, ok := set.Delays[id]
					So(ok, ShouldBeTrue)
				}
			})
		})

		Convey("When extracting twice", func() {
			first, err1 := delay.Extract(ev)
			second, err2 := delay.Extract(ev)

			Convey("Then both results are identical", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(second, ShouldResemble, first)
			})
		})
	})

	Convey("Given an event where several nodes share the minimum timestamp", t, func() {
		ev := model.Event{
			ID:         "tie",
			Timestamps: map[model.NodeID]int64{9: 100, 4: 100, 7: 100, 2: 250},
		}

		Convey("Then the lowest node id among them is the reference", func() {
			for i := 0; i < 20; i++ {
				set, err := delay.Extract(ev)
				So(err, ShouldBeNil)
				So(set.Reference, ShouldEqual, model.NodeID(4))
			}
		})

		Convey("And exactly the tied nodes have zero delay", func() {
			set, err := delay.Extract(ev)
			So(err, ShouldBeNil)
			zeros := 0
			for _, d := range set.Delays {
				So(d, ShouldBeGreaterThanOrEqualTo, 0.0)
				if d == 0 {
					zeros++
				}
			}
			So(zeros, ShouldEqual, 3)
			So(set.Delays[2], ShouldEqual, 150.0)
		})
	})

	Convey("Given events with negative timestamps", t, func() {
		ev := model.Event{ID: "neg", Timestamps: map[model.NodeID]int64{1: -50, 2: 25, 3: -10}}

		Convey("Then delays are still non-negative and anchored", func() {
			set, err := delay.Extract(ev)
			So(err, ShouldBeNil)
			So(set.Reference, ShouldEqual, model.NodeID(1))
			So(set.Delays[2], ShouldEqual, 75.0)
			So(set.Delays[3], ShouldEqual, 40.0)
		})
	})

	Convey("Given malformed events", t, func() {
		Convey("When the timestamp mapping is empty", func() {
			_, err := delay.Extract(model.Event{ID: "empty"})

			Convey("Then it fails with ErrInvalidEvent", func() {
				So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
			})
		})

		Convey("When a node id is not positive", func() {
			_, err := delay.Extract(model.Event{ID: "zero", Timestamps: map[model.NodeID]int64{0: 1, 1: 2}})

			Convey("Then it fails with ErrInvalidEvent", func() {
				So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
			})
		})

		Convey("When the timestamp span overflows int64", func() {
			_, err := delay.Extract(model.Event{ID: "wide", Timestamps: map[model.NodeID]int64{1: math.MinInt64, 2: math.MaxInt64}})

			Convey("Then it fails with ErrInvalidEvent", func() {
				So(errors.Is(err, model.ErrInvalidEvent), ShouldBeTrue)
			})
		})
	})
}
