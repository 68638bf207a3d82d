package model_test

import (
	"errors"
	"fmt"
	"testing"

	model "github.com/okian/tdoa/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestSortEventIDs(t *testing.T) {
	convey.Convey("Given event ids in arbitrary order", t, func() {
		ids := []model.EventID{"10", "b", "2", "a", "1", "02"}

		convey.Convey("When sorting them", func() {
			model.SortEventIDs(ids)

			convey.Convey("Then numeric ids come first by value, then the rest lexicographically", func() {
				convey.So(ids, convey.ShouldResemble, []model.EventID{"1", "02", "2", "10", "a", "b"})
			})
		})
	})

	convey.Convey("Given outcomes in completion order", t, func() {
		outcomes := []model.Outcome{{EventID: "3"}, {EventID: "1"}, {EventID: "20"}}
		model.SortOutcomes(outcomes)

		convey.So(outcomes[0].EventID, convey.ShouldEqual, model.EventID("1"))
		convey.So(outcomes[1].EventID, convey.ShouldEqual, model.EventID("3"))
		convey.So(outcomes[2].EventID, convey.ShouldEqual, model.EventID("20"))
	})

	convey.Convey("Given events keyed by id", t, func() {
		events := []model.Event{{ID: "x"}, {ID: "11"}, {ID: "9"}}
		model.SortEvents(events)

		convey.So(events[0].ID, convey.ShouldEqual, model.EventID("9"))
		convey.So(events[1].ID, convey.ShouldEqual, model.EventID("11"))
		convey.So(events[2].ID, convey.ShouldEqual, model.EventID("x"))
	})
}

func TestNodeTable(t *testing.T) {
	convey.Convey("Given a node table built from a list", t, func() {
		table := model.NewNodeTable(
			model.Node{ID: 3, Coordinate: model.Coordinate{Latitude: 3, Longitude: 30}},
			model.Node{ID: 1, Coordinate: model.Coordinate{Latitude: 1, Longitude: 10}},
			model.Node{ID: 2, Coordinate: model.Coordinate{Latitude: 2, Longitude: 20}},
		)

		convey.Convey("Then Nodes returns them ordered by id", func() {
			nodes := table.Nodes()
			convey.So(len(nodes), convey.ShouldEqual, 3)
			convey.So(nodes[0].ID, convey.ShouldEqual, model.NodeID(1))
			convey.So(nodes[2].Longitude, convey.ShouldEqual, 30.0)
		})

		convey.Convey("Then SortedNodeIDs returns ascending keys", func() {
			convey.So(model.SortedNodeIDs(table), convey.ShouldResemble, []model.NodeID{1, 2, 3})
		})
	})
}

func TestErrorKind(t *testing.T) {
	convey.Convey("Given wrapped domain errors", t, func() {
		cases := map[error]string{
			nil: "",
			fmt.Errorf("event 1: %w", model.ErrInvalidEvent):          model.KindInvalidEvent,
			fmt.Errorf("event 1: %w", model.ErrUnknownNode):           model.KindUnknownNode,
			fmt.Errorf("event 1: %w", model.ErrUnderdeterminedSystem): model.KindUnderdeterminedSystem,
			fmt.Errorf("event 1: %w", model.ErrDegenerateInput):       model.KindDegenerateInput,
			errors.New("boom"): model.KindInternal,
		}

		convey.Convey("Then each maps to its stable code", func() {
			for err, kind := range cases {
				convey.So(model.ErrorKind(err), convey.ShouldEqual, kind)
			}
		})
	})

	convey.Convey("Given a divergence error", t, func() {
		var err error = fmt.Errorf("event 7: %w", &model.DivergenceError{
			Params:       [3]float64{1, 2, 3},
			ResidualNorm: 0.5,
			Iterations:   200,
		})

		convey.Convey("Then it unwraps to ErrFitDivergence and exposes diagnostics", func() {
			convey.So(errors.Is(err, model.ErrFitDivergence), convey.ShouldBeTrue)
			convey.So(model.ErrorKind(err), convey.ShouldEqual, model.KindFitDivergence)

			var div *model.DivergenceError
			convey.So(errors.As(err, &div), convey.ShouldBeTrue)
			convey.So(div.Params[1], convey.ShouldEqual, 2.0)
			convey.So(div.Error(), convey.ShouldContainSubstring, "200 iterations")
		})
	})
}
