package dataset_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/tdoa/internal/dataset"
	"github.com/okian/tdoa/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNodesRoundTrip(t *testing.T) {
	Convey("Given a node file on disk", t, func() {
		path := filepath.Join(t.TempDir(), "node_locations.json")
		nodes := model.NewNodeTable(
			model.Node{ID: 10, Coordinate: model.Coordinate{Latitude: -2, Longitude: 2}},
			model.Node{ID: 2, Coordinate: model.Coordinate{Latitude: 9, Longitude: 12}},
			model.Node{ID: 1, Coordinate: model.Coordinate{Latitude: 6, Longitude: 8}},
		)
		So(dataset.SaveNodes(path, nodes), ShouldBeNil)

		Convey("Then keys are written in node id order", func() {
			raw, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			text := string(raw)
			So(strings.Index(text, `"node1"`), ShouldBeLessThan, strings.Index(text, `"node2"`))
			So(strings.Index(text, `"node2"`), ShouldBeLessThan, strings.Index(text, `"node10"`))
			So(text, ShouldContainSubstring, `"latitude": 6`)
		})

		Convey("Then loading returns the same table", func() {
			got, err := dataset.LoadNodes(path)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, nodes)
		})

		Convey("Then saving again replaces the file", func() {
			small := model.NewNodeTable(model.Node{ID: 3})
			So(dataset.SaveNodes(path, small), ShouldBeNil)
			got, err := dataset.LoadNodes(path)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, small)
		})
	})

	Convey("Given malformed node files", t, func() {
		for _, body := range []string{`{`, `{"sensor1":{"latitude":1,"longitude":2}}`, `{"node0":{}}`, `{"node1":{},"1":{}}`} {
			_, err := dataset.ReadNodes(strings.NewReader(body))
			So(errors.Is(err, dataset.ErrReadDataset), ShouldBeTrue)
		}
	})

	Convey("Given a missing node file", t, func() {
		_, err := dataset.LoadNodes(filepath.Join(t.TempDir(), "absent.json"))
		So(errors.Is(err, dataset.ErrReadDataset), ShouldBeTrue)
	})
}

func TestEventsRoundTrip(t *testing.T) {
	Convey("Given an event file in the dataset layout", t, func() {
		body := `{
			"10": [{"node1": 1000}, {"node2": 1500}, {"node3": 1500}],
			"2":  [{"node3": 7}, {"node1": 5}]
		}`
		events, err := dataset.ReadEvents(strings.NewReader(body))

		Convey("Then events are parsed and sorted naturally", func() {
			So(err, ShouldBeNil)
			So(events, ShouldHaveLength, 2)
			So(events[0].ID, ShouldEqual, model.EventID("2"))
			So(events[0].Timestamps, ShouldResemble, map[model.NodeID]int64{1: 5, 3: 7})
			So(events[1].Timestamps[2], ShouldEqual, int64(1500))
		})

		Convey("When written back out", func() {
			var buf bytes.Buffer
			So(dataset.WriteEvents(&buf, events), ShouldBeNil)

			Convey("Then each node sits in its own object in id order", func() {
				var raw map[string][]map[string]int64
				So(json.Unmarshal(buf.Bytes(), &raw), ShouldBeNil)
				So(raw["2"], ShouldResemble, []map[string]int64{{"node1": 5}, {"node3": 7}})
				So(strings.Index(buf.String(), `"2"`), ShouldBeLessThan, strings.Index(buf.String(), `"10"`))
			})

			Convey("Then reading it again yields the same events", func() {
				again, err := dataset.ReadEvents(&buf)
				So(err, ShouldBeNil)
				So(again, ShouldResemble, events)
			})
		})
	})

	Convey("Given events with malformed node keys next to a valid one", t, func() {
		body := `{
			"1": [{"node1": 0}, {"node2": 4}, {"node3": 5}],
			"2": [{"node1": 1}, {"node1": 2}],
			"3": [{"x": 1}],
			"4": [{"node1": 0}, {"node0": 3}]
		}`
		events, err := dataset.ReadEvents(strings.NewReader(body))

		Convey("Then the file still loads with every event", func() {
			So(err, ShouldBeNil)
			So(events, ShouldHaveLength, 4)
			So(events[0].Err, ShouldBeNil)
		})

		Convey("And each malformed event carries its own invalid-event error", func() {
			So(events[1].Err.Error(), ShouldContainSubstring, "listed twice")
			for _, ev := range events[1:] {
				So(errors.Is(ev.Err, model.ErrInvalidEvent), ShouldBeTrue)
			}
		})
	})

	Convey("Given events saved to disk", t, func() {
		path := filepath.Join(t.TempDir(), "transaction_data.json")
		events := []model.Event{{ID: "1", Timestamps: map[model.NodeID]int64{1: 1, 2: 2, 3: 3}}}
		So(dataset.SaveEvents(path, events), ShouldBeNil)

		got, err := dataset.LoadEvents(path)
		So(err, ShouldBeNil)
		So(got, ShouldResemble, events)
	})
}

func TestGenerateNodes(t *testing.T) {
	Convey("Given a seeded generator", t, func() {
		nodes, err := dataset.GenerateNodes(8, rand.New(rand.NewPCG(1, 2)))
		So(err, ShouldBeNil)

		Convey("Then every node gets its own longitude sector", func() {
			So(nodes, ShouldHaveLength, 8)
			for id, c := range nodes {
				So(c.Latitude, ShouldBeBetweenOrEqual, -90.0, 90.0)
				So(c.Longitude, ShouldBeBetweenOrEqual, -180.0, 180.0)
				lon := c.Longitude
				if lon < 0 {
					lon += 360
				}
				sector := int(lon / 45)
				So(sector, ShouldEqual, int(id)-1)
			}
		})

		Convey("Then the same seed yields the same nodes", func() {
			again, err := dataset.GenerateNodes(8, rand.New(rand.NewPCG(1, 2)))
			So(err, ShouldBeNil)
			So(again, ShouldResemble, nodes)
		})
	})

	Convey("Given a non-positive count", t, func() {
		_, err := dataset.GenerateNodes(0, rand.New(rand.NewPCG(1, 2)))
		So(errors.Is(err, dataset.ErrInvalidCount), ShouldBeTrue)
	})
}

func TestGenerateEvents(t *testing.T) {
	Convey("Given a seeded generator and a fixed clock", t, func() {
		now := time.Unix(1_700_000_000, 0)
		events, err := dataset.GenerateEvents(50, 5, now, rand.New(rand.NewPCG(7, 7)))
		So(err, ShouldBeNil)

		Convey("Then events are numbered and seen by every node", func() {
			So(events, ShouldHaveLength, 50)
			So(events[0].ID, ShouldEqual, model.EventID("1"))
			So(events[49].ID, ShouldEqual, model.EventID("50"))
			for _, ev := range events {
				So(ev.Timestamps, ShouldHaveLength, 5)
			}
		})

		Convey("Then arrivals stay within a second of a common base", func() {
			for _, ev := range events {
				lo, hi := int64(1<<62), int64(-1<<62)
				for _, ts := range ev.Timestamps {
					lo, hi = min(lo, ts), max(hi, ts)
				}
				So(hi-lo, ShouldBeLessThanOrEqualTo, 2000)
				So(lo, ShouldBeGreaterThanOrEqualTo, -1000)
				So(hi, ShouldBeLessThanOrEqualTo, now.UnixMilli()+1000)
			}
		})

		Convey("Then the same seed yields the same events", func() {
			again, err := dataset.GenerateEvents(50, 5, now, rand.New(rand.NewPCG(7, 7)))
			So(err, ShouldBeNil)
			So(again, ShouldResemble, events)
		})
	})

	Convey("Given invalid counts", t, func() {
		rng := rand.New(rand.NewPCG(1, 1))
		_, err := dataset.GenerateEvents(0, 3, time.Now(), rng)
		So(errors.Is(err, dataset.ErrInvalidCount), ShouldBeTrue)
		_, err = dataset.GenerateEvents(3, 0, time.Now(), rng)
		So(errors.Is(err, dataset.ErrInvalidCount), ShouldBeTrue)
	})
}

func TestExport(t *testing.T) {
	Convey("Given located and failed outcomes", t, func() {
		outcomes := []model.Outcome{
			{EventID: "1", Result: &model.FitResult{
				Origin:       model.Coordinate{Latitude: 6, Longitude: 8},
				Scale:        0.01,
				Iterations:   9,
				Observations: 5,
			}},
			{EventID: "2", Err: fmt.Errorf("event 2: %w", model.ErrUnknownNode)},
		}

		Convey("When exporting CSV", func() {
			var buf bytes.Buffer
			So(dataset.Export(&buf, dataset.FormatCSV, outcomes), ShouldBeNil)
			lines := strings.Split(strings.TrimSpace(buf.String()), "\n")

			Convey("Then a header and one row per event are written", func() {
				So(lines, ShouldHaveLength, 3)
				So(lines[0], ShouldStartWith, "event_id,latitude,longitude,scale,iterations")
				So(lines[1], ShouldStartWith, "1,6,8,0.01,9,")
				So(lines[2], ShouldStartWith, "2,,,,")
				So(lines[2], ShouldEndWith, "unknown_node")
			})
		})

		Convey("When exporting JSON", func() {
			var buf bytes.Buffer
			So(dataset.Export(&buf, dataset.FormatJSON, outcomes), ShouldBeNil)

			var rows []map[string]any
			So(json.Unmarshal(buf.Bytes(), &rows), ShouldBeNil)
			So(rows, ShouldHaveLength, 2)
			So(rows[0]["latitude"], ShouldEqual, 6.0)
			So(rows[1], ShouldNotContainKey, "latitude")
			So(rows[1]["error_kind"], ShouldEqual, "unknown_node")
		})

		Convey("When the format is unknown", func() {
			So(errors.Is(dataset.Export(&bytes.Buffer{}, "xml", outcomes), dataset.ErrFormat), ShouldBeTrue)
		})
	})
}
