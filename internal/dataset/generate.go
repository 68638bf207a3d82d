package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/okian/tdoa/internal/domain/model"
)

// Generation ranges.
const (
	maxLatitude     = 90.0
	fullTurn        = 360.0
	halfTurn        = 180.0
	maxJitterMs     = 1000
	millisPerSecond = 1000
)

// GenerateNodes places n nodes, one per equal-width longitude sector so
// they spread around the globe. Latitude is uniform in [-90, 90].
func GenerateNodes(n int, rng *rand.Rand) (model.NodeTable, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: nodes %d", ErrInvalidCount, n)
	}
	step := fullTurn / float64(n)
	table := make(model.NodeTable, n)
	for i := range n {
		lon := math.Mod(uniform(rng, float64(i)*step, float64(i+1)*step), fullTurn)
		if lon > halfTurn {
			lon -= fullTurn
		}
		lat := uniform(rng, -maxLatitude, maxLatitude)
		table[model.NodeID(i+1)] = model.Coordinate{Latitude: lat, Longitude: lon}
	}
	return table, nil
}

// GenerateEvents creates events "1".."numEvents", each seen by nodes
// 1..numNodes. An event's base time is a whole second in [0, now]; every
// node receives it within one second either side of the base.
func GenerateEvents(numEvents, numNodes int, now time.Time, rng *rand.Rand) ([]model.Event, error) {
	if numEvents <= 0 {
		return nil, fmt.Errorf("%w: events %d", ErrInvalidCount, numEvents)
	}
	if numNodes <= 0 {
		return nil, fmt.Errorf("%w: nodes %d", ErrInvalidCount, numNodes)
	}
	nowSec := max(now.Unix(), 0)
	events := make([]model.Event, numEvents)
	for i := range events {
		base := rng.Int64N(nowSec+1) * millisPerSecond
		ts := make(map[model.NodeID]int64, numNodes)
		for j := range numNodes {
			ts[model.NodeID(j+1)] = base + rng.Int64N(2*maxJitterMs+1) - maxJitterMs
		}
		events[i] = model.Event{ID: model.EventID(strconv.Itoa(i + 1)), Timestamps: ts}
	}
	return events, nil
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}
