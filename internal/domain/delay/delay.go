// Package delay converts absolute per-node arrival timestamps into delays
// relative to the earliest-arriving node.
package delay

import (
	"fmt"

	"github.com/okian/tdoa/internal/domain/model"
)

// Extract returns the relative delay set for ev.
//
// The reference is the node with the smallest timestamp; when several nodes
// share it, the lowest node id wins. Coordinates are not consulted here.
func Extract(ev model.Event) (model.DelaySet, error) {
	if len(ev.Timestamps) == 0 {
		return model.DelaySet{}, fmt.Errorf("event %q has no timestamps: %w", ev.ID, model.ErrInvalidEvent)
	}

	ids := model.SortedNodeIDs(ev.Timestamps)
	if ids[0] <= 0 {
		return model.DelaySet{}, fmt.Errorf("event %q references node id %d: %w", ev.ID, ids[0], model.ErrInvalidEvent)
	}

	// ids are ascending, so a strict comparison keeps the lowest id on ties.
	ref := ids[0]
	for _, id := range ids[1:] {
		if ev.Timestamps[id] < ev.Timestamps[ref] {
			ref = id
		}
	}

	base := ev.Timestamps[ref]
	delays := make(map[model.NodeID]float64, len(ids))
	for _, id := range ids {
		d := ev.Timestamps[id] - base
		if d < 0 {
			// only reachable through int64 overflow
			return model.DelaySet{}, fmt.Errorf("event %q: timestamp span of node %d overflows: %w", ev.ID, id, model.ErrInvalidEvent)
		}
		delays[id] = float64(d)
	}

	return model.DelaySet{Reference: ref, Delays: delays}, nil
}
