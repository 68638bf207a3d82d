package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/okian/tdoa/internal/domain/model"
)

// nodeKeyPrefix is the key prefix used by node and event datasets.
const nodeKeyPrefix = "node"

// ParseNodeKey accepts "nodeN" or a bare "N" and returns N. Ids must be
// positive.
func ParseNodeKey(s string) (model.NodeID, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), nodeKeyPrefix)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: node key %q", model.ErrInvalidEvent, s)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: node key %q: id must be positive", model.ErrInvalidEvent, s)
	}
	return model.NodeID(n), nil
}

// NodeKey renders an id in dataset form, e.g. "node3".
func NodeKey(id model.NodeID) string { return nodeKeyPrefix + strconv.Itoa(int(id)) }

// ParseEvent builds an event from "nodeN"-keyed timestamp maps, read in
// order with keys sorted inside each map. A malformed key or a node listed
// twice does not fail the caller: the event keeps the first such error in
// Err and is reported as invalid on its own.
func ParseEvent(id string, stamps ...map[string]int64) model.Event {
	size := 0
	for _, m := range stamps {
		size += len(m)
	}
	ev := model.Event{ID: model.EventID(id), Timestamps: make(map[model.NodeID]int64, size)}
	for _, m := range stamps {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			node, err := ParseNodeKey(k)
			if err != nil {
				ev.Err = err
				return ev
			}
			if _, dup := ev.Timestamps[node]; dup {
				ev.Err = fmt.Errorf("%w: node %d listed twice", model.ErrInvalidEvent, node)
				return ev
			}
			ev.Timestamps[node] = m[k]
		}
	}
	return ev
}
