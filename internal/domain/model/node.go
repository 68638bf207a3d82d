// Package model contains domain models passed between layers.
package model

import (
	"sort"
)

// NodeID identifies an observer node. Valid ids are positive.
type NodeID int

// Coordinate is a node or origin position in degrees. The fit treats it as a
// point on a flat plane with x = Latitude and y = Longitude.
type Coordinate struct {
	Latitude  float64
	Longitude float64
}

// Node is a fixed observer with a known coordinate.
type Node struct {
	ID NodeID
	Coordinate
}

// NodeTable maps node ids to coordinates. It is loaded once and never
// mutated while events are being solved, so it can be shared between
// goroutines without locking.
type NodeTable map[NodeID]Coordinate

// NewNodeTable builds a table from a node list. Later duplicates win.
func NewNodeTable(nodes ...Node) NodeTable {
	t := make(NodeTable, len(nodes))
	for _, n := range nodes {
		t[n.ID] = n.Coordinate
	}
	return t
}

// Nodes returns the table as a slice ordered by id.
func (t NodeTable) Nodes() []Node {
	out := make([]Node, 0, len(t))
	for id, c := range t {
		out = append(out, Node{ID: id, Coordinate: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SortedNodeIDs returns the keys of m in ascending order.
func SortedNodeIDs[V any](m map[NodeID]V) []NodeID {
	ids := make([]NodeID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
