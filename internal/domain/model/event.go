package model

import (
	"sort"
	"strconv"
)

// EventID identifies an event (a "transaction" in the upstream datasets).
type EventID string

// Event is one observed signal: the absolute arrival timestamp, in
// milliseconds, at every node that saw it.
type Event struct {
	ID         EventID
	Timestamps map[NodeID]int64
	// Err is set when the event could not be decoded. Such an event is
	// reported with Err and never fitted.
	Err error
}

// DelaySet holds per-node delays relative to the earliest-arriving node.
// Delays[Reference] is always 0 and every value is non-negative.
type DelaySet struct {
	Reference NodeID
	Delays    map[NodeID]float64
}

// FitResult is the fitted model for one event.
type FitResult struct {
	// Origin is the estimated (x, y) as a coordinate.
	Origin Coordinate
	// Scale is the fitted propagation factor k. Diagnostic only.
	Scale float64
	// Iterations used by the solver.
	Iterations int
	// ResidualNorm is the Euclidean norm of the final residual vector.
	ResidualNorm float64
	// Observations is the number of (node, delay) pairs used.
	Observations int
}

// Outcome is the per-event product of a batch: a result or an error.
type Outcome struct {
	EventID EventID
	Result  *FitResult
	Err     error
}

// OK reports whether the event was located.
func (o Outcome) OK() bool { return o.Err == nil && o.Result != nil }

// LessEventID orders ids naturally: numeric ids compare by value and sort
// before non-numeric ids, which compare lexicographically.
func LessEventID(a, b EventID) bool {
	ai, aErr := strconv.ParseInt(string(a), 10, 64)
	bi, bErr := strconv.ParseInt(string(b), 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		if ai != bi {
			return ai < bi
		}
		return a < b
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	default:
		return a < b
	}
}

// SortEventIDs sorts ids in place in natural order.
func SortEventIDs(ids []EventID) {
	sort.SliceStable(ids, func(i, j int) bool { return LessEventID(ids[i], ids[j]) })
}

// SortOutcomes sorts outcomes in place by event id in natural order.
func SortOutcomes(outcomes []Outcome) {
	sort.SliceStable(outcomes, func(i, j int) bool {
		return LessEventID(outcomes[i].EventID, outcomes[j].EventID)
	})
}

// SortEvents sorts events in place by id in natural order.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool { return LessEventID(events[i].ID, events[j].ID) })
}
