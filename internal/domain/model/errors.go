package model

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for per-event failures. These allow errors.Is/As
// from callers.
var (
	ErrInvalidEvent          = errors.New("invalid event")
	ErrUnknownNode           = errors.New("unknown node")
	ErrUnderdeterminedSystem = errors.New("underdetermined system")
	ErrFitDivergence         = errors.New("fit divergence")
	ErrDegenerateInput       = errors.New("degenerate input")
)

// Stable error codes reported over JSON, CSV and metrics labels.
const (
	KindInvalidEvent          = "invalid_event"
	KindUnknownNode           = "unknown_node"
	KindUnderdeterminedSystem = "underdetermined_system"
	KindFitDivergence         = "fit_divergence"
	KindDegenerateInput       = "degenerate_input"
	KindInternal              = "internal"
)

// DivergenceError reports a fit that ran out of its iteration budget. It
// carries the best parameters reached so callers can inspect them.
type DivergenceError struct {
	// Params is the best-effort (x, y, k).
	Params       [3]float64
	ResidualNorm float64
	Iterations   int
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("fit did not converge after %d iterations (residual norm %g, params x=%g y=%g k=%g)",
		e.Iterations, e.ResidualNorm, e.Params[0], e.Params[1], e.Params[2])
}

// Unwrap makes errors.Is(err, ErrFitDivergence) hold.
func (e *DivergenceError) Unwrap() error { return ErrFitDivergence }

// ErrorKind maps err to its stable code. A nil error yields "".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidEvent):
		return KindInvalidEvent
	case errors.Is(err, ErrUnknownNode):
		return KindUnknownNode
	case errors.Is(err, ErrUnderdeterminedSystem):
		return KindUnderdeterminedSystem
	case errors.Is(err, ErrFitDivergence):
		return KindFitDivergence
	case errors.Is(err, ErrDegenerateInput):
		return KindDegenerateInput
	default:
		return KindInternal
	}
}
