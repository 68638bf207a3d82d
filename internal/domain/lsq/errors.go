package lsq

import "errors"

// Sentinel kinds for solver errors.
var (
	ErrNotConverged  = errors.New("iteration limit reached before convergence")
	ErrNonFinite     = errors.New("non-finite residuals")
	ErrBadDimensions = errors.New("problem dimensions do not match the initial guess")
)
