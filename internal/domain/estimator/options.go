package estimator

import "github.com/okian/tdoa/internal/domain/lsq"

// Option applies a configuration option to the Estimator.
type Option func(*Estimator)

// WithSolverSettings replaces the Levenberg–Marquardt settings. Zero fields
// keep the solver defaults.
func WithSolverSettings(s lsq.Settings) Option {
	return func(e *Estimator) {
		e.settings = s
	}
}

// WithMaxIterations bounds the solver's iteration count.
func WithMaxIterations(n int) Option {
	return func(e *Estimator) {
		if n > 0 {
			e.settings.MaxIterations = n
		}
	}
}

// WithInitialGuess overrides the (x, y, k) seed.
func WithInitialGuess(x, y, k float64) Option {
	return func(e *Estimator) {
		e.seed = [3]float64{x, y, k}
	}
}

// WithCollinearityTolerance sets the smallest accepted ratio between the two
// singular values of the centered node coordinates.
func WithCollinearityTolerance(tol float64) Option {
	return func(e *Estimator) {
		if tol >= 0 {
			e.collinearityTol = tol
		}
	}
}
