package lsq_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/okian/tdoa/internal/domain/lsq"
	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/mat"
)

// rosenbrock is r = [10(y − x²), 1 − x], minimised at (1, 1).
type rosenbrock struct{}

func (rosenbrock) Dims() (int, int) { return 2, 2 }

func (rosenbrock) Residuals(dst, p []float64) {
	dst[0] = 10 * (p[1] - p[0]*p[0])
	dst[1] = 1 - p[0]
}

func (rosenbrock) Jacobian(dst *mat.Dense, p []float64) {
	dst.Set(0, 0, -20*p[0])
	dst.Set(0, 1, 10)
	dst.Set(1, 0, -1)
	dst.Set(1, 1, 0)
}

// line fits y = a + b·t to samples.
type line struct {
	t, y []float64
}

func (l line) Dims() (int, int) { return len(l.t), 2 }

func (l line) Residuals(dst, p []float64) {
	for i := range l.t {
		dst[i] = p[0] + p[1]*l.t[i] - l.y[i]
	}
}

func (l line) Jacobian(dst *mat.Dense, _ []float64) {
	for i := range l.t {
		dst.Set(i, 0, 1)
		dst.Set(i, 1, l.t[i])
	}
}

// nanProblem produces NaN residuals everywhere.
type nanProblem struct{}

func (nanProblem) Dims() (int, int) { return 1, 1 }

func (nanProblem) Residuals(dst, _ []float64) { dst[0] = math.NaN() }

func (nanProblem) Jacobian(dst *mat.Dense, _ []float64) { dst.Set(0, 0, 1) }

// misdirected reports the negated Jacobian of r = p − 1, so every step
// climbs.
type misdirected struct{}

func (misdirected) Dims() (int, int) { return 1, 1 }

func (misdirected) Residuals(dst, p []float64) { dst[0] = p[0] - 1 }

func (misdirected) Jacobian(dst *mat.Dense, _ []float64) { dst.Set(0, 0, -1) }

// tiny stands in for a tolerance that never fires.
const tiny = 1e-300

func TestMinimize(t *testing.T) {
	ctx := context.Background()

	Convey("Given the Rosenbrock residuals", t, func() {
		Convey("When minimising from the classic start (-1.2, 1)", func() {
			res, err := lsq.Minimize(ctx, rosenbrock{}, []float64{-1.2, 1}, lsq.Settings{})

			Convey("Then it converges to (1, 1)", func() {
				So(err, ShouldBeNil)
				So(res.Status.Converged(), ShouldBeTrue)
				So(res.Params[0], ShouldAlmostEqual, 1.0, 1e-6)
				So(res.Params[1], ShouldAlmostEqual, 1.0, 1e-6)
				So(res.ResidualNorm, ShouldBeLessThan, 1e-6)
				So(res.Iterations, ShouldBeGreaterThan, 1)
			})
		})

		Convey("When the iteration budget is a single step", func() {
			res, err := lsq.Minimize(ctx, rosenbrock{}, []float64{-1.2, 1}, lsq.Settings{MaxIterations: 1})

			Convey("Then it reports ErrNotConverged with best-effort params", func() {
				So(errors.Is(err, lsq.ErrNotConverged), ShouldBeTrue)
				So(res.Status, ShouldEqual, lsq.IterationLimit)
				So(res.Iterations, ShouldEqual, 1)
				So(len(res.Params), ShouldEqual, 2)
				So(res.ResidualNorm, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the initial guess is left untouched", func() {
			x0 := []float64{-1.2, 1}
			_, err := lsq.Minimize(ctx, rosenbrock{}, x0, lsq.Settings{})

			Convey("Then the caller's slice is not modified", func() {
				So(err, ShouldBeNil)
				So(x0, ShouldResemble, []float64{-1.2, 1})
			})
		})
	})

	Convey("Given an exactly linear problem", t, func() {
		prob := line{t: []float64{0, 1, 2, 3, 4}, y: []float64{2, 5, 8, 11, 14}}

		Convey("Then the fit recovers intercept and slope", func() {
			res, err := lsq.Minimize(ctx, prob, []float64{0, 0}, lsq.Settings{})
			So(err, ShouldBeNil)
			So(res.Params[0], ShouldAlmostEqual, 2.0, 1e-9)
			So(res.Params[1], ShouldAlmostEqual, 3.0, 1e-9)
		})
	})

	Convey("Given an inconsistent line fit with a large residual", t, func() {
		prob := line{t: []float64{0, 1, 2}, y: []float64{0, 3e4, 0}}

		Convey("Then it converges in a few iterations despite the residual scale", func() {
			res, err := lsq.Minimize(ctx, prob, []float64{0, 0}, lsq.Settings{})
			So(err, ShouldBeNil)
			So(res.Status.Converged(), ShouldBeTrue)
			So(res.Iterations, ShouldBeLessThan, 20)
			So(res.Params[0], ShouldAlmostEqual, 1e4, 1e-2)
			So(res.Params[1], ShouldAlmostEqual, 0.0, 1e-2)
			So(res.ResidualNorm, ShouldBeGreaterThan, 1e4)
		})
	})

	Convey("Given settings that isolate each stopping test", t, func() {
		exact := line{t: []float64{0, 1, 2, 3, 4}, y: []float64{2, 5, 8, 11, 14}}

		Convey("When starting at the optimum of a nonzero-residual fit", func() {
			prob := line{t: []float64{0, 1, 2}, y: []float64{0, 3, 0}}
			res, err := lsq.Minimize(ctx, prob, []float64{1, 0}, lsq.Settings{})

			Convey("Then the gradient test stops it before any step", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, lsq.GradientConverged)
				So(res.Iterations, ShouldEqual, 1)
				So(res.Params, ShouldResemble, []float64{1, 0})
				So(res.Cost, ShouldAlmostEqual, 3.0, 1e-12)
			})
		})

		Convey("When only the step test can fire", func() {
			res, err := lsq.Minimize(ctx, exact, []float64{0, 0},
				lsq.Settings{GradientTolerance: tiny, StepTolerance: 1, CostTolerance: tiny})

			Convey("Then it stops with StepConverged after the first step", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, lsq.StepConverged)
				So(res.Iterations, ShouldEqual, 1)
			})
		})

		Convey("When only the cost test can fire", func() {
			res, err := lsq.Minimize(ctx, exact, []float64{0, 0},
				lsq.Settings{GradientTolerance: tiny, StepTolerance: tiny, CostTolerance: 1})

			Convey("Then it stops with CostConverged after the first step", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, lsq.CostConverged)
				So(res.Iterations, ShouldEqual, 1)
			})
		})

		Convey("When no damping yields a descent step", func() {
			res, err := lsq.Minimize(ctx, misdirected{}, []float64{3}, lsq.Settings{})

			Convey("Then it stops with Stalled at the starting point", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, lsq.Stalled)
				So(res.Iterations, ShouldEqual, 1)
				So(res.Params, ShouldResemble, []float64{3})
			})
		})
	})

	Convey("Given invalid inputs", t, func() {
		Convey("When x0 has the wrong length", func() {
			_, err := lsq.Minimize(ctx, rosenbrock{}, []float64{1}, lsq.Settings{})
			So(errors.Is(err, lsq.ErrBadDimensions), ShouldBeTrue)
		})

		Convey("When residuals are not finite", func() {
			_, err := lsq.Minimize(ctx, nanProblem{}, []float64{0}, lsq.Settings{})
			So(errors.Is(err, lsq.ErrNonFinite), ShouldBeTrue)
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := lsq.Minimize(cctx, rosenbrock{}, []float64{-1.2, 1}, lsq.Settings{})
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestStatusString(t *testing.T) {
	Convey("Given solver statuses", t, func() {
		So(lsq.GradientConverged.String(), ShouldEqual, "gradient")
		So(lsq.StepConverged.String(), ShouldEqual, "step")
		So(lsq.CostConverged.String(), ShouldEqual, "cost")
		So(lsq.Stalled.String(), ShouldEqual, "stalled")
		So(lsq.IterationLimit.String(), ShouldEqual, "iteration_limit")
		So(lsq.IterationLimit.Converged(), ShouldBeFalse)
		So(lsq.StepConverged.Converged(), ShouldBeTrue)
	})
}
