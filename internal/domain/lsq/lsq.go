// Package lsq implements a Levenberg–Marquardt nonlinear least-squares
// solver for small dense problems.
//
// Each iteration solves the damped normal equations
//
//	(JᵀJ + λ·D)·δ = −Jᵀr,   D = diag(max(diag(JᵀJ), ε))
//
// and accepts p+δ only when it lowers the cost ½||r||². λ shrinks tenfold
// after an accepted step and grows tenfold after a rejected one.
package lsq

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Problem is a residual vector r(p) of length m over n parameters.
type Problem interface {
	// Dims returns the number of residuals m and parameters n.
	Dims() (m, n int)
	// Residuals writes r(p) into dst, which has length m.
	Residuals(dst, p []float64)
	// Jacobian writes ∂r/∂p at p into dst, which is m×n.
	Jacobian(dst *mat.Dense, p []float64)
}

// Status says why Minimize stopped.
type Status int

const (
	// IterationLimit means MaxIterations ran out.
	IterationLimit Status = iota
	// GradientConverged means r is orthogonal to every column of J within
	// GradientTolerance, or r is zero.
	GradientConverged
	// StepConverged means the accepted step became negligible.
	StepConverged
	// CostConverged means the actual and predicted relative cost reductions
	// became negligible.
	CostConverged
	// Stalled means no damping up to MaxDamping produced a descent step,
	// i.e. p is stationary at machine precision.
	Stalled
)

func (s Status) String() string {
	switch s {
	case GradientConverged:
		return "gradient"
	case StepConverged:
		return "step"
	case CostConverged:
		return "cost"
	case Stalled:
		return "stalled"
	default:
		return "iteration_limit"
	}
}

// Converged reports whether the status is a convergence criterion.
func (s Status) Converged() bool { return s != IterationLimit }

// Result is the state Minimize ended in.
type Result struct {
	Params       []float64
	Cost         float64
	ResidualNorm float64
	Iterations   int
	Status       Status
}

// Minimize runs Levenberg–Marquardt from x0. When MaxIterations is
// exhausted the best-effort Result is returned together with
// ErrNotConverged. ctx is checked once per iteration.
func Minimize(ctx context.Context, prob Problem, x0 []float64, settings Settings) (Result, error) {
	m, n := prob.Dims()
	if n == 0 || m == 0 || len(x0) != n {
		return Result{}, fmt.Errorf("minimize: m=%d n=%d len(x0)=%d: %w", m, n, len(x0), ErrBadDimensions)
	}
	s := settings.withDefaults()

	p := make([]float64, n)
	copy(p, x0)
	r := make([]float64, m)
	prob.Residuals(r, p)
	cost := halfSquaredNorm(r)
	if !isFinite(cost) {
		return Result{Params: p, Cost: cost, ResidualNorm: math.Sqrt(2 * cost)}, fmt.Errorf("minimize: initial guess: %w", ErrNonFinite)
	}

	jac := mat.NewDense(m, n, nil)
	trial := make([]float64, n)
	rTrial := make([]float64, m)
	rLin := make([]float64, m)
	diag := make([]float64, n)
	lambda := s.InitialDamping

	result := func(iter int, status Status) Result {
		return Result{
			Params:       append([]float64(nil), p...),
			Cost:         cost,
			ResidualNorm: math.Sqrt(2 * cost),
			Iterations:   iter,
			Status:       status,
		}
	}

	for iter := 1; iter <= s.MaxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return result(iter-1, IterationLimit), fmt.Errorf("minimize: %w", err)
		}

		prob.Jacobian(jac, p)
		var grad mat.VecDense
		grad.MulVec(jac.T(), mat.NewVecDense(m, r))
		if gradientCosine(jac, &grad, cost) <= s.GradientTolerance {
			return result(iter, GradientConverged), nil
		}

		var jtj mat.SymDense
		jtj.SymOuterK(1, jac.T())
		for i := 0; i < n; i++ {
			diag[i] = math.Max(jtj.At(i, i), minDiagonal)
		}

		for {
			step, ok := dampedStep(&jtj, diag, lambda, &grad)
			if ok {
				for i := range trial {
					trial[i] = p[i] + step.AtVec(i)
				}
				prob.Residuals(rTrial, trial)
				trialCost := halfSquaredNorm(rTrial)

				if isFinite(trialCost) && trialCost < cost {
					reduction := cost - trialCost
					predicted := cost - linearisedCost(rLin, r, jac, step)
					prevCost := cost
					copy(p, trial)
					r, rTrial = rTrial, r
					cost = trialCost
					lambda = math.Max(lambda/dampingFactor, s.MinDamping)

					if mat.Norm(step, 2) <= s.StepTolerance*(floats.Norm(p, 2)+s.StepTolerance) {
						return result(iter, StepConverged), nil
					}
					if reduction <= s.CostTolerance*prevCost && predicted <= s.CostTolerance*prevCost {
						return result(iter, CostConverged), nil
					}
					break
				}
			}

			lambda *= dampingFactor
			if lambda > s.MaxDamping {
				return result(iter, Stalled), nil
			}
		}
	}

	return result(s.MaxIterations, IterationLimit), fmt.Errorf("minimize: %d iterations: %w", s.MaxIterations, ErrNotConverged)
}

// dampedStep solves (JᵀJ + λ·diag)·δ = −g. ok is false when the system is
// numerically singular or the solution is not finite.
func dampedStep(jtj *mat.SymDense, diag []float64, lambda float64, grad *mat.VecDense) (*mat.VecDense, bool) {
	n := jtj.SymmetricDim()
	a := mat.NewSymDense(n, nil)
	a.CopySym(jtj)
	for i := 0; i < n; i++ {
		a.SetSym(i, i, jtj.At(i, i)+lambda*diag[i])
	}

	step := mat.NewVecDense(n, nil)
	var chol mat.Cholesky
	if chol.Factorize(a) {
		if err := chol.SolveVecTo(step, grad); err != nil {
			return nil, false
		}
	} else {
		var lu mat.LU
		lu.Factorize(a)
		if err := lu.SolveVecTo(step, false, grad); err != nil {
			return nil, false
		}
	}
	step.ScaleVec(-1, step)

	for i := 0; i < n; i++ {
		if !isFinite(step.AtVec(i)) {
			return nil, false
		}
	}
	return step, true
}

// gradientCosine is max_j |g_j| / (||J_j||·||r||) with g = Jᵀr, the
// scale-free measure of how far r is from orthogonal to the columns of J.
// Zero columns are skipped and a zero residual gives 0.
func gradientCosine(jac *mat.Dense, grad *mat.VecDense, cost float64) float64 {
	if cost == 0 {
		return 0
	}
	rNorm := math.Sqrt(2 * cost)
	var worst float64
	_, n := jac.Dims()
	for j := 0; j < n; j++ {
		colNorm := mat.Norm(jac.ColView(j), 2)
		if colNorm == 0 {
			continue
		}
		worst = math.Max(worst, math.Abs(grad.AtVec(j))/(colNorm*rNorm))
	}
	return worst
}

// linearisedCost is ½||r + J·δ||², the cost the local model predicts for a
// step δ. dst is scratch of length m.
func linearisedCost(dst, r []float64, jac *mat.Dense, step *mat.VecDense) float64 {
	out := mat.NewVecDense(len(dst), dst)
	out.MulVec(jac, step)
	floats.Add(dst, r)
	return halfSquaredNorm(dst)
}

func halfSquaredNorm(r []float64) float64 {
	return 0.5 * floats.Dot(r, r)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
