// Package estimator fits an event origin to relative arrival delays.
//
// For unknowns (x, y, k) and node i at (x_i, y_i) with delay d_i the
// residual is
//
//	r_i = (x − x_i)² + (y − y_i)² − (k·d_i)²
//
// so k converts delays into planar distance and absorbs the unknown
// propagation speed. The sum of squared residuals is minimised with
// Levenberg–Marquardt from a fixed seed; the result is a local optimum.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okian/tdoa/internal/domain/lsq"
	"github.com/okian/tdoa/internal/domain/model"
	"gonum.org/v1/gonum/mat"
)

// Default estimator configuration constants.
const (
	minObservations        = 3
	defaultCollinearityTol = 1e-9
	defaultSeedX           = 0.0
	defaultSeedY           = 0.0
	defaultSeedScale       = 1.0
)

// Estimator solves one event at a time. It holds only configuration and is
// safe for concurrent use.
type Estimator struct {
	settings        lsq.Settings
	seed            [3]float64
	collinearityTol float64
}

// New creates an Estimator with configuration options.
func New(opts ...Option) *Estimator {
	e := &Estimator{
		settings:        lsq.DefaultSettings(),
		seed:            [3]float64{defaultSeedX, defaultSeedY, defaultSeedScale},
		collinearityTol: defaultCollinearityTol,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate fits the origin for one event given its per-node delays.
//
// Inputs are rejected before fitting when a delay is negative or not
// finite (ErrInvalidEvent), a node is missing from nodes (ErrUnknownNode),
// fewer than three pairs remain (ErrUnderdeterminedSystem), or the geometry
// is ill-posed (ErrDegenerateInput). A fit that exhausts its iteration
// budget returns a *model.DivergenceError.
func (e *Estimator) Estimate(ctx context.Context, nodes model.NodeTable, delays map[model.NodeID]float64) (model.FitResult, error) {
	prob, err := e.newProblem(nodes, delays)
	if err != nil {
		return model.FitResult{}, err
	}

	res, err := lsq.Minimize(ctx, prob, e.seed[:], e.settings)
	switch {
	case err == nil:
	case errors.Is(err, lsq.ErrNotConverged), errors.Is(err, lsq.ErrNonFinite):
		return model.FitResult{}, divergence(res)
	default:
		return model.FitResult{}, fmt.Errorf("estimate origin: %w", err)
	}

	for _, v := range res.Params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.FitResult{}, divergence(res)
		}
	}

	return model.FitResult{
		Origin:       model.Coordinate{Latitude: res.Params[0], Longitude: res.Params[1]},
		Scale:        math.Abs(res.Params[2]),
		Iterations:   res.Iterations,
		ResidualNorm: res.ResidualNorm,
		Observations: len(prob.d),
	}, nil
}

// newProblem validates the inputs and lays them out in node id order so
// repeated fits of the same input are bit-identical.
func (e *Estimator) newProblem(nodes model.NodeTable, delays map[model.NodeID]float64) (*problem, error) {
	ids := model.SortedNodeIDs(delays)
	p := &problem{
		x: make([]float64, 0, len(ids)),
		y: make([]float64, 0, len(ids)),
		d: make([]float64, 0, len(ids)),
	}

	allZero := true
	for _, id := range ids {
		d := delays[id]
		if d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return nil, fmt.Errorf("node %d has delay %v: %w", id, d, model.ErrInvalidEvent)
		}
		c, ok := nodes[id]
		if !ok {
			return nil, fmt.Errorf("node %d: %w", id, model.ErrUnknownNode)
		}
		if d != 0 {
			allZero = false
		}
		p.x = append(p.x, c.Latitude)
		p.y = append(p.y, c.Longitude)
		p.d = append(p.d, d)
	}

	if len(p.d) < minObservations {
		return nil, fmt.Errorf("%d node/delay pairs, need at least %d: %w", len(p.d), minObservations, model.ErrUnderdeterminedSystem)
	}
	if allZero {
		return nil, fmt.Errorf("all %d delays are zero: %w", len(p.d), model.ErrDegenerateInput)
	}
	if err := checkSpread(p.x, p.y, e.collinearityTol); err != nil {
		return nil, err
	}
	return p, nil
}

// checkSpread rejects coincident or collinear node layouts by comparing the
// singular values of the centered coordinate matrix.
func checkSpread(xs, ys []float64, tol float64) error {
	n := len(xs)
	var mx, my float64
	for i := range xs {
		mx += xs[i]
		my += ys[i]
	}
	mx /= float64(n)
	my /= float64(n)

	a := mat.NewDense(n, 2, nil)
	for i := range xs {
		a.Set(i, 0, xs[i]-mx)
		a.Set(i, 1, ys[i]-my)
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDNone) {
		return fmt.Errorf("node coordinates cannot be factorized: %w", model.ErrDegenerateInput)
	}
	sv := svd.Values(nil)
	if sv[0] == 0 || math.IsNaN(sv[0]) {
		return fmt.Errorf("node coordinates coincide: %w", model.ErrDegenerateInput)
	}
	if sv[1]/sv[0] <= tol {
		return fmt.Errorf("node coordinates are collinear (spread ratio %g): %w", sv[1]/sv[0], model.ErrDegenerateInput)
	}
	return nil
}

func divergence(res lsq.Result) error {
	de := &model.DivergenceError{ResidualNorm: res.ResidualNorm, Iterations: res.Iterations}
	copy(de.Params[:], res.Params)
	return de
}

// problem is the lsq.Problem for one event.
type problem struct {
	x, y, d []float64
}

func (p *problem) Dims() (int, int) { return len(p.d), 3 }

func (p *problem) Residuals(dst, params []float64) {
	x, y, k := params[0], params[1], params[2]
	for i := range p.d {
		dx := x - p.x[i]
		dy := y - p.y[i]
		kd := k * p.d[i]
		dst[i] = dx*dx + dy*dy - kd*kd
	}
}

func (p *problem) Jacobian(dst *mat.Dense, params []float64) {
	x, y, k := params[0], params[1], params[2]
	for i := range p.d {
		dst.Set(i, 0, 2*(x-p.x[i]))
		dst.Set(i, 1, 2*(y-p.y[i]))
		dst.Set(i, 2, -2*k*p.d[i]*p.d[i])
	}
}
