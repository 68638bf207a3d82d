// Package locate runs the per-event pipeline: relative delays, then the
// origin fit. Events are independent, so batches fan out over a bounded
// goroutine pool and partial failures are reported per event.
package locate

import (
	"context"
	"fmt"
	"runtime"

	"github.com/okian/tdoa/internal/domain/delay"
	"github.com/okian/tdoa/internal/domain/model"
	"github.com/sourcegraph/conc/pool"
)

// Estimator fits one event's delays against the node table.
type Estimator interface {
	Estimate(ctx context.Context, nodes model.NodeTable, delays map[model.NodeID]float64) (model.FitResult, error)
}

// Option applies a configuration option to the Locator.
type Option func(*Locator)

// WithConcurrency caps the goroutines used by LocateAll.
func WithConcurrency(n int) Option {
	return func(l *Locator) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// Locator turns raw events into outcomes.
type Locator struct {
	estimator   Estimator
	concurrency int
}

// New creates a Locator around est.
func New(est Estimator, opts ...Option) *Locator {
	l := &Locator{
		estimator:   est,
		concurrency: runtime.NumCPU(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Locate solves a single event. Failures are captured in the outcome.
func (l *Locator) Locate(ctx context.Context, nodes model.NodeTable, ev model.Event) model.Outcome {
	out := model.Outcome{EventID: ev.ID}
	if ev.Err != nil {
		out.Err = fmt.Errorf("event %q: %w", ev.ID, ev.Err)
		return out
	}

	set, err := delay.Extract(ev)
	if err != nil {
		out.Err = err
		return out
	}

	res, err := l.estimator.Estimate(ctx, nodes, set.Delays)
	if err != nil {
		out.Err = fmt.Errorf("event %q: %w", ev.ID, err)
		return out
	}
	out.Result = &res
	return out
}

// LocateAll solves every event and returns the outcomes ordered by event id.
func (l *Locator) LocateAll(ctx context.Context, nodes model.NodeTable, events []model.Event) []model.Outcome {
	p := pool.NewWithResults[model.Outcome]().WithMaxGoroutines(l.concurrency)
	for _, ev := range events {
		p.Go(func() model.Outcome {
			return l.Locate(ctx, nodes, ev)
		})
	}

	outcomes := p.Wait()
	model.SortOutcomes(outcomes)
	return outcomes
}
