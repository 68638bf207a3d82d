// Package worker runs origin fits for queued events and hands outcomes to a
// result sink.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/tdoa/internal/adapters/mq/queue"
	"github.com/okian/tdoa/internal/domain/model"
	"github.com/okian/tdoa/pkg/logger"
	"github.com/okian/tdoa/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Locator resolves one event against the node table.
type Locator interface {
	Locate(ctx context.Context, nodes model.NodeTable, ev model.Event) model.Outcome
}

// ResultSink stores outcomes per batch.
type ResultSink interface {
	Put(ctx context.Context, batchID string, o model.Outcome) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Job
}

// Worker processes jobs until its queue closes.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for in-process queues.
type InMemoryWorker struct {
	queue   Queue
	locator Locator
	sink    ResultSink
	nodes   model.NodeTable
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker bound to a fixed node table.
func NewInMemoryWorker(q Queue, loc Locator, sink ResultSink, nodes model.NodeTable, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		locator:  loc,
		sink:     sink,
		nodes:    nodes,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "error processing job", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker and waits for the loop to exit.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, j queue.Job) error { //nolint:gocritic // Job arrives by value
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	o := w.locator.Locate(ctx, w.nodes, j.Event)
	fitMs := float64(time.Since(start).Microseconds()) / 1000

	if o.OK() {
		metrics.RecordFit(metrics.OutcomeOK, o.Result.Iterations, o.Result.ResidualNorm, fitMs)
		w.logger.Debug(ctx, "event located",
			logger.String("batch_id", j.BatchID),
			logger.String("event_id", string(o.EventID)),
			logger.Int("iterations", o.Result.Iterations),
			logger.Float64("residual_norm", o.Result.ResidualNorm),
		)
	} else {
		metrics.RecordFit(model.ErrorKind(o.Err), 0, 0, fitMs)
		w.logger.Debug(ctx, "event rejected",
			logger.String("batch_id", j.BatchID),
			logger.String("event_id", string(o.EventID)),
			logger.String("kind", model.ErrorKind(o.Err)),
			logger.Error(o.Err),
		)
	}

	if err := w.sink.Put(ctx, j.BatchID, o); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "store")
		return fmt.Errorf("store outcome of event %q in batch %s: %w", o.EventID, j.BatchID, err)
	}
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a worker pool. A non-positive count means one worker per CPU.
func NewPool(workerCount int, q Queue, loc Locator, sink ResultSink, nodes model.NodeTable) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, loc, sink, nodes, WithName("worker-"+strconv.Itoa(i)))
	}
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.workers))
}

// Shutdown closes the queue and lets workers drain it. Workers still busy
// when ctx (or the pool timeout) ends are stopped.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker drain timed out", logger.Int("worker_id", i))
			_ = w.Shutdown(context.Background())
		}
	}
	metrics.UpdateWorkerCount(0)

	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
