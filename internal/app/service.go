// Package service runs batches of events through the origin estimator and
// keeps their outcomes for retrieval.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/tdoa/internal/adapters/mq/queue"
	"github.com/okian/tdoa/internal/adapters/mq/worker"
	"github.com/okian/tdoa/internal/adapters/repository"
	"github.com/okian/tdoa/internal/domain/dedupe"
	"github.com/okian/tdoa/internal/domain/estimator"
	"github.com/okian/tdoa/internal/domain/locate"
	"github.com/okian/tdoa/internal/domain/model"
	"github.com/okian/tdoa/internal/domain/types"
	"github.com/okian/tdoa/pkg/logger"
	"github.com/okian/tdoa/pkg/metrics"
)

// Service owns the node table and the queue, workers and batch store that
// process submitted events.
type Service struct {
	mu sync.RWMutex

	nodes   model.NodeTable
	locator worker.Locator

	store   *repository.MemoryStore
	deduper dedupe.Deduper
	queue   *queue.InMemoryQueue
	pool    *worker.Pool
	cancel  context.CancelFunc

	workerCount    int
	queueSize      int
	dedupeSize     int
	maxBatchEvents int
	maxBatches     int
	newID          func() string

	started bool
	logger  logger.Logger
}

// New constructs a Service over an immutable node table.
func New(nodes model.NodeTable, opts ...Option) *Service {
	s := &Service{
		nodes:          nodes,
		workerCount:    runtime.NumCPU(),
		queueSize:      100_000,
		dedupeSize:     10_000,
		maxBatchEvents: 50_000,
		maxBatches:     1024,
		newID:          uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locator == nil {
		s.locator = locate.New(estimator.New())
	}
	return s
}

// Start builds the pipeline and starts the workers. Calling Start on a
// running service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.store = repository.NewMemoryStore(
		repository.WithMaxBatches(s.maxBatches),
		repository.WithCompletionHook(s.batchCompleted),
		repository.WithEvictionHook(s.batchEvicted),
	)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	// Workers outlive the request that started them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool = worker.NewPool(s.workerCount, s.queue, s.locator, s.store, s.nodes)
	s.pool.Start(runCtx)

	metrics.UpdateNodeCount(len(s.nodes))
	s.started = true
	s.logger.Info(ctx, "tdoa service started",
		logger.Int("nodes", len(s.nodes)),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
	)
	return nil
}

// Stop closes the queue and waits for queued events to finish.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping tdoa service...")

	err := s.pool.Shutdown(ctx)
	s.cancel()
	s.started = false

	if err != nil {
		s.logger.Warn(ctx, "tdoa service stopped with pending work", logger.Error(err))
		return err
	}
	s.logger.Info(ctx, "tdoa service stopped")
	return nil
}

func (s *Service) batchCompleted(b repository.Batch) {
	metrics.RecordBatchCompleted()
	s.logger.Info(context.Background(), "batch completed",
		logger.String("batch_id", b.ID),
		logger.Int("events", b.Total),
		logger.Int("located", b.Succeeded()),
		logger.Duration("took", b.CompletedAt.Sub(b.CreatedAt)),
	)
}

// batchEvicted lets a client batch id be reused once its results are gone.
func (s *Service) batchEvicted(id string) {
	s.deduper.Unrecord(context.Background(), id)
}

// SubmitBatch queues every event of a batch. A non-empty clientID makes the
// submission idempotent: repeating it returns the first receipt marked as a
// duplicate.
func (s *Service) SubmitBatch(ctx context.Context, clientID string, events []model.Event) (types.BatchReceipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return types.BatchReceipt{}, ErrNotStarted
	}
	if s.maxBatchEvents > 0 && len(events) > s.maxBatchEvents {
		return types.BatchReceipt{}, fmt.Errorf("%w: %d events, limit %d", ErrBatchTooLarge, len(events), s.maxBatchEvents)
	}
	if err := checkUniqueIDs(events); err != nil {
		return types.BatchReceipt{}, err
	}

	id := clientID
	if id == "" {
		id = s.newID()
	} else if s.deduper.SeenAndRecord(ctx, id) {
		metrics.RecordBatchDuplicate()
		return types.BatchReceipt{BatchID: id, Events: len(events), Duplicate: true}, nil
	}

	if free := s.queue.Capacity() - s.queue.Len(); len(events) > free {
		s.forget(ctx, clientID)
		metrics.RecordErrorByComponent("service", "backpressure")
		return types.BatchReceipt{}, fmt.Errorf("%w: %d events, %d queue slots free", ErrBackpressure, len(events), free)
	}

	if err := s.store.Create(ctx, id, len(events)); err != nil {
		if errors.Is(err, repository.ErrExists) {
			metrics.RecordBatchDuplicate()
			return types.BatchReceipt{BatchID: id, Events: len(events), Duplicate: true}, nil
		}
		s.forget(ctx, clientID)
		return types.BatchReceipt{}, fmt.Errorf("create batch: %w", err)
	}

	rejected := 0
	for _, ev := range events {
		if err := s.queue.Enqueue(ctx, queue.Job{BatchID: id, Event: ev}); err != nil {
			// The batch exists, so the event still needs an outcome.
			rejected++
			o := model.Outcome{EventID: ev.ID, Err: fmt.Errorf("event %q: %w: %w", ev.ID, ErrBackpressure, err)}
			if perr := s.store.Put(ctx, id, o); perr != nil {
				s.logger.Error(ctx, "record rejected event", logger.String("batch_id", id), logger.Error(perr))
			}
		}
	}

	metrics.RecordBatchSubmitted()
	s.logger.Debug(ctx, "batch accepted",
		logger.String("batch_id", id),
		logger.Int("events", len(events)),
		logger.Int("rejected", rejected),
	)
	return types.BatchReceipt{BatchID: id, Events: len(events)}, nil
}

func (s *Service) forget(ctx context.Context, clientID string) {
	if clientID != "" {
		s.deduper.Unrecord(ctx, clientID)
	}
}

func checkUniqueIDs(events []model.Event) error {
	seen := make(map[model.EventID]struct{}, len(events))
	for _, ev := range events {
		if _, dup := seen[ev.ID]; dup {
			return fmt.Errorf("%w: duplicate event id %q", ErrInvalidBatch, ev.ID)
		}
		seen[ev.ID] = struct{}{}
	}
	return nil
}

// Batch returns the current state of a batch.
func (s *Service) Batch(ctx context.Context, id string) (repository.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started {
		return repository.Batch{}, ErrNotStarted
	}
	return s.store.Get(ctx, id)
}

// Nodes returns the node table ordered by id.
func (s *Service) Nodes() []model.Node {
	return s.nodes.Nodes()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"nodes":       len(s.nodes),
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}
	if s.started {
		ctx := context.Background()
		stats["queueLength"] = s.queue.Len()
		stats["batches"] = s.store.Count(ctx)
		stats["rememberedBatchIDs"] = s.deduper.Size()
		metrics.UpdateQueue(s.queue.Len(), s.queue.Capacity())
	}
	return stats
}
