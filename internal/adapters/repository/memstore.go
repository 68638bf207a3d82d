package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/tdoa/internal/domain/model"
)

const defaultMaxBatches = 1024

type batchRecord struct {
	id          string
	total       int
	outcomes    []model.Outcome
	createdAt   time.Time
	completedAt time.Time
}

func (r *batchRecord) done() bool { return len(r.outcomes) >= r.total }

func (r *batchRecord) view() Batch {
	out := make([]model.Outcome, len(r.outcomes))
	copy(out, r.outcomes)
	model.SortOutcomes(out)
	return Batch{
		ID:          r.id,
		Total:       r.total,
		Outcomes:    out,
		CreatedAt:   r.createdAt,
		CompletedAt: r.completedAt,
	}
}

// MemoryStore is an in-memory Store bounded by WithMaxBatches.
type MemoryStore struct {
	mu         sync.RWMutex
	batches    map[string]*batchRecord
	order      []string // insertion order, oldest first
	maxBatches int
	onComplete func(Batch)
	onEvict    func(id string)
	now        func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		batches:    make(map[string]*batchRecord),
		maxBatches: defaultMaxBatches,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, id string, total int) error {
	if total < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTotal, total)
	}

	s.mu.Lock()
	if _, ok := s.batches[id]; ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrExists, id)
	}
	evicted := ""
	if len(s.batches) >= s.maxBatches {
		evicted = s.evictLocked()
	}
	rec := &batchRecord{
		id:        id,
		total:     total,
		outcomes:  make([]model.Outcome, 0, total),
		createdAt: s.now(),
	}
	if total == 0 {
		rec.completedAt = rec.createdAt
	}
	s.batches[id] = rec
	s.order = append(s.order, id)
	var completed *Batch
	if total == 0 && s.onComplete != nil {
		v := rec.view()
		completed = &v
	}
	s.mu.Unlock()

	if evicted != "" && s.onEvict != nil {
		s.onEvict(evicted)
	}
	if completed != nil {
		s.onComplete(*completed)
	}
	return nil
}

// evictLocked drops the oldest completed batch and returns its id, or ""
// when none is complete. Processing batches are never evicted, so the
// store may briefly exceed its bound.
func (s *MemoryStore) evictLocked() string {
	for i, id := range s.order {
		if rec := s.batches[id]; rec != nil && rec.done() {
			delete(s.batches, id)
			s.order = append(s.order[:i], s.order[i+1:]...)
			return id
		}
	}
	return ""
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, id string, o model.Outcome) error {
	s.mu.Lock()
	rec, ok := s.batches[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if rec.done() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrBatchComplete, id)
	}
	rec.outcomes = append(rec.outcomes, o)
	var completed *Batch
	if rec.done() {
		rec.completedAt = s.now()
		if s.onComplete != nil {
			v := rec.view()
			completed = &v
		}
	}
	s.mu.Unlock()

	if completed != nil {
		s.onComplete(*completed)
	}
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id string) (Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.batches[id]
	if !ok {
		return Batch{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.view(), nil
}

// Count implements Store.
func (s *MemoryStore) Count(context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.batches)
}
