// Package repository keeps per-batch origin estimation outcomes.
package repository

import (
	"context"
	"time"

	"github.com/okian/tdoa/internal/domain/model"
)

// Batch status values.
const (
	StatusProcessing = "processing"
	StatusDone       = "done"
)

// Batch is a read-only view of one submitted batch.
type Batch struct {
	ID          string
	Total       int
	Outcomes    []model.Outcome // ordered by event id
	CreatedAt   time.Time
	CompletedAt time.Time // zero while processing
}

// Status reports whether every event of the batch has an outcome.
func (b Batch) Status() string {
	if len(b.Outcomes) >= b.Total {
		return StatusDone
	}
	return StatusProcessing
}

// Succeeded counts outcomes that produced an origin.
func (b Batch) Succeeded() int {
	n := 0
	for _, o := range b.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Store provides read/write access to batch outcomes.
type Store interface {
	// Create registers an empty batch expecting total outcomes.
	Create(ctx context.Context, id string, total int) error

	// Put records one outcome. Returns ErrNotFound for unknown batches and
	// ErrBatchComplete once all outcomes are in.
	Put(ctx context.Context, id string, o model.Outcome) error

	// Get returns a snapshot of the batch with outcomes in event id order.
	Get(ctx context.Context, id string) (Batch, error)

	// Count returns the number of retained batches.
	Count(ctx context.Context) int
}
