package service

import (
	"github.com/okian/tdoa/internal/adapters/mq/worker"
	"github.com/okian/tdoa/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of fitting workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued events.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many client batch ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxBatchEvents caps the events accepted per batch. Zero disables the cap.
func WithMaxBatchEvents(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.maxBatchEvents = n
		}
	}
}

// WithMaxBatches bounds the number of retained batches.
func WithMaxBatches(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxBatches = n
		}
	}
}

// WithLocator replaces the default event locator.
func WithLocator(l worker.Locator) Option {
	return func(s *Service) {
		if l != nil {
			s.locator = l
		}
	}
}

// WithIDGenerator replaces the batch id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
