package service

import "errors"

// Sentinel kinds for batch submission errors.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrInvalidBatch  = errors.New("invalid batch")
	ErrBatchTooLarge = errors.New("batch too large")
	ErrBackpressure  = errors.New("backpressure")
)
