package repository

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMaxBatches bounds the number of retained batches. When full, the
// oldest completed batch is evicted to admit a new one.
func WithMaxBatches(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxBatches = n
		}
	}
}

// WithCompletionHook registers a callback invoked once per batch when its
// last outcome is stored. It runs outside the store lock.
func WithCompletionHook(fn func(Batch)) Option {
	return func(s *MemoryStore) {
		s.onComplete = fn
	}
}

// WithEvictionHook registers a callback invoked with the id of every batch
// evicted to make room. It runs outside the store lock.
func WithEvictionHook(fn func(id string)) Option {
	return func(s *MemoryStore) {
		s.onEvict = fn
	}
}
