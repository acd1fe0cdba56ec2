package repository

// DefaultMaxRuns bounds the in-memory run history.
const DefaultMaxRuns = 500

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithMaxRuns sets how many runs the memory store keeps.
func WithMaxRuns(n int) Option {
	return func(s *MemoryStore) {
		if n > 0 {
			s.maxRuns = n
		}
	}
}
