package cache

import "time"

// Option applies a configuration option to the path cache.
type Option func(*pathCache)

// WithTTL sets how long a resolved entry stays valid.
// A ttl <= 0 keeps entries until they are evicted or invalidated.
func WithTTL(ttl time.Duration) Option {
	return func(c *pathCache) {
		c.ttl = ttl
	}
}

// WithMaxSize bounds the number of entries. The oldest entry is evicted when
// the cache is full. maxSize <= 0 means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(c *pathCache) {
		c.maxSize = maxSize
	}
}

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *pathCache) {
		if now != nil {
			c.now = now
		}
	}
}
