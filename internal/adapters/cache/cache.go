// Package cache keeps resolved document-store identifiers keyed by path.
package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/kpisync/pkg/metrics"
)

// DefaultTTL is how long a path stays resolved.
const DefaultTTL = 24 * time.Hour

// ResolveFunc looks up the identifier of a path. Errors are never cached.
type ResolveFunc func(ctx context.Context, path string) (string, error)

// PathCache maps paths to identifiers with a fixed time-to-live.
type PathCache interface {
	// GetOrResolve returns the cached identifier for path, calling resolve on
	// a miss or when the entry expired.
	GetOrResolve(ctx context.Context, path string, resolve ResolveFunc) (string, error)

	// Get returns a live entry without resolving.
	Get(path string) (string, bool)

	// Put records an identifier, e.g. after creating the item.
	Put(path, id string)

	// Invalidate drops a path so the next lookup resolves again.
	Invalidate(path string)

	Size() int64
}

type entry struct {
	id      string
	expires time.Time
	added   uint64
}

type pathCache struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	maxSize int
	seq     uint64
	size    atomic.Int64
	now     func() time.Time
}

// New creates a path cache with a 24 hour TTL by default.
func New(opts ...Option) PathCache {
	c := &pathCache{
		ttl:     DefaultTTL,
		maxSize: 10000,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.entries = make(map[string]entry)
	return c
}

// key normalises a path. Paths compare case-insensitively.
func key(path string) string {
	return strings.ToLower(strings.TrimSpace(path))
}

func (c *pathCache) GetOrResolve(ctx context.Context, path string, resolve ResolveFunc) (string, error) {
	if id, ok := c.Get(path); ok {
		metrics.RecordCacheHit()
		return id, nil
	}
	metrics.RecordCacheMiss()

	// Resolution happens outside the lock; two concurrent misses may both
	// resolve and the later Put wins.
	id, err := resolve(ctx, path)
	if err != nil {
		return "", err
	}
	c.Put(path, id)
	return id, nil
}

func (c *pathCache) Get(path string) (string, bool) {
	k := key(path)
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		return "", false
	}
	if c.ttl > 0 && !c.now().Before(e.expires) {
		c.remove(k)
		return "", false
	}
	return e.id, true
}

func (c *pathCache) Put(path, id string) {
	k := key(path)
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[k]; !exists {
		if c.maxSize > 0 && len(c.entries) >= c.maxSize {
			c.evictOldest()
		}
		c.size.Add(1)
	}
	c.seq++
	c.entries[k] = entry{id: id, expires: c.now().Add(c.ttl), added: c.seq}
	metrics.UpdateCacheEntries(len(c.entries))
}

func (c *pathCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(key(path))
}

// remove must be called with c.mu held.
func (c *pathCache) remove(k string) {
	if _, ok := c.entries[k]; !ok {
		return
	}
	delete(c.entries, k)
	c.size.Add(-1)
	metrics.UpdateCacheEntries(len(c.entries))
}

// evictOldest drops the least recently written entry. Must be called with
// c.mu held.
func (c *pathCache) evictOldest() {
	var (
		oldest string
		seq    uint64
		found  bool
	)
	for k, e := range c.entries {
		if !found || e.added < seq {
			oldest, seq, found = k, e.added, true
		}
	}
	if found {
		c.remove(oldest)
	}
}

func (c *pathCache) Size() int64 {
	return c.size.Load()
}
