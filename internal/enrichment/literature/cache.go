package literature

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/RxDossier/internal/domain/candidate"
)

// Cache stores article lists keyed by query identity.  Entries older than
// the freshness window are treated as absent; expiry is lazy, checked on
// read.  Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached list and true on a fresh hit.
	Get(ctx context.Context, key string) ([]candidate.Article, bool, error)

	// Set stores the list with the cache's freshness window.
	Set(ctx context.Context, key string, articles []candidate.Article) error
}

type memoryEntry struct {
	articles []candidate.Article
	storedAt time.Time
}

// MemoryCache is the in-process Cache.  Expired entries are dropped on the
// read that discovers them; nothing sweeps in the background.
type MemoryCache struct {
	mu        sync.RWMutex
	entries   map[string]memoryEntry
	freshness time.Duration
	now       func() time.Time
}

var _ Cache = (*MemoryCache)(nil)

// NewMemoryCache constructs the in-process cache.
func NewMemoryCache(freshness time.Duration) *MemoryCache {
	return &MemoryCache{
		entries:   make(map[string]memoryEntry),
		freshness: freshness,
		now:       time.Now,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]candidate.Article, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if c.now().Sub(entry.storedAt) > c.freshness {
		c.mu.Lock()
		// Re-check under the write lock; a fresher write may have landed.
		if current, ok := c.entries[key]; ok && current.storedAt.Equal(entry.storedAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	return entry.articles, true, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, articles []candidate.Article) error {
	c.mu.Lock()
	c.entries[key] = memoryEntry{articles: articles, storedAt: c.now()}
	c.mu.Unlock()
	return nil
}
