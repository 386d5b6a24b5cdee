package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ponyclubacheron/site-service/internal/models"
)

// keyPrefix namespaces entries in shared backends.
const keyPrefix = "weather:"

// Entry is one cached snapshot. Entries are replaced on refresh, never mutated.
type Entry struct {
	Snapshot  models.WeatherSnapshot `json:"snapshot"`
	StoredAt  time.Time              `json:"storedAt"`
	ExpiresAt time.Time              `json:"expiresAt"`
}

// Fresh reports whether now is strictly before the expiry instant.
func (e Entry) Fresh(now time.Time) bool {
	return now.Before(e.ExpiresAt)
}

// Remaining returns the time left until expiry, never negative.
func (e Entry) Remaining(now time.Time) time.Duration {
	if d := e.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// StaleFor returns how long ago the entry expired, or 0 while still fresh.
func (e Entry) StaleFor(now time.Time) time.Duration {
	if d := now.Sub(e.ExpiresAt); d > 0 {
		return d
	}
	return 0
}

// Key returns the cache key for a location.
func Key(loc models.Location) string {
	return loc.CacheKey()
}

// Cache stores snapshot entries.
// Get returns entries whether or not they are fresh; callers decide with Entry.Fresh.
// Set keeps the entry for retain, which should cover the TTL plus any stale-serve window.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry, retain time.Duration) error
}

// InMemoryCache implements Cache with a process-local map. Safe for concurrent use.
// Entries are dropped on access once their retain period has passed.
type InMemoryCache struct {
	mu   sync.RWMutex
	now  func() time.Time
	data map[string]memEntry
}

type memEntry struct {
	entry   Entry
	evictAt time.Time
}

// NewInMemoryCache creates an empty in-memory cache using the wall clock.
func NewInMemoryCache() *InMemoryCache {
	return NewInMemoryCacheWithClock(time.Now)
}

// NewInMemoryCacheWithClock creates an empty in-memory cache reading time from now.
func NewInMemoryCacheWithClock(now func() time.Time) *InMemoryCache {
	if now == nil {
		now = time.Now
	}
	return &InMemoryCache{
		now:  now,
		data: make(map[string]memEntry),
	}
}

// Get returns the entry for key, fresh or expired, until its retain period ends.
func (c *InMemoryCache) Get(ctx context.Context, key string) (Entry, bool, error) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return Entry{}, false, nil
	}

	if !c.now().Before(e.evictAt) {
		c.mu.Lock()
		if cur, still := c.data[key]; still && cur.evictAt.Equal(e.evictAt) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return Entry{}, false, nil
	}

	return e.entry, true, nil
}

// Set replaces the entry for key. Concurrent writers race; the last one wins.
func (c *InMemoryCache) Set(ctx context.Context, key string, entry Entry, retain time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = memEntry{
		entry:   entry,
		evictAt: c.now().Add(retain),
	}
	return nil
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (c *InMemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}
