package router

import (
	"context"
	"sync"
	"time"

	"github.com/mzurek/divtrack/internal/market"
	"github.com/mzurek/divtrack/pkg/redis"
)

// Cache holds merged provider responses per ticker with a TTL. The
// in-process map always runs; when a Redis client is supplied the entry
// is mirrored there so parallel processes share fetches.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	shared  *redis.Cache
}

type cacheEntry struct {
	merged    *market.Merged
	expiresAt time.Time
}

// NewCache creates a cache with the given TTL. shared may be nil.
func NewCache(ttl time.Duration, shared *redis.Cache) *Cache {
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		shared:  shared,
	}
}

// Get returns the cached merged response for a ticker, if fresh
func (c *Cache) Get(ctx context.Context, ticker string) (*market.Merged, bool) {
	c.mu.RLock()
	entry, ok := c.entries[ticker]
	c.mu.RUnlock()

	if ok && time.Now().Before(entry.expiresAt) {
		return entry.merged, true
	}

	if c.shared != nil {
		var merged market.Merged
		if found, err := c.shared.Get(ctx, redis.TickerKey(ticker), &merged); err == nil && found {
			c.storeLocal(ticker, &merged)
			return &merged, true
		}
	}

	return nil, false
}

// Put stores a merged response
func (c *Cache) Put(ctx context.Context, ticker string, merged *market.Merged) {
	c.storeLocal(ticker, merged)
	if c.shared != nil {
		_ = c.shared.Set(ctx, redis.TickerKey(ticker), merged, c.ttl)
	}
}

// Invalidate drops a ticker's entry, e.g. after instrument deletion
func (c *Cache) Invalidate(ctx context.Context, ticker string) {
	c.mu.Lock()
	delete(c.entries, ticker)
	c.mu.Unlock()

	if c.shared != nil {
		_ = c.shared.Delete(ctx, redis.TickerKey(ticker))
	}
}

// CleanStale drops expired local entries and reports how many
func (c *Cache) CleanStale() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for ticker, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, ticker)
			removed++
		}
	}
	return removed
}

func (c *Cache) storeLocal(ticker string, merged *market.Merged) {
	c.mu.Lock()
	c.entries[ticker] = cacheEntry{merged: merged, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}
