package tenant

import (
	"sync"
	"time"

	"github.com/duonordic/sitedeck/internal/models"
)

// Cache stores resolved tenants for a bounded time. A nil value is
// cached too, so repeated lookups for unknown hosts do not hit the
// store on every request.
type Cache interface {
	Get(key string) (*models.Tenant, bool)
	Set(key string, t *models.Tenant)
	Invalidate(key string)
	InvalidateAll()
}

type cacheEntry struct {
	tenant    *models.Tenant
	expiresAt time.Time
}

// MemoryCache is a TTL-bounded in-process cache safe for concurrent
// use.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
}

// NewMemoryCache creates a cache whose entries expire after ttl.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
	}
}

func (c *MemoryCache) Get(key string) (*models.Tenant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.tenant, true
}

func (c *MemoryCache) Set(key string, t *models.Tenant) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		tenant:    t,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *MemoryCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}

func (c *MemoryCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cacheEntry)
}
