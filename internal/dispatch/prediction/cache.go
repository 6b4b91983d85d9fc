// internal/dispatch/prediction/cache.go
package prediction

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"vendor-dispatch/internal/common/database"
	"vendor-dispatch/internal/models"
)

// cacheKeyPrefix namespaces prediction entries in shared Redis.
const cacheKeyPrefix = "pred:"

// Cache stores recent predictions keyed by (job, vendor). Implementations
// must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, jobID, vendorID string) (models.Prediction, bool)
	Set(ctx context.Context, jobID, vendorID string, p models.Prediction)
}

func cacheKey(jobID, vendorID string) string {
	return fmt.Sprintf("%s%s:%s", cacheKeyPrefix, jobID, vendorID)
}

// ==========================
// In-memory backend
// ==========================

type memoryEntry struct {
	prediction models.Prediction
	expiresAt  time.Time
}

// MemoryCache is the default single-process TTL cache. Expired entries
// are dropped lazily on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration

	now func() time.Time
}

// NewMemoryCache creates an in-memory prediction cache with the given TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, jobID, vendorID string) (models.Prediction, bool) {
	key := cacheKey(jobID, vendorID)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return models.Prediction{}, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have
		// refreshed the entry.
		if current, still := c.entries[key]; still && c.now().After(current.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return models.Prediction{}, false
	}
	return entry.prediction, true
}

func (c *MemoryCache) Set(_ context.Context, jobID, vendorID string, p models.Prediction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(jobID, vendorID)] = memoryEntry{
		prediction: p,
		expiresAt:  c.now().Add(c.ttl),
	}
}

// Len reports the number of stored entries, counting expired ones not
// yet evicted.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// ==========================
// Redis backend
// ==========================

// RedisCache shares cached predictions across service instances. Cache
// errors are swallowed: a failed read is a miss, a failed write is
// dropped, and the caller proceeds to the prediction service.
type RedisCache struct {
	redis *database.RedisClient
	ttl   time.Duration
}

// NewRedisCache creates a Redis-backed prediction cache.
func NewRedisCache(redis *database.RedisClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &RedisCache{redis: redis, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, jobID, vendorID string) (models.Prediction, bool) {
	raw, err := c.redis.Get(ctx, cacheKey(jobID, vendorID))
	if err != nil {
		return models.Prediction{}, false
	}
	var p models.Prediction
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return models.Prediction{}, false
	}
	return p, true
}

func (c *RedisCache) Set(ctx context.Context, jobID, vendorID string, p models.Prediction) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, cacheKey(jobID, vendorID), raw, c.ttl)
}
