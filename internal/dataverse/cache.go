// internal/dataverse/cache.go
package dataverse

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"

	"dataverse-agent/internal/common/errors"
	"dataverse-agent/internal/common/logger"
)

// Entry holds the cached metadata for one table. Sections are filled
// lazily and independently; a section is only trusted once its Has
// flag is set. Entries are never invalidated during a process
// lifetime.
type Entry struct {
	EntitySet    string   `json:"entity_set,omitempty"`
	HasEntitySet bool     `json:"has_entity_set"`
	Numeric      []string `json:"numeric,omitempty"`
	HasNumeric   bool     `json:"has_numeric"`
	Dates        []string `json:"dates,omitempty"`
	HasDates     bool     `json:"has_dates"`
}

// Cache stores metadata entries keyed by lowercased table name. It is
// an explicit dependency of the Resolver so tests can instantiate a
// fresh cache per test.
type Cache interface {
	Get(ctx context.Context, table string) (Entry, bool)
	Put(ctx context.Context, table string, entry Entry)
}

// MemoryCache is the default in-process cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]Entry)}
}

func (c *MemoryCache) Get(ctx context.Context, table string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[table]
	return entry, ok
}

func (c *MemoryCache) Put(ctx context.Context, table string, entry Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[table] = entry
}

// RedisCache shares metadata entries across processes. Backend errors
// are logged and treated as cache misses; they never surface to the
// resolver's callers.
type RedisCache struct {
	client *redis.Client
	prefix string
	logger logger.Logger
}

func NewRedisCache(client *redis.Client, log logger.Logger) *RedisCache {
	return &RedisCache{
		client: client,
		prefix: "dataverse:metadata:",
		logger: log,
	}
}

func (c *RedisCache) Get(ctx context.Context, table string) (Entry, bool) {
	raw, err := c.client.Get(ctx, c.prefix+table).Result()
	if err == redis.Nil {
		return Entry{}, false
	}
	if err != nil {
		c.logger.WithError(errors.NewCacheUnavailableError(err)).Warn("metadata cache read failed", map[string]interface{}{
			"table": table,
		})
		return Entry{}, false
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		c.logger.WithError(err).Warn("metadata cache entry corrupt", map[string]interface{}{
			"table": table,
		})
		return Entry{}, false
	}
	return entry, true
}

func (c *RedisCache) Put(ctx context.Context, table string, entry Entry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return
	}
	// No expiry: entries live for as long as the deployment, matching
	// the in-memory cache's staleness model.
	if err := c.client.Set(ctx, c.prefix+table, raw, 0).Err(); err != nil {
		c.logger.WithError(errors.NewCacheUnavailableError(err)).Warn("metadata cache write failed", map[string]interface{}{
			"table": table,
		})
	}
}
