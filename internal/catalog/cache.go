package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const cacheVersionKey = "catalog:ver"

// Cache is a read-through JSON cache for catalog responses. Invalidation
// bumps a version counter that namespaces every key, so writes never need
// to enumerate stale keys.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// GetJSON unmarshals a cached payload into dst, reporting whether the key
// existed. Errors degrade to a cache miss.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) bool {
	if c == nil || c.client == nil || key == "" {
		return false
	}
	data, err := c.client.Get(ctx, c.versioned(ctx, key)).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

// SetJSON serialises v and stores it under the current cache version.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) {
	if c == nil || c.client == nil || key == "" {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, c.versioned(ctx, key), data, c.ttl).Err()
}

// Invalidate advances the version counter, orphaning every cached entry.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Incr(ctx, cacheVersionKey).Err()
}

func (c *Cache) versioned(ctx context.Context, key string) string {
	ver, err := c.client.Get(ctx, cacheVersionKey).Int64()
	if err != nil {
		ver = 0
	}
	return fmt.Sprintf("v%d:%s", ver, key)
}
