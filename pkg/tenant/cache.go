package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stockline/stockline/pkg/cache"
)

// Cache stores resolved tenants keyed by resolution signal.
type Cache interface {
	// Get retrieves a tenant from cache by key.
	Get(ctx context.Context, key string) (*Tenant, bool)

	// Set stores a tenant in cache.
	Set(ctx context.Context, key string, t *Tenant) error

	// Delete removes the given keys from cache.
	Delete(ctx context.Context, keys ...string) error
}

// DefaultCacheSize is the default maximum number of items in the memory cache.
const DefaultCacheSize = 1000

// DefaultCacheTTL is how long a resolved tenant is trusted before re-reading the store.
const DefaultCacheTTL = 5 * time.Minute

// MemoryCache is a process-local LRU tenant cache with expiry.
type MemoryCache struct {
	lru *cache.LRUCache[string, *Tenant]
}

// NewMemoryCache creates an in-memory cache. Non-positive values fall back to defaults.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{lru: cache.NewLRUCache[string, *Tenant](size, cache.WithTTL(ttl))}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Tenant, bool) {
	t, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

func (c *MemoryCache) Set(_ context.Context, key string, t *Tenant) error {
	c.lru.Put(key, t.Clone())
	return nil
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.lru.Remove(k)
	}
	return nil
}

// RedisCache shares resolved tenants between processes through Redis.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a Redis-backed cache. Keys are stored under prefix.
func NewRedisCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "tenant:"
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) (*Tenant, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	var t Tenant
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, false
	}
	return &t, true
}

func (c *RedisCache) Set(ctx context.Context, key string, t *Tenant) error {
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.prefix+key, data, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = c.prefix + k
	}
	if err := c.client.Del(ctx, prefixed...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// NoopCache disables caching, useful for testing or when caching is unwanted.
type NoopCache struct{}

func (NoopCache) Get(context.Context, string) (*Tenant, bool) { return nil, false }
func (NoopCache) Set(context.Context, string, *Tenant) error  { return nil }
func (NoopCache) Delete(context.Context, ...string) error     { return nil }

// cacheKeys returns every signal key under which t may be cached.
func cacheKeys(t *Tenant) []string {
	if t == nil {
		return nil
	}
	return []string{
		Signal{Kind: SignalCode, Value: t.Code}.String(),
		Signal{Kind: SignalDomain, Value: t.Domain}.String(),
	}
}
