package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/designer-pricing/internal/tenant"
)

// CachedConfig is a cached configuration lookup. Found is false for products
// known to have no configuration of their own.
type CachedConfig struct {
	Found  bool          `json:"found"`
	Config Configuration `json:"config"`
}

// ConfigCache caches configuration lookups per shop and product.
type ConfigCache interface {
	Get(ctx context.Context, productID string) (CachedConfig, bool, error)
	Set(ctx context.Context, productID string, entry CachedConfig) error
	Invalidate(ctx context.Context, productID string) error
}

// RedisCache stores JSON-encoded lookups in Redis. Keys are prefixed with the
// bound shop; without a shop the cache is bypassed.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache constructs a cache helper. A nil client or non-positive ttl disables caching.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// ConfigCacheKey returns the cache key for productID under shop.
func ConfigCacheKey(shop, productID string) string {
	return tenant.PrefixKey(shop, "pricing:config:"+productID)
}

func (c *RedisCache) key(ctx context.Context, productID string) (string, bool) {
	if c == nil || c.client == nil || c.ttl <= 0 || productID == "" {
		return "", false
	}
	shop := tenant.Current(ctx)
	if shop == "" {
		return "", false
	}
	return ConfigCacheKey(shop, productID), true
}

// Get reports whether a cached lookup exists for productID.
func (c *RedisCache) Get(ctx context.Context, productID string) (CachedConfig, bool, error) {
	key, ok := c.key(ctx, productID)
	if !ok {
		return CachedConfig{}, false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return CachedConfig{}, false, nil
		}
		return CachedConfig{}, false, err
	}
	var entry CachedConfig
	if err := json.Unmarshal(data, &entry); err != nil {
		return CachedConfig{}, false, err
	}
	return entry, true, nil
}

// Set stores entry with the configured TTL.
func (c *RedisCache) Set(ctx context.Context, productID string, entry CachedConfig) error {
	key, ok := c.key(ctx, productID)
	if !ok {
		return nil
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Invalidate drops the cached lookup for productID.
func (c *RedisCache) Invalidate(ctx context.Context, productID string) error {
	key, ok := c.key(ctx, productID)
	if !ok {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}
