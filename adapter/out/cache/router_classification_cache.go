// Package cache stores validated AI classifications in Redis.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"query_router/core/domain"
	"query_router/core/port/out"
)

const keyPrefix = "classify:"

// RedisClassificationCache implements out.ClassificationCache.
type RedisClassificationCache struct {
	client *redis.Client
	prefix string
}

var _ out.ClassificationCache = (*RedisClassificationCache)(nil)

// NewRedisClassificationCache creates a cache on client.
func NewRedisClassificationCache(client *redis.Client) *RedisClassificationCache {
	return &RedisClassificationCache{client: client, prefix: keyPrefix}
}

// Get returns the cached result, or (nil, nil) on a miss.
func (c *RedisClassificationCache) Get(ctx context.Context, key string) (*domain.ClassificationResult, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached classification: %w", err)
	}

	var result domain.ClassificationResult
	if err := json.Unmarshal(data, &result); err != nil {
		// unreadable entry, treat as a miss and let the next Set overwrite it
		return nil, nil
	}
	return &result, nil
}

// Set stores result for ttl.
func (c *RedisClassificationCache) Set(ctx context.Context, key string, result *domain.ClassificationResult, ttl time.Duration) error {
	if result == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal classification: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache classification: %w", err)
	}
	return nil
}

// Delete drops a cached result.
func (c *RedisClassificationCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}
