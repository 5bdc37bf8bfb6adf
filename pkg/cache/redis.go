package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/loomworks/loom/pkg/models"
)

const redisKeyPrefix = "loom:execution_state:"

// RedisCache is a redis-backed execution state cache. TTL enforcement is
// delegated to redis key expiry, so CleanupExpired is a no-op here.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisCache creates a redis cache; ttl is applied per key.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, executionID string) (*models.ExecutionState, error) {
	payload, err := c.client.Get(ctx, redisKeyPrefix+executionID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read cached state: %w", err)
	}

	var state models.ExecutionState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, fmt.Errorf("failed to decode cached state: %w", err)
	}

	return &state, nil
}

func (c *RedisCache) Set(ctx context.Context, executionID string, state *models.ExecutionState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	err = c.client.Set(ctx, redisKeyPrefix+executionID, payload, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to cache state: %w", err)
	}

	return nil
}

func (c *RedisCache) Delete(ctx context.Context, executionID string) error {
	return c.client.Del(ctx, redisKeyPrefix+executionID).Err()
}

// CleanupExpired is satisfied by redis key expiry.
func (c *RedisCache) CleanupExpired(_ context.Context) (int, error) {
	return 0, nil
}
