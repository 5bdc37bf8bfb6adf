package cmd

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/loomworks/loom/pkg/cache"
)

// NewExecutionCache creates the execution state cache. With a Redis URL the
// cache is shared across processes; otherwise it is process-local.
func NewExecutionCache(redisURL string, ttl time.Duration) cache.ExecutionCache {
	if redisURL == "" {
		return cache.NewMemoryCache(ttl)
	}

	options, err := redis.ParseURL(redisURL)
	if err != nil {
		panic("invalid redis URL: " + err.Error())
	}

	return cache.NewRedisCache(redis.NewClient(options), ttl)
}
