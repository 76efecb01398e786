package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/lab-analysis-engine/internal/domain"
)

const redisKeyPrefix = "lab-engine:"

// cachedViews is the Redis value envelope
type cachedViews struct {
	Views     []domain.CategoryView `json:"views"`
	CachedAt  time.Time             `json:"cached_at"`
	ExpiresAt time.Time             `json:"expires_at"`
}

// RedisCache stores assembled views in Redis. Calls go through a circuit breaker
// so an unavailable Redis fails fast instead of stalling every request.
type RedisCache struct {
	redis      *redis.Client
	breaker    *gobreaker.CircuitBreaker
	defaultTTL time.Duration
	logger     *logrus.Logger

	hits   atomic.Int64
	misses atomic.Int64
	errors atomic.Int64
}

// NewRedisCache connects to Redis using the cache configuration
func NewRedisCache(config domain.CacheConfig, logger *logrus.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if config.PoolSize > 0 {
		opts.PoolSize = config.PoolSize
	}
	if config.PoolTimeout > 0 {
		opts.PoolTimeout = config.PoolTimeout
	}
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCacheWithClient(client, config.DefaultTTL, logger), nil
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = time.Hour
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-view-cache",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})

	return &RedisCache{
		redis:      client,
		breaker:    breaker,
		defaultTTL: ttl,
		logger:     logger,
	}
}

// Get retrieves cached views. A miss is not an error.
func (c *RedisCache) Get(ctx context.Context, key string) ([]domain.CategoryView, bool, error) {
	fullKey := redisKeyPrefix + key

	result, err := c.breaker.Execute(func() (interface{}, error) {
		val, err := c.redis.Get(ctx, fullKey).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return val, err
	})
	if err != nil {
		c.errors.Add(1)
		return nil, false, fmt.Errorf("failed to get views from Redis: %w", err)
	}

	val, _ := result.([]byte)
	if val == nil {
		c.misses.Add(1)
		return nil, false, nil
	}

	var cached cachedViews
	if err := json.Unmarshal(val, &cached); err != nil {
		// Remove corrupted cache entry
		c.redis.Del(ctx, fullKey)
		c.misses.Add(1)
		return nil, false, nil
	}

	if time.Now().After(cached.ExpiresAt) {
		c.redis.Del(ctx, fullKey)
		c.misses.Add(1)
		return nil, false, nil
	}

	c.hits.Add(1)
	return cached.Views, true, nil
}

// Set stores views with the default TTL.
func (c *RedisCache) Set(ctx context.Context, key string, views []domain.CategoryView) error {
	now := time.Now()
	data, err := json.Marshal(cachedViews{
		Views:     views,
		CachedAt:  now,
		ExpiresAt: now.Add(c.defaultTTL),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal views for Redis: %w", err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return nil, c.redis.Set(ctx, redisKeyPrefix+key, data, c.defaultTTL).Err()
	})
	if err != nil {
		c.errors.Add(1)
		return fmt.Errorf("failed to store views in Redis: %w", err)
	}
	return nil
}

// IsHealthy pings Redis.
func (c *RedisCache) IsHealthy(ctx context.Context) bool {
	return c.redis.Ping(ctx).Err() == nil
}

// GetStats returns a snapshot of the cache counters
func (c *RedisCache) GetStats() Stats {
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Errors: c.errors.Load(),
	}
}

// Close closes the Redis client
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
