package cache

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/lab-analysis-engine/internal/domain"
	"github.com/lab-analysis-engine/internal/metrics"
)

// TieredCache checks the memory tier first and falls back to a remote tier.
// Remote hits are promoted into memory. Remote failures are logged and treated
// as misses.
type TieredCache struct {
	memory *MemoryCache
	remote domain.ViewCache
	logger *logrus.Logger
}

// NewTieredCache creates a tiered cache. remote may be nil.
func NewTieredCache(memory *MemoryCache, remote domain.ViewCache, logger *logrus.Logger) *TieredCache {
	return &TieredCache{
		memory: memory,
		remote: remote,
		logger: logger,
	}
}

// Get looks up key in memory, then in the remote tier.
func (t *TieredCache) Get(ctx context.Context, key string) ([]domain.CategoryView, bool, error) {
	if views, ok, _ := t.memory.Get(ctx, key); ok {
		metrics.RecordCacheOperation("memory", "hit")
		return views, true, nil
	}
	metrics.RecordCacheOperation("memory", "miss")

	if t.remote == nil {
		return nil, false, nil
	}

	views, ok, err := t.remote.Get(ctx, key)
	if err != nil {
		metrics.RecordCacheOperation("redis", "error")
		t.logger.WithError(err).WithField("key", key).Warn("Remote view cache lookup failed")
		return nil, false, nil
	}
	if !ok {
		metrics.RecordCacheOperation("redis", "miss")
		return nil, false, nil
	}

	metrics.RecordCacheOperation("redis", "hit")
	_ = t.memory.Set(ctx, key, views)
	return views, true, nil
}

// Set writes both tiers. A remote failure is logged, not returned.
func (t *TieredCache) Set(ctx context.Context, key string, views []domain.CategoryView) error {
	_ = t.memory.Set(ctx, key, views)

	if t.remote == nil {
		return nil
	}
	if err := t.remote.Set(ctx, key, views); err != nil {
		metrics.RecordCacheOperation("redis", "error")
		t.logger.WithError(err).WithField("key", key).Warn("Remote view cache store failed")
	}
	return nil
}
