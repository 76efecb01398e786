// Package cache provides view caches for assembled analysis views: an in-process
// expirable LRU, a Redis-backed cache guarded by a circuit breaker, and a tiered
// combination of both.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lab-analysis-engine/internal/domain"
)

// Stats tracks cache performance counters
type Stats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
	Errors int64 `json:"errors"`
	Items  int   `json:"items"`
}

// HitRatio returns hits over lookups, or 0 before the first lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// MemoryCache is an in-process, size-bounded view cache with per-entry expiry.
// Cached slices are shared; callers must not mutate returned views.
type MemoryCache struct {
	lru    *expirable.LRU[string, []domain.CategoryView]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemoryCache creates a memory cache holding at most maxItems entries for ttl.
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = 1000
	}
	return &MemoryCache{
		lru: expirable.NewLRU[string, []domain.CategoryView](maxItems, nil, ttl),
	}
}

// Get returns cached views for key.
func (m *MemoryCache) Get(_ context.Context, key string) ([]domain.CategoryView, bool, error) {
	views, ok := m.lru.Get(key)
	if !ok {
		m.misses.Add(1)
		return nil, false, nil
	}
	m.hits.Add(1)
	return views, true, nil
}

// Set stores views under key.
func (m *MemoryCache) Set(_ context.Context, key string, views []domain.CategoryView) error {
	m.lru.Add(key, views)
	return nil
}

// Purge drops every entry.
func (m *MemoryCache) Purge() {
	m.lru.Purge()
}

// GetStats returns a snapshot of the cache counters
func (m *MemoryCache) GetStats() Stats {
	return Stats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Items:  m.lru.Len(),
	}
}

// PayloadKey fingerprints an analysis payload. Map keys are marshalled in sorted
// order, so equal payloads give equal keys.
func PayloadKey(payload domain.AnalysisPayload) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload for cache key: %w", err)
	}
	hash := sha256.Sum256(data)
	return "views:" + hex.EncodeToString(hash[:]), nil
}
