// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package cache

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/insightstream/internal/metrics"
	"github.com/tomtom215/insightstream/internal/models"
)

// ContextLoader loads a user's business context from the backing store.
type ContextLoader interface {
	GetUserContext(ctx context.Context, userID string) (map[string]interface{}, error)
}

// ContextCacheConfig controls bounds and freshness of the context cache.
type ContextCacheConfig struct {
	// Capacity is the maximum number of users held (LRU beyond that).
	Capacity int
	// StaleAfter is the age after which Get reloads from the store.
	StaleAfter time.Duration
	// TTL drops entries that have not been touched for this long.
	TTL time.Duration
}

// DefaultContextCacheConfig returns the production defaults.
func DefaultContextCacheConfig() ContextCacheConfig {
	return ContextCacheConfig{
		Capacity:   10000,
		StaleAfter: 30 * time.Minute,
		TTL:        2 * time.Hour,
	}
}

// ContextCache memoizes per-user context in front of a ContextLoader.
//
// Concurrent loads for the same user are collapsed into one store call.
// Returned values are copies; callers may not mutate cache state through them.
type ContextCache struct {
	entries    *LRU[*models.CachedContext]
	loader     ContextLoader
	staleAfter time.Duration
	now        func() time.Time
	group      singleflight.Group
}

// NewContextCache creates a context cache backed by loader.
func NewContextCache(loader ContextLoader, cfg ContextCacheConfig) *ContextCache {
	def := DefaultContextCacheConfig()
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	return &ContextCache{
		entries:    NewLRU[*models.CachedContext](cfg.Capacity, cfg.TTL),
		loader:     loader,
		staleAfter: cfg.StaleAfter,
		now:        time.Now,
	}
}

// SetClock replaces the time source of the cache and its LRU. Intended for tests.
func (c *ContextCache) SetClock(now func() time.Time) {
	c.now = now
	c.entries.SetClock(now)
}

// Get returns the user's context, loading it on first use and reloading it
// when older than the staleness threshold. A reload bumps the version.
func (c *ContextCache) Get(ctx context.Context, userID string) (*models.CachedContext, error) {
	if cached, ok := c.entries.Get(userID); ok {
		if c.now().Sub(cached.LastUpdated) <= c.staleAfter {
			metrics.RecordContextCacheHit()
			return cached.Clone(), nil
		}
		metrics.RecordContextCacheMiss(true)
	} else {
		metrics.RecordContextCacheMiss(false)
	}

	v, err, _ := c.group.Do(userID, func() (interface{}, error) {
		data, err := c.loader.GetUserContext(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("load context for user %s: %w", userID, err)
		}

		// The version is derived under the LRU lock so a concurrent Update
		// between load and store is not lost.
		entry, _ := c.entries.Update(userID, func(prev *models.CachedContext, exists bool) (*models.CachedContext, bool) {
			version := 1
			if exists {
				version = prev.Version + 1
			}
			return &models.CachedContext{
				UserID:      userID,
				Context:     data,
				LastUpdated: c.now(),
				Version:     version,
			}, true
		})
		metrics.ContextCacheEntries.Set(float64(c.entries.Len()))
		return entry, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.CachedContext).Clone(), nil
}

// Update records that the user's context changed. Only metadata is touched:
// the version increases and last_updated moves to now. The delta is not
// merged. It returns false when the user is not cached.
func (c *ContextCache) Update(userID string, _ map[string]interface{}) bool {
	_, ok := c.entries.Update(userID, func(cached *models.CachedContext, exists bool) (*models.CachedContext, bool) {
		if !exists {
			return nil, false
		}
		next := cached.Clone()
		next.Version++
		next.LastUpdated = c.now()
		return next, true
	})
	return ok
}

// Invalidate drops a user's cached context.
func (c *ContextCache) Invalidate(userID string) {
	c.entries.Remove(userID)
	metrics.ContextCacheEntries.Set(float64(c.entries.Len()))
}

// CleanupExpired removes entries whose TTL has elapsed.
func (c *ContextCache) CleanupExpired() int {
	n := c.entries.CleanupExpired()
	metrics.ContextCacheEntries.Set(float64(c.entries.Len()))
	return n
}

// Stats returns LRU counters for the cache.
func (c *ContextCache) Stats() LRUStats {
	return c.entries.Stats()
}

// Len returns the number of cached users.
func (c *ContextCache) Len() int {
	return c.entries.Len()
}
