// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package services

import (
	"context"
	"time"

	"github.com/tomtom215/insightstream/internal/logging"
)

// Expirer drops entries past their TTL and reports how many it removed.
// Satisfied by *cache.ContextCache.
type Expirer interface {
	CleanupExpired() int
}

// CacheJanitorService periodically expires idle context cache entries.
type CacheJanitorService struct {
	cache    Expirer
	interval time.Duration
	name     string
}

// NewCacheJanitorService creates a janitor sweeping every interval
// (default 10m).
func NewCacheJanitorService(cache Expirer, interval time.Duration) *CacheJanitorService {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &CacheJanitorService{
		cache:    cache,
		interval: interval,
		name:     "context-cache-janitor",
	}
}

// Serve implements suture.Service.
func (j *CacheJanitorService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n := j.cache.CleanupExpired(); n > 0 {
				logging.Debug().Int("expired", n).Msg("context cache cleanup")
			}
		}
	}
}

func (j *CacheJanitorService) String() string {
	return j.name
}
