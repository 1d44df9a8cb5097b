// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/tomtom215/insightstream/internal/api"
	"github.com/tomtom215/insightstream/internal/cache"
	"github.com/tomtom215/insightstream/internal/config"
	"github.com/tomtom215/insightstream/internal/delivery"
	"github.com/tomtom215/insightstream/internal/intelligence"
	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/processor"
	"github.com/tomtom215/insightstream/internal/scheduler"
	"github.com/tomtom215/insightstream/internal/store"
	"github.com/tomtom215/insightstream/internal/supervisor"
	ws "github.com/tomtom215/insightstream/internal/websocket"
)

// entityStore is everything the pipeline needs from persistence.
// Both *store.MemoryStore and *store.RedisStore satisfy it.
type entityStore interface {
	intelligence.EntityStore
	api.InsightStore
}

// openStore connects to Redis when enabled and falls back to the in-memory
// store otherwise. The returned closer releases the connection.
func openStore(ctx context.Context, cfg *config.Config) (entityStore, api.Pinger, func() error, error) {
	if !cfg.Redis.Enabled {
		logging.Warn().Msg("Redis disabled; using in-memory entity store (data is lost on restart)")
		return store.NewMemoryStore(), nil, func() error { return nil }, nil
	}

	redisCfg := redisConfig(cfg)
	client := store.NewRedisClient(redisCfg)
	rs := store.NewRedisStore(client, redisCfg)

	pingCtx, cancel := context.WithTimeout(ctx, redisCfg.DialTimeout+redisCfg.ReadTimeout)
	defer cancel()
	if err := rs.Ping(pingCtx); err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("redis %s unreachable: %w", redisCfg.Addr, err)
	}

	logging.Info().Str("addr", redisCfg.Addr).Int("db", redisCfg.DB).Msg("Connected to Redis entity store")
	return rs, rs, client.Close, nil
}

func loggingConfig(cfg *config.Config) logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = cfg.Logging.Level
	lc.Format = cfg.Logging.Format
	lc.Caller = cfg.Logging.Caller
	lc.Output = os.Stderr
	return lc
}

func redisConfig(cfg *config.Config) store.RedisConfig {
	return store.RedisConfig{
		Addr:             cfg.Redis.Addr,
		Password:         cfg.Redis.Password,
		DB:               cfg.Redis.DB,
		KeyPrefix:        cfg.Redis.KeyPrefix,
		DialTimeout:      cfg.Redis.DialTimeout,
		ReadTimeout:      cfg.Redis.ReadTimeout,
		WriteTimeout:     cfg.Redis.WriteTimeout,
		InsightRetention: cfg.Redis.InsightRetention,
	}
}

func contextCacheConfig(cfg *config.Config) cache.ContextCacheConfig {
	return cache.ContextCacheConfig{
		Capacity:   cfg.Cache.Capacity,
		StaleAfter: cfg.Cache.StaleAfter,
		TTL:        cfg.Cache.TTL,
	}
}

func breakerConfig(cfg *config.Config) intelligence.BreakerConfig {
	bc := intelligence.DefaultBreakerConfig()
	if cfg.Intelligence.BreakerMaxRequests > 0 {
		bc.MaxRequests = cfg.Intelligence.BreakerMaxRequests
	}
	if cfg.Intelligence.BreakerInterval > 0 {
		bc.Interval = cfg.Intelligence.BreakerInterval
	}
	if cfg.Intelligence.BreakerTimeout > 0 {
		bc.Timeout = cfg.Intelligence.BreakerTimeout
	}
	if cfg.Intelligence.BreakerFailureThreshold > 0 {
		bc.FailureThreshold = cfg.Intelligence.BreakerFailureThreshold
	}
	return bc
}

func poolConfig(cfg *config.Config) processor.Config {
	return processor.Config{
		Workers:            cfg.Pipeline.Workers,
		PopTimeout:         cfg.Pipeline.PopTimeout,
		StopTimeout:        cfg.Pipeline.StopTimeout,
		HandlerTimeout:     cfg.Pipeline.HandlerTimeout,
		MaxRetries:         cfg.Pipeline.MaxRetries,
		ProactiveThreshold: cfg.Pipeline.ProactiveThreshold,
	}
}

func schedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Interval:     cfg.Scheduler.Interval,
		ActiveWindow: cfg.Scheduler.ActiveWindow,
		Priority:     cfg.Scheduler.Priority,
		EnqueueRate:  cfg.Scheduler.EnqueueRate,
		EnqueueBurst: cfg.Scheduler.EnqueueBurst,
		Enabled:      cfg.Scheduler.Enabled,
	}
}

func deliveryConfig(cfg *config.Config) delivery.Config {
	return delivery.Config{
		Topic:         cfg.Delivery.Topic,
		ChannelBuffer: cfg.Delivery.ChannelBuffer,
	}
}

func realtimeConfig(cfg *config.Config) ws.Config {
	rt := cfg.Realtime
	return ws.Config{
		MaxConnectionsPerUser: rt.MaxConnectionsPerUser,
		MaxEventsPerSecond:    rt.MaxEventsPerSecond,
		RateWindow:            rt.RateWindow,
		SendBuffer:            rt.SendBuffer,
		BroadcastBuffer:       rt.BroadcastBuffer,
		BatchSize:             rt.BatchSize,
		BatchTimeout:          rt.BatchTimeout,
		HistoryCapacity:       rt.HistoryCapacity,
		HistoryRetain:         rt.HistoryRetain,
		HistoryChunkSize:      rt.HistoryChunkSize,
		HistoryChunkDelay:     rt.HistoryChunkDelay,
		ReapInterval:          rt.ReapInterval,
		StaleAfter:            rt.StaleAfter,
		HealthInterval:        rt.HealthInterval,
		MetricsInterval:       rt.MetricsInterval,
		ErrorWindow:           rt.ErrorWindow,
	}
}

func treeConfig(cfg *config.Config) supervisor.TreeConfig {
	tc := supervisor.DefaultTreeConfig()
	if cfg.Server.ShutdownTimeout > 0 {
		tc.ShutdownTimeout = cfg.Server.ShutdownTimeout
	}
	return tc
}
