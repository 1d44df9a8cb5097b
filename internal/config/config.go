// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package config

import (
	"time"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Security     SecurityConfig     `koanf:"security"`
	Pipeline     PipelineConfig     `koanf:"pipeline"`
	Scheduler    SchedulerConfig    `koanf:"scheduler"`
	Cache        CacheConfig        `koanf:"cache"`
	Redis        RedisConfig        `koanf:"redis"`
	Intelligence IntelligenceConfig `koanf:"intelligence"`
	Delivery     DeliveryConfig     `koanf:"delivery"`
	Realtime     RealtimeConfig     `koanf:"realtime"`
	Logging      LoggingConfig      `koanf:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// SecurityConfig holds token and request-limiting settings.
type SecurityConfig struct {
	JWTSecret      string        `koanf:"jwt_secret"`
	JWTIssuer      string        `koanf:"jwt_issuer"`
	SessionTimeout time.Duration `koanf:"session_timeout"`
	AdminRole      string        `koanf:"admin_role"`

	RateLimitReqs     int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// WSHandshakeLimit caps websocket upgrades per client IP per minute.
	WSHandshakeLimit int `koanf:"ws_handshake_limit"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// PipelineConfig controls the priority queue workers.
type PipelineConfig struct {
	Workers            int           `koanf:"workers"`
	PopTimeout         time.Duration `koanf:"pop_timeout"`
	StopTimeout        time.Duration `koanf:"stop_timeout"`
	HandlerTimeout     time.Duration `koanf:"handler_timeout"`
	MaxRetries         int           `koanf:"max_retries"`
	ProactiveThreshold int           `koanf:"proactive_threshold"`
}

// SchedulerConfig controls the periodic analysis trigger.
type SchedulerConfig struct {
	Enabled      bool          `koanf:"enabled"`
	Interval     time.Duration `koanf:"interval"`
	ActiveWindow time.Duration `koanf:"active_window"`
	Priority     int           `koanf:"priority"`
	EnqueueRate  float64       `koanf:"enqueue_rate"`
	EnqueueBurst int           `koanf:"enqueue_burst"`
}

// CacheConfig controls the per-user context cache.
type CacheConfig struct {
	Capacity        int           `koanf:"capacity"`
	StaleAfter      time.Duration `koanf:"stale_after"`
	TTL             time.Duration `koanf:"ttl"`
	CleanupInterval time.Duration `koanf:"cleanup_interval"`
}

// RedisConfig holds the entity store connection. When disabled an
// in-memory store is used.
type RedisConfig struct {
	Enabled          bool          `koanf:"enabled"`
	Addr             string        `koanf:"addr"`
	Password         string        `koanf:"password"`
	DB               int           `koanf:"db"`
	KeyPrefix        string        `koanf:"key_prefix"`
	DialTimeout      time.Duration `koanf:"dial_timeout"`
	ReadTimeout      time.Duration `koanf:"read_timeout"`
	WriteTimeout     time.Duration `koanf:"write_timeout"`
	InsightRetention time.Duration `koanf:"insight_retention"`
}

// IntelligenceConfig holds circuit breaker settings for the analysis backend.
type IntelligenceConfig struct {
	BreakerMaxRequests      uint32        `koanf:"breaker_max_requests"`
	BreakerInterval         time.Duration `koanf:"breaker_interval"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
}

// DeliveryConfig configures the insight pub/sub bridge.
type DeliveryConfig struct {
	Topic         string `koanf:"topic"`
	ChannelBuffer int64  `koanf:"channel_buffer"`
}

// RealtimeConfig configures the websocket hub and its helper services.
type RealtimeConfig struct {
	MaxConnectionsPerUser int           `koanf:"max_connections_per_user"`
	MaxEventsPerSecond    int           `koanf:"max_events_per_second"`
	RateWindow            time.Duration `koanf:"rate_window"`
	SendBuffer            int           `koanf:"send_buffer"`
	BroadcastBuffer       int           `koanf:"broadcast_buffer"`
	BatchSize             int           `koanf:"batch_size"`
	BatchTimeout          time.Duration `koanf:"batch_timeout"`
	HistoryCapacity       int           `koanf:"history_capacity"`
	HistoryRetain         int           `koanf:"history_retain"`
	HistoryChunkSize      int           `koanf:"history_chunk_size"`
	HistoryChunkDelay     time.Duration `koanf:"history_chunk_delay"`
	ReapInterval          time.Duration `koanf:"reap_interval"`
	StaleAfter            time.Duration `koanf:"stale_after"`
	HealthInterval        time.Duration `koanf:"health_interval"`
	MetricsInterval       time.Duration `koanf:"metrics_interval"`
	ErrorWindow           time.Duration `koanf:"error_window"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `koanf:"level"`  // trace, debug, info, warn, error
	Format string `koanf:"format"` // json, console
	Caller bool   `koanf:"caller"`
}
