// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/insightstream/config.yaml",
	"/etc/insightstream/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
// These are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			Timeout:         30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			Environment:     "development",
		},
		Security: SecurityConfig{
			JWTSecret:         "",
			JWTIssuer:         "insightstream",
			SessionTimeout:    24 * time.Hour,
			AdminRole:         "admin",
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			WSHandshakeLimit:  30,
			CORSOrigins:       []string{"*"},
		},
		Pipeline: PipelineConfig{
			Workers:            3,
			PopTimeout:         time.Second,
			StopTimeout:        5 * time.Second,
			HandlerTimeout:     30 * time.Second,
			MaxRetries:         0,
			ProactiveThreshold: 2,
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			Interval:     15 * time.Minute,
			ActiveWindow: 24 * time.Hour,
			Priority:     7,
			EnqueueRate:  200,
			EnqueueBurst: 20,
		},
		Cache: CacheConfig{
			Capacity:        10000,
			StaleAfter:      30 * time.Minute,
			TTL:             2 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Redis: RedisConfig{
			Enabled:          false,
			Addr:             "localhost:6379",
			DB:               0,
			KeyPrefix:        "insightstream:",
			DialTimeout:      5 * time.Second,
			ReadTimeout:      3 * time.Second,
			WriteTimeout:     3 * time.Second,
			InsightRetention: 7 * 24 * time.Hour,
		},
		Intelligence: IntelligenceConfig{
			BreakerMaxRequests:      3,
			BreakerInterval:         30 * time.Second,
			BreakerTimeout:          10 * time.Second,
			BreakerFailureThreshold: 5,
		},
		Delivery: DeliveryConfig{
			Topic:         "insights.generated",
			ChannelBuffer: 256,
		},
		Realtime: RealtimeConfig{
			MaxConnectionsPerUser: 5,
			MaxEventsPerSecond:    50,
			RateWindow:            time.Second,
			SendBuffer:            256,
			BroadcastBuffer:       1000,
			BatchSize:             10,
			BatchTimeout:          time.Second,
			HistoryCapacity:       1000,
			HistoryRetain:         800,
			HistoryChunkSize:      50,
			HistoryChunkDelay:     100 * time.Millisecond,
			ReapInterval:          30 * time.Second,
			StaleAfter:            60 * time.Second,
			HealthInterval:        30 * time.Second,
			MetricsInterval:       10 * time.Second,
			ErrorWindow:           5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load is LoadWithKoanf.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// LoadWithKoanf loads configuration using Koanf with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment
	// HTTP_PORT -> server.port, WS_MAX_CONNECTIONS_PER_USER -> realtime.max_connections_per_user
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// ConfigFile returns the config file Load would read, or "" when none exists.
func ConfigFile() string {
	return findConfigFile()
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// Env vars arrive as strings while the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_port":        "server.port",
	"http_host":        "server.host",
	"http_timeout":     "server.timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"environment":      "server.environment",

	// Security
	"jwt_secret":          "security.jwt_secret",
	"jwt_issuer":          "security.jwt_issuer",
	"session_timeout":     "security.session_timeout",
	"admin_role":          "security.admin_role",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",
	"disable_rate_limit":  "security.rate_limit_disabled",
	"ws_handshake_limit":  "security.ws_handshake_limit",
	"cors_origins":        "security.cors_origins",

	// Worker pool
	"pipeline_workers":             "pipeline.workers",
	"pipeline_pop_timeout":         "pipeline.pop_timeout",
	"pipeline_stop_timeout":        "pipeline.stop_timeout",
	"pipeline_handler_timeout":     "pipeline.handler_timeout",
	"pipeline_max_retries":         "pipeline.max_retries",
	"pipeline_proactive_threshold": "pipeline.proactive_threshold",

	// Scheduler
	"scheduler_enabled":       "scheduler.enabled",
	"scheduler_interval":      "scheduler.interval",
	"scheduler_active_window": "scheduler.active_window",
	"scheduler_priority":      "scheduler.priority",
	"scheduler_enqueue_rate":  "scheduler.enqueue_rate",
	"scheduler_enqueue_burst": "scheduler.enqueue_burst",

	// Context cache
	"context_cache_capacity":         "cache.capacity",
	"context_cache_stale_after":      "cache.stale_after",
	"context_cache_ttl":              "cache.ttl",
	"context_cache_cleanup_interval": "cache.cleanup_interval",

	// Redis
	"redis_enabled":           "redis.enabled",
	"redis_addr":              "redis.addr",
	"redis_password":          "redis.password",
	"redis_db":                "redis.db",
	"redis_key_prefix":        "redis.key_prefix",
	"redis_dial_timeout":      "redis.dial_timeout",
	"redis_read_timeout":      "redis.read_timeout",
	"redis_write_timeout":     "redis.write_timeout",
	"redis_insight_retention": "redis.insight_retention",

	// Analysis backend
	"intelligence_breaker_max_requests":      "intelligence.breaker_max_requests",
	"intelligence_breaker_interval":          "intelligence.breaker_interval",
	"intelligence_breaker_timeout":           "intelligence.breaker_timeout",
	"intelligence_breaker_failure_threshold": "intelligence.breaker_failure_threshold",

	// Delivery
	"delivery_topic":          "delivery.topic",
	"delivery_channel_buffer": "delivery.channel_buffer",

	// Websocket hub
	"ws_max_connections_per_user": "realtime.max_connections_per_user",
	"ws_max_events_per_second":    "realtime.max_events_per_second",
	"ws_rate_window":              "realtime.rate_window",
	"ws_send_buffer":              "realtime.send_buffer",
	"ws_broadcast_buffer":         "realtime.broadcast_buffer",
	"ws_batch_size":               "realtime.batch_size",
	"ws_batch_timeout":            "realtime.batch_timeout",
	"ws_history_capacity":         "realtime.history_capacity",
	"ws_history_retain":           "realtime.history_retain",
	"ws_history_chunk_size":       "realtime.history_chunk_size",
	"ws_history_chunk_delay":      "realtime.history_chunk_delay",
	"ws_reap_interval":            "realtime.reap_interval",
	"ws_stale_after":              "realtime.stale_after",
	"ws_health_interval":          "realtime.health_interval",
	"ws_metrics_interval":         "realtime.metrics_interval",
	"ws_error_window":             "realtime.error_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - REDIS_ADDR -> redis.addr
//   - WS_BATCH_SIZE -> realtime.batch_size
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// Unmapped keys are skipped so unrelated environment variables
	// never leak into the config tree.
	return ""
}

// WatchConfigFile calls callback whenever the file at path changes.
// The caller is responsible for synchronising access to any Config it
// rebuilds from the callback.
func WatchConfigFile(path string, callback func()) error {
	provider := file.Provider(path)
	return provider.Watch(func(event interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
