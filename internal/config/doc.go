// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

/*
Package config provides centralized configuration management for Insightstream.

Configuration is loaded with Koanf in three layers, later layers winning:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: CONFIG_PATH, or the first of DefaultConfigPaths
 3. Environment variables, mapped explicitly to config paths

Only environment variables listed in the mapping table are read, so an
unrelated variable can never change a setting.

# Configuration Structure

  - ServerConfig: HTTP listener and shutdown budget
  - SecurityConfig: JWT secret, admin role, HTTP rate limits, CORS
  - PipelineConfig: priority queue worker pool
  - SchedulerConfig: periodic per-user analysis
  - CacheConfig: per-user context cache
  - RedisConfig: entity store (in-memory when disabled)
  - IntelligenceConfig: circuit breaker around the analysis backend
  - DeliveryConfig: insight pub/sub topic
  - RealtimeConfig: websocket hub limits, batching, history and health
  - LoggingConfig: zerolog level and format

# Environment Variables

Selected variables:

  - HTTP_PORT, HTTP_HOST, ENVIRONMENT
  - JWT_SECRET (required, at least 32 characters)
  - CORS_ORIGINS (comma-separated)
  - REDIS_ENABLED, REDIS_ADDR
  - PIPELINE_WORKERS, SCHEDULER_INTERVAL
  - WS_MAX_CONNECTIONS_PER_USER, WS_MAX_EVENTS_PER_SECOND, WS_BATCH_SIZE
  - LOG_LEVEL, LOG_FORMAT

# Usage Example

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}
	fmt.Println(cfg.Server.Port)
*/
package config
