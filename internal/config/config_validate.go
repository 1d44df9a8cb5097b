// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateSecurity,
		c.validatePipeline,
		c.validateScheduler,
		c.validateCache,
		c.validateRedis,
		c.validateRealtime,
		c.validateLogging,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

// minJWTSecretLength is the shortest accepted HMAC secret.
const minJWTSecretLength = 32

// validateSecurity validates token and request-limit settings.
func (c *Config) validateSecurity() error {
	if err := c.validateJWTSecret(); err != nil {
		return err
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive")
	}
	if strings.TrimSpace(c.Security.AdminRole) == "" {
		return fmt.Errorf("ADMIN_ROLE is required")
	}
	if err := c.validateCORS(); err != nil {
		return err
	}
	return c.validateRateLimits()
}

func (c *Config) validateJWTSecret() error {
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	return nil
}

// validateCORS rejects wildcard origins in production.
func (c *Config) validateCORS() error {
	if c.hasWildcardCORS() && c.IsProduction() {
		return fmt.Errorf("CORS_ORIGINS=* (wildcard) is not allowed in production. " +
			"Set specific origins: CORS_ORIGINS=https://app.example.com " +
			"or use ENVIRONMENT=development for testing purposes")
	}
	return nil
}

// hasWildcardCORS checks if CORS is configured with wildcard origins
func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS returns true if CORS configuration should be logged
// as a concern at startup.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.hasWildcardCORS()
}

// Rate limit constants
const (
	minRateLimitRequests = 1
	maxRateLimitRequests = 100000
	minRateLimitWindow   = time.Second
	maxRateLimitWindow   = time.Hour
)

// validateRateLimits validates rate limiting configuration bounds.
func (c *Config) validateRateLimits() error {
	if c.Security.RateLimitDisabled {
		return nil
	}
	if c.Security.RateLimitReqs < minRateLimitRequests || c.Security.RateLimitReqs > maxRateLimitRequests {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between %d and %d", minRateLimitRequests, maxRateLimitRequests)
	}
	if c.Security.RateLimitWindow < minRateLimitWindow || c.Security.RateLimitWindow > maxRateLimitWindow {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between %v and %v", minRateLimitWindow, maxRateLimitWindow)
	}
	if c.Security.WSHandshakeLimit < 1 {
		return fmt.Errorf("WS_HANDSHAKE_LIMIT must be at least 1")
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if c.Pipeline.Workers < 1 || c.Pipeline.Workers > 256 {
		return fmt.Errorf("PIPELINE_WORKERS must be between 1 and 256")
	}
	if c.Pipeline.MaxRetries < 0 {
		return fmt.Errorf("PIPELINE_MAX_RETRIES must not be negative")
	}
	if c.Pipeline.HandlerTimeout <= 0 {
		return fmt.Errorf("PIPELINE_HANDLER_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateScheduler() error {
	if !c.Scheduler.Enabled {
		return nil
	}
	if c.Scheduler.Interval < time.Second {
		return fmt.Errorf("SCHEDULER_INTERVAL must be at least 1s")
	}
	if c.Scheduler.Priority < 1 || c.Scheduler.Priority > 10 {
		return fmt.Errorf("SCHEDULER_PRIORITY must be between 1 and 10")
	}
	if c.Scheduler.EnqueueRate <= 0 || c.Scheduler.EnqueueBurst < 1 {
		return fmt.Errorf("SCHEDULER_ENQUEUE_RATE and SCHEDULER_ENQUEUE_BURST must be positive")
	}
	return nil
}

func (c *Config) validateCache() error {
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("CONTEXT_CACHE_CAPACITY must be at least 1")
	}
	if c.Cache.StaleAfter <= 0 || c.Cache.TTL <= 0 {
		return fmt.Errorf("CONTEXT_CACHE_STALE_AFTER and CONTEXT_CACHE_TTL must be positive")
	}
	return nil
}

// validateRedis validates the entity store (only if enabled)
func (c *Config) validateRedis() error {
	if !c.Redis.Enabled {
		return nil
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED=true")
	}
	if c.Redis.DB < 0 || c.Redis.DB > 15 {
		return fmt.Errorf("REDIS_DB must be between 0 and 15")
	}
	return nil
}

func (c *Config) validateRealtime() error {
	r := c.Realtime
	if r.MaxConnectionsPerUser < 1 {
		return fmt.Errorf("WS_MAX_CONNECTIONS_PER_USER must be at least 1")
	}
	if r.MaxEventsPerSecond < 1 {
		return fmt.Errorf("WS_MAX_EVENTS_PER_SECOND must be at least 1")
	}
	if r.BatchSize < 1 {
		return fmt.Errorf("WS_BATCH_SIZE must be at least 1")
	}
	if r.HistoryRetain < 1 || r.HistoryRetain > r.HistoryCapacity {
		return fmt.Errorf("WS_HISTORY_RETAIN must be between 1 and WS_HISTORY_CAPACITY (%d)", r.HistoryCapacity)
	}
	if r.HistoryChunkSize < 1 {
		return fmt.Errorf("WS_HISTORY_CHUNK_SIZE must be at least 1")
	}
	if r.StaleAfter <= r.ReapInterval {
		return fmt.Errorf("WS_STALE_AFTER (%v) must exceed WS_REAP_INTERVAL (%v)", r.StaleAfter, r.ReapInterval)
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func (c *Config) validateLogging() error {
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be json or console")
	}
	return nil
}

// IsProduction returns true if the application is running in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "production" || env == "prod"
}

// IsDevelopment returns true if the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Server.Environment)
	return env == "" || env == "development" || env == "dev"
}
