// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package config

import (
	"strings"
	"testing"
	"time"
)

// validConfig returns defaults that pass validation.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = testSecret
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "HTTP_PORT"},
		{"no shutdown budget", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "SHUTDOWN_TIMEOUT"},
		{"empty admin role", func(c *Config) { c.Security.AdminRole = " " }, "ADMIN_ROLE"},
		{"wildcard cors in production", func(c *Config) { c.Server.Environment = "production" }, "CORS_ORIGINS"},
		{"explicit cors in production", func(c *Config) {
			c.Server.Environment = "production"
			c.Security.CORSOrigins = []string{"https://app.example.com"}
		}, ""},
		{"rate limit too low", func(c *Config) { c.Security.RateLimitReqs = 0 }, "RATE_LIMIT_REQUESTS"},
		{"rate limit disabled skips bounds", func(c *Config) {
			c.Security.RateLimitDisabled = true
			c.Security.RateLimitReqs = 0
		}, ""},
		{"rate window too long", func(c *Config) { c.Security.RateLimitWindow = 2 * time.Hour }, "RATE_LIMIT_WINDOW"},
		{"no workers", func(c *Config) { c.Pipeline.Workers = 0 }, "PIPELINE_WORKERS"},
		{"negative retries", func(c *Config) { c.Pipeline.MaxRetries = -1 }, "PIPELINE_MAX_RETRIES"},
		{"scheduler priority", func(c *Config) { c.Scheduler.Priority = 11 }, "SCHEDULER_PRIORITY"},
		{"disabled scheduler skips checks", func(c *Config) {
			c.Scheduler.Enabled = false
			c.Scheduler.Interval = 0
		}, ""},
		{"cache capacity", func(c *Config) { c.Cache.Capacity = 0 }, "CONTEXT_CACHE_CAPACITY"},
		{"redis without addr", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, "REDIS_ADDR"},
		{"redis db out of range", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.DB = 16
		}, "REDIS_DB"},
		{"retain above capacity", func(c *Config) { c.Realtime.HistoryRetain = 1001 }, "WS_HISTORY_RETAIN"},
		{"stale not above reap", func(c *Config) { c.Realtime.StaleAfter = 30 * time.Second }, "WS_STALE_AFTER"},
		{"no connections", func(c *Config) { c.Realtime.MaxConnectionsPerUser = 0 }, "WS_MAX_CONNECTIONS_PER_USER"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "LOG_FORMAT"},
		{"upper-case log level", func(c *Config) { c.Logging.Level = "WARN" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvironmentHelpers(t *testing.T) {
	tests := []struct {
		env         string
		production  bool
		development bool
	}{
		{"", false, true},
		{"dev", false, true},
		{"development", false, true},
		{"staging", false, false},
		{"prod", true, false},
		{"Production", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := &Config{Server: ServerConfig{Environment: tt.env}}
			if got := cfg.IsProduction(); got != tt.production {
				t.Errorf("IsProduction() = %v, want %v", got, tt.production)
			}
			if got := cfg.IsDevelopment(); got != tt.development {
				t.Errorf("IsDevelopment() = %v, want %v", got, tt.development)
			}
		})
	}
}

func TestShouldWarnAboutCORS(t *testing.T) {
	cfg := validConfig()
	if !cfg.ShouldWarnAboutCORS() {
		t.Error("ShouldWarnAboutCORS() = false for wildcard origin")
	}
	cfg.Security.CORSOrigins = []string{"https://app.example.com"}
	if cfg.ShouldWarnAboutCORS() {
		t.Error("ShouldWarnAboutCORS() = true for explicit origin")
	}
}
