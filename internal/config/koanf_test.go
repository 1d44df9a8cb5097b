// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/knadh/koanf/v2"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// setupTestEnv clears the environment, applies envVars and restores a clean
// environment when the test ends.
func setupTestEnv(t *testing.T, envVars map[string]string) {
	t.Helper()
	os.Clearenv()
	for k, v := range envVars {
		if err := os.Setenv(k, v); err != nil {
			t.Fatalf("failed to set env var %s: %v", k, err)
		}
	}
	t.Cleanup(os.Clearenv)
}

func TestLoadWithKoanfDefaults(t *testing.T) {
	setupTestEnv(t, map[string]string{"JWT_SECRET": testSecret})

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Realtime.MaxConnectionsPerUser != 5 {
		t.Errorf("Realtime.MaxConnectionsPerUser = %d, want 5", cfg.Realtime.MaxConnectionsPerUser)
	}
	if cfg.Realtime.MaxEventsPerSecond != 50 {
		t.Errorf("Realtime.MaxEventsPerSecond = %d, want 50", cfg.Realtime.MaxEventsPerSecond)
	}
	if cfg.Realtime.HistoryCapacity != 1000 || cfg.Realtime.HistoryRetain != 800 {
		t.Errorf("history = %d/%d, want 1000/800", cfg.Realtime.HistoryCapacity, cfg.Realtime.HistoryRetain)
	}
	if cfg.Realtime.StaleAfter != 60*time.Second {
		t.Errorf("Realtime.StaleAfter = %v, want 60s", cfg.Realtime.StaleAfter)
	}
	if cfg.Scheduler.Interval != 15*time.Minute {
		t.Errorf("Scheduler.Interval = %v, want 15m", cfg.Scheduler.Interval)
	}
	if cfg.Redis.Enabled {
		t.Error("Redis.Enabled = true, want false by default")
	}
	if len(cfg.Security.CORSOrigins) != 1 || cfg.Security.CORSOrigins[0] != "*" {
		t.Errorf("Security.CORSOrigins = %v, want [*]", cfg.Security.CORSOrigins)
	}
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	setupTestEnv(t, map[string]string{
		"JWT_SECRET":                             testSecret,
		"HTTP_PORT":                              "9000",
		"LOG_LEVEL":                              "debug",
		"WS_BATCH_SIZE":                          "20",
		"WS_HISTORY_CHUNK_DELAY":                 "250ms",
		"CORS_ORIGINS":                           "https://a.example.com, https://b.example.com",
		"REDIS_ENABLED":                          "true",
		"REDIS_ADDR":                             "redis:6379",
		"SCHEDULER_INTERVAL":                     "5m",
		"INTELLIGENCE_BREAKER_FAILURE_THRESHOLD": "7",
		"UNRELATED_VARIABLE":                     "ignored",
	})

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Realtime.BatchSize != 20 {
		t.Errorf("Realtime.BatchSize = %d, want 20", cfg.Realtime.BatchSize)
	}
	if cfg.Realtime.HistoryChunkDelay != 250*time.Millisecond {
		t.Errorf("Realtime.HistoryChunkDelay = %v, want 250ms", cfg.Realtime.HistoryChunkDelay)
	}
	if len(cfg.Security.CORSOrigins) != 2 || cfg.Security.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("Security.CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Addr != "redis:6379" {
		t.Errorf("Redis = %+v", cfg.Redis)
	}
	if cfg.Scheduler.Interval != 5*time.Minute {
		t.Errorf("Scheduler.Interval = %v, want 5m", cfg.Scheduler.Interval)
	}
	if cfg.Intelligence.BreakerFailureThreshold != 7 {
		t.Errorf("Intelligence.BreakerFailureThreshold = %d, want 7", cfg.Intelligence.BreakerFailureThreshold)
	}

	// Unset values keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0 (default)", cfg.Server.Host)
	}
}

func TestLoadWithKoanfConfigFile(t *testing.T) {
	configContent := `
server:
  port: 7000
  environment: staging
realtime:
  batch_size: 25
  max_connections_per_user: 3
security:
  jwt_secret: ` + testSecret + `
  cors_origins:
    - https://app.example.com
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(configContent), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	setupTestEnv(t, map[string]string{
		ConfigPathEnvVar: path,
		"HTTP_PORT":      "9100",
	})

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	// Environment beats the file.
	if cfg.Server.Port != 9100 {
		t.Errorf("Server.Port = %d, want 9100 (env override)", cfg.Server.Port)
	}
	if cfg.Server.Environment != "staging" {
		t.Errorf("Server.Environment = %q, want staging", cfg.Server.Environment)
	}
	if cfg.Realtime.BatchSize != 25 {
		t.Errorf("Realtime.BatchSize = %d, want 25", cfg.Realtime.BatchSize)
	}
	if cfg.Realtime.MaxConnectionsPerUser != 3 {
		t.Errorf("Realtime.MaxConnectionsPerUser = %d, want 3", cfg.Realtime.MaxConnectionsPerUser)
	}
	if len(cfg.Security.CORSOrigins) != 1 || cfg.Security.CORSOrigins[0] != "https://app.example.com" {
		t.Errorf("Security.CORSOrigins = %v", cfg.Security.CORSOrigins)
	}
	// The file does not mention it, so the default stands.
	if cfg.Realtime.MaxEventsPerSecond != 50 {
		t.Errorf("Realtime.MaxEventsPerSecond = %d, want 50", cfg.Realtime.MaxEventsPerSecond)
	}
}

func TestLoadWithKoanfValidationFailure(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"missing secret", map[string]string{}, "JWT_SECRET is required"},
		{"short secret", map[string]string{"JWT_SECRET": "short"}, "at least 32 characters"},
		{"bad port", map[string]string{"JWT_SECRET": testSecret, "HTTP_PORT": "70000"}, "HTTP_PORT"},
		{"bad log level", map[string]string{"JWT_SECRET": testSecret, "LOG_LEVEL": "loud"}, "LOG_LEVEL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTestEnv(t, tt.env)
			_, err := LoadWithKoanf()
			if err == nil {
				t.Fatalf("LoadWithKoanf() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"JWT_SECRET", "security.jwt_secret"},
		{"DISABLE_RATE_LIMIT", "security.rate_limit_disabled"},
		{"PIPELINE_WORKERS", "pipeline.workers"},
		{"CONTEXT_CACHE_TTL", "cache.ttl"},
		{"REDIS_DB", "redis.db"},
		{"WS_MAX_EVENTS_PER_SECOND", "realtime.max_events_per_second"},
		{"ws_batch_size", "realtime.batch_size"},
		{"LOG_FORMAT", "logging.format"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := envTransformFunc(tt.key); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestProcessSliceFields(t *testing.T) {
	k := koanf.New(".")
	if err := k.Set("security.cors_origins", " https://a.example.com ,,https://b.example.com"); err != nil {
		t.Fatal(err)
	}

	if err := processSliceFields(k); err != nil {
		t.Fatalf("processSliceFields() error = %v", err)
	}

	got := k.Strings("security.cors_origins")
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(got) != len(want) {
		t.Fatalf("cors_origins = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cors_origins[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFindConfigFile(t *testing.T) {
	setupTestEnv(t, map[string]string{ConfigPathEnvVar: "/nonexistent/config.yaml"})

	original := DefaultConfigPaths
	DefaultConfigPaths = []string{filepath.Join(t.TempDir(), "missing.yaml")}
	defer func() { DefaultConfigPaths = original }()

	if got := findConfigFile(); got != "" {
		t.Errorf("findConfigFile() = %q, want empty", got)
	}
}

func TestConfigFile_FromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insightstream.yaml")
	if err := os.WriteFile(path, []byte("logging:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	setupTestEnv(t, map[string]string{ConfigPathEnvVar: path})

	if got := ConfigFile(); got != path {
		t.Errorf("ConfigFile() = %q, want %q", got, path)
	}
}
