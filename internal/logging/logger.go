// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

// Package logging owns the process-wide zerolog logger.
//
// Long-running pipeline components log through a component logger so their
// lines can be filtered without parsing messages:
//
//	log := logging.WithComponent(logging.ComponentPool)
//	log.Info().Int("workers", 3).Msg("Processing pool started")
//	// {"level":"info","component":"processing-pool","workers":3,...}
//
// Per-event code paths use Ctx so correlation_id and user_id follow an
// event from the HTTP producer through the worker to the delivery bridge:
//
//	logging.Ctx(ctx).Warn().Err(err).Msg("Event processing failed")
//
// Libraries that expect log/slog (suture, watermill) get an adapter from
// NewComponentSlogLogger.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Component names used in the "component" field.
const (
	ComponentPool      = "processing-pool"
	ComponentBridge    = "insight-bridge"
	ComponentHub       = "websocket-hub"
	ComponentScheduler = "analysis-scheduler"
	ComponentTree      = "supervisor"
)

// Config selects level, encoding and destination.
type Config struct {
	Level     string // trace, debug, info, warn, error, fatal, panic or disabled
	Format    string // json or console
	Caller    bool
	Timestamp bool
	Output    io.Writer // os.Stderr when nil
}

// DefaultConfig is JSON at info level with timestamps on stderr.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		Format:    "json",
		Timestamp: true,
		Output:    os.Stderr,
	}
}

var (
	mu  sync.RWMutex
	log zerolog.Logger
)

//nolint:gochecknoinits // components may log before main calls Init
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "time"
	zerolog.MessageFieldName = "message"
	log = build(DefaultConfig())
}

// Init replaces the global logger. Later calls reconfigure it, which is how
// tests silence output.
func Init(cfg Config) {
	l := build(cfg)
	mu.Lock()
	log = l
	mu.Unlock()
}

func build(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	ctx := zerolog.New(out).With()
	if cfg.Timestamp {
		ctx = ctx.Timestamp()
	}
	if cfg.Caller {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

// parseLevel accepts zerolog's level names in any case plus "warning".
// Anything unrecognised, including the empty string, means info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		return zerolog.WarnLevel
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

func current() *zerolog.Logger {
	mu.RLock()
	l := log
	mu.RUnlock()
	return &l
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger { return *current() }

// SetLogger installs l as the global logger.
//
//nolint:gocritic // zerolog.Logger is passed by value throughout zerolog
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	log = l
	mu.Unlock()
}

// With starts a child logger from the global one.
func With() zerolog.Context { return current().With() }

func Debug() *zerolog.Event { return current().Debug() }
func Info() *zerolog.Event  { return current().Info() }
func Warn() *zerolog.Event  { return current().Warn() }
func Error() *zerolog.Event { return current().Error() }

// Fatal logs and exits with status 1. Only main uses it.
func Fatal() *zerolog.Event { return current().Fatal() }

// SetLevelString changes the level at runtime, e.g. on config file reload.
func SetLevelString(level string) {
	zerolog.SetGlobalLevel(parseLevel(level))
}

// IsLevelEnabled reports whether events at level are written.
func IsLevelEnabled(level zerolog.Level) bool {
	return level >= zerolog.GlobalLevel()
}

// NewTestLogger writes timestamped JSON lines to w.
func NewTestLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}
