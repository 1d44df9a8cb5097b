// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/insightstream/internal/api"
	"github.com/tomtom215/insightstream/internal/auth"
	"github.com/tomtom215/insightstream/internal/cache"
	"github.com/tomtom215/insightstream/internal/config"
	"github.com/tomtom215/insightstream/internal/delivery"
	"github.com/tomtom215/insightstream/internal/intelligence"
	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/processor"
	"github.com/tomtom215/insightstream/internal/queue"
	"github.com/tomtom215/insightstream/internal/scheduler"
	"github.com/tomtom215/insightstream/internal/supervisor"
	"github.com/tomtom215/insightstream/internal/supervisor/services"
	ws "github.com/tomtom215/insightstream/internal/websocket"
)

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("Insightstream exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logging.Init(loggingConfig(cfg))
	logging.Info().
		Str("version", api.Version).
		Str("environment", cfg.Server.Environment).
		Msg("Starting Insightstream")

	warnInsecureSettings(cfg)
	watchLogLevel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree, err := supervisor.NewSupervisorTree(logging.NewComponentSlogLogger(logging.ComponentTree), treeConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create supervisor tree: %w", err)
	}

	entities, pinger, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logging.Warn().Err(err).Msg("Entity store did not close cleanly")
		}
	}()

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return fmt.Errorf("failed to initialize JWT manager: %w", err)
	}

	// Realtime delivery
	hub := ws.NewHub(jwtManager, realtimeConfig(cfg))
	bridge := delivery.New(entities, hub, deliveryConfig(cfg))
	defer func() {
		if err := bridge.Close(); err != nil {
			logging.Warn().Err(err).Msg("Delivery bridge did not close cleanly")
		}
	}()

	// Processing
	contexts := cache.NewContextCache(entities, contextCacheConfig(cfg))
	generator := intelligence.NewGenerator(intelligence.NewRuleEngine(entities), breakerConfig(cfg))
	pool := processor.New(poolConfig(cfg), queue.New(), contexts, generator, entities, bridge)
	pool.WaitFor(bridge.Ready())
	sched := scheduler.New(entities, pool, schedulerConfig(cfg))

	tree.AddDataService(services.NewCacheJanitorService(contexts, cfg.Cache.CleanupInterval))

	// Workers stay idle until the bridge holds its subscription; see WaitFor.
	tree.AddMessagingService(bridge)
	tree.AddMessagingService(hub)
	tree.AddMessagingService(ws.NewBroadcaster(hub))
	tree.AddMessagingService(ws.NewReaper(hub))
	tree.AddMessagingService(ws.NewMonitor(hub))
	tree.AddMessagingService(pool)
	if cfg.Scheduler.Enabled {
		tree.AddMessagingService(services.NewSchedulerService(sched))
	} else {
		logging.Info().Msg("Scheduled analysis disabled (SCHEDULER_ENABLED=false)")
	}

	// HTTP
	handler := api.NewHandler(cfg, pool, hub, entities)
	handler.SetCallbackRegistry(bridge)
	if pinger != nil {
		handler.SetStorePinger(pinger)
	}
	router := api.NewRouter(handler, auth.NewMiddleware(jwtManager))

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.Timeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	for _, layer := range []supervisor.Layer{supervisor.LayerData, supervisor.LayerMessaging, supervisor.LayerAPI} {
		logging.Debug().Str("layer", string(layer)).Strs("services", tree.Services(layer)).Msg("Supervisor layer assembled")
	}

	logging.Info().
		Str("addr", server.Addr).
		Int("workers", cfg.Pipeline.Workers).
		Bool("redis", cfg.Redis.Enabled).
		Msg("Insightstream listening")

	errCh := tree.ServeBackground(ctx)
	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutting down supervisor tree")
		serveErr = <-errCh
	case serveErr = <-errCh:
		logging.Error().Err(serveErr).Msg("Supervisor tree stopped unexpectedly")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}

	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		return serveErr
	}
	logging.Info().Msg("Insightstream stopped")
	return nil
}

// warnInsecureSettings logs loud warnings for configurations that are only
// acceptable outside production.
func warnInsecureSettings(cfg *config.Config) {
	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
		logging.Warn().Msg("This should only be used for load tests!")
	}

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("============================================================")
		logging.Warn().Msg("  SECURITY WARNING: CORS is configured with wildcard origin (CORS_ORIGINS=*)")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  Any website can call the API and open websocket connections")
		logging.Warn().Msg("  on behalf of a user holding a token.")
		logging.Warn().Msg("  ")
		logging.Warn().Msg("  RECOMMENDED: Set specific origins in production:")
		logging.Warn().Msg("    CORS_ORIGINS=https://yourdomain.com,https://app.yourdomain.com")
		logging.Warn().Msg("============================================================")
	}
}

// watchLogLevel reapplies logging.level whenever the config file changes.
// Other settings need a restart.
func watchLogLevel() {
	path := config.ConfigFile()
	if path == "" {
		return
	}
	err := config.WatchConfigFile(path, func() {
		cfg, err := config.Load()
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring invalid config change")
			return
		}
		logging.SetLevelString(cfg.Logging.Level)
		logging.Info().Str("level", cfg.Logging.Level).Msg("Log level reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
	}
}
