// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

/*
Package main is the entry point for the Insightstream server.

Insightstream turns domain events (new email, calendar changes, entity
updates, user actions and periodic analysis) into prioritized insights and
pushes them to each user's open websocket connections.

# Application Architecture

Every long-running component runs under a Suture v4 supervisor tree:

	RootSupervisor ("insightstream")
	├── DataSupervisor ("data-layer")
	│   └── Context cache janitor
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Delivery bridge (Watermill gochannel -> hub)
	│   ├── WebSocket hub (registration, batch fan-out)
	│   ├── Broadcaster (collects events into batches)
	│   ├── Reaper (stale connection sweep)
	│   ├── Health monitor (status and performance_metric events)
	│   ├── Processing pool (priority queue workers, gated on the bridge)
	│   └── Scheduler (periodic per-user analysis, optional)
	└── APISupervisor ("api-layer")
	    └── HTTP server (Chi router, /ws upgrade)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, YAML file and environment
 2. Logging: zerolog with JSON/console output
 3. Entity store: Redis when REDIS_ENABLED=true, in-memory otherwise
 4. Authentication: HS256 JWT manager shared by HTTP and websocket
 5. Realtime: hub and the insight delivery bridge
 6. Processing: context cache, rule engine behind a circuit breaker, pool
 7. Supervisor tree and HTTP server

# Configuration

Priority: Environment variables > Config file > Defaults

	HTTP_PORT=8080
	JWT_SECRET=<32+ chars>        # required
	CORS_ORIGINS=https://app.example.com
	REDIS_ENABLED=true
	REDIS_ADDR=localhost:6379
	PIPELINE_WORKERS=3
	WS_MAX_CONNECTIONS_PER_USER=5
	WS_MAX_EVENTS_PER_SECOND=50
	LOG_LEVEL=info                # reloaded when the config file changes
	LOG_FORMAT=json

See package config for the full list.

# Graceful Shutdown

SIGINT or SIGTERM cancels the root context. Suture stops each layer with
the configured shutdown timeout; the pool finishes in-flight events, the
hub closes every connection, and services that miss the deadline are
reported before exit.
*/
package main
