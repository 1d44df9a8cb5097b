// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

/*
Package supervisor provides process supervision for Insightstream using suture v4.

Every long-running component runs as a suture.Service in a three-layer tree:

	RootSupervisor ("insightstream")
	├── DataSupervisor ("data-layer")
	│   └── CacheJanitorService
	├── MessagingSupervisor ("messaging-layer")
	│   ├── processor.Pool           (priority queue workers)
	│   ├── SchedulerService         (periodic analysis trigger)
	│   ├── delivery.Service         (insight pub/sub bridge)
	│   ├── websocket.Hub            (connection registry and routing)
	│   ├── websocket.Broadcaster    (batching)
	│   ├── websocket.Reaper         (stale connection eviction)
	│   └── websocket.Monitor        (health and throughput)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashed service is restarted with backoff inside its own layer; the
other layers keep running. Supervisor events are logged through
sutureslog, which writes to the zerolog-backed slog handler.

# Usage

	tree, err := supervisor.NewSupervisorTree(
	    logging.NewComponentSlogLogger(logging.ComponentTree), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMessagingService(hub)
	tree.AddAPIService(services.NewHTTPServerService(server, 15*time.Second))
	errCh := tree.ServeBackground(ctx)

See the services subpackage for the adapters.
*/
package supervisor
