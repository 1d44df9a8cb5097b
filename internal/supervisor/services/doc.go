// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

/*
Package services provides suture.Service wrappers for components that do
not already expose Serve(ctx) error.

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts the ListenAndServe pattern to Serve

Analysis Scheduler (SchedulerService):
  - Wraps any Start/Stop component, in practice *scheduler.Scheduler
  - Start errors are returned so the supervisor restarts with backoff

Context Cache Janitor (CacheJanitorService):
  - Periodically drops idle per-user context entries

The worker pool, delivery bridge, websocket hub, broadcaster, reaper and
health monitor implement suture.Service themselves and are added to the
tree directly.
*/
package services
