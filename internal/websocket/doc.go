// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

/*
Package websocket delivers realtime events to authenticated clients.

Key Components:

  - Hub: owns the connection set, per-user connection counts and the replay
    history; routes broadcast batches to clients
  - Client: one connection with its subscriptions, rate limiter and
    read/write goroutines
  - Broadcaster: drains the broadcast queue into batches of up to 10
  - Reaper: evicts connections without a ping for 60 seconds
  - Monitor: admin-only system_health and performance_metric events

Architecture:

	delivery bridge ──Broadcast()──▶ queue (1000) ──▶ Broadcaster
	                                                     │ batch
	                                                     ▼
	             register/unregister/reap ──────────▶  Hub loop
	                                                     │ filter + rate limit
	                                      ┌──────────────┼──────────────┐
	                                   Client1        Client2        Client3

The clients map is only mutated by the hub goroutine. Everything else reads
a snapshot under the hub's read lock. Each client has a single writer
goroutine, so per-connection delivery order matches broadcast order.

Handshake:

The API layer upgrades the request and calls Hub.ServeConn with the token
from the "token" query parameter or an Authorization bearer header. A
missing or invalid token closes the socket with 4001; a user already
holding MaxConnectionsPerUser connections gets 4002. Accepted connections
first receive connection_established with the connection ID, server
capabilities and the latest health snapshot.

Client frames:

	{"type":"subscribe","event_types":["security_alert"]}   -> subscription_confirmed
	{"type":"unsubscribe","event_types":["security_alert"]}
	{"type":"ping"}                                         -> pong
	{"type":"get_history","hours":2}                        -> history_chunk x N

Routing:

An event reaches a connection when the subscription set is empty or
contains its type, the connection is admin or the event belongs to the
connection's user or to nobody, and the event is not admin-only unless the
connection is admin. History replay uses the same rule.

Rate Limiting:

Every frame except connection_established counts against a budget of
MaxEventsPerSecond per connection per second. Frames over budget are
dropped, not queued.
*/
package websocket
