// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

/*
Package api provides the HTTP surface of the pipeline on a Chi router.

Routes:

	GET    /ws                        websocket handshake (per-IP handshake limit)
	GET    /api/v1/health             pipeline, store and realtime health
	GET    /api/v1/health/live        liveness check
	GET    /api/v1/health/ready       readiness check (503 until the pool runs)
	GET    /api/v1/realtime/status    connection, processing, queue and callback stats
	POST   /api/v1/realtime/start     register the caller's insight callback
	POST   /api/v1/realtime/stop      unregister the caller's insight callback
	POST   /api/v1/realtime/proactive queue a proactive analysis for the caller
	POST   /api/v1/events/email       queue a new_email event
	POST   /api/v1/events/calendar    queue a new_calendar_event event
	POST   /api/v1/events/entity      queue an entity_update event
	POST   /api/v1/events/action      queue a user_action event
	GET    /api/v1/insights           the caller's recent insights
	PATCH  /api/v1/insights/{id}      update an insight's status
	DELETE /api/v1/queue              drop pending events (admin)
	GET    /metrics                   Prometheus exposition

Every route except /ws, health and /metrics requires a bearer token.
Producer endpoints always queue events for the authenticated user; the
body cannot name another user.

Responses use the models.APIResponse envelope:

	{"status": "success", "data": {...}, "metadata": {"timestamp": "..."}}

Middleware order: request ID, real IP, access log, panic recovery, CORS,
Prometheus, security headers. The same CORS origin list gates websocket
upgrades from browsers.
*/
package api
