// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

/*
Package middleware provides HTTP middleware components for the application.

Key Components:

  - RequestID: X-Request-ID propagation into the response and log context
  - AccessLog: one zerolog line per request
  - PrometheusMetrics: request count, duration and in-flight gauge

All middleware takes and returns http.Handler so it plugs into chi's Use.
The response wrapper passes Hijack through, so the websocket endpoint can
sit behind the full stack.

Middleware Stack:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog)
	r.Use(middleware.PrometheusMetrics)

Metrics:

  - api_requests_total{method, endpoint, status_code}
  - api_request_duration_seconds{method, endpoint}
  - api_active_requests
*/
package middleware
