// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/insightstream/internal/auth"
	"github.com/tomtom215/insightstream/internal/config"
	"github.com/tomtom215/insightstream/internal/middleware"
)

// Router wires handlers, authentication and Chi middleware into routes.
type Router struct {
	handler       *Handler
	middleware    *auth.Middleware
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router. CORS origins and rate limits come from the
// handler's security config.
func NewRouter(handler *Handler, mw *auth.Middleware) *Router {
	var sec *config.SecurityConfig
	if handler.config != nil {
		sec = &handler.config.Security
	}
	return &Router{
		handler:       handler,
		middleware:    mw,
		chiMiddleware: NewChiMiddleware(ChiMiddlewareConfigFromSecurity(sec)),
	}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied in order
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS())
	r.Use(middleware.PrometheusMetrics)
	r.Use(router.middleware.SecurityHeaders)

	// Websocket handshake. Authentication happens in the hub after the
	// upgrade so failures surface as close codes 4001/4002.
	r.With(router.chiMiddleware.RateLimitHandshake()).Get("/ws", router.handler.WebSocket)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
		r.Get("/", router.handler.Health)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.chiMiddleware.RateLimit())

		r.Route("/realtime", func(r chi.Router) {
			r.Get("/status", router.middleware.Authenticate(router.handler.RealtimeStatus))
			r.Post("/start", router.middleware.Authenticate(router.handler.StartRealtime))
			r.Post("/stop", router.middleware.Authenticate(router.handler.StopRealtime))
			r.Post("/proactive", router.middleware.Authenticate(router.handler.TriggerProactive))
		})

		r.Route("/events", func(r chi.Router) {
			r.Post("/email", router.middleware.Authenticate(router.handler.IngestEmail))
			r.Post("/calendar", router.middleware.Authenticate(router.handler.IngestCalendarEvent))
			r.Post("/entity", router.middleware.Authenticate(router.handler.IngestEntityUpdate))
			r.Post("/action", router.middleware.Authenticate(router.handler.IngestUserAction))
		})

		r.Get("/insights", router.middleware.Authenticate(router.handler.ListInsights))
		r.Patch("/insights/{id}", router.middleware.Authenticate(router.handler.UpdateInsightStatus))

		r.Delete("/queue", router.middleware.RequireAdmin(router.handler.ClearQueue))
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
