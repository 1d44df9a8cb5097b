// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/insightstream/internal/auth"
	"github.com/tomtom215/insightstream/internal/config"
	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/models"
	"github.com/tomtom215/insightstream/internal/processor"
	ws "github.com/tomtom215/insightstream/internal/websocket"
)

// Version is reported by the health endpoint. Overridden at build time.
var Version = "dev"

// Pipeline is the producer side of the processing pool. *processor.Pool
// satisfies it.
type Pipeline interface {
	EnqueueNewEmail(ctx context.Context, email map[string]interface{}, userID string, priority int) error
	EnqueueNewCalendarEvent(ctx context.Context, event map[string]interface{}, userID string, priority int) error
	EnqueueEntityUpdate(ctx context.Context, entityType, entityID string, changes map[string]interface{}, userID string, priority int) error
	EnqueueUserAction(ctx context.Context, actionType string, data map[string]interface{}, userID string, priority int) error
	EnqueueProactiveAnalysis(ctx context.Context, userID string) error
	Running() bool
	Stats() processor.Stats
	QueueStatus() processor.QueueStatus
	ClearQueue() int
}

// InsightStore reads and updates a user's stored insights.
type InsightStore interface {
	ListInsights(ctx context.Context, userID string, limit int) ([]*models.Insight, error)
	UpdateInsightStatus(ctx context.Context, userID, insightID string, status models.InsightStatus) error
}

// Pinger checks connectivity to a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, websocket handshake
//   - handlers_helpers.go: response and request helpers
//   - handlers_health.go: health and status endpoints
//   - handlers_events.go: producer endpoints and queue management
//   - handlers_insights.go: insight listing and status updates
//   - handlers_realtime.go: realtime sessions and proactive triggers
type Handler struct {
	config    *config.Config
	pipeline  Pipeline
	hub       *ws.Hub
	insights  InsightStore
	store     Pinger
	callbacks CallbackRegistry
	sessions  sync.Map // user ID -> *realtimeSession
	origins   *ChiMiddleware
	startTime time.Time
}

// NewHandler creates a new API handler.
//
// Example:
//
//	handler := api.NewHandler(cfg, pool, hub, entityStore)
//	handler.SetCallbackRegistry(bridge)
//	router := api.NewRouter(handler, auth.NewMiddleware(jwtManager))
//	http.ListenAndServe(":8080", router.SetupChi())
func NewHandler(cfg *config.Config, pipeline Pipeline, hub *ws.Hub, insights InsightStore) *Handler {
	var sec *config.SecurityConfig
	if cfg != nil {
		sec = &cfg.Security
	}
	return &Handler{
		config:    cfg,
		pipeline:  pipeline,
		hub:       hub,
		insights:  insights,
		origins:   NewChiMiddleware(ChiMiddlewareConfigFromSecurity(sec)),
		startTime: time.Now(),
	}
}

// SetStorePinger enables the store connectivity check in health responses.
func (h *Handler) SetStorePinger(p Pinger) {
	h.store = p
}

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins against the
// CORS list. Non-browser clients omit Origin and authenticate by token.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if h.config == nil {
		return true
	}
	if h.origins.AllowsOrigin(origin) {
		return true
	}

	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// WebSocket upgrades the request and hands the connection to the hub. The
// token comes from the Authorization header or the token query parameter;
// authentication failures are reported with close code 4001 after the
// upgrade so browser clients can observe them.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, "WebSocket service unavailable", nil)
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	h.hub.ServeConn(conn, auth.ExtractToken(r))
}

// identity returns the caller's identity or writes 401.
func identity(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	id, ok := auth.IdentityFromContext(r.Context())
	if !ok || id.UserID == "" {
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "Authentication required", ErrNoIdentity)
		return models.Identity{}, false
	}
	return id, true
}
