// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package api

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tomtom215/insightstream/internal/auth"
	"github.com/tomtom215/insightstream/internal/delivery"
	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/metrics"
	"github.com/tomtom215/insightstream/internal/models"
)

// CallbackRegistry holds per-user insight callbacks. *delivery.Service
// satisfies it.
type CallbackRegistry interface {
	RegisterInsightCallback(userID string, cb delivery.InsightCallback)
	UnregisterInsightCallback(userID string)
	HasCallback(userID string) bool
	CallbackCount() int
}

// realtimeSession is one user's registration for delivery callbacks.
type realtimeSession struct {
	startedAt time.Time
	received  atomic.Int64
}

// RealtimeSessionResponse is the body of POST /api/v1/realtime/start and /stop.
type RealtimeSessionResponse struct {
	UserID           string     `json:"user_id"`
	Registered       bool       `json:"registered"`
	AlreadyActive    bool       `json:"already_active,omitempty"`
	PipelineRunning  bool       `json:"pipeline_running"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	InsightsReceived int64      `json:"insights_received"`
}

// CallbackStatus is the callback section of GET /api/v1/realtime/status.
type CallbackStatus struct {
	RegisteredCallbacks int   `json:"registered_callbacks"`
	UserRegistered      bool  `json:"user_registered"`
	InsightsReceived    int64 `json:"insights_received"`
}

// SetCallbackRegistry enables the realtime session endpoints.
func (h *Handler) SetCallbackRegistry(r CallbackRegistry) {
	h.callbacks = r
}

// StartRealtime registers a delivery callback for the caller. Starting an
// active session keeps its counters.
func (h *Handler) StartRealtime(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bindSession(w, r)
	if !ok {
		return
	}

	fresh := &realtimeSession{startedAt: time.Now().UTC()}
	v, loaded := h.sessions.LoadOrStore(id.UserID, fresh)
	session := v.(*realtimeSession)
	h.callbacks.RegisterInsightCallback(id.UserID, sessionCallback(id.UserID, session))

	logging.Ctx(r.Context()).Info().Bool("already_active", loaded).Msg("Realtime session started")
	respondSuccess(w, r, http.StatusOK, RealtimeSessionResponse{
		UserID:           id.UserID,
		Registered:       true,
		AlreadyActive:    loaded,
		PipelineRunning:  h.pipeline != nil && h.pipeline.Running(),
		StartedAt:        &session.startedAt,
		InsightsReceived: session.received.Load(),
	})
}

// StopRealtime removes the caller's delivery callback. Stopping without an
// active session succeeds.
func (h *Handler) StopRealtime(w http.ResponseWriter, r *http.Request) {
	id, ok := h.bindSession(w, r)
	if !ok {
		return
	}

	h.callbacks.UnregisterInsightCallback(id.UserID)
	resp := RealtimeSessionResponse{
		UserID:          id.UserID,
		PipelineRunning: h.pipeline != nil && h.pipeline.Running(),
	}
	if v, ok := h.sessions.LoadAndDelete(id.UserID); ok {
		session := v.(*realtimeSession)
		resp.StartedAt = &session.startedAt
		resp.InsightsReceived = session.received.Load()
	}

	logging.Ctx(r.Context()).Info().Int64("insights_received", resp.InsightsReceived).Msg("Realtime session stopped")
	respondSuccess(w, r, http.StatusOK, resp)
}

// TriggerProactive queues an immediate proactive analysis for the caller.
func (h *Handler) TriggerProactive(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if h.pipeline == nil {
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, "Processing pipeline unavailable", nil)
		return
	}
	err := h.pipeline.EnqueueProactiveAnalysis(r.Context(), id.UserID)
	h.respondEnqueued(w, r, models.EventTypeScheduledAnalysis, err)
}

// bindSession enforces POST and resolves the caller for session endpoints.
func (h *Handler) bindSession(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	if !requireMethod(w, r, http.MethodPost) {
		return models.Identity{}, false
	}
	id, ok := identity(w, r)
	if !ok {
		return models.Identity{}, false
	}
	if h.callbacks == nil {
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, "Insight delivery unavailable", nil)
		return models.Identity{}, false
	}
	return id, true
}

// callbackStatus reports registrations for the status endpoint, or nil when
// no registry is configured.
func (h *Handler) callbackStatus(r *http.Request) *CallbackStatus {
	if h.callbacks == nil {
		return nil
	}
	status := &CallbackStatus{RegisteredCallbacks: h.callbacks.CallbackCount()}
	if id, ok := auth.IdentityFromContext(r.Context()); ok {
		status.UserRegistered = h.callbacks.HasCallback(id.UserID)
		if v, ok := h.sessions.Load(id.UserID); ok {
			status.InsightsReceived = v.(*realtimeSession).received.Load()
		}
	}
	return status
}

func sessionCallback(userID string, session *realtimeSession) delivery.InsightCallback {
	return func(insight *models.Insight) {
		session.received.Add(1)
		metrics.InsightsDelivered.WithLabelValues("callback").Inc()
		logging.Debug().
			Str("user_id", userID).
			Str("insight_id", insight.ID).
			Msg("Insight delivered to realtime session")
	}
}
