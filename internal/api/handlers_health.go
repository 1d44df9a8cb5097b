// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/insightstream/internal/processor"
	ws "github.com/tomtom215/insightstream/internal/websocket"
)

// storePingTimeout bounds the store check in health responses.
const storePingTimeout = 2 * time.Second

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status          string                 `json:"status"`
	Version         string                 `json:"version"`
	PipelineRunning bool                   `json:"pipeline_running"`
	StoreConnected  bool                   `json:"store_connected"`
	Queue           *processor.QueueStatus `json:"queue,omitempty"`
	Realtime        *ws.HealthSnapshot     `json:"realtime,omitempty"`
	Uptime          float64                `json:"uptime_seconds"`
}

// RealtimeStatusResponse is the body of GET /api/v1/realtime/status.
type RealtimeStatusResponse struct {
	Server     *ws.ServerStats        `json:"server,omitempty"`
	Processing *processor.Stats       `json:"processing,omitempty"`
	Queue      *processor.QueueStatus `json:"queue,omitempty"`
	Callbacks  *CallbackStatus        `json:"callbacks,omitempty"`
}

// storeConnected pings the store. No configured pinger counts as connected.
func (h *Handler) storeConnected(ctx context.Context) bool {
	if h.store == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(ctx, storePingTimeout)
	defer cancel()
	return h.store.Ping(ctx) == nil
}

// Health reports pipeline, store and realtime health. It always returns
// 200; Status is "healthy" or "degraded".
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	health := HealthStatus{
		Status:         "healthy",
		Version:        Version,
		StoreConnected: h.storeConnected(r.Context()),
		Uptime:         time.Since(h.startTime).Seconds(),
	}
	if h.pipeline != nil {
		q := h.pipeline.QueueStatus()
		health.Queue = &q
		health.PipelineRunning = q.IsRunning
	}
	if h.hub != nil {
		snap := h.hub.HealthSnapshot()
		health.Realtime = &snap
		if snap.Status == ws.HealthStatusDegraded || snap.Status == ws.HealthStatusStopped {
			health.Status = "degraded"
		}
	}
	if !health.PipelineRunning || !health.StoreConnected {
		health.Status = "degraded"
	}

	respondSuccess(w, r, http.StatusOK, health)
}

// HealthLive handles liveness check requests. It returns 200 whenever the
// process can serve HTTP.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	respondSuccess(w, r, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness check requests. It returns 503 until the
// worker pool accepts events and the store answers.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	pipelineRunning := h.pipeline != nil && h.pipeline.Running()
	storeConnected := h.storeConnected(r.Context())
	ready := pipelineRunning && storeConnected

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	respondSuccess(w, r, statusCode, map[string]interface{}{
		"pipeline_running": pipelineRunning,
		"store_connected":  storeConnected,
		"ready_to_serve":   ready,
		"uptime":           time.Since(h.startTime).Seconds(),
	})
}

// RealtimeStatus returns connection, processing, queue and callback statistics.
func (h *Handler) RealtimeStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	var status RealtimeStatusResponse
	if h.hub != nil {
		s := h.hub.Stats()
		status.Server = &s
	}
	if h.pipeline != nil {
		p := h.pipeline.Stats()
		q := h.pipeline.QueueStatus()
		status.Processing = &p
		status.Queue = &q
	}
	status.Callbacks = h.callbackStatus(r)

	respondSuccess(w, r, http.StatusOK, status)
}
