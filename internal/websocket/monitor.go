// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package websocket

import (
	"context"
	"runtime"
	"time"

	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/metrics"
	"github.com/tomtom215/insightstream/internal/models"
)

// Health statuses
const (
	HealthStatusStarting = "starting"
	HealthStatusRunning  = "running"
	HealthStatusDegraded = "degraded"
	HealthStatusStopped  = "stopped"
)

// Connection quality labels
const (
	QualityGood = "good"
	QualityFair = "fair"
	QualityPoor = "poor"
)

// HealthSnapshot is the latest health computed by the monitor.
type HealthSnapshot struct {
	Status            string    `json:"status"`
	UptimeSeconds     float64   `json:"uptime"`
	ActiveConnections int       `json:"active_connections"`
	EventsPerSecond   float64   `json:"events_per_second"`
	ConnectionQuality string    `json:"connection_quality"`
	RecentErrors      int64     `json:"recent_errors"`
	HeapAllocBytes    uint64    `json:"heap_alloc_bytes"`
	Goroutines        int       `json:"goroutines"`
	CheckedAt         time.Time `json:"checked_at"`
}

func (s HealthSnapshot) toMap() map[string]interface{} {
	return map[string]interface{}{
		"status":             s.Status,
		"uptime":             s.UptimeSeconds,
		"active_connections": s.ActiveConnections,
		"events_per_second":  s.EventsPerSecond,
		"connection_quality": s.ConnectionQuality,
		"recent_errors":      s.RecentErrors,
		"heap_alloc_bytes":   s.HeapAllocBytes,
		"goroutines":         s.Goroutines,
		"checked_at":         s.CheckedAt,
	}
}

// ClassifyQuality maps the rolling error count to a quality label:
// good below 5, fair up to 10, poor above.
func ClassifyQuality(errors int64) string {
	switch {
	case errors > 10:
		return QualityPoor
	case errors >= 5:
		return QualityFair
	default:
		return QualityGood
	}
}

// HealthSnapshot returns the last computed health.
func (h *Hub) HealthSnapshot() HealthSnapshot {
	h.healthMu.RLock()
	defer h.healthMu.RUnlock()
	return h.health
}

func (h *Hub) setHealth(s HealthSnapshot) {
	h.healthMu.Lock()
	h.health = s
	h.healthMu.Unlock()
}

func (h *Hub) setStatus(status string) {
	h.healthMu.Lock()
	h.health.Status = status
	h.healthMu.Unlock()
}

// PerformanceSnapshot is the payload of a performance_metric event.
type PerformanceSnapshot struct {
	ActiveConnections int     `json:"active_connections"`
	TotalConnections  int64   `json:"total_connections"`
	EventsSent        int64   `json:"events_sent"`
	EventsPerSecond   float64 `json:"events_per_second"`
	BytesSent         int64   `json:"bytes_sent"`
	BytesPerSecond    float64 `json:"data_throughput"`
	ConnectionErrors  int64   `json:"connection_errors"`
}

func (p PerformanceSnapshot) toMap() map[string]interface{} {
	return map[string]interface{}{
		"active_connections": p.ActiveConnections,
		"total_connections":  p.TotalConnections,
		"events_sent":        p.EventsSent,
		"events_per_second":  p.EventsPerSecond,
		"bytes_sent":         p.BytesSent,
		"data_throughput":    p.BytesPerSecond,
		"connection_errors":  p.ConnectionErrors,
	}
}

// Monitor computes health every HealthInterval and throughput every
// MetricsInterval and pushes both through the normal broadcast path as
// admin-only events. Its methods are driven from the Serve goroutine.
type Monitor struct {
	hub             *Hub
	healthInterval  time.Duration
	metricsInterval time.Duration

	lastSent  int64
	lastBytes int64
	lastAt    time.Time
	eps       float64
}

// NewMonitor creates a monitor using the hub's intervals.
func NewMonitor(hub *Hub) *Monitor {
	return &Monitor{
		hub:             hub,
		healthInterval:  hub.cfg.HealthInterval,
		metricsInterval: hub.cfg.MetricsInterval,
		lastAt:          hub.now(),
	}
}

// Serve implements suture.Service.
func (m *Monitor) Serve(ctx context.Context) error {
	healthTicker := time.NewTicker(m.healthInterval)
	defer healthTicker.Stop()
	metricsTicker := time.NewTicker(m.metricsInterval)
	defer metricsTicker.Stop()

	m.safely("health", func() { m.CheckHealth() })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-metricsTicker.C:
			m.safely("metrics", func() { m.UpdateMetrics() })
		case <-healthTicker.C:
			m.safely("health", func() { m.CheckHealth() })
		}
	}
}

func (m *Monitor) String() string {
	return "websocket-monitor"
}

// safely runs one iteration; a panic marks the hub degraded instead of
// killing the loop.
func (m *Monitor) safely(task string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			m.hub.setStatus(HealthStatusDegraded)
			logging.Error().Interface("panic", r).Str("task", task).Msg("monitor iteration panicked")
		}
	}()
	fn()
}

// CheckHealth recomputes health, stores it on the hub and broadcasts a
// system_health event visible to admins only.
func (m *Monitor) CheckHealth() HealthSnapshot {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	now := m.hub.now()
	errs := m.hub.errors.Count()
	snap := HealthSnapshot{
		Status:            HealthStatusRunning,
		UptimeSeconds:     now.Sub(m.hub.startedAt).Seconds(),
		ActiveConnections: m.hub.GetClientCount(),
		EventsPerSecond:   m.eps,
		ConnectionQuality: ClassifyQuality(errs),
		RecentErrors:      errs,
		HeapAllocBytes:    mem.HeapAlloc,
		Goroutines:        runtime.NumGoroutine(),
		CheckedAt:         now.UTC(),
	}
	m.hub.setHealth(snap)
	metrics.ConnectionQuality.Set(metrics.QualityValue(snap.ConnectionQuality))

	ev := models.NewRealtimeEvent(models.RealtimeSystemHealth, snap.toMap(), "", models.RealtimePriorityMin)
	ev.AdminOnly = true
	m.hub.Broadcast(ev)

	if snap.ConnectionQuality != QualityGood {
		logging.Warn().
			Str("connection_quality", snap.ConnectionQuality).
			Int64("recent_errors", errs).
			Msg("websocket connection quality degraded")
	}
	return snap
}

// UpdateMetrics derives rates from the counter deltas since the previous
// call, sets the gauges and, when an admin is connected, broadcasts a
// performance_metric event.
func (m *Monitor) UpdateMetrics() PerformanceSnapshot {
	now := m.hub.now()
	sent := m.hub.eventsSent.Load()
	bytes := m.hub.bytesSent.Load()

	elapsed := now.Sub(m.lastAt).Seconds()
	var bps float64
	if elapsed > 0 {
		m.eps = float64(sent-m.lastSent) / elapsed
		bps = float64(bytes-m.lastBytes) / elapsed
	}
	m.lastSent, m.lastBytes, m.lastAt = sent, bytes, now

	snap := PerformanceSnapshot{
		ActiveConnections: m.hub.GetClientCount(),
		TotalConnections:  m.hub.totalConnections.Load(),
		EventsSent:        sent,
		EventsPerSecond:   m.eps,
		BytesSent:         bytes,
		BytesPerSecond:    bps,
		ConnectionErrors:  m.hub.errors.Count(),
	}
	metrics.EventsPerSecond.Set(m.eps)

	if m.hub.AdminCount() > 0 {
		ev := models.NewRealtimeEvent(models.RealtimePerformanceMetric, snap.toMap(), "", models.RealtimePriorityMin)
		ev.AdminOnly = true
		m.hub.Broadcast(ev)
	}
	return snap
}
