// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

// Package metrics registers the Prometheus collectors for Insightstream.
//
// Collectors are package globals registered with promauto; components record
// through the Record* helpers so label sets stay consistent.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Processing pipeline

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_queue_depth",
			Help: "Current number of events waiting in the priority queue",
		},
	)

	EventsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_enqueued_total",
			Help: "Total number of processing events accepted by the queue",
		},
		[]string{"event_type"},
	)

	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_events_processed_total",
			Help: "Total number of processing events handled by workers",
		},
		[]string{"event_type", "status"}, // status: success, failed, retried
	)

	EventProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_event_processing_duration_seconds",
			Help:    "Time spent handling a single processing event",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"event_type"},
	)

	WorkersActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_workers_active",
			Help: "Number of worker goroutines currently running",
		},
	)

	ScheduledTriggers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_scheduled_triggers_total",
			Help: "Total number of scheduled analysis events enqueued",
		},
	)

	InsightsGenerated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipeline_insights_generated_total",
			Help: "Total number of insights produced by the intelligence collaborator",
		},
	)

	InsightsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_insights_delivered_total",
			Help: "Total number of insights handed to delivery",
		},
		[]string{"status"}, // status: delivered, persist_failed, publish_failed, callback
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// Context cache

	ContextCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "context_cache_hits_total",
			Help: "Total number of user context cache hits",
		},
	)

	ContextCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "context_cache_misses_total",
			Help: "Total number of user context loads from the entity store",
		},
		[]string{"reason"}, // reason: absent, stale
	)

	ContextCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "context_cache_entries",
			Help: "Current number of cached user contexts",
		},
	)

	// WebSocket delivery

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSConnectionsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_connections_rejected_total",
			Help: "Total number of rejected WebSocket handshakes",
		},
		[]string{"reason"}, // reason: unauthenticated, connection_limit
	)

	WSMessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages queued for clients",
		},
		[]string{"message_type"},
	)

	WSBytesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_bytes_sent_total",
			Help: "Total number of payload bytes queued for clients",
		},
	)

	WSMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_messages_received_total",
			Help: "Total number of client frames received",
		},
		[]string{"message_type"},
	)

	WSRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_rate_limited_total",
			Help: "Total number of messages dropped by the per-connection rate limiter",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"},
	)

	WSEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_evictions_total",
			Help: "Total number of connections removed by the server",
		},
		[]string{"reason"}, // reason: stale, slow_consumer
	)

	BroadcastDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_events_dropped_total",
			Help: "Total number of events dropped because the broadcast queue was full",
		},
	)

	BroadcastBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcast_batch_size",
			Help:    "Number of events per broadcast batch",
			Buckets: []float64{1, 2, 3, 5, 8, 10},
		},
	)

	HistorySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcast_history_size",
			Help: "Current number of events in the replay history",
		},
	)

	EventsPerSecond = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_events_per_second",
			Help: "Outbound event rate measured by the metrics updater",
		},
	)

	ConnectionQuality = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connection_quality",
			Help: "Connection quality (0=good, 1=fair, 2=poor)",
		},
	)

	// HTTP API

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)
)

// RecordEnqueue records an event accepted by the queue and the resulting depth.
func RecordEnqueue(eventType string, depth int) {
	EventsEnqueued.WithLabelValues(eventType).Inc()
	QueueDepth.Set(float64(depth))
}

// RecordEventProcessed records the outcome and duration of one handled event.
func RecordEventProcessed(eventType string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	EventsProcessed.WithLabelValues(eventType, status).Inc()
	EventProcessingDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// RecordEventRetried records an event that was re-enqueued after a failure.
func RecordEventRetried(eventType string) {
	EventsProcessed.WithLabelValues(eventType, "retried").Inc()
}

// RecordContextCacheHit records a context cache hit.
func RecordContextCacheHit() {
	ContextCacheHits.Inc()
}

// RecordContextCacheMiss records a context cache load; stale is true for refreshes.
func RecordContextCacheMiss(stale bool) {
	reason := "absent"
	if stale {
		reason = "stale"
	}
	ContextCacheMisses.WithLabelValues(reason).Inc()
}

// RecordWSMessage records one outbound message and its encoded size.
func RecordWSMessage(messageType string, bytes int) {
	WSMessagesSent.WithLabelValues(messageType).Inc()
	WSBytesSent.Add(float64(bytes))
}

// RecordWSError records a WebSocket error by type.
func RecordWSError(errorType string) {
	WSErrors.WithLabelValues(errorType).Inc()
}

// RecordBroadcastBatch records the size of a delivered batch.
func RecordBroadcastBatch(size int) {
	BroadcastBatchSize.Observe(float64(size))
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// QualityValue maps a connection quality label to its gauge value.
func QualityValue(quality string) float64 {
	switch quality {
	case "fair":
		return 1
	case "poor":
		return 2
	default:
		return 0
	}
}
