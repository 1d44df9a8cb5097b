// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package websocket

import (
	"github.com/tomtom215/insightstream/internal/models"
)

// Server to client frame types
const (
	MessageTypeConnectionEstablished = "connection_established"
	MessageTypeEvent                 = "event"
	MessageTypeEventBatch            = "event_batch"
	MessageTypeHistoryChunk          = "history_chunk"
	MessageTypeSubscriptionConfirmed = "subscription_confirmed"
	MessageTypePong                  = "pong"
)

// Client to server frame types
const (
	MessageTypeSubscribe   = "subscribe"
	MessageTypeUnsubscribe = "unsubscribe"
	MessageTypePing        = "ping"
	MessageTypeGetHistory  = "get_history"
)

// Application close codes sent when a handshake is refused.
const (
	CloseUnauthenticated   = 4001
	CloseConnectionLimit   = 4002
	closeReasonAuth        = "Authentication required"
	closeReasonLimit       = "Connection limit exceeded"
	closeReasonStale       = "Connection timed out"
	closeReasonSlowClient  = "Send buffer full"
	closeReasonUnavailable = "Server unavailable"
	closeReasonShutdown    = "Server shutting down"
)

// Limits applied to client frames. Oversized values are cut down rather than
// rejected so a subscribe or get_history frame always gets its reply.
const (
	maxFrameEventTypes  = 32
	defaultHistoryHours = 1.0
	maxHistoryHours     = 168.0
)

// ClientFrame is any frame received from a client. Fields not used by the
// frame type are ignored.
type ClientFrame struct {
	Type       string   `json:"type" validate:"required,oneof=subscribe unsubscribe ping get_history"`
	EventTypes []string `json:"event_types,omitempty"`
	Hours      *float64 `json:"hours,omitempty"`
}

// normalize truncates event_types to maxFrameEventTypes.
func (f *ClientFrame) normalize() {
	if len(f.EventTypes) > maxFrameEventTypes {
		f.EventTypes = f.EventTypes[:maxFrameEventTypes]
	}
}

// historyWindow is the requested replay window in hours, clamped to
// (0, maxHistoryHours]. A missing or non-positive value means one hour.
func (f *ClientFrame) historyWindow() float64 {
	if f.Hours == nil || !(*f.Hours > 0) {
		return defaultHistoryHours
	}
	return min(*f.Hours, maxHistoryHours)
}

// Capabilities advertises what the server supports in connection_established.
type Capabilities struct {
	EventTypes       []models.RealtimeEventType `json:"event_types"`
	MaxRate          int                        `json:"max_rate"`
	BatchSupport     bool                       `json:"batch_support"`
	FilteringSupport bool                       `json:"filtering_support"`
}

// ConnectionEstablishedFrame is the first frame on every accepted connection.
type ConnectionEstablishedFrame struct {
	Type         string         `json:"type"`
	ConnectionID string         `json:"connection_id"`
	Capabilities Capabilities   `json:"server_capabilities"`
	Health       HealthSnapshot `json:"server_health"`
}

// EventFrame carries a single event.
type EventFrame struct {
	Type  string                `json:"type"`
	Event *models.RealtimeEvent `json:"event"`
}

// EventBatchFrame carries two or more events from one broadcast batch.
type EventBatchFrame struct {
	Type   string                  `json:"type"`
	Events []*models.RealtimeEvent `json:"events"`
}

// ChunkInfo positions a history chunk within a replay.
type ChunkInfo struct {
	ChunkNumber int `json:"chunk_number"`
	TotalChunks int `json:"total_chunks"`
	TotalEvents int `json:"total_events"`
}

// HistoryChunkFrame is one page of a get_history replay.
type HistoryChunkFrame struct {
	Type      string                  `json:"type"`
	Events    []*models.RealtimeEvent `json:"events"`
	ChunkInfo ChunkInfo               `json:"chunk_info"`
}

// SubscriptionConfirmedFrame lists the connection's subscriptions after a subscribe.
type SubscriptionConfirmedFrame struct {
	Type          string                     `json:"type"`
	Subscriptions []models.RealtimeEventType `json:"subscriptions"`
}

// PongFrame answers an application-level ping.
type PongFrame struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}
