// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package models

import (
	"time"

	"github.com/google/uuid"
)

// RealtimeEventType identifies a delivery-side event pushed to connected clients.
// Clients subscribe by these values.
type RealtimeEventType string

const (
	RealtimeAgentStatusUpdate RealtimeEventType = "agent_status_update"
	RealtimeWorkflowStarted   RealtimeEventType = "workflow_started"
	RealtimeWorkflowProgress  RealtimeEventType = "workflow_progress"
	RealtimeWorkflowCompleted RealtimeEventType = "workflow_completed"
	RealtimeSecurityAlert     RealtimeEventType = "security_alert"
	RealtimePerformanceMetric RealtimeEventType = "performance_metric"
	RealtimeSystemHealth      RealtimeEventType = "system_health"
	RealtimeUserActivity      RealtimeEventType = "user_activity"
	RealtimeErrorOccurred     RealtimeEventType = "error_occurred"
	RealtimeInsightGenerated  RealtimeEventType = "insight_generated"
)

var realtimeEventTypes = []RealtimeEventType{
	RealtimeAgentStatusUpdate,
	RealtimeWorkflowStarted,
	RealtimeWorkflowProgress,
	RealtimeWorkflowCompleted,
	RealtimeSecurityAlert,
	RealtimePerformanceMetric,
	RealtimeSystemHealth,
	RealtimeUserActivity,
	RealtimeErrorOccurred,
	RealtimeInsightGenerated,
}

// RealtimeEventTypes returns every supported delivery event type in a stable order.
func RealtimeEventTypes() []RealtimeEventType {
	out := make([]RealtimeEventType, len(realtimeEventTypes))
	copy(out, realtimeEventTypes)
	return out
}

// ParseRealtimeEventType converts a wire string to a RealtimeEventType.
// The second return value is false for unknown strings.
func ParseRealtimeEventType(s string) (RealtimeEventType, bool) {
	for _, t := range realtimeEventTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Delivery priority bounds.
const (
	RealtimePriorityMin = 1
	RealtimePriorityMax = 5
)

// RealtimeEvent is a delivery-side event broadcast to connected clients and
// recorded in the replay history.
//
// An empty UserID means the event is not owned by any single user.
// AdminOnly events are never delivered to non-admin connections and are not
// part of the wire representation.
type RealtimeEvent struct {
	EventID   string                 `json:"event_id"`
	EventType RealtimeEventType      `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	UserID    string                 `json:"user_id,omitempty"`
	AgentType string                 `json:"agent_type,omitempty"`
	Priority  int                    `json:"priority"`
	AdminOnly bool                   `json:"-"`
}

// NewRealtimeEvent builds an event with a fresh UUID and the current UTC time.
// Priority is clamped to the valid delivery range.
func NewRealtimeEvent(eventType RealtimeEventType, data map[string]interface{}, userID string, priority int) *RealtimeEvent {
	if priority < RealtimePriorityMin {
		priority = RealtimePriorityMin
	}
	if priority > RealtimePriorityMax {
		priority = RealtimePriorityMax
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	return &RealtimeEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
		UserID:    userID,
		Priority:  priority,
	}
}

// NewAgentStatusEvent reports a status change of one of the analysis agents.
func NewAgentStatusEvent(agentType, status string, details map[string]interface{}, userID string) *RealtimeEvent {
	data := map[string]interface{}{
		"status":  status,
		"details": details,
	}
	ev := NewRealtimeEvent(RealtimeAgentStatusUpdate, data, userID, 2)
	ev.AgentType = agentType
	return ev
}

// NewWorkflowEvent reports workflow lifecycle progress.
// eventType should be one of the workflow_* types.
func NewWorkflowEvent(eventType RealtimeEventType, workflowID string, data map[string]interface{}, userID string) *RealtimeEvent {
	payload := map[string]interface{}{"workflow_id": workflowID}
	for k, v := range data {
		payload[k] = v
	}
	return NewRealtimeEvent(eventType, payload, userID, 3)
}

// Security alert severities.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// NewSecurityEvent builds a security alert. CRITICAL alerts carry priority 5,
// everything else 3.
func NewSecurityEvent(alertType, severity string, details map[string]interface{}, userID string) *RealtimeEvent {
	priority := 3
	if severity == SeverityCritical {
		priority = RealtimePriorityMax
	}
	data := map[string]interface{}{
		"alert_type": alertType,
		"severity":   severity,
		"details":    details,
	}
	return NewRealtimeEvent(RealtimeSecurityAlert, data, userID, priority)
}

// NewInsightEvent wraps a delivered insight for broadcast to its owner.
func NewInsightEvent(insight *Insight) *RealtimeEvent {
	priority := insight.Priority
	if priority > RealtimePriorityMax {
		priority = RealtimePriorityMax
	}
	return NewRealtimeEvent(RealtimeInsightGenerated, map[string]interface{}{
		"insight": insight,
	}, insight.UserID, priority)
}
