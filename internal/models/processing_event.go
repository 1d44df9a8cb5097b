// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package models

import (
	"time"
)

// EventType identifies the kind of domain event entering the processing pipeline.
// It drives handler dispatch in the worker pool.
type EventType string

const (
	EventTypeNewEmail          EventType = "new_email"
	EventTypeNewCalendarEvent  EventType = "new_calendar_event"
	EventTypeEntityUpdate      EventType = "entity_update"
	EventTypeUserAction        EventType = "user_action"
	EventTypeScheduledAnalysis EventType = "scheduled_analysis"
)

// Valid reports whether t is one of the known processing event types.
func (t EventType) Valid() bool {
	switch t {
	case EventTypeNewEmail, EventTypeNewCalendarEvent, EventTypeEntityUpdate,
		EventTypeUserAction, EventTypeScheduledAnalysis:
		return true
	}
	return false
}

// Priority bounds and well-known priorities. Lower values are more urgent.
const (
	PriorityHighest = 1
	PriorityLowest  = 10

	// PriorityDefault is used by the producer API when the caller passes 0.
	PriorityDefault = 5

	// PriorityScheduled keeps periodic analysis behind interactive traffic (<= 5).
	PriorityScheduled = 7

	// PriorityProactive is used for follow-up analysis after a burst of new entities.
	PriorityProactive = 5
)

// User action subtypes carried in ProcessingEvent.Payload["action_type"].
const (
	ActionInsightFeedback      = "insight_feedback"
	ActionTaskCompletion       = "task_completion"
	ActionManualEntityCreation = "manual_entity_creation"
)

// ProcessingEvent is a unit of work on the priority queue.
// It is treated as immutable once enqueued and is never persisted.
type ProcessingEvent struct {
	EventType     EventType              `json:"event_type" validate:"required,event_type"`
	UserID        string                 `json:"user_id" validate:"required,max=256"`
	Payload       map[string]interface{} `json:"payload"`
	EnqueuedAt    time.Time              `json:"enqueued_at"`
	Priority      int                    `json:"priority" validate:"min=1,max=10"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	RetryCount    int                    `json:"retry_count,omitempty" validate:"min=0"`
}

// PayloadString returns a string payload field, or "" when absent or not a string.
func (e *ProcessingEvent) PayloadString(key string) string {
	if e.Payload == nil {
		return ""
	}
	if s, ok := e.Payload[key].(string); ok {
		return s
	}
	return ""
}

// WithRetry returns a copy of the event with the retry counter incremented.
// The original event is left untouched.
func (e *ProcessingEvent) WithRetry() *ProcessingEvent {
	clone := *e
	clone.RetryCount++
	return &clone
}
