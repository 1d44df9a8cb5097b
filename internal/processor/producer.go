// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package processor

import (
	"context"
	"fmt"

	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/models"
	"github.com/tomtom215/insightstream/internal/validation"
)

// Enqueue validates and queues a processing event. A zero priority selects
// the default. The correlation ID is taken from ctx or generated.
func (p *Pool) Enqueue(ctx context.Context, eventType models.EventType, userID string, payload map[string]interface{}, priority int) error {
	if !p.running.Load() {
		return ErrStopped
	}
	if priority == 0 {
		priority = models.PriorityDefault
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}

	correlationID := logging.CorrelationIDFromContext(ctx)
	if correlationID == "" {
		correlationID = logging.GenerateCorrelationID()
	}

	event := &models.ProcessingEvent{
		EventType:     eventType,
		UserID:        userID,
		Payload:       payload,
		EnqueuedAt:    p.now().UTC(),
		Priority:      priority,
		CorrelationID: correlationID,
	}
	if err := validation.ValidateStruct(event); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	if err := p.queue.Push(event); err != nil {
		return fmt.Errorf("enqueue %s: %w", eventType, err)
	}

	logging.Ctx(ctx).Debug().
		Str("event_type", string(eventType)).
		Str("user_id", userID).
		Int("priority", priority).
		Str("correlation_id", correlationID).
		Msg("Event enqueued")
	return nil
}

// EnqueueNewEmail queues analysis of a newly received email.
func (p *Pool) EnqueueNewEmail(ctx context.Context, email map[string]interface{}, userID string, priority int) error {
	return p.Enqueue(ctx, models.EventTypeNewEmail, userID, email, priority)
}

// EnqueueNewCalendarEvent queues analysis of a new calendar event.
func (p *Pool) EnqueueNewCalendarEvent(ctx context.Context, event map[string]interface{}, userID string, priority int) error {
	return p.Enqueue(ctx, models.EventTypeNewCalendarEvent, userID, event, priority)
}

// EnqueueEntityUpdate queues analysis of a change to a stored entity.
func (p *Pool) EnqueueEntityUpdate(ctx context.Context, entityType, entityID string, changes map[string]interface{}, userID string, priority int) error {
	return p.Enqueue(ctx, models.EventTypeEntityUpdate, userID, map[string]interface{}{
		"entity_type": entityType,
		"entity_id":   entityID,
		"changes":     changes,
	}, priority)
}

// EnqueueUserAction queues a user action such as insight feedback.
func (p *Pool) EnqueueUserAction(ctx context.Context, actionType string, data map[string]interface{}, userID string, priority int) error {
	return p.Enqueue(ctx, models.EventTypeUserAction, userID, map[string]interface{}{
		"action_type": actionType,
		"action_data": data,
	}, priority)
}

// EnqueueProactiveAnalysis queues an on-demand proactive analysis for userID.
// Proactive runs are scheduled_analysis events and do not count as activity.
func (p *Pool) EnqueueProactiveAnalysis(ctx context.Context, userID string) error {
	return p.Enqueue(ctx, models.EventTypeScheduledAnalysis, userID,
		map[string]interface{}{"trigger_type": TriggerProactive}, models.PriorityProactive)
}
