// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/models"
	"github.com/tomtom215/insightstream/internal/processor"
	"github.com/tomtom215/insightstream/internal/queue"
	"github.com/tomtom215/insightstream/internal/validation"
)

// EmailEventRequest is the body of POST /api/v1/events/email.
type EmailEventRequest struct {
	Email    map[string]interface{} `json:"email" validate:"required"`
	Priority int                    `json:"priority" validate:"min=0,max=10"`
}

// CalendarEventRequest is the body of POST /api/v1/events/calendar.
type CalendarEventRequest struct {
	Event    map[string]interface{} `json:"event" validate:"required"`
	Priority int                    `json:"priority" validate:"min=0,max=10"`
}

// EntityUpdateRequest is the body of POST /api/v1/events/entity.
type EntityUpdateRequest struct {
	EntityType string                 `json:"entity_type" validate:"required,max=64"`
	EntityID   string                 `json:"entity_id" validate:"required,max=256"`
	Changes    map[string]interface{} `json:"changes"`
	Priority   int                    `json:"priority" validate:"min=0,max=10"`
}

// UserActionRequest is the body of POST /api/v1/events/action.
type UserActionRequest struct {
	ActionType string                 `json:"action_type" validate:"required,oneof=insight_feedback task_completion manual_entity_creation"`
	Data       map[string]interface{} `json:"data"`
	Priority   int                    `json:"priority" validate:"min=0,max=10"`
}

// EnqueueResponse acknowledges an accepted event.
type EnqueueResponse struct {
	Queued        bool             `json:"queued"`
	EventType     models.EventType `json:"event_type"`
	CorrelationID string           `json:"correlation_id,omitempty"`
}

// IngestEmail queues analysis of a new email for the caller.
func (h *Handler) IngestEmail(w http.ResponseWriter, r *http.Request) {
	var req EmailEventRequest
	id, ok := h.bindEvent(w, r, &req)
	if !ok {
		return
	}
	err := h.pipeline.EnqueueNewEmail(r.Context(), req.Email, id.UserID, req.Priority)
	h.respondEnqueued(w, r, models.EventTypeNewEmail, err)
}

// IngestCalendarEvent queues analysis of a new calendar event for the caller.
func (h *Handler) IngestCalendarEvent(w http.ResponseWriter, r *http.Request) {
	var req CalendarEventRequest
	id, ok := h.bindEvent(w, r, &req)
	if !ok {
		return
	}
	err := h.pipeline.EnqueueNewCalendarEvent(r.Context(), req.Event, id.UserID, req.Priority)
	h.respondEnqueued(w, r, models.EventTypeNewCalendarEvent, err)
}

// IngestEntityUpdate queues analysis of a changed entity.
func (h *Handler) IngestEntityUpdate(w http.ResponseWriter, r *http.Request) {
	var req EntityUpdateRequest
	id, ok := h.bindEvent(w, r, &req)
	if !ok {
		return
	}
	err := h.pipeline.EnqueueEntityUpdate(r.Context(), req.EntityType, req.EntityID, req.Changes, id.UserID, req.Priority)
	h.respondEnqueued(w, r, models.EventTypeEntityUpdate, err)
}

// IngestUserAction queues a user action such as task completion.
func (h *Handler) IngestUserAction(w http.ResponseWriter, r *http.Request) {
	var req UserActionRequest
	id, ok := h.bindEvent(w, r, &req)
	if !ok {
		return
	}
	err := h.pipeline.EnqueueUserAction(r.Context(), req.ActionType, req.Data, id.UserID, req.Priority)
	h.respondEnqueued(w, r, models.EventTypeUserAction, err)
}

// ClearQueue drops every pending event. Admin only.
func (h *Handler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}
	if h.pipeline == nil {
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, "Processing pipeline unavailable", nil)
		return
	}

	cleared := h.pipeline.ClearQueue()
	logging.Ctx(r.Context()).Warn().Int("cleared", cleared).Msg("Processing queue cleared via API")
	respondSuccess(w, r, http.StatusOK, map[string]int{"cleared": cleared})
}

// bindEvent enforces POST, resolves the caller and decodes and validates
// the body into req.
func (h *Handler) bindEvent(w http.ResponseWriter, r *http.Request, req interface{}) (models.Identity, bool) {
	if !requireMethod(w, r, http.MethodPost) {
		return models.Identity{}, false
	}
	id, ok := identity(w, r)
	if !ok {
		return models.Identity{}, false
	}
	if h.pipeline == nil {
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, "Processing pipeline unavailable", nil)
		return models.Identity{}, false
	}
	if err := decodeJSONBody(w, r, req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidBody, "Request body must be a JSON object", nil)
		return models.Identity{}, false
	}
	if apiErr := validateRequest(req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return models.Identity{}, false
	}
	return id, true
}

// respondEnqueued maps an enqueue result to 202, 400 or 503.
func (h *Handler) respondEnqueued(w http.ResponseWriter, r *http.Request, eventType models.EventType, err error) {
	var verr *validation.Error
	switch {
	case err == nil:
		respondSuccess(w, r, http.StatusAccepted, EnqueueResponse{
			Queued:        true,
			EventType:     eventType,
			CorrelationID: logging.CorrelationIDFromContext(r.Context()),
		})
	case errors.As(err, &verr):
		respondAPIError(w, r, http.StatusBadRequest, toAPIError(verr))
	case errors.Is(err, processor.ErrStopped), errors.Is(err, queue.ErrClosed):
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, "Processing pipeline is not accepting events", nil)
	default:
		respondError(w, http.StatusInternalServerError, CodeInternal, "Failed to queue event", err)
	}
}
