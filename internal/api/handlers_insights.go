// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/insightstream/internal/intelligence"
	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/models"
)

// ListInsightsRequest holds the query parameters of GET /api/v1/insights.
type ListInsightsRequest struct {
	Limit int `validate:"min=1,max=100"`
}

// UpdateInsightStatusRequest is the body of PATCH /api/v1/insights/{id}.
type UpdateInsightStatusRequest struct {
	Status string `json:"status" validate:"required,insight_status"`
}

// ListInsights returns the caller's most recent insights, newest first.
func (h *Handler) ListInsights(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if h.insights == nil {
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, "Insight store unavailable", nil)
		return
	}

	req := ListInsightsRequest{Limit: getIntParam(r, "limit", 20)}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}

	insights, err := h.insights.ListInsights(r.Context(), id.UserID, req.Limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, CodeInternal, "Failed to list insights", err)
		return
	}
	if insights == nil {
		insights = []*models.Insight{}
	}
	respondSuccess(w, r, http.StatusOK, insights)
}

// UpdateInsightStatus records the caller's reaction to an insight. Acting on
// or dismissing an insight is fed back into the pipeline as insight feedback.
func (h *Handler) UpdateInsightStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPatch) {
		return
	}
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if h.insights == nil {
		respondError(w, http.StatusServiceUnavailable, CodeUnavailable, "Insight store unavailable", nil)
		return
	}

	insightID := chi.URLParam(r, "id")
	var req UpdateInsightStatusRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidBody, "Request body must be a JSON object", nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondAPIError(w, r, http.StatusBadRequest, apiErr)
		return
	}
	status := models.InsightStatus(req.Status)

	if err := h.insights.UpdateInsightStatus(r.Context(), id.UserID, insightID, status); err != nil {
		if errors.Is(err, intelligence.ErrNotFound) {
			respondError(w, http.StatusNotFound, CodeNotFound, "Insight not found", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, CodeInternal, "Failed to update insight", err)
		return
	}

	if h.pipeline != nil && (status == models.InsightStatusActedOn || status == models.InsightStatusDismissed) {
		feedback := map[string]interface{}{"insight_id": insightID, "status": string(status)}
		if err := h.pipeline.EnqueueUserAction(r.Context(), models.ActionInsightFeedback, feedback, id.UserID, 0); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Str("insight_id", insightID).Msg("Failed to queue insight feedback")
		}
	}

	respondSuccess(w, r, http.StatusOK, map[string]string{"id": insightID, "status": string(status)})
}
