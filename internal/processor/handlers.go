// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/models"
)

// Trigger types carried in scheduled_analysis payloads.
const (
	TriggerScheduled = "scheduled_analysis"
	TriggerProactive = "proactive_insights"
)

func (p *Pool) dispatch(ctx context.Context, event *models.ProcessingEvent) error {
	switch event.EventType {
	case models.EventTypeNewEmail, models.EventTypeNewCalendarEvent,
		models.EventTypeEntityUpdate, models.EventTypeScheduledAnalysis:
		return p.analyse(ctx, event)
	case models.EventTypeUserAction:
		return p.userAction(ctx, event)
	default:
		logging.Ctx(ctx).Warn().Str("event_type", string(event.EventType)).Msg("Unknown event type")
		return nil
	}
}

// analyse loads the user's context, runs the analyzer and delivers the result.
func (p *Pool) analyse(ctx context.Context, event *models.ProcessingEvent) error {
	userContext, err := p.contexts.Get(ctx, event.UserID)
	if err != nil {
		return err
	}

	result, err := p.analyzer.Generate(ctx, event, userContext)
	if err != nil {
		return err
	}
	if !result.Success {
		// Partial results of a failed analysis are not delivered.
		return fmt.Errorf("%s for user %s: %w", event.EventType, event.UserID, ErrAnalysisFailed)
	}

	logging.Ctx(ctx).Debug().
		Str("event_type", string(event.EventType)).
		Int("entities_created", result.EntitiesCreated).
		Int("entities_updated", result.EntitiesUpdated).
		Int("insights", len(result.Insights)).
		Msg("Analysis complete")

	if len(result.Insights) > 0 {
		if err := p.deliverer.Deliver(ctx, result.Insights); err != nil {
			return fmt.Errorf("deliver insights: %w", err)
		}
	}

	if event.EventType != models.EventTypeScheduledAnalysis && result.EntitiesCreated > p.cfg.ProactiveThreshold {
		p.triggerProactive(ctx, event.UserID)
	}
	return nil
}

func (p *Pool) triggerProactive(ctx context.Context, userID string) {
	if err := p.EnqueueProactiveAnalysis(ctx, userID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to enqueue proactive analysis")
	}
}

// userAction applies user feedback and analyses the remaining action kinds.
// Every action bumps the user's cached context version.
func (p *Pool) userAction(ctx context.Context, event *models.ProcessingEvent) error {
	defer p.contexts.Update(event.UserID, event.Payload)

	switch action := event.PayloadString("action_type"); action {
	case models.ActionInsightFeedback:
		return p.insightFeedback(ctx, event)
	case models.ActionTaskCompletion, models.ActionManualEntityCreation:
		return p.analyse(ctx, event)
	default:
		logging.Ctx(ctx).Warn().Str("action_type", action).Msg("Unknown user action type")
		return nil
	}
}

func (p *Pool) insightFeedback(ctx context.Context, event *models.ProcessingEvent) error {
	data, _ := event.Payload["action_data"].(map[string]interface{})
	insightID, _ := data["insight_id"].(string)
	if insightID == "" {
		return errors.New("insight feedback without insight_id")
	}
	feedback, _ := data["feedback"].(string)

	status := feedbackStatus(feedback)
	if err := p.store.UpdateInsightStatus(ctx, event.UserID, insightID, status); err != nil {
		return fmt.Errorf("update insight %s: %w", insightID, err)
	}

	logging.Ctx(ctx).Info().
		Str("insight_id", insightID).
		Str("feedback", feedback).
		Str("status", string(status)).
		Msg("Insight feedback applied")
	return nil
}

// feedbackStatus maps a feedback value to the resulting insight status.
// Anything unrecognised counts as the insight having been seen.
func feedbackStatus(feedback string) models.InsightStatus {
	switch models.InsightStatus(feedback) {
	case models.InsightStatusActedOn:
		return models.InsightStatusActedOn
	case models.InsightStatusDismissed:
		return models.InsightStatusDismissed
	default:
		return models.InsightStatusViewed
	}
}
