// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package intelligence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/insightstream/internal/models"
)

// Insight types produced by RuleEngine.
const (
	InsightImportantEmail   = "important_email"
	InsightMeetingPrep      = "meeting_prep"
	InsightEntityChanged    = "entity_status_change"
	InsightTaskFollowUp     = "task_follow_up"
	InsightWorkloadAlert    = "workload_alert"
	InsightFollowUpRequired = "follow_up_required"
)

// Workload thresholds read from the cached user context.
const (
	pendingTaskThreshold = 10
	meetingPrepHorizon   = 48 * time.Hour
)

// RuleEngine is a deterministic Intelligence backend that derives insights
// from event payloads and the entity store. It stands in for the model-backed
// analyser in deployments that do not run one.
type RuleEngine struct {
	store EntityStore
	now   func() time.Time
}

// NewRuleEngine creates a rule engine that consults store for people data.
func NewRuleEngine(store EntityStore) *RuleEngine {
	return &RuleEngine{store: store, now: time.Now}
}

// Process implements Intelligence.
func (r *RuleEngine) Process(ctx context.Context, event *models.ProcessingEvent, userContext *models.CachedContext) (*models.ProcessingResult, error) {
	switch event.EventType {
	case models.EventTypeNewEmail:
		return r.email(ctx, event)
	case models.EventTypeNewCalendarEvent:
		return r.calendar(ctx, event)
	case models.EventTypeEntityUpdate:
		return r.entityUpdate(event), nil
	case models.EventTypeUserAction:
		return r.userAction(event), nil
	case models.EventTypeScheduledAnalysis:
		return r.scheduled(userContext), nil
	default:
		return nil, fmt.Errorf("unsupported event type %q", event.EventType)
	}
}

func (r *RuleEngine) email(ctx context.Context, event *models.ProcessingEvent) (*models.ProcessingResult, error) {
	sender := event.PayloadString("sender")
	if sender == "" {
		sender = event.PayloadString("from")
	}
	subject := event.PayloadString("subject")

	people := map[string]struct{}{}
	if sender != "" {
		people[strings.ToLower(sender)] = struct{}{}
	}
	for _, addr := range stringList(event.Payload["recipients"]) {
		people[strings.ToLower(addr)] = struct{}{}
	}

	result := &models.ProcessingResult{Success: true, EntitiesCreated: len(people)}
	if sender == "" {
		return result, nil
	}

	important, err := r.store.IsImportantPerson(ctx, sender, event.UserID)
	if err != nil {
		return nil, fmt.Errorf("check sender importance: %w", err)
	}
	urgent := strings.Contains(strings.ToLower(subject), "urgent")
	if !important && !urgent {
		return result, nil
	}

	priority, confidence := 2, 0.9
	if urgent {
		priority = 1
	}
	if !important {
		confidence = 0.6
	}
	result.Insights = append(result.Insights, &models.Insight{
		InsightType:       InsightImportantEmail,
		Title:             "Email from " + sender,
		Description:       subject,
		Priority:          priority,
		Confidence:        confidence,
		RelatedEntityType: "email",
		RelatedEntityID:   event.PayloadString("message_id"),
	})
	return result, nil
}

func (r *RuleEngine) calendar(ctx context.Context, event *models.ProcessingEvent) (*models.ProcessingResult, error) {
	result := &models.ProcessingResult{Success: true, EntitiesCreated: 1}

	start, err := time.Parse(time.RFC3339, event.PayloadString("start_time"))
	if err != nil || start.Sub(r.now()) > meetingPrepHorizon || start.Before(r.now()) {
		return result, nil
	}

	var keyAttendees []string
	for _, attendee := range stringList(event.Payload["attendees"]) {
		important, err := r.store.IsImportantPerson(ctx, attendee, event.UserID)
		if err != nil {
			return nil, fmt.Errorf("check attendee importance: %w", err)
		}
		if important {
			keyAttendees = append(keyAttendees, attendee)
		}
	}
	if len(keyAttendees) == 0 {
		return result, nil
	}

	expires := start
	result.Insights = append(result.Insights, &models.Insight{
		InsightType:       InsightMeetingPrep,
		Title:             "Prepare for " + event.PayloadString("title"),
		Description:       "Key attendees: " + strings.Join(keyAttendees, ", "),
		Priority:          2,
		Confidence:        0.8,
		RelatedEntityType: "calendar_event",
		RelatedEntityID:   event.PayloadString("event_id"),
		ExpiresAt:         &expires,
	})
	return result, nil
}

func (r *RuleEngine) entityUpdate(event *models.ProcessingEvent) *models.ProcessingResult {
	result := &models.ProcessingResult{Success: true, EntitiesUpdated: 1}

	changes, _ := event.Payload["changes"].(map[string]interface{})
	status, ok := changes["status"].(string)
	if !ok {
		return result
	}

	entityType := event.PayloadString("entity_type")
	result.Insights = append(result.Insights, &models.Insight{
		InsightType:       InsightEntityChanged,
		Title:             fmt.Sprintf("%s is now %s", entityType, status),
		Priority:          4,
		Confidence:        1.0,
		RelatedEntityType: entityType,
		RelatedEntityID:   event.PayloadString("entity_id"),
	})
	return result
}

func (r *RuleEngine) userAction(event *models.ProcessingEvent) *models.ProcessingResult {
	data, _ := event.Payload["action_data"].(map[string]interface{})

	switch event.PayloadString("action_type") {
	case models.ActionTaskCompletion:
		taskID, _ := data["task_id"].(string)
		return &models.ProcessingResult{
			Success:         true,
			EntitiesUpdated: 1,
			Insights: []*models.Insight{{
				InsightType:       InsightTaskFollowUp,
				Title:             "Task completed",
				Description:       "Review follow-up actions for the completed task",
				Priority:          4,
				Confidence:        0.7,
				RelatedEntityType: "task",
				RelatedEntityID:   taskID,
			}},
		}
	case models.ActionManualEntityCreation:
		return &models.ProcessingResult{Success: true, EntitiesCreated: 1}
	default:
		return &models.ProcessingResult{Success: true}
	}
}

func (r *RuleEngine) scheduled(userContext *models.CachedContext) *models.ProcessingResult {
	result := &models.ProcessingResult{Success: true}
	if userContext == nil {
		return result
	}

	if pending := intValue(userContext.Context["pending_tasks"]); pending > pendingTaskThreshold {
		result.Insights = append(result.Insights, &models.Insight{
			InsightType: InsightWorkloadAlert,
			Title:       "High workload",
			Description: fmt.Sprintf("%d tasks are pending", pending),
			Priority:    3,
			Confidence:  0.75,
		})
	}
	if unanswered := intValue(userContext.Context["unanswered_emails"]); unanswered > 0 {
		result.Insights = append(result.Insights, &models.Insight{
			InsightType: InsightFollowUpRequired,
			Title:       "Emails awaiting reply",
			Description: fmt.Sprintf("%d emails from key contacts are unanswered", unanswered),
			Priority:    3,
			Confidence:  0.7,
		})
	}
	return result
}

// stringList accepts []string or a decoded JSON array of strings.
func stringList(v interface{}) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// intValue accepts the numeric shapes produced by JSON and Redis decoding.
func intValue(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		var i int
		if _, err := fmt.Sscanf(n, "%d", &i); err == nil {
			return i
		}
	}
	return 0
}
