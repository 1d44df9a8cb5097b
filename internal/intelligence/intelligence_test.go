// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package intelligence

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

type fakeStore struct {
	important map[string]bool
	err       error
}

func (f *fakeStore) GetUserContext(context.Context, string) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}

func (f *fakeStore) GetActiveUsers(context.Context, time.Duration) ([]string, error) {
	return nil, nil
}

func (f *fakeStore) PersistInsight(context.Context, *models.Insight) error { return nil }

func (f *fakeStore) IsImportantPerson(_ context.Context, email, _ string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.important[email], nil
}

func (f *fakeStore) UpdateInsightStatus(context.Context, string, string, models.InsightStatus) error {
	return nil
}

type backendFunc func(ctx context.Context, event *models.ProcessingEvent, uctx *models.CachedContext) (*models.ProcessingResult, error)

func (f backendFunc) Process(ctx context.Context, event *models.ProcessingEvent, uctx *models.CachedContext) (*models.ProcessingResult, error) {
	return f(ctx, event, uctx)
}

func emailEvent(payload map[string]interface{}) *models.ProcessingEvent {
	return &models.ProcessingEvent{
		EventType: models.EventTypeNewEmail,
		UserID:    "u1",
		Priority:  5,
		Payload:   payload,
	}
}

func TestRuleEngine_Email(t *testing.T) {
	store := &fakeStore{important: map[string]bool{"ceo@example.com": true}}
	engine := NewRuleEngine(store)

	tests := []struct {
		name         string
		payload      map[string]interface{}
		wantEntities int
		wantInsights int
		wantPriority int
	}{
		{
			name: "important sender",
			payload: map[string]interface{}{
				"sender":     "ceo@example.com",
				"subject":    "Quarterly plan",
				"recipients": []interface{}{"me@example.com", "cfo@example.com"},
			},
			wantEntities: 3,
			wantInsights: 1,
			wantPriority: 2,
		},
		{
			name: "urgent subject from unknown sender",
			payload: map[string]interface{}{
				"from":    "someone@example.com",
				"subject": "URGENT: server down",
			},
			wantEntities: 1,
			wantInsights: 1,
			wantPriority: 1,
		},
		{
			name: "ordinary email",
			payload: map[string]interface{}{
				"sender":     "news@example.com",
				"subject":    "Weekly digest",
				"recipients": []string{"me@example.com"},
			},
			wantEntities: 2,
			wantInsights: 0,
		},
		{
			name:         "no sender",
			payload:      map[string]interface{}{"subject": "hi"},
			wantEntities: 0,
			wantInsights: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.Process(context.Background(), emailEvent(tt.payload), nil)
			if err != nil {
				t.Fatalf("Process() error = %v", err)
			}
			if result.EntitiesCreated != tt.wantEntities {
				t.Errorf("EntitiesCreated = %d, want %d", result.EntitiesCreated, tt.wantEntities)
			}
			if len(result.Insights) != tt.wantInsights {
				t.Fatalf("len(Insights) = %d, want %d", len(result.Insights), tt.wantInsights)
			}
			if tt.wantInsights > 0 && result.Insights[0].Priority != tt.wantPriority {
				t.Errorf("Priority = %d, want %d", result.Insights[0].Priority, tt.wantPriority)
			}
		})
	}
}

func TestRuleEngine_EmailStoreError(t *testing.T) {
	engine := NewRuleEngine(&fakeStore{err: errors.New("boom")})
	_, err := engine.Process(context.Background(), emailEvent(map[string]interface{}{"sender": "a@b.c"}), nil)
	if err == nil {
		t.Fatal("Process() expected error when store fails")
	}
}

func TestRuleEngine_Calendar(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	engine := NewRuleEngine(&fakeStore{important: map[string]bool{"vip@example.com": true}})
	engine.now = func() time.Time { return now }

	event := &models.ProcessingEvent{
		EventType: models.EventTypeNewCalendarEvent,
		UserID:    "u1",
		Priority:  5,
		Payload: map[string]interface{}{
			"title":      "Board sync",
			"start_time": now.Add(3 * time.Hour).Format(time.RFC3339),
			"attendees":  []interface{}{"vip@example.com", "intern@example.com"},
		},
	}

	result, err := engine.Process(context.Background(), event, nil)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if len(result.Insights) != 1 {
		t.Fatalf("len(Insights) = %d, want 1", len(result.Insights))
	}
	insight := result.Insights[0]
	if insight.InsightType != InsightMeetingPrep {
		t.Errorf("InsightType = %q", insight.InsightType)
	}
	if insight.ExpiresAt == nil || !insight.ExpiresAt.Equal(now.Add(3*time.Hour)) {
		t.Errorf("ExpiresAt = %v, want meeting start", insight.ExpiresAt)
	}

	event.Payload["start_time"] = now.Add(72 * time.Hour).Format(time.RFC3339)
	result, _ = engine.Process(context.Background(), event, nil)
	if len(result.Insights) != 0 {
		t.Error("meeting beyond the prep horizon should not produce an insight")
	}
}

func TestRuleEngine_EntityUpdateAndActions(t *testing.T) {
	engine := NewRuleEngine(&fakeStore{})

	update := &models.ProcessingEvent{
		EventType: models.EventTypeEntityUpdate,
		UserID:    "u1",
		Payload: map[string]interface{}{
			"entity_type": "task",
			"entity_id":   "t1",
			"changes":     map[string]interface{}{"status": "blocked"},
		},
	}
	result, _ := engine.Process(context.Background(), update, nil)
	if result.EntitiesUpdated != 1 || len(result.Insights) != 1 {
		t.Errorf("entity update result = %+v", result)
	}

	action := &models.ProcessingEvent{
		EventType: models.EventTypeUserAction,
		UserID:    "u1",
		Payload: map[string]interface{}{
			"action_type": models.ActionManualEntityCreation,
			"action_data": map[string]interface{}{"entity_type": "person"},
		},
	}
	result, _ = engine.Process(context.Background(), action, nil)
	if result.EntitiesCreated != 1 || len(result.Insights) != 0 {
		t.Errorf("manual entity result = %+v", result)
	}
}

func TestRuleEngine_Scheduled(t *testing.T) {
	engine := NewRuleEngine(&fakeStore{})
	event := &models.ProcessingEvent{EventType: models.EventTypeScheduledAnalysis, UserID: "u1"}

	uctx := &models.CachedContext{
		UserID:  "u1",
		Context: map[string]interface{}{"pending_tasks": float64(12), "unanswered_emails": "3"},
	}
	result, err := engine.Process(context.Background(), event, uctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Insights) != 2 {
		t.Errorf("len(Insights) = %d, want 2", len(result.Insights))
	}

	result, _ = engine.Process(context.Background(), event, nil)
	if len(result.Insights) != 0 {
		t.Errorf("nil context produced %d insights", len(result.Insights))
	}
}

func TestGenerator_NormalizesInsights(t *testing.T) {
	backend := backendFunc(func(context.Context, *models.ProcessingEvent, *models.CachedContext) (*models.ProcessingResult, error) {
		return &models.ProcessingResult{
			Success:  true,
			Insights: []*models.Insight{{InsightType: "x", UserID: "someone-else", Priority: 3}},
		}, nil
	})
	gen := NewGenerator(backend, DefaultBreakerConfig())

	result, err := gen.Generate(context.Background(), emailEvent(nil), nil)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	insight := result.Insights[0]
	if insight.ID == "" {
		t.Error("ID not assigned")
	}
	if insight.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", insight.UserID)
	}
	if insight.Status != models.InsightStatusNew {
		t.Errorf("Status = %q, want new", insight.Status)
	}
	if insight.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestGenerator_BreakerOpens(t *testing.T) {
	backendErr := errors.New("backend down")
	calls := 0
	backend := backendFunc(func(context.Context, *models.ProcessingEvent, *models.CachedContext) (*models.ProcessingResult, error) {
		calls++
		return nil, backendErr
	})
	gen := NewGenerator(backend, BreakerConfig{
		Name:             "test-open",
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	})

	for i := 0; i < 2; i++ {
		if _, err := gen.Generate(context.Background(), emailEvent(nil), nil); !errors.Is(err, backendErr) {
			t.Fatalf("Generate() #%d error = %v, want backend error", i, err)
		}
	}

	_, err := gen.Generate(context.Background(), emailEvent(nil), nil)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("Generate() error = %v, want ErrOpenState", err)
	}
	if calls != 2 {
		t.Errorf("backend called %d times, want 2", calls)
	}
	if gen.State() != "open" {
		t.Errorf("State() = %q, want open", gen.State())
	}
}
