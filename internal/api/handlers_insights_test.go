// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/insightstream/internal/models"
	"github.com/tomtom215/insightstream/internal/store"
)

func seedInsights(t *testing.T, s *store.MemoryStore) {
	t.Helper()
	base := time.Now().UTC().Add(-time.Hour)
	for i, seed := range []struct{ id, user string }{
		{"i-1", "alice"},
		{"i-2", "alice"},
		{"i-3", "bob"},
	} {
		err := s.PersistInsight(context.Background(), &models.Insight{
			ID:          seed.id,
			UserID:      seed.user,
			InsightType: "important_email",
			Title:       "Email",
			Priority:    2,
			Status:      models.InsightStatusNew,
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatal(err)
		}
	}
}

// withURLParam routes the request through a chi context carrying {id}.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestListInsights(t *testing.T) {
	s := store.NewMemoryStore()
	seedInsights(t, s)
	h := NewHandler(testConfig(), &fakePipeline{}, nil, s)

	rr := httptest.NewRecorder()
	h.ListInsights(rr, authedRequest(http.MethodGet, "/api/v1/insights?limit=10", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body=%s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Data []*models.Insight `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("insights = %d, want 2 (alice only)", len(resp.Data))
	}
	if resp.Data[0].ID != "i-2" {
		t.Errorf("first insight = %s, want newest i-2", resp.Data[0].ID)
	}
}

func TestListInsights_InvalidLimit(t *testing.T) {
	h := NewHandler(testConfig(), &fakePipeline{}, nil, store.NewMemoryStore())

	for _, limit := range []string{"0", "500"} {
		t.Run(limit, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ListInsights(rr, authedRequest(http.MethodGet, "/api/v1/insights?limit="+limit, nil))
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestUpdateInsightStatus(t *testing.T) {
	tests := []struct {
		name         string
		insightID    string
		status       string
		wantStatus   int
		wantFeedback bool
	}{
		{"viewed", "i-1", "viewed", http.StatusOK, false},
		{"acted on feeds back", "i-1", "acted_on", http.StatusOK, true},
		{"dismissed feeds back", "i-2", "dismissed", http.StatusOK, true},
		{"unknown status", "i-1", "archived", http.StatusBadRequest, false},
		{"other user's insight", "i-3", "viewed", http.StatusNotFound, false},
		{"missing insight", "nope", "viewed", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := store.NewMemoryStore()
			seedInsights(t, s)
			pipeline := &fakePipeline{}
			h := NewHandler(testConfig(), pipeline, nil, s)

			req := authedRequest(http.MethodPatch, "/api/v1/insights/"+tt.insightID, map[string]string{"status": tt.status})
			rr := httptest.NewRecorder()
			h.UpdateInsightStatus(rr, withURLParam(req, "id", tt.insightID))

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d; body=%s", rr.Code, tt.wantStatus, rr.Body.String())
			}

			calls := pipeline.snapshot()
			if tt.wantFeedback {
				if len(calls) != 1 || calls[0].payload["action_type"] != models.ActionInsightFeedback {
					t.Fatalf("feedback calls = %+v", calls)
				}
			} else if len(calls) != 0 {
				t.Errorf("unexpected pipeline calls: %+v", calls)
			}

			if tt.wantStatus == http.StatusOK {
				got, err := s.GetInsight(context.Background(), "alice", tt.insightID)
				if err != nil {
					t.Fatal(err)
				}
				if string(got.Status) != tt.status {
					t.Errorf("stored status = %s, want %s", got.Status, tt.status)
				}
			}
		})
	}
}
