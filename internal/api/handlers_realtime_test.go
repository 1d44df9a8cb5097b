// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package api

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/insightstream/internal/delivery"
	"github.com/tomtom215/insightstream/internal/models"
	"github.com/tomtom215/insightstream/internal/processor"
)

// fakeRegistry keeps callbacks so tests can invoke them directly.
type fakeRegistry struct {
	mu        sync.Mutex
	callbacks map[string]delivery.InsightCallback
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{callbacks: make(map[string]delivery.InsightCallback)}
}

func (f *fakeRegistry) RegisterInsightCallback(userID string, cb delivery.InsightCallback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks[userID] = cb
}

func (f *fakeRegistry) UnregisterInsightCallback(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.callbacks, userID)
}

func (f *fakeRegistry) HasCallback(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callbacks[userID] != nil
}

func (f *fakeRegistry) CallbackCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.callbacks)
}

func (f *fakeRegistry) fire(userID string, insight *models.Insight) {
	f.mu.Lock()
	cb := f.callbacks[userID]
	f.mu.Unlock()
	if cb != nil {
		cb(insight)
	}
}

func decodeSession(t *testing.T, rr *httptest.ResponseRecorder) RealtimeSessionResponse {
	t.Helper()
	var resp struct {
		Data RealtimeSessionResponse `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	return resp.Data
}

func TestRealtimeSession_StartCountStop(t *testing.T) {
	registry := newFakeRegistry()
	h := NewHandler(testConfig(), &fakePipeline{}, nil, nil)
	h.SetCallbackRegistry(registry)

	rr := httptest.NewRecorder()
	h.StartRealtime(rr, authedRequest(http.MethodPost, "/api/v1/realtime/start", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("start status = %d, want 200", rr.Code)
	}
	started := decodeSession(t, rr)
	if !started.Registered || started.AlreadyActive || !started.PipelineRunning || started.StartedAt == nil {
		t.Errorf("start = %+v", started)
	}
	if !registry.HasCallback("alice") {
		t.Fatal("callback not registered for alice")
	}

	registry.fire("alice", &models.Insight{ID: "i-1", UserID: "alice"})
	registry.fire("alice", &models.Insight{ID: "i-2", UserID: "alice"})

	// A second start keeps the session and its count.
	rr = httptest.NewRecorder()
	h.StartRealtime(rr, authedRequest(http.MethodPost, "/api/v1/realtime/start", nil))
	if again := decodeSession(t, rr); !again.AlreadyActive || again.InsightsReceived != 2 {
		t.Errorf("restart = %+v, want already_active with 2 insights", again)
	}

	rr = httptest.NewRecorder()
	h.RealtimeStatus(rr, authedRequest(http.MethodGet, "/api/v1/realtime/status", nil))
	var status struct {
		Data RealtimeStatusResponse `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&status); err != nil {
		t.Fatal(err)
	}
	want := CallbackStatus{RegisteredCallbacks: 1, UserRegistered: true, InsightsReceived: 2}
	if status.Data.Callbacks == nil || *status.Data.Callbacks != want {
		t.Errorf("callbacks = %+v, want %+v", status.Data.Callbacks, want)
	}

	rr = httptest.NewRecorder()
	h.StopRealtime(rr, authedRequest(http.MethodPost, "/api/v1/realtime/stop", nil))
	stopped := decodeSession(t, rr)
	if stopped.Registered || stopped.InsightsReceived != 2 {
		t.Errorf("stop = %+v", stopped)
	}
	if registry.CallbackCount() != 0 {
		t.Error("callback still registered after stop")
	}
}

func TestRealtimeSession_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		registry   CallbackRegistry
		req        *http.Request
		handler    func(h *Handler) http.HandlerFunc
		wantStatus int
	}{
		{
			name:       "start without identity",
			registry:   newFakeRegistry(),
			req:        httptest.NewRequest(http.MethodPost, "/api/v1/realtime/start", nil),
			handler:    func(h *Handler) http.HandlerFunc { return h.StartRealtime },
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "start with GET",
			registry:   newFakeRegistry(),
			req:        authedRequest(http.MethodGet, "/api/v1/realtime/start", nil),
			handler:    func(h *Handler) http.HandlerFunc { return h.StartRealtime },
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "start without registry",
			req:        authedRequest(http.MethodPost, "/api/v1/realtime/start", nil),
			handler:    func(h *Handler) http.HandlerFunc { return h.StartRealtime },
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "stop without session",
			registry:   newFakeRegistry(),
			req:        authedRequest(http.MethodPost, "/api/v1/realtime/stop", nil),
			handler:    func(h *Handler) http.HandlerFunc { return h.StopRealtime },
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(testConfig(), &fakePipeline{}, nil, nil)
			if tt.registry != nil {
				h.SetCallbackRegistry(tt.registry)
			}
			rr := httptest.NewRecorder()
			tt.handler(h)(rr, tt.req)
			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
		})
	}
}

func TestTriggerProactive(t *testing.T) {
	tests := []struct {
		name       string
		pipeline   *fakePipeline
		wantStatus int
		wantCalls  int
	}{
		{"queued", &fakePipeline{}, http.StatusAccepted, 1},
		{"pipeline stopped", &fakePipeline{err: processor.ErrStopped}, http.StatusServiceUnavailable, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(testConfig(), tt.pipeline, nil, nil)
			rr := httptest.NewRecorder()
			h.TriggerProactive(rr, authedRequest(http.MethodPost, "/api/v1/realtime/proactive", nil))
			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			calls := tt.pipeline.snapshot()
			if len(calls) != tt.wantCalls {
				t.Fatalf("calls = %d, want %d", len(calls), tt.wantCalls)
			}
			if tt.wantCalls == 1 {
				c := calls[0]
				if c.eventType != models.EventTypeScheduledAnalysis || c.userID != "alice" || c.priority != models.PriorityProactive {
					t.Errorf("call = %+v", c)
				}
			}
		})
	}
}

func TestRealtimeStatus_NoRegistry(t *testing.T) {
	h := NewHandler(testConfig(), &fakePipeline{}, nil, nil)
	rr := httptest.NewRecorder()
	h.RealtimeStatus(rr, authedRequest(http.MethodGet, "/api/v1/realtime/status", nil))

	var resp struct {
		Data RealtimeStatusResponse `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data.Callbacks != nil {
		t.Errorf("callbacks = %+v, want omitted", resp.Data.Callbacks)
	}
}
