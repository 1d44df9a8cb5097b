// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/insightstream/internal/intelligence"
	"github.com/tomtom215/insightstream/internal/models"
)

// MemoryStore is a process-local EntityStore. Nothing survives a restart.
type MemoryStore struct {
	mu        sync.RWMutex
	contexts  map[string]map[string]interface{}
	active    map[string]time.Time
	important map[string]map[string]struct{}
	insights  map[string]*models.Insight
	now       func() time.Time
}

var _ intelligence.EntityStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		contexts:  make(map[string]map[string]interface{}),
		active:    make(map[string]time.Time),
		important: make(map[string]map[string]struct{}),
		insights:  make(map[string]*models.Insight),
		now:       time.Now,
	}
}

func (s *MemoryStore) GetUserContext(_ context.Context, userID string) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]interface{}, len(s.contexts[userID]))
	for k, v := range s.contexts[userID] {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryStore) SetUserContext(_ context.Context, userID string, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[userID] = data
	return nil
}

func (s *MemoryStore) MarkUserActive(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[userID] = at
	return nil
}

func (s *MemoryStore) GetActiveUsers(_ context.Context, window time.Duration) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-window)
	users := make([]string, 0, len(s.active))
	for id, at := range s.active {
		if !at.Before(cutoff) {
			users = append(users, id)
		}
	}
	sort.Strings(users)
	return users, nil
}

func (s *MemoryStore) PersistInsight(_ context.Context, insight *models.Insight) error {
	if insight == nil || insight.ID == "" || insight.UserID == "" {
		return fmt.Errorf("persist insight: id and user_id are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *insight
	s.insights[insight.ID] = &stored
	return nil
}

func (s *MemoryStore) GetInsight(_ context.Context, userID, insightID string) (*models.Insight, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	insight, ok := s.insights[insightID]
	if !ok || insight.UserID != userID || insight.Expired(s.now()) {
		return nil, intelligence.ErrNotFound
	}
	out := *insight
	return &out, nil
}

func (s *MemoryStore) ListInsights(_ context.Context, userID string, limit int) ([]*models.Insight, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	out := make([]*models.Insight, 0)
	for _, insight := range s.insights {
		if insight.UserID == userID && !insight.Expired(now) {
			cp := *insight
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpdateInsightStatus(_ context.Context, userID, insightID string, status models.InsightStatus) error {
	if !status.Valid() {
		return fmt.Errorf("update insight status: invalid status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	insight, ok := s.insights[insightID]
	if !ok || insight.UserID != userID {
		return intelligence.ErrNotFound
	}
	insight.Status = status
	return nil
}

func (s *MemoryStore) AddImportantPerson(_ context.Context, userID, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.important[userID]
	if !ok {
		set = make(map[string]struct{})
		s.important[userID] = set
	}
	set[strings.ToLower(email)] = struct{}{}
	return nil
}

func (s *MemoryStore) IsImportantPerson(_ context.Context, email, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.important[userID][strings.ToLower(email)]
	return ok, nil
}
