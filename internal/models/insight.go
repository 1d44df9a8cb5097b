// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package models

import (
	"time"
)

// InsightStatus tracks the lifecycle of an insight after delivery.
type InsightStatus string

const (
	InsightStatusNew       InsightStatus = "new"
	InsightStatusViewed    InsightStatus = "viewed"
	InsightStatusActedOn   InsightStatus = "acted_on"
	InsightStatusDismissed InsightStatus = "dismissed"
)

// Valid reports whether s is a known insight status.
func (s InsightStatus) Valid() bool {
	switch s {
	case InsightStatusNew, InsightStatusViewed, InsightStatusActedOn, InsightStatusDismissed:
		return true
	}
	return false
}

// Insight is a unit of analysis output for a single user.
// It is created by the insight generator, persisted through the entity store
// and delivered once through the delivery callbacks.
type Insight struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id"`
	InsightType       string        `json:"insight_type"`
	Title             string        `json:"title"`
	Description       string        `json:"description"`
	Priority          int           `json:"priority"`
	Confidence        float64       `json:"confidence"`
	RelatedEntityType string        `json:"related_entity_type,omitempty"`
	RelatedEntityID   string        `json:"related_entity_id,omitempty"`
	Status            InsightStatus `json:"status"`
	CreatedAt         time.Time     `json:"created_at"`
	ExpiresAt         *time.Time    `json:"expires_at,omitempty"`
}

// Expired reports whether the insight has an expiry in the past relative to now.
func (i *Insight) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && now.After(*i.ExpiresAt)
}

// ProcessingResult is what the intelligence collaborator returns for one event.
type ProcessingResult struct {
	Success         bool       `json:"success"`
	EntitiesCreated int        `json:"entities_created"`
	EntitiesUpdated int        `json:"entities_updated"`
	Insights        []*Insight `json:"insights"`
}

// CachedContext is the memoized business context of one user.
// Version starts at 1 and increases on every reload or metadata update.
type CachedContext struct {
	UserID      string                 `json:"user_id"`
	Context     map[string]interface{} `json:"context"`
	LastUpdated time.Time              `json:"last_updated"`
	Version     int                    `json:"version"`
}

// Clone returns a copy of c. The context map is copied one level deep.
func (c *CachedContext) Clone() *CachedContext {
	out := *c
	if c.Context != nil {
		out.Context = make(map[string]interface{}, len(c.Context))
		for k, v := range c.Context {
			out.Context[k] = v
		}
	}
	return &out
}

// Identity is the result of a successful token validation.
type Identity struct {
	UserID  string
	IsAdmin bool
}
