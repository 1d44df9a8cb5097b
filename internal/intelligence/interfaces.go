// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

// Package intelligence defines the collaborators the pipeline depends on and
// the insight generator that wraps the analysis backend.
//
// The analysis backend, the entity store and token validation live outside
// this service. They are consumed through the interfaces below so the
// pipeline can be tested with in-memory fakes.
package intelligence

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/insightstream/internal/models"
)

// ErrNotFound is returned by an EntityStore when the referenced record does not exist
// or is not owned by the caller.
var ErrNotFound = errors.New("intelligence: not found")

// Intelligence analyses one processing event against the user's context.
type Intelligence interface {
	Process(ctx context.Context, event *models.ProcessingEvent, userContext *models.CachedContext) (*models.ProcessingResult, error)
}

// EntityStore is the persistent store of users, people and insights.
type EntityStore interface {
	GetUserContext(ctx context.Context, userID string) (map[string]interface{}, error)
	GetActiveUsers(ctx context.Context, window time.Duration) ([]string, error)
	PersistInsight(ctx context.Context, insight *models.Insight) error
	IsImportantPerson(ctx context.Context, email, userID string) (bool, error)
	UpdateInsightStatus(ctx context.Context, userID, insightID string, status models.InsightStatus) error
}

// Authenticator validates a handshake token.
type Authenticator interface {
	ValidateToken(token string) (models.Identity, error)
}
