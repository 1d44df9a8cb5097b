// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package intelligence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/metrics"
	"github.com/tomtom215/insightstream/internal/models"
)

// BreakerConfig holds circuit breaker settings for the analysis backend.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32        // allowed in half-open state
	Interval         time.Duration // reset interval for counts
	Timeout          time.Duration // time to stay open
	FailureThreshold uint32        // consecutive failures before opening
}

// DefaultBreakerConfig returns production defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "intelligence",
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}

// Generator runs the analysis backend behind a circuit breaker and
// normalizes the insights it returns.
type Generator struct {
	backend Intelligence
	breaker *gobreaker.CircuitBreaker[*models.ProcessingResult]
	now     func() time.Time
}

// NewGenerator wraps backend with a circuit breaker.
func NewGenerator(backend Intelligence, cfg BreakerConfig) *Generator {
	if cfg.Name == "" {
		cfg.Name = "intelligence"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
		// A cancelled caller says nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}
	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	return &Generator{
		backend: backend,
		breaker: gobreaker.NewCircuitBreaker[*models.ProcessingResult](settings),
		now:     time.Now,
	}
}

// Generate analyses event and returns the result with every insight owned by
// the event's user, carrying an ID, status "new" and a creation time.
// When the breaker is open it fails fast with gobreaker.ErrOpenState.
func (g *Generator) Generate(ctx context.Context, event *models.ProcessingEvent, userContext *models.CachedContext) (*models.ProcessingResult, error) {
	result, err := g.breaker.Execute(func() (*models.ProcessingResult, error) {
		return g.backend.Process(ctx, event, userContext)
	})
	if err != nil {
		return nil, fmt.Errorf("analyse %s: %w", event.EventType, err)
	}
	if result == nil {
		result = &models.ProcessingResult{Success: true}
	}

	now := g.now().UTC()
	for _, insight := range result.Insights {
		if insight.ID == "" {
			insight.ID = uuid.New().String()
		}
		insight.UserID = event.UserID
		if !insight.Status.Valid() {
			insight.Status = models.InsightStatusNew
		}
		if insight.CreatedAt.IsZero() {
			insight.CreatedAt = now
		}
	}
	metrics.InsightsGenerated.Add(float64(len(result.Insights)))
	return result, nil
}

// State returns the breaker state name (closed, half-open, open).
func (g *Generator) State() string {
	return g.breaker.State().String()
}
