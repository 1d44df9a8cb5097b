// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

// Package scheduler periodically enqueues scheduled_analysis events for every
// recently active user.
//
// Each tick is independent: a failing store is logged and the loop waits for
// the next tick. Scheduled events use a low priority so interactive traffic
// is always served first.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/metrics"
	"github.com/tomtom215/insightstream/internal/models"
)

// ActiveUserSource lists users with recent activity.
type ActiveUserSource interface {
	GetActiveUsers(ctx context.Context, window time.Duration) ([]string, error)
}

// Enqueuer accepts processing events. *processor.Pool satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, eventType models.EventType, userID string, payload map[string]interface{}, priority int) error
}

// Config holds scheduler settings.
type Config struct {
	// Interval between analysis rounds (default: 15 minutes).
	Interval time.Duration

	// ActiveWindow selects users active within this window (default: 24 hours).
	ActiveWindow time.Duration

	// Priority of the enqueued events (default: 7).
	Priority int

	// EnqueueRate caps enqueues per second within one round so a large user
	// base does not flood the queue in a single burst.
	EnqueueRate  float64
	EnqueueBurst int

	Enabled bool
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		Interval:     15 * time.Minute,
		ActiveWindow: 24 * time.Hour,
		Priority:     models.PriorityScheduled,
		EnqueueRate:  200,
		EnqueueBurst: 20,
		Enabled:      true,
	}
}

// Scheduler triggers periodic per-user analysis.
type Scheduler struct {
	users   ActiveUserSource
	queue   Enqueuer
	limiter *rate.Limiter
	logger  zerolog.Logger
	config  Config

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a scheduler.
func New(users ActiveUserSource, queue Enqueuer, config Config) *Scheduler {
	def := DefaultConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.ActiveWindow <= 0 {
		config.ActiveWindow = def.ActiveWindow
	}
	if config.Priority < models.PriorityHighest || config.Priority > models.PriorityLowest {
		config.Priority = def.Priority
	}
	if config.EnqueueRate <= 0 {
		config.EnqueueRate = def.EnqueueRate
	}
	if config.EnqueueBurst <= 0 {
		config.EnqueueBurst = def.EnqueueBurst
	}

	return &Scheduler{
		users:   users,
		queue:   queue,
		limiter: rate.NewLimiter(rate.Limit(config.EnqueueRate), config.EnqueueBurst),
		logger:  logging.WithComponent(logging.ComponentScheduler),
		config:  config,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info().Msg("Analysis scheduler disabled")
		go func() {
			defer close(s.doneCh)
			<-s.stopCh
		}()
		return nil
	}

	s.logger.Info().
		Dur("interval", s.config.Interval).
		Dur("active_window", s.config.ActiveWindow).
		Int("priority", s.config.Priority).
		Msg("Starting analysis scheduler")

	go s.run(ctx)
	return nil
}

// Stop stops the loop and waits for it to exit. Safe to call when not running.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
	s.logger.Info().Msg("Analysis scheduler stopped")
	return nil
}

// IsRunning reports whether the loop is active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick runs one round with panic isolation.
func (s *Scheduler) tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("Scheduled analysis round panicked")
		}
	}()

	n, err := s.TriggerNow(ctx)
	if err != nil {
		s.logger.Error().Err(err).Int("enqueued", n).Msg("Scheduled analysis round failed")
		return
	}
	s.logger.Info().Int("enqueued", n).Msg("Scheduled analysis round complete")
}

// TriggerNow runs one analysis round immediately and returns how many events
// were enqueued. Enqueue failures for individual users are logged and skipped.
func (s *Scheduler) TriggerNow(ctx context.Context) (int, error) {
	users, err := s.users.GetActiveUsers(ctx, s.config.ActiveWindow)
	if err != nil {
		return 0, fmt.Errorf("list active users: %w", err)
	}

	enqueued := 0
	for _, userID := range users {
		if err := s.limiter.Wait(ctx); err != nil {
			return enqueued, err
		}
		err := s.queue.Enqueue(ctx, models.EventTypeScheduledAnalysis, userID,
			map[string]interface{}{"trigger_type": "scheduled_analysis"}, s.config.Priority)
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("Failed to enqueue scheduled analysis")
			continue
		}
		enqueued++
		metrics.ScheduledTriggers.Inc()
	}
	return enqueued, nil
}
