// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package services

import (
	"context"
	"fmt"
)

// StartStopManager is a component with an explicit Start/Stop lifecycle,
// such as *scheduler.Scheduler.
type StartStopManager interface {
	Start(ctx context.Context) error
	Stop() error
}

// SchedulerService adapts a Start/Stop component to suture's Serve pattern.
type SchedulerService struct {
	manager StartStopManager
	name    string
}

// NewSchedulerService creates a new scheduler service wrapper.
//
//	sched := scheduler.New(store, q, scheduler.DefaultConfig())
//	tree.AddMessagingService(services.NewSchedulerService(sched))
func NewSchedulerService(manager StartStopManager) *SchedulerService {
	return &SchedulerService{
		manager: manager,
		name:    "analysis-scheduler",
	}
}

// Serve implements suture.Service. A Start error is returned so the
// supervisor restarts the service with backoff.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("scheduler start failed: %w", err)
	}

	<-ctx.Done()

	// Stop blocks until the scheduler loop has exited.
	if err := s.manager.Stop(); err != nil {
		return fmt.Errorf("scheduler stop failed: %w", err)
	}
	return ctx.Err()
}

func (s *SchedulerService) String() string {
	return s.name
}
