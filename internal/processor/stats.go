// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package processor

import (
	"sync"
	"time"
)

// durationWindow is how many recent processing times feed the averages.
const durationWindow = 100

// Stats is a snapshot of worker pool activity.
type Stats struct {
	EventsProcessed   int64      `json:"events_processed"`
	EventsFailed      int64      `json:"events_failed"`
	EventsRetried     int64      `json:"events_retried"`
	QueueSize         int        `json:"queue_size"`
	WorkersActive     int        `json:"workers_active"`
	IsRunning         bool       `json:"is_running"`
	LastProcessed     *time.Time `json:"last_processed,omitempty"`
	AvgProcessingTime float64    `json:"avg_processing_time"`
	MaxProcessingTime float64    `json:"max_processing_time"`
	MinProcessingTime float64    `json:"min_processing_time"`
}

// QueueStatus is the lighter view used by the status endpoint.
type QueueStatus struct {
	QueueSize       int        `json:"queue_size"`
	IsRunning       bool       `json:"is_running"`
	WorkerCount     int        `json:"worker_count"`
	ActiveWorkers   int        `json:"active_workers"`
	EventsProcessed int64      `json:"events_processed"`
	EventsFailed    int64      `json:"events_failed"`
	LastProcessed   *time.Time `json:"last_processed,omitempty"`
}

// statsRecorder accumulates counters and a ring of recent durations.
type statsRecorder struct {
	mu            sync.Mutex
	processed     int64
	failed        int64
	retried       int64
	lastProcessed time.Time
	durations     [durationWindow]time.Duration
	next          int
	filled        int
}

func (s *statsRecorder) recordSuccess(d time.Duration, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed++
	s.lastProcessed = at
	s.durations[s.next] = d
	s.next = (s.next + 1) % durationWindow
	if s.filled < durationWindow {
		s.filled++
	}
}

func (s *statsRecorder) recordFailure() {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
}

func (s *statsRecorder) recordRetry() {
	s.mu.Lock()
	s.retried++
	s.mu.Unlock()
}

// fill copies counters and duration aggregates (in seconds) into out.
func (s *statsRecorder) fill(out *Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out.EventsProcessed = s.processed
	out.EventsFailed = s.failed
	out.EventsRetried = s.retried
	if !s.lastProcessed.IsZero() {
		t := s.lastProcessed
		out.LastProcessed = &t
	}
	if s.filled == 0 {
		return
	}

	var total time.Duration
	lo, hi := s.durations[0], s.durations[0]
	for i := 0; i < s.filled; i++ {
		d := s.durations[i]
		total += d
		if d < lo {
			lo = d
		}
		if d > hi {
			hi = d
		}
	}
	out.AvgProcessingTime = (total / time.Duration(s.filled)).Seconds()
	out.MaxProcessingTime = hi.Seconds()
	out.MinProcessingTime = lo.Seconds()
}
