// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package websocket

import (
	"sync"
	"time"

	"github.com/tomtom215/insightstream/internal/metrics"
	"github.com/tomtom215/insightstream/internal/models"
)

// History keeps recently broadcast events for replay. Once it grows past
// capacity it is cut back to the newest retain entries, so its length
// oscillates between retain and capacity under steady load.
type History struct {
	mu       sync.RWMutex
	events   []*models.RealtimeEvent
	capacity int
	retain   int
}

// NewHistory creates a history buffer. retain is clamped to capacity.
func NewHistory(capacity, retain int) *History {
	if capacity <= 0 {
		capacity = 1000
	}
	if retain <= 0 || retain > capacity {
		retain = capacity
	}
	return &History{
		events:   make([]*models.RealtimeEvent, 0, capacity),
		capacity: capacity,
		retain:   retain,
	}
}

// Append adds events in order and trims once after the whole call.
func (h *History) Append(events ...*models.RealtimeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.events = append(h.events, events...)
	if len(h.events) > h.capacity {
		kept := make([]*models.RealtimeEvent, h.retain, h.capacity)
		copy(kept, h.events[len(h.events)-h.retain:])
		h.events = kept
	}
	metrics.HistorySize.Set(float64(len(h.events)))
}

// Len returns the number of stored events.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.events)
}

// Since returns events newer than cutoff, oldest first, that keep accepts.
// A nil keep accepts everything.
func (h *History) Since(cutoff time.Time, keep func(*models.RealtimeEvent) bool) []*models.RealtimeEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*models.RealtimeEvent
	for _, ev := range h.events {
		if !ev.Timestamp.After(cutoff) {
			continue
		}
		if keep != nil && !keep(ev) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Clear drops all stored events.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = h.events[:0]
	metrics.HistorySize.Set(0)
}
