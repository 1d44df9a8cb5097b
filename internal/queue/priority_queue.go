// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

// Package queue provides the in-memory priority queue that feeds the worker pool.
//
// Events are ordered by priority (lower value first) and, within a priority,
// by enqueue sequence. The queue is process-local and is not persisted.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/insightstream/internal/metrics"
	"github.com/tomtom215/insightstream/internal/models"
)

var (
	// ErrClosed is returned by Push and Pop once the queue has been closed.
	ErrClosed = errors.New("queue: closed")

	// ErrEmpty is returned by Pop when no event arrived within the timeout.
	ErrEmpty = errors.New("queue: empty")
)

// item is a heap node. seq breaks ties between equal priorities.
type item struct {
	event *models.ProcessingEvent
	seq   uint64
	index int
}

// PriorityQueue is a thread-safe binary min-heap of processing events.
// Push never blocks. Pop blocks up to a caller-supplied timeout.
type PriorityQueue struct {
	mu     sync.Mutex
	heap   []*item
	seq    uint64
	closed bool

	// notify carries at most one pending wake-up for blocked poppers.
	notify chan struct{}
	done   chan struct{}
}

// New creates an empty priority queue.
func New() *PriorityQueue {
	return &PriorityQueue{
		heap:   make([]*item, 0, 64),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push adds an event to the queue.
func (q *PriorityQueue) Push(event *models.ProcessingEvent) error {
	if event == nil {
		return errors.New("queue: nil event")
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.seq++
	it := &item{event: event, seq: q.seq, index: len(q.heap)}
	q.heap = append(q.heap, it)
	q.bubbleUp(it.index)
	depth := len(q.heap)
	q.mu.Unlock()

	metrics.RecordEnqueue(string(event.EventType), depth)
	q.wake()
	return nil
}

// Pop removes and returns the most urgent event. It waits up to timeout for an
// event to arrive and returns ErrEmpty when none did. A non-positive timeout
// makes Pop non-blocking.
func (q *PriorityQueue) Pop(ctx context.Context, timeout time.Duration) (*models.ProcessingEvent, error) {
	var timer *time.Timer
	var expired <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		ev, err := q.tryPop()
		if ev != nil || err != nil {
			return ev, err
		}
		if expired == nil {
			return nil, ErrEmpty
		}

		select {
		case <-q.notify:
		case <-q.done:
		case <-expired:
			return nil, ErrEmpty
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *PriorityQueue) tryPop() (*models.ProcessingEvent, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrClosed
	}
	if len(q.heap) == 0 {
		q.mu.Unlock()
		return nil, nil
	}
	it := q.removeAt(0)
	remaining := len(q.heap)
	q.mu.Unlock()

	metrics.QueueDepth.Set(float64(remaining))
	if remaining > 0 {
		// Pass the wake-up on to the next waiting worker.
		q.wake()
	}
	return it.event, nil
}

// Len returns the number of queued events.
func (q *PriorityQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Clear drops every queued event and returns how many were dropped.
func (q *PriorityQueue) Clear() int {
	q.mu.Lock()
	n := len(q.heap)
	q.heap = q.heap[:0]
	q.mu.Unlock()

	metrics.QueueDepth.Set(0)
	return n
}

// Close stops the queue. Queued events are discarded and blocked poppers
// return ErrClosed. Close is safe to call more than once.
func (q *PriorityQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.heap = nil
	close(q.done)
}

// Closed reports whether Close has been called.
func (q *PriorityQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *PriorityQueue) wake() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Heap maintenance. All methods below must be called with q.mu held.

func (q *PriorityQueue) less(i, j int) bool {
	a, b := q.heap[i], q.heap[j]
	if a.event.Priority != b.event.Priority {
		return a.event.Priority < b.event.Priority
	}
	return a.seq < b.seq
}

func (q *PriorityQueue) swap(i, j int) {
	q.heap[i], q.heap[j] = q.heap[j], q.heap[i]
	q.heap[i].index = i
	q.heap[j].index = j
}

func (q *PriorityQueue) bubbleUp(i int) {
	for i > 0 {
		parent := (i - 1) / 2
		if !q.less(i, parent) {
			break
		}
		q.swap(i, parent)
		i = parent
	}
}

func (q *PriorityQueue) bubbleDown(i int) {
	n := len(q.heap)
	for {
		smallest := i
		left := 2*i + 1
		right := 2*i + 2

		if left < n && q.less(left, smallest) {
			smallest = left
		}
		if right < n && q.less(right, smallest) {
			smallest = right
		}
		if smallest == i {
			break
		}
		q.swap(i, smallest)
		i = smallest
	}
}

func (q *PriorityQueue) removeAt(i int) *item {
	last := len(q.heap) - 1
	it := q.heap[i]
	if i != last {
		q.swap(i, last)
	}
	q.heap[last] = nil
	q.heap = q.heap[:last]
	if i < len(q.heap) {
		q.bubbleDown(i)
		q.bubbleUp(i)
	}
	it.index = -1
	return it
}
