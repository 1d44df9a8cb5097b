// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package cache

import (
	"sync"
	"time"
)

// SlidingWindowCounter counts occurrences over a rolling window.
// The window is split into buckets; Count sums the buckets that are still
// inside the window. Increment is O(1) and Count is O(buckets).
type SlidingWindowCounter struct {
	mu         sync.Mutex
	buckets    []int64
	bucketSize time.Duration
	numBuckets int
	current    int
	lastUpdate time.Time
	now        func() time.Time
}

// NewSlidingWindowCounter creates a counter over windowSize split into
// numBuckets buckets. NewSlidingWindowCounter(5*time.Minute, 10) tracks the
// last five minutes with 30 second resolution.
func NewSlidingWindowCounter(windowSize time.Duration, numBuckets int) *SlidingWindowCounter {
	if numBuckets <= 0 {
		numBuckets = 10
	}
	if windowSize <= 0 {
		windowSize = 5 * time.Minute
	}

	return &SlidingWindowCounter{
		buckets:    make([]int64, numBuckets),
		bucketSize: windowSize / time.Duration(numBuckets),
		numBuckets: numBuckets,
		lastUpdate: time.Now(),
		now:        time.Now,
	}
}

// SetClock replaces the time source. Intended for tests.
func (sw *SlidingWindowCounter) SetClock(now func() time.Time) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.now = now
	sw.lastUpdate = now()
}

// Increment adds delta to the current bucket.
func (sw *SlidingWindowCounter) Increment(delta int64) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.advance()
	sw.buckets[sw.current] += delta
}

// IncrementOne adds 1 to the current bucket.
func (sw *SlidingWindowCounter) IncrementOne() {
	sw.Increment(1)
}

// Count returns the total across the window.
func (sw *SlidingWindowCounter) Count() int64 {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.advance()

	var total int64
	for _, n := range sw.buckets {
		total += n
	}
	return total
}

// Reset clears all buckets.
func (sw *SlidingWindowCounter) Reset() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	for i := range sw.buckets {
		sw.buckets[i] = 0
	}
	sw.current = 0
	sw.lastUpdate = sw.now()
}

// advance rotates out buckets that fell outside the window.
// Must be called with lock held.
func (sw *SlidingWindowCounter) advance() {
	now := sw.now()
	elapsed := int(now.Sub(sw.lastUpdate) / sw.bucketSize)
	if elapsed <= 0 {
		return
	}

	if elapsed >= sw.numBuckets {
		for i := range sw.buckets {
			sw.buckets[i] = 0
		}
		sw.current = 0
	} else {
		for i := 0; i < elapsed; i++ {
			sw.current = (sw.current + 1) % sw.numBuckets
			sw.buckets[sw.current] = 0
		}
	}

	// Keep the sub-bucket remainder so slow callers do not drift.
	sw.lastUpdate = sw.lastUpdate.Add(time.Duration(elapsed) * sw.bucketSize)
}
