// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package cache

import (
	"sync"
	"testing"
	"time"
)

func TestSlidingWindowCounter_BasicOperations(t *testing.T) {
	sw := NewSlidingWindowCounter(time.Second, 10)

	if sw.Count() != 0 {
		t.Errorf("initial Count() = %d, want 0", sw.Count())
	}

	sw.IncrementOne()
	sw.IncrementOne()
	sw.Increment(3)

	if sw.Count() != 5 {
		t.Errorf("Count() = %d, want 5", sw.Count())
	}
}

func TestSlidingWindowCounter_Expiration(t *testing.T) {
	clock := newFakeClock()
	sw := NewSlidingWindowCounter(5*time.Minute, 10)
	sw.SetClock(clock.Now)

	sw.Increment(4)
	clock.Advance(2 * time.Minute)
	sw.Increment(3)

	if got := sw.Count(); got != 7 {
		t.Errorf("Count() = %d, want 7", got)
	}

	// First batch falls out of the window, second stays.
	clock.Advance(3*time.Minute + time.Second)
	if got := sw.Count(); got != 3 {
		t.Errorf("Count() after partial expiry = %d, want 3", got)
	}

	clock.Advance(10 * time.Minute)
	if got := sw.Count(); got != 0 {
		t.Errorf("Count() after full expiry = %d, want 0", got)
	}
}

func TestSlidingWindowCounter_Reset(t *testing.T) {
	sw := NewSlidingWindowCounter(time.Minute, 6)
	sw.Increment(10)
	sw.Reset()
	if sw.Count() != 0 {
		t.Errorf("Count() after Reset = %d, want 0", sw.Count())
	}
}

func TestSlidingWindowCounter_Defaults(t *testing.T) {
	sw := NewSlidingWindowCounter(0, 0)
	if sw.numBuckets != 10 {
		t.Errorf("numBuckets = %d, want 10", sw.numBuckets)
	}
	if sw.bucketSize != 30*time.Second {
		t.Errorf("bucketSize = %v, want 30s", sw.bucketSize)
	}
}

func TestSlidingWindowCounter_Concurrent(t *testing.T) {
	sw := NewSlidingWindowCounter(time.Minute, 10)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sw.IncrementOne()
			}
		}()
	}
	wg.Wait()

	if sw.Count() != 1000 {
		t.Errorf("Count() = %d, want 1000", sw.Count())
	}
}
