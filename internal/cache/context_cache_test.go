// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingLoader struct {
	calls atomic.Int64
	err   error
	delay time.Duration
}

func (l *countingLoader) GetUserContext(_ context.Context, userID string) (map[string]interface{}, error) {
	n := l.calls.Add(1)
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	if l.err != nil {
		return nil, l.err
	}
	return map[string]interface{}{"user": userID, "load": n}, nil
}

func TestContextCache_LazyLoad(t *testing.T) {
	loader := &countingLoader{}
	c := NewContextCache(loader, DefaultContextCacheConfig())

	got, err := c.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Version != 1 {
		t.Errorf("Version = %d, want 1", got.Version)
	}
	if got.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", got.UserID)
	}

	if _, err := c.Get(context.Background(), "u1"); err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	if n := loader.calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
}

func TestContextCache_StaleReloadBumpsVersion(t *testing.T) {
	clock := newFakeClock()
	loader := &countingLoader{}
	c := NewContextCache(loader, DefaultContextCacheConfig())
	c.SetClock(clock.Now)

	if _, err := c.Get(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}

	clock.Advance(29 * time.Minute)
	got, _ := c.Get(context.Background(), "u1")
	if got.Version != 1 || loader.calls.Load() != 1 {
		t.Fatalf("fresh entry reloaded: version=%d calls=%d", got.Version, loader.calls.Load())
	}

	clock.Advance(2 * time.Minute)
	got, err := c.Get(context.Background(), "u1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 2 {
		t.Errorf("Version after stale reload = %d, want 2", got.Version)
	}
	if loader.calls.Load() != 2 {
		t.Errorf("loader calls = %d, want 2", loader.calls.Load())
	}
}

func TestContextCache_Update(t *testing.T) {
	clock := newFakeClock()
	c := NewContextCache(&countingLoader{}, DefaultContextCacheConfig())
	c.SetClock(clock.Now)

	if c.Update("missing", nil) {
		t.Error("Update() on uncached user = true, want false")
	}

	first, _ := c.Get(context.Background(), "u1")
	clock.Advance(time.Minute)

	if !c.Update("u1", map[string]interface{}{"k": "v"}) {
		t.Fatal("Update() = false, want true")
	}

	got, _ := c.Get(context.Background(), "u1")
	if got.Version != first.Version+1 {
		t.Errorf("Version = %d, want %d", got.Version, first.Version+1)
	}
	if !got.LastUpdated.After(first.LastUpdated) {
		t.Error("LastUpdated not advanced by Update()")
	}
	if _, merged := got.Context["k"]; merged {
		t.Error("Update() must not merge the delta")
	}
}

func TestContextCache_ReturnsCopies(t *testing.T) {
	c := NewContextCache(&countingLoader{}, DefaultContextCacheConfig())

	got, _ := c.Get(context.Background(), "u1")
	got.Context["user"] = "tampered"
	got.Version = 99

	again, _ := c.Get(context.Background(), "u1")
	if again.Context["user"] != "u1" || again.Version != 1 {
		t.Errorf("cache state mutated through returned value: %+v", again)
	}
}

func TestContextCache_LRUBound(t *testing.T) {
	c := NewContextCache(&countingLoader{}, ContextCacheConfig{Capacity: 3, TTL: time.Hour})

	for i := 0; i < 10; i++ {
		if _, err := c.Get(context.Background(), fmt.Sprintf("u%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len() = %d, want 3", c.Len())
	}
	if s := c.Stats(); s.Evictions != 7 {
		t.Errorf("Evictions = %d, want 7", s.Evictions)
	}
}

func TestContextCache_LoaderError(t *testing.T) {
	loaderErr := errors.New("store down")
	c := NewContextCache(&countingLoader{err: loaderErr}, DefaultContextCacheConfig())

	_, err := c.Get(context.Background(), "u1")
	if !errors.Is(err, loaderErr) {
		t.Errorf("Get() error = %v, want wrapped loader error", err)
	}
	if c.Len() != 0 {
		t.Errorf("failed load cached an entry")
	}
}

func TestContextCache_ConcurrentLoadsCollapse(t *testing.T) {
	loader := &countingLoader{delay: 50 * time.Millisecond}
	c := NewContextCache(loader, DefaultContextCacheConfig())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Get(context.Background(), "u1"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if n := loader.calls.Load(); n != 1 {
		t.Errorf("loader called %d times, want 1", n)
	}
}

func TestContextCache_CleanupExpired(t *testing.T) {
	clock := newFakeClock()
	c := NewContextCache(&countingLoader{}, DefaultContextCacheConfig())
	c.SetClock(clock.Now)

	_, _ = c.Get(context.Background(), "u1")
	clock.Advance(3 * time.Hour)

	if n := c.CleanupExpired(); n != 1 {
		t.Errorf("CleanupExpired() = %d, want 1", n)
	}
	c.Invalidate("u1")
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
}

func TestContextCache_ConcurrentUpdatesKeepEveryBump(t *testing.T) {
	c := NewContextCache(&countingLoader{}, DefaultContextCacheConfig())
	if _, err := c.Get(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}

	const goroutines, perGoroutine = 50, 200
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				c.Update("u1", nil)
			}
		}()
	}
	wg.Wait()

	got, _ := c.Get(context.Background(), "u1")
	if want := 1 + goroutines*perGoroutine; got.Version != want {
		t.Errorf("Version = %d after concurrent updates, want %d", got.Version, want)
	}
}

// gatedLoader blocks every load after the first until release is closed.
type gatedLoader struct {
	calls   atomic.Int64
	entered chan struct{}
	release chan struct{}
}

func (l *gatedLoader) GetUserContext(_ context.Context, userID string) (map[string]interface{}, error) {
	if l.calls.Add(1) > 1 {
		close(l.entered)
		<-l.release
	}
	return map[string]interface{}{"user": userID}, nil
}

func TestContextCache_UpdateDuringStaleReload(t *testing.T) {
	clock := newFakeClock()
	loader := &gatedLoader{entered: make(chan struct{}), release: make(chan struct{})}
	c := NewContextCache(loader, DefaultContextCacheConfig())
	c.SetClock(clock.Now)

	if _, err := c.Get(context.Background(), "u1"); err != nil {
		t.Fatal(err)
	}
	clock.Advance(31 * time.Minute)

	done := make(chan *int, 1)
	go func() {
		got, err := c.Get(context.Background(), "u1")
		if err != nil {
			done <- nil
			return
		}
		done <- &got.Version
	}()

	<-loader.entered
	for i := 0; i < 3; i++ {
		if !c.Update("u1", nil) {
			t.Fatal("Update() during reload = false, want true")
		}
	}
	close(loader.release)

	version := <-done
	if version == nil {
		t.Fatal("stale reload failed")
	}
	// 1 from the first load, 3 updates, 1 for the reload.
	if *version != 5 {
		t.Errorf("Version after reload = %d, want 5", *version)
	}
}
