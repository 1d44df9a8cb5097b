// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package websocket

import (
	"time"
)

// rateLimiter is a fixed budget per rolling window, reset once the window
// has fully elapsed. It is not safe for concurrent use; Client guards it.
type rateLimiter struct {
	max         int
	window      time.Duration
	count       int
	windowStart time.Time
	now         func() time.Time
}

func newRateLimiter(max int, window time.Duration, now func() time.Time) *rateLimiter {
	return &rateLimiter{
		max:         max,
		window:      window,
		windowStart: now(),
		now:         now,
	}
}

// allow consumes one slot and reports whether the send may proceed.
// A rejected send does not consume budget.
func (l *rateLimiter) allow() bool {
	now := l.now()
	if now.Sub(l.windowStart) > l.window {
		l.count = 0
		l.windowStart = now
	}
	if l.count >= l.max {
		return false
	}
	l.count++
	return true
}
