// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package websocket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/insightstream/internal/logging"
)

// Reaper periodically evicts connections that stopped pinging.
type Reaper struct {
	hub      *Hub
	interval time.Duration
}

// NewReaper creates a reaper using the hub's reap interval.
func NewReaper(hub *Hub) *Reaper {
	return &Reaper{hub: hub, interval: hub.cfg.ReapInterval}
}

// Serve implements suture.Service.
func (r *Reaper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error().Err(err).Str("component", r.String()).Msg("reaper sweep failed")
			}
		}
	}
}

func (r *Reaper) String() string {
	return "websocket-reaper"
}

func (r *Reaper) sweep(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("reaper panic: %v", p)
		}
	}()

	sweepCtx, cancel := context.WithTimeout(ctx, r.interval)
	defer cancel()

	n, err := r.hub.Reap(sweepCtx)
	if err != nil {
		return err
	}
	if n > 0 {
		logging.Info().Int("evicted", n).Msg("reaped stale websocket connections")
	}
	return nil
}
