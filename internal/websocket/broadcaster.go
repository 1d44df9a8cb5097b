// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package websocket

import (
	"context"
	"time"

	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/models"
)

// Broadcaster drains the hub's broadcast queue in batches and hands each
// batch to the hub loop for routing. Producers never touch sockets.
type Broadcaster struct {
	hub          *Hub
	batchSize    int
	batchTimeout time.Duration
}

// NewBroadcaster creates a broadcaster using the hub's batch settings.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{
		hub:          hub,
		batchSize:    hub.cfg.BatchSize,
		batchTimeout: hub.cfg.BatchTimeout,
	}
}

// Serve implements suture.Service.
func (b *Broadcaster) Serve(ctx context.Context) error {
	logging.Info().Int("batch_size", b.batchSize).Dur("batch_timeout", b.batchTimeout).Msg("broadcaster started")
	for {
		batch, err := b.collect(ctx)
		if err != nil {
			logging.Info().Msg("broadcaster stopped")
			return err
		}
		if len(batch) == 0 {
			continue
		}
		select {
		case b.hub.batches <- batch:
		case <-ctx.Done():
			logging.Info().Int("pending", len(batch)).Msg("broadcaster stopped")
			return ctx.Err()
		}
	}
}

func (b *Broadcaster) String() string {
	return "websocket-broadcaster"
}

// collect waits up to batchTimeout for a first event, then takes whatever
// else is already queued, up to batchSize in total. An empty batch with a
// nil error means the wait timed out.
func (b *Broadcaster) collect(ctx context.Context) ([]*models.RealtimeEvent, error) {
	timer := time.NewTimer(b.batchTimeout)
	defer timer.Stop()

	var first *models.RealtimeEvent
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, nil
	case first = <-b.hub.events:
	}

	batch := make([]*models.RealtimeEvent, 0, b.batchSize)
	batch = append(batch, first)
	for len(batch) < b.batchSize {
		select {
		case ev := <-b.hub.events:
			batch = append(batch, ev)
		default:
			return batch, nil
		}
	}
	return batch, nil
}
