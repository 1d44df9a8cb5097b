// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

package delivery

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"

	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/models"
)

// Serve consumes published insights until ctx is cancelled. It implements
// suture.Service and is the only place where insights cross from worker
// goroutines into the delivery domain.
func (s *Service) Serve(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, s.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", s.topic, err)
	}
	s.readyOnce.Do(func() { close(s.ready) })
	s.logger.Info("Insight bridge started", watermill.LogFields{"topic": s.topic})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("subscription to %s closed", s.topic)
			}
			s.handle(msg)
			msg.Ack()
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (s *Service) String() string {
	return "insight-bridge"
}

func (s *Service) handle(msg *message.Message) {
	var insight models.Insight
	if err := json.Unmarshal(msg.Payload, &insight); err != nil {
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping undecodable insight message")
		return
	}

	logger := logging.WithComponent(logging.ComponentBridge).With().
		Str("user_id", insight.UserID).
		Str("insight_id", insight.ID).
		Str("correlation_id", msg.Metadata.Get("correlation_id")).
		Logger()

	if cb := s.callback(insight.UserID); cb != nil {
		s.invoke(cb, &insight)
	}

	if s.broadcaster != nil && !s.broadcaster.Broadcast(models.NewInsightEvent(&insight)) {
		logger.Warn().Msg("Broadcast queue full, insight event dropped")
		return
	}
	logger.Debug().Msg("Insight bridged to broadcaster")
}

// invoke runs a user callback, isolating the bridge from its panics.
func (s *Service) invoke(cb InsightCallback, insight *models.Insight) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error().
				Interface("panic", r).
				Str("user_id", insight.UserID).
				Msg("Insight callback panicked")
		}
	}()
	cb(insight)
}
