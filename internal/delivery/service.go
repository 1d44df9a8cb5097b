// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

// Package delivery persists generated insights and carries them from worker
// goroutines into the real-time delivery domain.
//
// Workers call Deliver, which stores each insight and publishes it on an
// in-process Watermill topic. Serve subscribes to that topic, invokes any
// per-user callbacks and submits an insight_generated event for broadcast.
// Workers never touch the connection hub directly.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/insightstream/internal/logging"
	"github.com/tomtom215/insightstream/internal/metrics"
	"github.com/tomtom215/insightstream/internal/models"
)

// DefaultTopic is the in-process topic carrying delivered insights.
const DefaultTopic = "insights.generated"

// InsightPersister stores insights. intelligence.EntityStore satisfies it.
type InsightPersister interface {
	PersistInsight(ctx context.Context, insight *models.Insight) error
}

// Broadcaster accepts events for fan-out to connected clients.
type Broadcaster interface {
	Broadcast(event *models.RealtimeEvent) bool
}

// InsightCallback is invoked once for each insight delivered to its user.
type InsightCallback func(insight *models.Insight)

// Config holds delivery settings.
type Config struct {
	Topic         string
	ChannelBuffer int64
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{Topic: DefaultTopic, ChannelBuffer: 256}
}

// Service persists insights and bridges them into the delivery domain.
type Service struct {
	store       InsightPersister
	broadcaster Broadcaster
	publisher   message.Publisher
	subscriber  message.Subscriber
	topic       string
	logger      watermill.LoggerAdapter

	ready     chan struct{}
	readyOnce sync.Once

	mu        sync.RWMutex
	callbacks map[string]InsightCallback
}

// New creates a delivery service backed by an in-process gochannel pub/sub.
func New(store InsightPersister, broadcaster Broadcaster, cfg Config) *Service {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.ChannelBuffer <= 0 {
		cfg.ChannelBuffer = DefaultConfig().ChannelBuffer
	}

	logger := watermill.NewSlogLogger(logging.NewComponentSlogLogger(logging.ComponentBridge))
	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.ChannelBuffer,
	}, logger)

	return NewWithPubSub(store, broadcaster, pubsub, pubsub, cfg.Topic, logger)
}

// NewWithPubSub creates a delivery service over an arbitrary Watermill transport.
func NewWithPubSub(store InsightPersister, broadcaster Broadcaster, pub message.Publisher,
	sub message.Subscriber, topic string, logger watermill.LoggerAdapter) *Service {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Service{
		store:       store,
		broadcaster: broadcaster,
		publisher:   pub,
		subscriber:  sub,
		topic:       topic,
		logger:      logger,
		ready:       make(chan struct{}),
		callbacks:   make(map[string]InsightCallback),
	}
}

// Deliver persists each insight and publishes it to the bridge. An insight
// that cannot be persisted is not published. All failures are joined into
// the returned error; remaining insights are still attempted.
func (s *Service) Deliver(ctx context.Context, insights []*models.Insight) error {
	var errs []error
	for _, insight := range insights {
		if err := s.store.PersistInsight(ctx, insight); err != nil {
			metrics.InsightsDelivered.WithLabelValues("persist_failed").Inc()
			errs = append(errs, fmt.Errorf("persist insight %s: %w", insight.ID, err))
			continue
		}

		payload, err := json.Marshal(insight)
		if err != nil {
			errs = append(errs, fmt.Errorf("encode insight %s: %w", insight.ID, err))
			continue
		}

		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set("user_id", insight.UserID)
		msg.Metadata.Set("insight_type", insight.InsightType)
		if id := logging.CorrelationIDFromContext(ctx); id != "" {
			msg.Metadata.Set("correlation_id", id)
		}

		if err := s.publisher.Publish(s.topic, msg); err != nil {
			metrics.InsightsDelivered.WithLabelValues("publish_failed").Inc()
			errs = append(errs, fmt.Errorf("publish insight %s: %w", insight.ID, err))
			continue
		}
		metrics.InsightsDelivered.WithLabelValues("delivered").Inc()
	}
	return errors.Join(errs...)
}

// RegisterInsightCallback sets the callback for userID, replacing any previous one.
func (s *Service) RegisterInsightCallback(userID string, cb InsightCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks[userID] = cb
}

// UnregisterInsightCallback removes the callback for userID.
func (s *Service) UnregisterInsightCallback(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.callbacks, userID)
}

// HasCallback reports whether userID has a registered callback.
func (s *Service) HasCallback(userID string) bool {
	return s.callback(userID) != nil
}

// CallbackCount returns the number of users with a registered callback.
func (s *Service) CallbackCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.callbacks)
}

// Ready is closed once Serve holds its first subscription to the topic.
// Messages published before then are dropped by the in-process transport.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

func (s *Service) callback(userID string) InsightCallback {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.callbacks[userID]
}

// Close shuts down the publisher and subscriber. Both may be the same pub/sub.
func (s *Service) Close() error {
	err := s.publisher.Close()
	if any(s.subscriber) != any(s.publisher) {
		err = errors.Join(err, s.subscriber.Close())
	}
	return err
}
