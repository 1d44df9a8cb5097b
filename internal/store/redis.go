// Insightstream - Real-time Event Processing and Insight Delivery
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/insightstream

// Package store provides EntityStore implementations: a Redis-backed store
// for deployments and an in-memory store for development and tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/tomtom215/insightstream/internal/intelligence"
	"github.com/tomtom215/insightstream/internal/models"
)

// RedisConfig holds connection settings for the Redis entity store.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// InsightRetention bounds how long insights without an expiry are kept.
	InsightRetention time.Duration
}

// RedisStore implements intelligence.EntityStore on Redis.
//
// Layout, relative to KeyPrefix:
//
//	user:{id}:context    string  JSON object
//	user:{id}:important  set     lower-cased email addresses
//	user:{id}:insights   zset    insight ids scored by creation time
//	insight:{id}         string  JSON insight
//	active_users         zset    user ids scored by last activity (unix seconds)
type RedisStore struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
	now       func() time.Time
}

var _ intelligence.EntityStore = (*RedisStore)(nil)

// NewRedisClient builds a go-redis client from cfg.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, cfg RedisConfig) *RedisStore {
	if client == nil {
		panic("store.NewRedisStore: client is nil")
	}
	prefix := strings.TrimSuffix(cfg.KeyPrefix, ":")
	if prefix == "" {
		prefix = "insightstream"
	}
	retention := cfg.InsightRetention
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &RedisStore{
		client:    client,
		prefix:    prefix,
		retention: retention,
		now:       time.Now,
	}
}

// Ping verifies connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(parts ...string) string {
	return s.prefix + ":" + strings.Join(parts, ":")
}

// GetUserContext returns the stored context object, or an empty map for unknown users.
func (s *RedisStore) GetUserContext(ctx context.Context, userID string) (map[string]interface{}, error) {
	data, err := s.client.Get(ctx, s.key("user", userID, "context")).Bytes()
	if errors.Is(err, redis.Nil) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user context: %w", err)
	}

	out := map[string]interface{}{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode user context: %w", err)
	}
	return out, nil
}

// SetUserContext replaces a user's stored context.
func (s *RedisStore) SetUserContext(ctx context.Context, userID string, data map[string]interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode user context: %w", err)
	}
	if err := s.client.Set(ctx, s.key("user", userID, "context"), payload, 0).Err(); err != nil {
		return fmt.Errorf("set user context: %w", err)
	}
	return nil
}

// MarkUserActive records activity for userID at the given time.
func (s *RedisStore) MarkUserActive(ctx context.Context, userID string, at time.Time) error {
	err := s.client.ZAdd(ctx, s.key("active_users"), redis.Z{
		Score:  float64(at.Unix()),
		Member: userID,
	}).Err()
	if err != nil {
		return fmt.Errorf("mark user active: %w", err)
	}
	return nil
}

// GetActiveUsers returns users with activity inside the window, oldest first.
// Entries older than the window are pruned.
func (s *RedisStore) GetActiveUsers(ctx context.Context, window time.Duration) ([]string, error) {
	cutoff := s.now().Add(-window).Unix()
	key := s.key("active_users")

	pipe := s.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
	users := pipe.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("get active users: %w", err)
	}
	return users.Val(), nil
}

// PersistInsight stores an insight and indexes it under its owner.
func (s *RedisStore) PersistInsight(ctx context.Context, insight *models.Insight) error {
	if insight == nil || insight.ID == "" || insight.UserID == "" {
		return errors.New("persist insight: id and user_id are required")
	}
	payload, err := json.Marshal(insight)
	if err != nil {
		return fmt.Errorf("encode insight: %w", err)
	}

	ttl := s.retention
	if insight.ExpiresAt != nil {
		if until := insight.ExpiresAt.Sub(s.now()); until > 0 {
			ttl = until
		}
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key("insight", insight.ID), payload, ttl)
	pipe.ZAdd(ctx, s.key("user", insight.UserID, "insights"), redis.Z{
		Score:  float64(insight.CreatedAt.UnixMilli()),
		Member: insight.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("persist insight: %w", err)
	}
	return nil
}

// GetInsight loads one insight owned by userID.
func (s *RedisStore) GetInsight(ctx context.Context, userID, insightID string) (*models.Insight, error) {
	data, err := s.client.Get(ctx, s.key("insight", insightID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, intelligence.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get insight: %w", err)
	}

	var insight models.Insight
	if err := json.Unmarshal(data, &insight); err != nil {
		return nil, fmt.Errorf("decode insight: %w", err)
	}
	if insight.UserID != userID {
		return nil, intelligence.ErrNotFound
	}
	return &insight, nil
}

// ListInsights returns up to limit of the user's most recent insights.
// Index entries whose insight has expired are dropped.
func (s *RedisStore) ListInsights(ctx context.Context, userID string, limit int) ([]*models.Insight, error) {
	if limit <= 0 {
		limit = 50
	}
	indexKey := s.key("user", userID, "insights")
	ids, err := s.client.ZRevRange(ctx, indexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("list insights: %w", err)
	}

	out := make([]*models.Insight, 0, len(ids))
	for _, id := range ids {
		insight, err := s.GetInsight(ctx, userID, id)
		if errors.Is(err, intelligence.ErrNotFound) {
			_ = s.client.ZRem(ctx, indexKey, id).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, insight)
	}
	return out, nil
}

// UpdateInsightStatus changes the status of an insight owned by userID.
func (s *RedisStore) UpdateInsightStatus(ctx context.Context, userID, insightID string, status models.InsightStatus) error {
	if !status.Valid() {
		return fmt.Errorf("update insight status: invalid status %q", status)
	}
	insight, err := s.GetInsight(ctx, userID, insightID)
	if err != nil {
		return err
	}
	insight.Status = status

	payload, err := json.Marshal(insight)
	if err != nil {
		return fmt.Errorf("encode insight: %w", err)
	}
	if err := s.client.Set(ctx, s.key("insight", insightID), payload, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("update insight status: %w", err)
	}
	return nil
}

// AddImportantPerson marks email as important for userID.
func (s *RedisStore) AddImportantPerson(ctx context.Context, userID, email string) error {
	if err := s.client.SAdd(ctx, s.key("user", userID, "important"), strings.ToLower(email)).Err(); err != nil {
		return fmt.Errorf("add important person: %w", err)
	}
	return nil
}

// IsImportantPerson reports whether email is on the user's important list.
func (s *RedisStore) IsImportantPerson(ctx context.Context, email, userID string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.key("user", userID, "important"), strings.ToLower(email)).Result()
	if err != nil {
		return false, fmt.Errorf("check important person: %w", err)
	}
	return ok, nil
}
