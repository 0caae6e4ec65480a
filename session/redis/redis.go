//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package redis provides a Redis-backed session service. Each user's history
// lives in one Redis list of JSON messages, trimmed on every append so the
// stored window never outgrows the pair limit.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pravobot/pravobot/model"
	"github.com/pravobot/pravobot/session"
)

const keyPrefix = "pravobot:history:"

// Service stores conversation history in Redis.
type Service struct {
	client   redis.UniversalClient
	maxPairs int
	ttl      time.Duration
	ownsConn bool
}

// ServiceOpts is the options for the Redis session service.
type ServiceOpts struct {
	url      string
	client   redis.UniversalClient
	maxPairs int
	ttl      time.Duration
}

// ServiceOption configures the service.
type ServiceOption func(*ServiceOpts)

// WithRedisURL sets the Redis connection URL.
// scheme: redis://<username>:<password>@<host>:<port>/<db>?<options>
func WithRedisURL(url string) ServiceOption {
	return func(o *ServiceOpts) {
		o.url = url
	}
}

// WithRedisClient supplies an existing client. The service will not close
// a supplied client.
func WithRedisClient(client redis.UniversalClient) ServiceOption {
	return func(o *ServiceOpts) {
		o.client = client
	}
}

// WithMaxPairs sets how many user/assistant exchanges are retained per user.
func WithMaxPairs(n int) ServiceOption {
	return func(o *ServiceOpts) {
		if n > 0 {
			o.maxPairs = n
		}
	}
}

// WithTTL sets an expiry on each user's history key, refreshed on append.
// Zero means no expiry.
func WithTTL(ttl time.Duration) ServiceOption {
	return func(o *ServiceOpts) {
		o.ttl = ttl
	}
}

// NewService creates a Redis session service.
func NewService(options ...ServiceOption) (*Service, error) {
	opts := &ServiceOpts{maxPairs: session.DefaultMaxPairs}
	for _, opt := range options {
		opt(opts)
	}

	client := opts.client
	ownsConn := false
	if client == nil {
		if opts.url == "" {
			return nil, fmt.Errorf("redis session: no client and no url configured")
		}
		redisOpts, err := redis.ParseURL(opts.url)
		if err != nil {
			return nil, fmt.Errorf("redis session: parse url %s: %w", opts.url, err)
		}
		client = redis.NewClient(redisOpts)
		ownsConn = true
	}
	return &Service{
		client:   client,
		maxPairs: opts.maxPairs,
		ttl:      opts.ttl,
		ownsConn: ownsConn,
	}, nil
}

var _ session.Service = (*Service)(nil)

// AppendPair pushes one completed exchange and trims to the pair limit.
func (s *Service) AppendPair(ctx context.Context, userID string, userMsg, assistantMsg model.Message) error {
	userData, err := json.Marshal(userMsg)
	if err != nil {
		return fmt.Errorf("redis session: marshal user message: %w", err)
	}
	assistantData, err := json.Marshal(assistantMsg)
	if err != nil {
		return fmt.Errorf("redis session: marshal assistant message: %w", err)
	}

	key := keyPrefix + userID
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, userData, assistantData)
	pipe.LTrim(ctx, key, int64(-s.maxPairs*2), -1)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return fmt.Errorf("redis session: append pair for %s: %w", userID, err)
	}
	return nil
}

// RecentMessages returns the retained history, oldest first.
func (s *Service) RecentMessages(ctx context.Context, userID string) ([]model.Message, error) {
	entries, err := s.client.LRange(ctx, keyPrefix+userID, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("redis session: load history for %s: %w", userID, err)
	}

	msgs := make([]model.Message, 0, len(entries))
	for _, entry := range entries {
		var msg model.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, fmt.Errorf("redis session: decode history entry for %s: %w", userID, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// Clear removes the history of the user.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, keyPrefix+userID).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("redis session: clear history for %s: %w", userID, err)
	}
	return nil
}

// Close closes the underlying client if the service created it.
func (s *Service) Close() error {
	if !s.ownsConn {
		return nil
	}
	return s.client.Close()
}
