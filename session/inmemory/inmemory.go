//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package inmemory provides an in-process session service.
package inmemory

import (
	"context"
	"sync"

	"github.com/pravobot/pravobot/model"
	"github.com/pravobot/pravobot/session"
)

// Service keeps conversation history in process memory. Safe for concurrent
// use.
type Service struct {
	mu       sync.RWMutex
	history  map[string][]model.Message
	maxPairs int
}

// Option configures the service.
type Option func(*Service)

// WithMaxPairs sets how many user/assistant exchanges are retained per user.
func WithMaxPairs(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPairs = n
		}
	}
}

// NewService creates an in-memory session service.
func NewService(opts ...Option) *Service {
	s := &Service{
		history:  make(map[string][]model.Message),
		maxPairs: session.DefaultMaxPairs,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ session.Service = (*Service)(nil)

// AppendPair stores one completed exchange and trims to the pair limit.
func (s *Service) AppendPair(ctx context.Context, userID string, userMsg, assistantMsg model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.history[userID], userMsg, assistantMsg)
	if limit := s.maxPairs * 2; len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	s.history[userID] = msgs
	return nil
}

// RecentMessages returns a copy of the retained history, oldest first.
func (s *Service) RecentMessages(ctx context.Context, userID string) ([]model.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.history[userID]
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

// Clear removes the history of the user.
func (s *Service) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.history, userID)
	return nil
}

// Close implements session.Service. Nothing to release.
func (s *Service) Close() error {
	return nil
}
