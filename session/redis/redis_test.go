//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pravobot/pravobot/model"
)

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	opts = append([]ServiceOption{WithRedisURL("redis://" + srv.Addr())}, opts...)
	s, err := NewService(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, srv
}

func appendExchange(t *testing.T, s *Service, userID string, n int) {
	t.Helper()
	err := s.AppendPair(context.Background(), userID,
		model.NewUserMessage(fmt.Sprintf("вопрос %d", n)),
		model.NewAssistantMessage(fmt.Sprintf("ответ %d", n)),
	)
	require.NoError(t, err)
}

func TestNewServiceRequiresTarget(t *testing.T) {
	_, err := NewService()
	assert.Error(t, err)
}

func TestNewServiceRejectsBadURL(t *testing.T) {
	_, err := NewService(WithRedisURL("not a url"))
	assert.Error(t, err)
}

func TestAppendAndRecent(t *testing.T) {
	s, _ := newTestService(t)
	appendExchange(t, s, "u1", 1)

	msgs, err := s.RecentMessages(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "вопрос 1", msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "ответ 1", msgs[1].Content)
}

func TestWindowTrimsOldestPairs(t *testing.T) {
	s, _ := newTestService(t)
	for i := 1; i <= 5; i++ {
		appendExchange(t, s, "u1", i)
	}

	msgs, err := s.RecentMessages(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 6)
	assert.Equal(t, "вопрос 3", msgs[0].Content)
	assert.Equal(t, "ответ 5", msgs[5].Content)
}

func TestWithMaxPairs(t *testing.T) {
	s, _ := newTestService(t, WithMaxPairs(1))
	appendExchange(t, s, "u1", 1)
	appendExchange(t, s, "u1", 2)

	msgs, err := s.RecentMessages(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "вопрос 2", msgs[0].Content)
}

func TestEmptyHistory(t *testing.T) {
	s, _ := newTestService(t)
	msgs, err := s.RecentMessages(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestClear(t *testing.T) {
	s, _ := newTestService(t)
	appendExchange(t, s, "u1", 1)

	require.NoError(t, s.Clear(context.Background(), "u1"))
	require.NoError(t, s.Clear(context.Background(), "u1"))

	msgs, err := s.RecentMessages(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestTTLRefreshedOnAppend(t *testing.T) {
	s, srv := newTestService(t, WithTTL(time.Hour))
	appendExchange(t, s, "u1", 1)

	key := keyPrefix + "u1"
	require.True(t, srv.Exists(key))
	assert.Equal(t, time.Hour, srv.TTL(key))

	srv.FastForward(30 * time.Minute)
	appendExchange(t, s, "u1", 2)
	assert.Equal(t, time.Hour, srv.TTL(key))
}

func TestOwnedClientClosedOnce(t *testing.T) {
	srv := miniredis.RunT(t)
	s, err := NewService(WithRedisURL("redis://" + srv.Addr()))
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
