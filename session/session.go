//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package session stores per-user conversation history. Histories are kept
// as flat message lists bounded to the most recent user/assistant pairs, so
// reads always return whole exchanges.
package session

import (
	"context"

	"github.com/pravobot/pravobot/model"
)

// DefaultMaxPairs is the number of user/assistant exchanges retained per
// user when a service is created without an explicit limit.
const DefaultMaxPairs = 3

// Service persists conversation history keyed by user ID.
type Service interface {
	// AppendPair stores one completed exchange and trims the history to the
	// configured pair limit.
	AppendPair(ctx context.Context, userID string, userMsg, assistantMsg model.Message) error

	// RecentMessages returns the retained history, oldest first. A user
	// without history gets an empty slice, not an error.
	RecentMessages(ctx context.Context, userID string) ([]model.Message, error)

	// Clear removes the history of the user. Clearing an absent user is a
	// no-op.
	Clear(ctx context.Context, userID string) error

	// Close releases resources owned by the service.
	Close() error
}
