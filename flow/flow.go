//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package flow defines the contract for agent execution flows.
package flow

import (
	"context"

	"github.com/pravobot/pravobot/agent"
	"github.com/pravobot/pravobot/event"
)

// Flow drives one invocation to completion and streams the resulting events.
type Flow interface {
	// Run executes the flow and returns a channel of events. The channel is
	// closed once the invocation terminates.
	Run(ctx context.Context, invocation *agent.Invocation) (<-chan *event.Event, error)
}
