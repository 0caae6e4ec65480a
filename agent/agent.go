//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package agent defines the invocation carried through one turn of the
// conversational loop.
package agent

import (
	"github.com/google/uuid"

	"github.com/pravobot/pravobot/model"
	"github.com/pravobot/pravobot/tool"
)

// Invocation represents one question being answered. It bundles everything
// the flow needs: the model to call, the tools it may use, and the seed
// conversation built from the system prompt, the stored history and the new
// user message.
type Invocation struct {
	// InvocationID identifies this invocation across all events it emits.
	InvocationID string

	// AgentName is the author recorded on emitted events.
	AgentName string

	// UserID is the conversation owner.
	UserID string

	// Model generates the responses.
	Model model.Model

	// Tools is the callable tool set keyed by tool name.
	Tools map[string]tool.Tool

	// Messages is the seed conversation for the first model call.
	Messages []model.Message

	// GenerationConfig tunes the model calls of this invocation.
	GenerationConfig model.GenerationConfig

	// EndInvocation signals that the flow must stop after the current step.
	EndInvocation bool
}

// NewInvocation creates an invocation with a generated ID.
func NewInvocation(agentName, userID string) *Invocation {
	return &Invocation{
		InvocationID: uuid.New().String(),
		AgentName:    agentName,
		UserID:       userID,
	}
}
