//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package event provides the event stream vocabulary between the agent loop
// and its consumers. Event kinds are distinguished by the Response object
// type constants so consumers can switch on them exhaustively.
package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/pravobot/pravobot/model"
)

// Event represents an event produced while answering one question.
type Event struct {
	// Response is the base struct for all model response payloads.
	*model.Response

	// InvocationID is the invocation the event belongs to.
	InvocationID string `json:"invocationId"`

	// Author is the author of the event.
	Author string `json:"author"`

	// ID is the unique identifier of the event.
	ID string `json:"id"`

	// Timestamp is the timestamp of the event.
	Timestamp time.Time `json:"timestamp"`

	// ToolNames carries the names of the tools about to run, only set on
	// tool-start events.
	ToolNames []string `json:"toolNames,omitempty"`
}

// Option is a function that can be used to configure the Event.
type Option func(*Event)

// WithResponse sets the response for the event.
func WithResponse(response *model.Response) Option {
	return func(e *Event) {
		e.Response = response
	}
}

// New creates a new Event with generated ID and timestamp.
func New(invocationID, author string, opts ...Option) *Event {
	e := &Event{
		Response:     &model.Response{},
		ID:           uuid.New().String(),
		Timestamp:    time.Now(),
		InvocationID: invocationID,
		Author:       author,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewResponseEvent creates a new Event from a model Response.
func NewResponseEvent(invocationID, author string, response *model.Response) *Event {
	return New(invocationID, author, WithResponse(response))
}

// NewErrorEvent creates a new error Event with the specified error details.
func NewErrorEvent(invocationID, author, errorType, errorMessage string) *Event {
	return New(invocationID, author, WithResponse(&model.Response{
		Object: model.ObjectTypeError,
		Done:   true,
		Error: &model.ResponseError{
			Type:    errorType,
			Message: errorMessage,
		},
	}))
}

// NewToolStartEvent creates a marker event announcing that the named tools
// are about to be invoked. It carries no payload beyond the marker.
func NewToolStartEvent(invocationID, author string, toolNames []string) *Event {
	e := New(invocationID, author, WithResponse(&model.Response{
		Object: model.ObjectTypeToolStart,
	}))
	e.ToolNames = toolNames
	return e
}

// IsFinalResponse reports whether the event is a complete assistant answer
// that terminates the loop: done, not an error, and without tool calls.
func (e *Event) IsFinalResponse() bool {
	if e == nil || e.Response == nil {
		return false
	}
	if e.Error != nil {
		return true
	}
	if !e.Done || e.IsPartial {
		return false
	}
	for _, choice := range e.Choices {
		if len(choice.Message.ToolCalls) > 0 {
			return false
		}
	}
	return e.Object != model.ObjectTypeToolResponse
}

// IsToolResult reports whether the event carries tool response messages.
func (e *Event) IsToolResult() bool {
	return e != nil && e.Response != nil && e.Object == model.ObjectTypeToolResponse
}

// Clone creates a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Response = e.Response.Clone()
	if e.ToolNames != nil {
		clone.ToolNames = make([]string, len(e.ToolNames))
		copy(clone.ToolNames, e.ToolNames)
	}
	return &clone
}
