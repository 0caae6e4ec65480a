//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

package model

import "time"

// Error type constants for ResponseError.Type field.
const (
	ErrorTypeStreamError = "stream_error"
	ErrorTypeAPIError    = "api_error"
	ErrorTypeFlowError   = "flow_error"
)

// Object type constants for Response.Object field.
const (
	// ObjectTypeError is the object type for error responses.
	ObjectTypeError = "error"
	// ObjectTypeToolResponse is the object type for tool response events.
	ObjectTypeToolResponse = "tool.response"
	// ObjectTypeToolStart is the object type for tool invocation start events.
	ObjectTypeToolStart = "tool.start"
	// ObjectTypeChatCompletionChunk is the object type for streamed chunk events.
	ObjectTypeChatCompletionChunk = "chat.completion.chunk"
	// ObjectTypeChatCompletion is the object type for complete chat events.
	ObjectTypeChatCompletion = "chat.completion"
	// ObjectTypeRunnerCompletion is the object type for runner completion events.
	ObjectTypeRunnerCompletion = "runner.completion"
)

// Choice represents a single completion choice.
type Choice struct {
	// Index is the index of the choice.
	Index int `json:"index"`

	// Message is the complete message content.
	Message Message `json:"message,omitempty"`

	// Delta is the incremental message content for streaming.
	Delta Message `json:"delta,omitempty"`

	// FinishReason is the reason the choice was finished.
	// "stop", "length", "content_filter", "tool_calls", etc.
	FinishReason *string `json:"finish_reason,omitempty"`
}

// Response is the response from the model.
//
// The Error field represents API-level errors that occur after successful
// communication with the model service. This is different from function-level
// errors returned by GenerateContent(), which indicate system-level failures
// that prevent communication entirely.
type Response struct {
	// ID is the unique identifier for this response.
	ID string `json:"id"`

	// Object describes the type of object returned (e.g., "chat.completion").
	Object string `json:"object"`

	// Created is the Unix timestamp when the response was created.
	Created int64 `json:"created"`

	// Model is the model used to generate the response.
	Model string `json:"model"`

	// Choices contains the completion choices.
	Choices []Choice `json:"choices"`

	// Usage contains token usage statistics, when the provider reports them.
	Usage *Usage `json:"usage,omitempty"`

	// Error contains API-level error information if the request failed.
	Error *ResponseError `json:"error,omitempty"`

	// Timestamp when this response chunk was received (for streaming).
	Timestamp time.Time `json:"timestamp"`

	// Done indicates if the generation is complete.
	Done bool `json:"done"`

	// IsPartial indicates if this is a partial (streamed) response.
	IsPartial bool `json:"is_partial"`
}

// Usage contains token usage statistics for a response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ResponseError represents an API-level error in a response.
type ResponseError struct {
	// Message is a human-readable error message.
	Message string `json:"message"`

	// Type is the error type identifier.
	Type string `json:"type"`
}

// Clone creates a deep copy of the response.
func (rsp *Response) Clone() *Response {
	if rsp == nil {
		return nil
	}
	clone := *rsp
	if rsp.Choices != nil {
		clone.Choices = make([]Choice, len(rsp.Choices))
		copy(clone.Choices, rsp.Choices)
	}
	if rsp.Usage != nil {
		usageCopy := *rsp.Usage
		clone.Usage = &usageCopy
	}
	if rsp.Error != nil {
		errCopy := *rsp.Error
		clone.Error = &errCopy
	}
	return &clone
}
