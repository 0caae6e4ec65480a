//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package telemetry holds the shared tracer used across the module.
package telemetry

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// InstrumentName identifies this module in exported spans.
const InstrumentName = "github.com/pravobot/pravobot"

// Tracer is the tracer used by the flow and the runner. It resolves against
// the globally registered tracer provider, so spans are no-ops unless the
// host application installs one.
var Tracer oteltrace.Tracer = otel.Tracer(InstrumentName)

// Attribute keys recorded on chat and tool spans.
const (
	KeyModelName = attribute.Key("chat.model")
	KeyUserID    = attribute.Key("chat.user_id")
	KeyToolName  = attribute.Key("tool.name")
)

// ChatSpanName builds the span name for one model call.
func ChatSpanName(modelName string) string {
	if modelName == "" {
		return "chat"
	}
	return "chat " + modelName
}

// ToolSpanName builds the span name for one tool execution.
func ToolSpanName(toolName string) string {
	if toolName == "" {
		return "execute_tool"
	}
	return "execute_tool " + toolName
}
