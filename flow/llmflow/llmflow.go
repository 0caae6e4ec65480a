//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

// Package llmflow implements the model/tools agent loop. One step is a
// single model call; when the model requests tool calls the step executes
// them, appends the results to the conversation and the loop runs another
// step. The loop ends on a plain assistant answer, an error, or the round
// ceiling.
package llmflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/pravobot/pravobot/agent"
	"github.com/pravobot/pravobot/event"
	"github.com/pravobot/pravobot/log"
	"github.com/pravobot/pravobot/model"
	"github.com/pravobot/pravobot/telemetry"
	"github.com/pravobot/pravobot/tool"
)

const (
	defaultChannelBufferSize = 256

	// defaultMaxToolRounds bounds consecutive model calls within one
	// invocation. The model gets this many chances to stop requesting
	// tools before the loop gives up with a fixed answer.
	defaultMaxToolRounds = 8
)

// Corrective texts fed back to the model as tool messages. They instruct the
// model to repair its call rather than surfacing internals to the user.
const (
	msgToolErrorPrefix         = "Ошибка вызова функции: "
	msgToolCriticalErrorPrefix = "Ошибка вызова функции (Critical): "
	msgToolErrorSuffix         = " Проверь аргументы и верни корректный JSON."
)

// MsgToolRoundsExhausted is the fixed answer produced when the round
// ceiling is reached without a plain assistant response.
const MsgToolRoundsExhausted = "Не удалось подготовить ответ: слишком много обращений к инструментам. " +
	"Попробуйте переформулировать вопрос."

// Flow runs the agent loop for one invocation.
type Flow struct {
	channelBufferSize int
	maxToolRounds     int
}

// Option configures the Flow.
type Option func(*Flow)

// WithChannelBufferSize sets the event channel buffer size.
func WithChannelBufferSize(size int) Option {
	return func(f *Flow) {
		if size > 0 {
			f.channelBufferSize = size
		}
	}
}

// WithMaxToolRounds sets the model call ceiling per invocation.
func WithMaxToolRounds(rounds int) Option {
	return func(f *Flow) {
		if rounds > 0 {
			f.maxToolRounds = rounds
		}
	}
}

// New creates a Flow with the given options.
func New(opts ...Option) *Flow {
	f := &Flow{
		channelBufferSize: defaultChannelBufferSize,
		maxToolRounds:     defaultMaxToolRounds,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run executes the loop until completion and streams events on the returned
// channel. The channel is closed when the invocation terminates.
func (f *Flow) Run(ctx context.Context, invocation *agent.Invocation) (<-chan *event.Event, error) {
	if invocation == nil {
		return nil, errors.New("llmflow: nil invocation")
	}
	if invocation.Model == nil {
		return nil, errors.New("llmflow: invocation has no model")
	}
	eventChan := make(chan *event.Event, f.channelBufferSize)

	go func() {
		defer close(eventChan)

		for round := 0; ; round++ {
			if round >= f.maxToolRounds {
				log.Warnf("Tool round ceiling %d reached for invocation %s, giving up",
					f.maxToolRounds, invocation.InvocationID)
				emitEvent(ctx, eventChan, f.roundsExhaustedEvent(invocation))
				return
			}

			lastEvent, err := f.runOneStep(ctx, invocation, eventChan)
			if err != nil {
				// Client going away mid-stream is a normal shutdown path.
				if errors.Is(err, context.Canceled) {
					log.Debugf("Flow context canceled for invocation %s; exiting without error",
						invocation.InvocationID)
					return
				}
				log.Errorf("Flow step failed for invocation %s: %v", invocation.InvocationID, err)
				emitEvent(ctx, eventChan, event.NewErrorEvent(
					invocation.InvocationID,
					invocation.AgentName,
					model.ErrorTypeFlowError,
					err.Error(),
				))
				return
			}

			// No events means the model stream was empty; stop rather than
			// spin.
			if lastEvent == nil || invocation.EndInvocation || lastEvent.IsFinalResponse() {
				return
			}
		}
	}()

	return eventChan, nil
}

// runOneStep performs one model call cycle. It returns the last event
// emitted, or nil if the model produced nothing.
func (f *Flow) runOneStep(
	ctx context.Context,
	invocation *agent.Invocation,
	eventChan chan<- *event.Event,
) (*event.Event, error) {
	request := &model.Request{
		Messages:         invocation.Messages,
		GenerationConfig: invocation.GenerationConfig,
		Tools:            invocation.Tools,
	}

	ctx, span := telemetry.Tracer.Start(ctx, telemetry.ChatSpanName(invocation.Model.Info().Name),
		oteltrace.WithAttributes(
			telemetry.KeyModelName.String(invocation.Model.Info().Name),
			telemetry.KeyUserID.String(invocation.UserID),
		))
	defer span.End()

	responseChan, err := invocation.Model.GenerateContent(ctx, request)
	if err != nil {
		return nil, err
	}

	var lastEvent *event.Event
	var final *model.Response
	for response := range responseChan {
		evt := event.NewResponseEvent(invocation.InvocationID, invocation.AgentName, response)
		if err := emitEvent(ctx, eventChan, evt); err != nil {
			return lastEvent, err
		}
		lastEvent = evt

		if response.Error != nil {
			invocation.EndInvocation = true
			return lastEvent, nil
		}
		if response.Done && !response.IsPartial {
			final = response
		}
	}
	if final == nil || len(final.Choices) == 0 {
		return lastEvent, nil
	}

	calls := final.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return lastEvent, nil
	}

	// Record the assistant turn that requested the tools, then execute them
	// and record every result so the next model call sees a response for
	// each call ID.
	invocation.Messages = append(invocation.Messages, final.Choices[0].Message)

	emitEvent(ctx, eventChan, event.NewToolStartEvent(
		invocation.InvocationID, invocation.AgentName, toolCallNames(calls)))

	toolEvent := f.executeToolCalls(ctx, invocation, calls)
	for _, choice := range toolEvent.Choices {
		invocation.Messages = append(invocation.Messages, choice.Message)
	}
	if err := emitEvent(ctx, eventChan, toolEvent); err != nil {
		return lastEvent, err
	}
	return toolEvent, nil
}

// executeToolCalls runs every requested call sequentially. A panic inside a
// tool is converted into a critical error message for the first call that
// has no result yet, keeping the call/result pairing intact.
func (f *Flow) executeToolCalls(
	ctx context.Context,
	invocation *agent.Invocation,
	calls []model.ToolCall,
) (evt *event.Event) {
	choices := make([]model.Choice, 0, len(calls))

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Tool execution panicked for invocation %s: %v", invocation.InvocationID, r)
			if len(choices) < len(calls) {
				pending := calls[len(choices)]
				choices = append(choices, model.Choice{
					Index: len(choices),
					Message: model.NewToolMessage(
						pending.ID,
						pending.Function.Name,
						msgToolCriticalErrorPrefix+fmt.Sprint(r)+msgToolErrorSuffix,
						model.StatusError,
					),
				})
			}
			evt = f.newToolResponseEvent(invocation, choices)
		}
	}()

	for i, call := range calls {
		choices = append(choices, model.Choice{
			Index:   i,
			Message: f.callTool(ctx, invocation, call),
		})
	}
	return f.newToolResponseEvent(invocation, choices)
}

// callTool executes a single call. Failures become corrective tool messages
// with error status; they never abort the invocation.
func (f *Flow) callTool(
	ctx context.Context,
	invocation *agent.Invocation,
	call model.ToolCall,
) model.Message {
	name := call.Function.Name

	tl, ok := invocation.Tools[name]
	if !ok {
		log.Errorf("Tool %s not found (invocation=%s)", name, invocation.InvocationID)
		return correctiveMessage(call, fmt.Sprintf("инструмент %s не найден", name))
	}
	callable, ok := tl.(tool.CallableTool)
	if !ok {
		return correctiveMessage(call, fmt.Sprintf("инструмент %s нельзя вызвать", name))
	}

	ctx, span := telemetry.Tracer.Start(ctx, telemetry.ToolSpanName(name),
		oteltrace.WithAttributes(telemetry.KeyToolName.String(name)))
	defer span.End()

	log.Debugf("Executing tool %s with args: %s", name, string(call.Function.Arguments))
	result, err := callable.Call(ctx, call.Function.Arguments)
	if err != nil {
		log.Warnf("Tool %s failed: %v", name, err)
		return correctiveMessage(call, err.Error())
	}

	content, err := marshalToolResult(result)
	if err != nil {
		log.Errorf("Failed to marshal result of tool %s: %v", name, err)
		return correctiveMessage(call, "не удалось сериализовать результат")
	}
	return model.NewToolMessage(call.ID, name, content, model.StatusOK)
}

func (f *Flow) newToolResponseEvent(invocation *agent.Invocation, choices []model.Choice) *event.Event {
	return event.NewResponseEvent(invocation.InvocationID, invocation.AgentName, &model.Response{
		Object:    model.ObjectTypeToolResponse,
		Created:   time.Now().Unix(),
		Timestamp: time.Now(),
		Choices:   choices,
	})
}

func (f *Flow) roundsExhaustedEvent(invocation *agent.Invocation) *event.Event {
	return event.NewResponseEvent(invocation.InvocationID, invocation.AgentName, &model.Response{
		Object:    model.ObjectTypeChatCompletion,
		Created:   time.Now().Unix(),
		Timestamp: time.Now(),
		Done:      true,
		Choices: []model.Choice{{
			Message: model.NewAssistantMessage(MsgToolRoundsExhausted),
		}},
	})
}

func correctiveMessage(call model.ToolCall, detail string) model.Message {
	return model.NewToolMessage(
		call.ID,
		call.Function.Name,
		msgToolErrorPrefix+detail+"."+msgToolErrorSuffix,
		model.StatusError,
	)
}

// marshalToolResult renders a tool result as message content. Plain text
// results pass through unchanged so the model reads them verbatim.
func marshalToolResult(result any) (string, error) {
	switch v := result.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		data, err := json.Marshal(result)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func toolCallNames(calls []model.ToolCall) []string {
	names := make([]string, 0, len(calls))
	for _, call := range calls {
		names = append(names, call.Function.Name)
	}
	return names
}

func emitEvent(ctx context.Context, eventChan chan<- *event.Event, evt *event.Event) error {
	select {
	case eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
