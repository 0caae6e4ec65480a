//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

package llmflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pravobot/pravobot/agent"
	"github.com/pravobot/pravobot/event"
	"github.com/pravobot/pravobot/model"
	"github.com/pravobot/pravobot/tool"
)

// scriptedModel returns one pre-built response batch per GenerateContent
// call. When the script runs out it repeats the last batch, which lets a
// test model "always request tools" without an unbounded script.
type scriptedModel struct {
	batches [][]*model.Response
	calls   int
}

func (m *scriptedModel) GenerateContent(ctx context.Context, req *model.Request) (<-chan *model.Response, error) {
	idx := m.calls
	if idx >= len(m.batches) {
		idx = len(m.batches) - 1
	}
	m.calls++

	ch := make(chan *model.Response, len(m.batches[idx]))
	for _, rsp := range m.batches[idx] {
		ch <- rsp.Clone()
	}
	close(ch)
	return ch, nil
}

func (m *scriptedModel) Info() model.Info { return model.Info{Name: "scripted"} }

// fakeTool executes an injected function under a fixed declaration.
type fakeTool struct {
	name string
	fn   func(ctx context.Context, args []byte) (any, error)
}

func (t *fakeTool) Declaration() *tool.Declaration {
	return &tool.Declaration{Name: t.name, InputSchema: &tool.Schema{Type: "object"}}
}

func (t *fakeTool) Call(ctx context.Context, args []byte) (any, error) {
	return t.fn(ctx, args)
}

func finalAnswer(text string) *model.Response {
	return &model.Response{
		Object: model.ObjectTypeChatCompletion,
		Done:   true,
		Choices: []model.Choice{{
			Message: model.NewAssistantMessage(text),
		}},
	}
}

func toolCallResponse(callID, toolName, args string) *model.Response {
	return &model.Response{
		Object: model.ObjectTypeChatCompletion,
		Done:   true,
		Choices: []model.Choice{{
			Message: model.Message{
				Role: model.RoleAssistant,
				ToolCalls: []model.ToolCall{{
					Type: "function",
					ID:   callID,
					Function: model.FunctionDefinitionParam{
						Name:      toolName,
						Arguments: []byte(args),
					},
				}},
			},
		}},
	}
}

func newInvocation(m model.Model, tools map[string]tool.Tool) *agent.Invocation {
	inv := agent.NewInvocation("pravobot", "user-1")
	inv.Model = m
	inv.Tools = tools
	inv.Messages = []model.Message{model.NewUserMessage("вопрос")}
	return inv
}

func collect(t *testing.T, ch <-chan *event.Event) []*event.Event {
	t.Helper()
	var events []*event.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, evt)
		case <-timeout:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestRunRejectsNilInvocation(t *testing.T) {
	_, err := New().Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestRunRejectsMissingModel(t *testing.T) {
	inv := agent.NewInvocation("pravobot", "user-1")
	_, err := New().Run(context.Background(), inv)
	assert.Error(t, err)
}

func TestRunPlainAnswer(t *testing.T) {
	m := &scriptedModel{batches: [][]*model.Response{
		{finalAnswer("Готовый ответ.")},
	}}
	inv := newInvocation(m, nil)

	ch, err := New().Run(context.Background(), inv)
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 1)
	assert.True(t, events[0].IsFinalResponse())
	assert.Equal(t, "Готовый ответ.", events[0].Response.Choices[0].Message.Content)
	assert.Equal(t, 1, m.calls)
}

func TestRunToolRoundThenAnswer(t *testing.T) {
	echo := &fakeTool{name: "echo", fn: func(ctx context.Context, args []byte) (any, error) {
		return "результат инструмента", nil
	}}
	m := &scriptedModel{batches: [][]*model.Response{
		{toolCallResponse("call_1", "echo", `{}`)},
		{finalAnswer("Итоговый ответ.")},
	}}
	inv := newInvocation(m, map[string]tool.Tool{"echo": echo})

	ch, err := New().Run(context.Background(), inv)
	require.NoError(t, err)
	events := collect(t, ch)

	// Model response, tool start marker, tool response, final answer.
	require.Len(t, events, 4)
	assert.Equal(t, model.ObjectTypeToolStart, events[1].Response.Object)
	assert.Equal(t, []string{"echo"}, events[1].ToolNames)

	toolEvent := events[2]
	assert.Equal(t, model.ObjectTypeToolResponse, toolEvent.Response.Object)
	require.Len(t, toolEvent.Response.Choices, 1)
	msg := toolEvent.Response.Choices[0].Message
	assert.Equal(t, "call_1", msg.ToolID)
	assert.Equal(t, model.StatusOK, msg.Status)
	assert.Equal(t, "результат инструмента", msg.Content)

	assert.True(t, events[3].IsFinalResponse())
	assert.Equal(t, 2, m.calls)

	// The assistant tool request and the tool result were recorded so the
	// second call saw them: user + assistant + tool.
	require.Len(t, inv.Messages, 3)
	assert.Equal(t, model.RoleAssistant, inv.Messages[1].Role)
	assert.Equal(t, model.RoleTool, inv.Messages[2].Role)
}

func TestRunToolErrorBecomesCorrectiveMessage(t *testing.T) {
	broken := &fakeTool{name: "broken", fn: func(ctx context.Context, args []byte) (any, error) {
		return nil, errors.New("bad arguments")
	}}
	m := &scriptedModel{batches: [][]*model.Response{
		{toolCallResponse("call_1", "broken", `{`)},
		{finalAnswer("Ответ после ошибки.")},
	}}
	inv := newInvocation(m, map[string]tool.Tool{"broken": broken})

	ch, err := New().Run(context.Background(), inv)
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 4)
	msg := events[2].Response.Choices[0].Message
	assert.Equal(t, model.StatusError, msg.Status)
	assert.Contains(t, msg.Content, "Ошибка вызова функции: ")
	assert.Contains(t, msg.Content, "bad arguments")
	assert.Contains(t, msg.Content, "Проверь аргументы и верни корректный JSON.")
	assert.True(t, events[3].IsFinalResponse())
}

func TestRunUnknownToolBecomesCorrectiveMessage(t *testing.T) {
	m := &scriptedModel{batches: [][]*model.Response{
		{toolCallResponse("call_1", "missing", `{}`)},
		{finalAnswer("Ответ.")},
	}}
	inv := newInvocation(m, map[string]tool.Tool{})

	ch, err := New().Run(context.Background(), inv)
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 4)
	msg := events[2].Response.Choices[0].Message
	assert.Equal(t, model.StatusError, msg.Status)
	assert.Contains(t, msg.Content, "инструмент missing не найден")
}

func TestRunToolPanicBecomesCriticalMessage(t *testing.T) {
	panicky := &fakeTool{name: "panicky", fn: func(ctx context.Context, args []byte) (any, error) {
		panic("nil map write")
	}}
	m := &scriptedModel{batches: [][]*model.Response{
		{toolCallResponse("call_1", "panicky", `{}`)},
		{finalAnswer("Ответ после паники.")},
	}}
	inv := newInvocation(m, map[string]tool.Tool{"panicky": panicky})

	ch, err := New().Run(context.Background(), inv)
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 4)
	msg := events[2].Response.Choices[0].Message
	assert.Equal(t, "call_1", msg.ToolID)
	assert.Equal(t, model.StatusError, msg.Status)
	assert.Contains(t, msg.Content, "Ошибка вызова функции (Critical): ")
	assert.Contains(t, msg.Content, "nil map write")

	// The invocation survives the panic and the loop still reaches the
	// final answer.
	assert.True(t, events[3].IsFinalResponse())
}

func TestRunPanicKeepsCallResultPairing(t *testing.T) {
	okTool := &fakeTool{name: "ok", fn: func(ctx context.Context, args []byte) (any, error) {
		return "готово", nil
	}}
	panicky := &fakeTool{name: "panicky", fn: func(ctx context.Context, args []byte) (any, error) {
		panic("boom")
	}}

	first := toolCallResponse("call_1", "ok", `{}`)
	first.Choices[0].Message.ToolCalls = append(first.Choices[0].Message.ToolCalls, model.ToolCall{
		Type:     "function",
		ID:       "call_2",
		Function: model.FunctionDefinitionParam{Name: "panicky", Arguments: []byte(`{}`)},
	})

	m := &scriptedModel{batches: [][]*model.Response{
		{first},
		{finalAnswer("Ответ.")},
	}}
	inv := newInvocation(m, map[string]tool.Tool{"ok": okTool, "panicky": panicky})

	ch, err := New().Run(context.Background(), inv)
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 4)
	choices := events[2].Response.Choices
	require.Len(t, choices, 2)
	assert.Equal(t, "call_1", choices[0].Message.ToolID)
	assert.Equal(t, model.StatusOK, choices[0].Message.Status)
	assert.Equal(t, "call_2", choices[1].Message.ToolID)
	assert.Contains(t, choices[1].Message.Content, "Ошибка вызова функции (Critical): ")
}

func TestRunRoundCeiling(t *testing.T) {
	looping := &fakeTool{name: "loop", fn: func(ctx context.Context, args []byte) (any, error) {
		return "ещё раз", nil
	}}
	// The single batch repeats, so the model requests a tool on every round.
	m := &scriptedModel{batches: [][]*model.Response{
		{toolCallResponse("call_1", "loop", `{}`)},
	}}
	inv := newInvocation(m, map[string]tool.Tool{"loop": looping})

	ch, err := New(WithMaxToolRounds(3)).Run(context.Background(), inv)
	require.NoError(t, err)
	events := collect(t, ch)

	assert.Equal(t, 3, m.calls)
	last := events[len(events)-1]
	assert.True(t, last.IsFinalResponse())
	assert.Equal(t, MsgToolRoundsExhausted, last.Response.Choices[0].Message.Content)
}

func TestRunModelErrorEndsInvocation(t *testing.T) {
	m := &scriptedModel{batches: [][]*model.Response{
		{{
			Object: model.ObjectTypeError,
			Done:   true,
			Error:  &model.ResponseError{Message: "upstream down", Type: model.ErrorTypeAPIError},
		}},
	}}
	inv := newInvocation(m, nil)

	ch, err := New().Run(context.Background(), inv)
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 1)
	require.NotNil(t, events[0].Response.Error)
	assert.Equal(t, "upstream down", events[0].Response.Error.Message)
	assert.True(t, inv.EndInvocation)
	assert.Equal(t, 1, m.calls)
}

func TestRunStringerAndJSONResults(t *testing.T) {
	type payload struct {
		Value int `json:"value"`
	}
	jsonTool := &fakeTool{name: "json_tool", fn: func(ctx context.Context, args []byte) (any, error) {
		return payload{Value: 42}, nil
	}}
	m := &scriptedModel{batches: [][]*model.Response{
		{toolCallResponse("call_1", "json_tool", `{}`)},
		{finalAnswer("Ответ.")},
	}}
	inv := newInvocation(m, map[string]tool.Tool{"json_tool": jsonTool})

	ch, err := New().Run(context.Background(), inv)
	require.NoError(t, err)
	events := collect(t, ch)

	require.Len(t, events, 4)
	assert.JSONEq(t, `{"value": 42}`, events[2].Response.Choices[0].Message.Content)
}

func TestMarshalToolResult(t *testing.T) {
	text, err := marshalToolResult("plain")
	require.NoError(t, err)
	assert.Equal(t, "plain", text)

	text, err = marshalToolResult(stringerResult{})
	require.NoError(t, err)
	assert.Equal(t, "via stringer", text)

	text, err = marshalToolResult(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n": 1}`, text)

	_, err = marshalToolResult(func() {})
	assert.Error(t, err)
}

type stringerResult struct{}

func (stringerResult) String() string { return "via stringer" }

func TestRunContextCancellation(t *testing.T) {
	blocked := &fakeTool{name: "slow", fn: func(ctx context.Context, args []byte) (any, error) {
		return "медленно", nil
	}}
	m := &scriptedModel{batches: [][]*model.Response{
		{toolCallResponse(fmt.Sprintf("call_%d", 1), "slow", `{}`)},
	}}
	inv := newInvocation(m, map[string]tool.Tool{"slow": blocked})

	ctx, cancel := context.WithCancel(context.Background())
	// Unbuffered channel: the first emit blocks until the reader is gone,
	// then the cancellation unblocks and closes it without an error event.
	ch, err := New(WithChannelBufferSize(1)).Run(ctx, inv)
	require.NoError(t, err)

	cancel()
	events := collect(t, ch)
	for _, evt := range events {
		if evt.Response != nil && evt.Response.Error != nil {
			assert.NotEqual(t, model.ErrorTypeFlowError, evt.Response.Error.Type,
				"cancellation must not surface as a flow error")
		}
	}
}
