//
// Copyright (C) 2026 pravobot authors. All rights reserved.
//
// pravobot is licensed under the Apache License Version 2.0.
//
//

package function

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInput struct {
	Text  string `json:"text" jsonschema:"description=Текст для повтора"`
	Times int    `json:"times,omitempty"`
}

type echoOutput struct {
	Result string `json:"result"`
}

func echo(ctx context.Context, in echoInput) (echoOutput, error) {
	if in.Times < 0 {
		return echoOutput{}, errors.New("times must be non-negative")
	}
	out := ""
	for i := 0; i < in.Times; i++ {
		out += in.Text
	}
	return echoOutput{Result: out}, nil
}

func TestFunctionToolCall(t *testing.T) {
	tl := NewFunctionTool(echo, WithName("echo"), WithDescription("repeats text"))

	result, err := tl.Call(context.Background(), []byte(`{"text": "ab", "times": 2}`))
	require.NoError(t, err)

	out, ok := result.(echoOutput)
	require.True(t, ok)
	assert.Equal(t, "abab", out.Result)
}

func TestFunctionToolCallInvalidJSON(t *testing.T) {
	tl := NewFunctionTool(echo, WithName("echo"))

	_, err := tl.Call(context.Background(), []byte(`{"times": "three"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "echo")
}

func TestFunctionToolCallPropagatesError(t *testing.T) {
	tl := NewFunctionTool(echo, WithName("echo"))

	_, err := tl.Call(context.Background(), []byte(`{"text": "x", "times": -1}`))
	require.Error(t, err)
}

func TestFunctionToolDeclaration(t *testing.T) {
	tl := NewFunctionTool(echo, WithName("echo"), WithDescription("repeats text"))

	decl := tl.Declaration()
	require.NotNil(t, decl)
	assert.Equal(t, "echo", decl.Name)
	assert.Equal(t, "repeats text", decl.Description)
	require.NotNil(t, decl.InputSchema)
	assert.Equal(t, "object", decl.InputSchema.Type)
}

func TestGenerateJSONSchema(t *testing.T) {
	schema := GenerateJSONSchema(reflect.TypeOf(echoInput{}))
	require.NotNil(t, schema)
	assert.Equal(t, "object", schema.Type)

	text, ok := schema.Properties["text"]
	require.True(t, ok)
	assert.Equal(t, "string", text.Type)
	assert.Equal(t, "Текст для повтора", text.Description)

	times, ok := schema.Properties["times"]
	require.True(t, ok)
	assert.Equal(t, "integer", times.Type)

	// Fields without omitempty are required.
	assert.Contains(t, schema.Required, "text")
	assert.NotContains(t, schema.Required, "times")
}
