package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdk "github.com/inference-gateway/sdk"
)

func TestClassifyToolResult(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		kind    ToolResultKind
		message string
		errText string
	}{
		{
			name:    "success with message is final",
			payload: `{"success":true,"message":"Your name is now Bob."}`,
			kind:    ToolResultFinal,
			message: "Your name is now Bob.",
		},
		{
			name:    "error envelope",
			payload: `{"error":"upstream down"}`,
			kind:    ToolResultError,
			errText: "upstream down",
		},
		{
			name:    "error wins over success",
			payload: `{"success":true,"message":"done","error":"but broken"}`,
			kind:    ToolResultError,
			errText: "but broken",
		},
		{
			name:    "success false is raw",
			payload: `{"success":false,"message":"nope"}`,
			kind:    ToolResultRaw,
		},
		{
			name:    "success without message is raw",
			payload: `{"success":true}`,
			kind:    ToolResultRaw,
		},
		{
			name:    "plain data object is raw",
			payload: `{"temperature":21.5,"unit":"C"}`,
			kind:    ToolResultRaw,
		},
		{
			name:    "array payload is raw",
			payload: `[1,2,3]`,
			kind:    ToolResultRaw,
		},
		{
			name:    "invalid json is raw",
			payload: `not json at all`,
			kind:    ToolResultRaw,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ClassifyToolResult("call_1", json.RawMessage(tt.payload))
			assert.Equal(t, "call_1", result.ToolCallID)
			assert.Equal(t, tt.kind, result.Kind)
			assert.Equal(t, tt.message, result.Message)
			assert.Equal(t, tt.errText, result.Error)
			assert.Equal(t, tt.payload, string(result.Payload))
		})
	}
}

func TestPendingResolveIsIdempotent(t *testing.T) {
	pending := &PendingToolExecution{ToolCallID: "call_1", Name: "lookup"}
	assert.False(t, pending.Resolved())

	first := ToolResult{ToolCallID: "call_1", Kind: ToolResultRaw, Payload: json.RawMessage(`{"a":1}`)}
	assert.True(t, pending.Resolve(first))
	assert.True(t, pending.Resolved())

	// a duplicate delivery cannot rewrite the recorded result
	second := ToolResult{ToolCallID: "call_1", Kind: ToolResultError, Error: "late duplicate"}
	assert.False(t, pending.Resolve(second))
	require.NotNil(t, pending.Result)
	assert.Equal(t, ToolResultRaw, pending.Result.Kind)
}

func TestToolDefinitionToSDK(t *testing.T) {
	def := ToolDefinition{
		Name:        "update_name",
		Description: "Update the user's display name",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
			},
		},
	}

	tool := def.ToSDK()
	assert.Equal(t, sdk.Function, tool.Type)
	assert.Equal(t, "update_name", tool.Function.Name)
	require.NotNil(t, tool.Function.Description)
	assert.Equal(t, "Update the user's display name", *tool.Function.Description)
	require.NotNil(t, tool.Function.Parameters)
	assert.Equal(t, "object", (*tool.Function.Parameters)["type"])
}

func TestToolDefinitionWithoutParameters(t *testing.T) {
	tool := ToolDefinition{Name: "noop"}.ToSDK()
	assert.Nil(t, tool.Function.Parameters)
}

func TestToSDKToolsEmptyIsNil(t *testing.T) {
	assert.Nil(t, ToSDKTools(nil))
	assert.Nil(t, ToSDKTools([]ToolDefinition{}))

	tools := ToSDKTools([]ToolDefinition{{Name: "a"}, {Name: "b"}})
	require.NotNil(t, tools)
	require.Len(t, *tools, 2)
	assert.Equal(t, "a", (*tools)[0].Function.Name)
	assert.Equal(t, "b", (*tools)[1].Function.Name)
}

func TestMessageText(t *testing.T) {
	msg := sdk.Message{Role: sdk.User, Content: sdk.NewMessageContent("hello")}
	assert.Equal(t, "hello", MessageText(msg))

	assert.Empty(t, MessageText(sdk.Message{Role: sdk.User}))
}
