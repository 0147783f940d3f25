package domain

import (
	"encoding/json"
	"time"

	sdk "github.com/inference-gateway/sdk"
)

// ToolResultKind classifies an inbound tool result from the host boundary
type ToolResultKind int

const (
	// ToolResultRaw carries arbitrary JSON data that requires a further model
	// round-trip before the user sees anything
	ToolResultRaw ToolResultKind = iota

	// ToolResultFinal carries a pre-formed natural-language message that is
	// displayed as-is without another model call
	ToolResultFinal

	// ToolResultError indicates the host failed to execute the tool
	ToolResultError
)

// ToolResult is a correlated answer to a previously dispatched tool call
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	Kind       ToolResultKind  `json:"-"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// ClassifyToolResult decides how a raw host payload should be treated.
// A `{"success": true, "message": "..."}` object is final, a `{"error": "..."}`
// object is an execution failure, anything else is raw data for the model.
func ClassifyToolResult(toolCallID string, payload json.RawMessage) ToolResult {
	var envelope struct {
		Success *bool   `json:"success"`
		Message string  `json:"message"`
		Error   *string `json:"error"`
	}

	if err := json.Unmarshal(payload, &envelope); err == nil {
		if envelope.Error != nil {
			return ToolResult{ToolCallID: toolCallID, Kind: ToolResultError, Error: *envelope.Error, Payload: payload}
		}
		if envelope.Success != nil && *envelope.Success && envelope.Message != "" {
			return ToolResult{ToolCallID: toolCallID, Kind: ToolResultFinal, Message: envelope.Message, Payload: payload}
		}
	}

	return ToolResult{ToolCallID: toolCallID, Kind: ToolResultRaw, Payload: payload}
}

// PendingToolExecution tracks one dispatched tool call awaiting its host result
type PendingToolExecution struct {
	ToolCallID  string
	Name        string
	Arguments   string
	RequestedAt time.Time
	ResolvedAt  *time.Time
	Result      *ToolResult
}

// Resolved reports whether a correlated result has arrived
func (p *PendingToolExecution) Resolved() bool {
	return p.ResolvedAt != nil
}

// Resolve records the correlated result. Resolving twice is a no-op so a
// duplicate delivery from the host cannot rewrite an answered execution.
func (p *PendingToolExecution) Resolve(result ToolResult) bool {
	if p.Resolved() {
		return false
	}
	now := time.Now()
	p.ResolvedAt = &now
	p.Result = &result
	return true
}

// QueuedUserMessage is the single slot for input that arrived while a turn
// was in flight. It stays editable until the machine returns to idle.
type QueuedUserMessage struct {
	Text     string
	QueuedAt time.Time
}

// ToolCallRequest is the outbound half of the dispatch handshake: a request
// for the host to execute a named tool, tagged with a correlation identifier.
type ToolCallRequest struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments"`
}

// ToolDefinition is a host-declared tool the model may invoke
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToSDK converts a definition to the wire shape sent to the backend
func (t ToolDefinition) ToSDK() sdk.ChatCompletionTool {
	description := t.Description
	tool := sdk.ChatCompletionTool{
		Type: sdk.Function,
		Function: sdk.FunctionObject{
			Name:        t.Name,
			Description: &description,
		},
	}
	if t.Parameters != nil {
		parameters := sdk.FunctionParameters(t.Parameters)
		tool.Function.Parameters = &parameters
	}
	return tool
}

// ToSDKTools converts a set of definitions, returning nil for an empty set so
// the request body omits the tools array entirely
func ToSDKTools(defs []ToolDefinition) *[]sdk.ChatCompletionTool {
	if len(defs) == 0 {
		return nil
	}
	tools := make([]sdk.ChatCompletionTool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, def.ToSDK())
	}
	return &tools
}

// MessageText extracts the plain-text content of a message, tolerating the
// structured content variant by treating it as empty
func MessageText(msg sdk.Message) string {
	text, err := msg.Content.AsMessageContent0()
	if err != nil {
		return ""
	}
	return text
}
