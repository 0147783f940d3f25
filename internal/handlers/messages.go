package handlers

import (
	"encoding/json"

	"github.com/chatwire/chatwire/internal/domain"
)

// Inbound message types from the hosting page
const (
	MessageTypeConfigure    = "configure"
	MessageTypeChatMessage  = "chat_message"
	MessageTypeUpdateQueued = "update_queued_message"
	MessageTypeCancelQueued = "cancel_queued_message"
	MessageTypeToolResult   = "tool_result"
)

// Outbound message types to the hosting page
const (
	MessageTypeSessionReady = "session_ready"
	MessageTypeChatStart    = "chat_start"
	MessageTypeChunk        = "chunk"
	MessageTypeComplete     = "complete"
	MessageTypeToolCall     = "tool_call"
	MessageTypeQueued       = "queued"
	MessageTypeError        = "error"
)

// WSMessage is the envelope for every frame on the host boundary socket
type WSMessage struct {
	Type string `json:"type"`

	// configure; Stream defaults to true when omitted
	Model        string                  `json:"model,omitempty"`
	SystemPrompt string                  `json:"system_prompt,omitempty"`
	Tools        []domain.ToolDefinition `json:"tools,omitempty"`
	Stream       *bool                   `json:"stream,omitempty"`

	// chat_message / update_queued_message / queued / chunk / complete
	Text    string `json:"text,omitempty"`
	Content string `json:"content,omitempty"`

	// tool_result / tool_call
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Name       string          `json:"name,omitempty"`
	Arguments  json.RawMessage `json:"arguments,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`

	// session_ready
	SessionID string `json:"session_id,omitempty"`

	// complete
	FollowedToolExecution bool `json:"followed_tool_execution,omitempty"`

	// queued
	Cleared bool `json:"cleared,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}
