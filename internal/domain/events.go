package domain

import (
	"time"

	sdk "github.com/inference-gateway/sdk"
)

// ChatEvent is the outbound notification stream consumed by the host boundary
type ChatEvent interface {
	GetSessionID() string
	GetTimestamp() time.Time
}

// BaseChatEvent provides the common ChatEvent implementation
type BaseChatEvent struct {
	SessionID string
	Timestamp time.Time
}

func (e BaseChatEvent) GetSessionID() string    { return e.SessionID }
func (e BaseChatEvent) GetTimestamp() time.Time { return e.Timestamp }

// ChatStartEvent indicates a model request has started
type ChatStartEvent struct {
	BaseChatEvent
	Model string
}

// ChatChunkEvent carries one incremental fragment of visible assistant text
type ChatChunkEvent struct {
	BaseChatEvent
	Content string
}

// ChatCompleteEvent indicates the assistant produced a final textual reply.
// FollowedToolExecution distinguishes a reply that concludes a tool handshake
// from a plain conversational reply; the boundary uses it to decide whether
// to surface a notification.
type ChatCompleteEvent struct {
	BaseChatEvent
	Content               string
	FollowedToolExecution bool
}

// ChatErrorEvent surfaces a failure as a short inline transcript message
type ChatErrorEvent struct {
	BaseChatEvent
	Err error
}

// ToolCallsDetectedEvent reports the tool calls a finished turn produced,
// whether they arrived as structured deltas or were extracted from free text
type ToolCallsDetectedEvent struct {
	BaseChatEvent
	ToolCalls []sdk.ChatCompletionMessageToolCall
}

// QueueChangedEvent reports the queued-message slot being filled, replaced,
// edited or cleared
type QueueChangedEvent struct {
	BaseChatEvent
	Queued *QueuedUserMessage
}

// StateChangedEvent reports a conversation state transition
type StateChangedEvent struct {
	BaseChatEvent
	From ConversationState
	To   ConversationState
}
