package engine

import (
	"time"

	sdk "github.com/inference-gateway/sdk"

	"github.com/chatwire/chatwire/internal/domain"
)

// Session is the aggregate owned by one embedded widget instance: the ordered
// message history, the conversation state, the single queued-message slot and
// the pending tool executions of the current turn. It is destroyed when the
// widget unmounts.
//
// Session is not safe for concurrent use; the owning Engine serializes all
// access.
type Session struct {
	ID      string
	state   domain.ConversationState
	history []sdk.Message
	queued  *domain.QueuedUserMessage
	pending map[string]*domain.PendingToolExecution
}

// NewSession creates an idle session, seeding the history with a system
// message when a system prompt is configured
func NewSession(id string, systemPrompt string) *Session {
	s := &Session{
		ID:      id,
		state:   domain.StateIdle,
		pending: make(map[string]*domain.PendingToolExecution),
	}
	if systemPrompt != "" {
		s.history = append(s.history, sdk.Message{
			Role:    sdk.System,
			Content: sdk.NewMessageContent(systemPrompt),
		})
	}
	return s
}

// State returns the current conversation state
func (s *Session) State() domain.ConversationState {
	return s.state
}

// History returns a copy of the message history
func (s *Session) History() []sdk.Message {
	history := make([]sdk.Message, len(s.history))
	copy(history, s.history)
	return history
}

// Append adds a frozen message to the history. Messages are appended strictly
// in the order operations complete and never mutated afterwards.
func (s *Session) Append(msg sdk.Message) {
	s.history = append(s.history, msg)
}

// SetQueued fills the queued-message slot, replacing any previous occupant
// outright (last-write-wins)
func (s *Session) SetQueued(text string) *domain.QueuedUserMessage {
	s.queued = &domain.QueuedUserMessage{Text: text, QueuedAt: time.Now()}
	return s.queued
}

// Queued returns the queued message, if any
func (s *Session) Queued() *domain.QueuedUserMessage {
	return s.queued
}

// TakeQueued consumes and clears the queued-message slot
func (s *Session) TakeQueued() *domain.QueuedUserMessage {
	queued := s.queued
	s.queued = nil
	return queued
}

// ClearQueued withdraws the queued message without sending it
func (s *Session) ClearQueued() {
	s.queued = nil
}

// AddPending registers a dispatched tool call awaiting its host result
func (s *Session) AddPending(call sdk.ChatCompletionMessageToolCall) *domain.PendingToolExecution {
	pending := &domain.PendingToolExecution{
		ToolCallID:  call.Id,
		Name:        call.Function.Name,
		Arguments:   call.Function.Arguments,
		RequestedAt: time.Now(),
	}
	s.pending[call.Id] = pending
	return pending
}

// Pending looks up a pending execution by its correlation identifier
func (s *Session) Pending(toolCallID string) (*domain.PendingToolExecution, bool) {
	pending, ok := s.pending[toolCallID]
	return pending, ok
}

// AllPendingResolved reports whether every dispatched call of the current
// turn has received its result
func (s *Session) AllPendingResolved() bool {
	for _, pending := range s.pending {
		if !pending.Resolved() {
			return false
		}
	}
	return true
}

// ClearPending drops the current turn's executions, returning the ones that
// never resolved so the caller can log their abandonment
func (s *Session) ClearPending() []*domain.PendingToolExecution {
	var unresolved []*domain.PendingToolExecution
	for _, pending := range s.pending {
		if !pending.Resolved() {
			unresolved = append(unresolved, pending)
		}
	}
	s.pending = make(map[string]*domain.PendingToolExecution)
	return unresolved
}
