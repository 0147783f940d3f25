package domain

// ConversationState is the explicit state of one conversation session.
// The enum replaces the busy-boolean-plus-queued-field arrangement so that
// illegal combinations such as "sending while already sending" cannot be
// represented.
type ConversationState int

const (
	// StateIdle means no request is in flight and user input is sent immediately
	StateIdle ConversationState = iota

	// StateSending means an outbound request is being built and issued
	StateSending

	// StateStreaming means the backend reply is being consumed incrementally
	StateStreaming

	// StateToolCallsPending means the stream finished with tool calls that are
	// being validated and dispatched
	StateToolCallsPending

	// StateAwaitingToolResults means the session is suspended on the host
	// executor; there is no enforced timeout on this wait
	StateAwaitingToolResults

	// StateFailed is a transient error state that always returns to idle
	StateFailed
)

func (s ConversationState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateSending:
		return "Sending"
	case StateStreaming:
		return "Streaming"
	case StateToolCallsPending:
		return "ToolCallsPending"
	case StateAwaitingToolResults:
		return "AwaitingToolResults"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Busy reports whether new user input must be queued instead of sent
func (s ConversationState) Busy() bool {
	return s != StateIdle
}

// validTransitions maps each state to the states it may legally enter
var validTransitions = map[ConversationState][]ConversationState{
	StateIdle:                {StateSending},
	StateSending:             {StateStreaming, StateFailed},
	StateStreaming:           {StateIdle, StateToolCallsPending, StateFailed},
	StateToolCallsPending:    {StateAwaitingToolResults, StateFailed},
	StateAwaitingToolResults: {StateIdle, StateSending, StateFailed},
	StateFailed:              {StateIdle},
}

// CanTransition reports whether moving from s to target is legal
func (s ConversationState) CanTransition(target ConversationState) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}
