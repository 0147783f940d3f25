package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownToolCallID is returned when a tool result arrives with an
	// identifier that matches no pending execution. The turn fails visibly
	// but history is left untouched.
	ErrUnknownToolCallID = errors.New("tool result does not match any pending tool call")

	// ErrMissingToolCallID is returned when a tool result carries no usable
	// correlation identifier at all
	ErrMissingToolCallID = errors.New("tool result is missing a tool call identifier")

	// ErrNotAwaitingResults is returned when a tool result arrives while the
	// session has no suspended tool handshake
	ErrNotAwaitingResults = errors.New("session is not awaiting tool results")

	// ErrSessionClosed is returned when an operation targets a session whose
	// widget has already unmounted
	ErrSessionClosed = errors.New("session is closed")
)

// TransportError is a non-success HTTP status or stream abort from the backend
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend transport error: %v", e.Err)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// InvalidTransitionError marks an attempt to enter a state the current state
// does not allow
type InvalidTransitionError struct {
	From ConversationState
	To   ConversationState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid conversation state transition %s -> %s", e.From, e.To)
}
