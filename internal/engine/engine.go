// Package engine implements the conversation state machine: it owns the
// message history, sequences model requests through the chunk decoder and
// tool-call accumulator, and runs the correlated tool handshake with the
// host executor.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	sdk "github.com/inference-gateway/sdk"

	"github.com/chatwire/chatwire/internal/adapters"
	"github.com/chatwire/chatwire/internal/bridge"
	"github.com/chatwire/chatwire/internal/domain"
	"github.com/chatwire/chatwire/internal/logger"
	"github.com/chatwire/chatwire/internal/stream"
	"github.com/chatwire/chatwire/internal/tooldetect"
)

// Backend is the model-client surface the engine consumes: a streaming
// request for incremental replies and a single-shot request for hosts that
// opted out of streaming
type Backend interface {
	Stream(ctx context.Context, model string, messages []sdk.Message, tools *[]sdk.ChatCompletionTool) (io.ReadCloser, error)
	Generate(ctx context.Context, model string, messages []sdk.Message, tools *[]sdk.ChatCompletionTool) (*sdk.CreateChatCompletionResponse, error)
}

// Options configures one engine instance. NonStreaming switches a session to
// single-shot completions for hosts that cannot consume incremental output.
type Options struct {
	SessionID    string
	Model        string
	SystemPrompt string
	Tools        []domain.ToolDefinition
	Backend      Backend
	Registry     *adapters.Registry
	Dispatch     *bridge.EngineEndpoint
	Timeout      time.Duration
	EventBuffer  int
	NonStreaming bool
}

// Engine drives one conversation session. All session mutation happens under
// a single mutex; the busy state is the sole mutual exclusion for model
// requests, so at most one request is in flight per session.
type Engine struct {
	model        string
	tools        []domain.ToolDefinition
	backend      Backend
	registry     *adapters.Registry
	dispatch     *bridge.EngineEndpoint
	timeout      time.Duration
	nonStreaming bool

	events chan domain.ChatEvent
	done   chan struct{}

	mu      sync.Mutex
	session *Session
	closed  bool
}

// New creates an engine for a fresh session and starts listening for tool
// results on the dispatch bridge
func New(opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 128
	}

	e := &Engine{
		model:        opts.Model,
		tools:        opts.Tools,
		backend:      opts.Backend,
		registry:     opts.Registry,
		dispatch:     opts.Dispatch,
		timeout:      opts.Timeout,
		nonStreaming: opts.NonStreaming,
		events:       make(chan domain.ChatEvent, opts.EventBuffer),
		done:         make(chan struct{}),
		session:      NewSession(opts.SessionID, opts.SystemPrompt),
	}

	if e.dispatch != nil {
		e.dispatch.OnReceive(func(result bridge.RawResult) {
			_ = e.HandleToolResult(result.ToolCallID, result.Payload)
		})
	}

	return e
}

// Events is the outbound notification stream for the host boundary
func (e *Engine) Events() <-chan domain.ChatEvent {
	return e.events
}

// Done is closed when the engine shuts down; event consumers select on it
// since the event channel itself is never closed
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// State returns the current conversation state
func (e *Engine) State() domain.ConversationState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.State()
}

// History returns a copy of the session history
func (e *Engine) History() []sdk.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.History()
}

// QueuedMessage returns the current queued user message, if any
func (e *Engine) QueuedMessage() *domain.QueuedUserMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Queued()
}

// Close shuts the engine down. In-flight work stops delivering events; the
// session dies with the widget.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.done)
}

// SendMessage accepts user input as if typed into the widget. When the
// session is busy the input lands in the single queued slot, replacing any
// previous occupant; otherwise a new turn starts immediately. There is no
// mid-stream cancellation: new input never preempts an in-flight turn.
func (e *Engine) SendMessage(text string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return domain.ErrSessionClosed
	}

	if e.session.State().Busy() {
		queued := e.session.SetQueued(text)
		e.mu.Unlock()
		logger.Debug("queued user message while busy", "session", e.sessionID())
		e.publish(domain.QueueChangedEvent{BaseChatEvent: e.base(), Queued: queued})
		return nil
	}

	e.session.Append(userMessage(text))
	if err := e.transitionLocked(domain.StateSending); err != nil {
		e.mu.Unlock()
		return err
	}
	e.mu.Unlock()

	go e.runTurn(false)
	return nil
}

// UpdateQueuedMessage edits the queued message before it is sent
func (e *Engine) UpdateQueuedMessage(text string) error {
	e.mu.Lock()
	if e.session.Queued() == nil {
		e.mu.Unlock()
		return errors.New("no queued message to update")
	}
	queued := e.session.SetQueued(text)
	e.mu.Unlock()

	e.publish(domain.QueueChangedEvent{BaseChatEvent: e.base(), Queued: queued})
	return nil
}

// WithdrawQueuedMessage clears the queued slot without sending
func (e *Engine) WithdrawQueuedMessage() {
	e.mu.Lock()
	e.session.ClearQueued()
	e.mu.Unlock()

	e.publish(domain.QueueChangedEvent{BaseChatEvent: e.base()})
}

// HandleToolResult delivers a correlated result from the host executor. A
// result without a usable identifier, or with an identifier matching no
// pending execution, is a hard error for the current turn only: a visible
// error is surfaced and history is left untouched.
func (e *Engine) HandleToolResult(toolCallID string, payload json.RawMessage) error {
	e.mu.Lock()

	if e.closed {
		e.mu.Unlock()
		return domain.ErrSessionClosed
	}
	if e.session.State() != domain.StateAwaitingToolResults {
		e.mu.Unlock()
		e.publishError(domain.ErrNotAwaitingResults)
		return domain.ErrNotAwaitingResults
	}
	if toolCallID == "" {
		e.mu.Unlock()
		e.publishError(domain.ErrMissingToolCallID)
		return domain.ErrMissingToolCallID
	}

	pending, ok := e.session.Pending(toolCallID)
	if !ok {
		e.mu.Unlock()
		logger.Warn("tool result with unknown correlation id", "session", e.sessionID(), "tool_call_id", toolCallID)
		e.publishError(domain.ErrUnknownToolCallID)
		return domain.ErrUnknownToolCallID
	}

	result := domain.ClassifyToolResult(toolCallID, payload)
	if !pending.Resolve(result) {
		e.mu.Unlock()
		logger.Warn("duplicate tool result ignored", "session", e.sessionID(), "tool_call_id", toolCallID)
		return nil
	}

	logger.Debug("tool result resolved",
		"session", e.sessionID(),
		"tool_call_id", toolCallID,
		"tool", pending.Name,
		"kind", result.Kind)

	switch result.Kind {
	case domain.ToolResultFinal:
		e.finishWithFinalResult(result)
	default:
		e.continueWithToolMessage(result)
	}
	return nil
}

// finishWithFinalResult appends the pre-formed natural-language message as
// the assistant's reply and returns to idle without a further model
// round-trip. Other unresolved executions of the turn are abandoned.
// Called with the mutex held; releases it.
func (e *Engine) finishWithFinalResult(result domain.ToolResult) {
	e.session.Append(sdk.Message{
		Role:    sdk.Assistant,
		Content: sdk.NewMessageContent(result.Message),
	})

	for _, abandoned := range e.session.ClearPending() {
		logger.Warn("abandoning unresolved tool call after final result",
			"session", e.sessionID(),
			"tool_call_id", abandoned.ToolCallID,
			"tool", abandoned.Name)
	}

	e.idleAndDrainQueueLocked(result.Message, true)
}

// continueWithToolMessage appends a tool message carrying the result and, once
// every execution of the turn resolved, re-enters sending so the model can
// ground a final answer in the tool output. Called with the mutex held;
// releases it.
func (e *Engine) continueWithToolMessage(result domain.ToolResult) {
	toolCallID := result.ToolCallID
	e.session.Append(sdk.Message{
		Role:       sdk.Tool,
		Content:    sdk.NewMessageContent(string(result.Payload)),
		ToolCallId: &toolCallID,
	})

	if !e.session.AllPendingResolved() {
		e.mu.Unlock()
		return
	}

	e.session.ClearPending()
	if err := e.transitionLocked(domain.StateSending); err != nil {
		e.failTurnLocked(err)
		return
	}
	e.mu.Unlock()

	go e.runTurn(true)
}

// runTurn issues one model request and consumes its streamed reply. It is
// entered from idle user input, from a queued message, and from a completed
// tool handshake.
func (e *Engine) runTurn(followedTools bool) {
	e.mu.Lock()
	adapter := e.registry.ForModel(e.model)
	messages, tools := adapter.Preprocess(e.session.History(), e.tools)
	model := e.model
	e.mu.Unlock()

	e.publish(domain.ChatStartEvent{BaseChatEvent: e.base(), Model: model})

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	if e.nonStreaming {
		e.runSingleShot(ctx, adapter, model, messages, tools, followedTools)
		return
	}

	body, err := e.backend.Stream(ctx, model, messages, tools)
	if err != nil {
		e.mu.Lock()
		e.failTurnLocked(err)
		return
	}
	defer func() {
		_ = body.Close()
	}()

	e.mu.Lock()
	if err := e.transitionLocked(domain.StateStreaming); err != nil {
		e.failTurnLocked(err)
		return
	}
	e.mu.Unlock()

	visible, accumulated, err := e.consumeStream(body, adapter)
	if err != nil {
		e.mu.Lock()
		e.failTurnLocked(err)
		return
	}

	// Structured tool-call deltas take precedence over a JSON-shaped text
	// tail from the same turn.
	toolCalls := accumulated.Calls()
	hidden := false
	if len(toolCalls) == 0 {
		if extracted, ok := tooldetect.Extract(visible); ok {
			toolCalls = extracted
			hidden = true
			logger.Debug("extracted tool calls from free text", "session", e.sessionID(), "calls", len(toolCalls))
		}
	}

	if len(toolCalls) == 0 {
		e.completeTurn(visible, followedTools)
		return
	}

	e.beginToolHandshake(visible, hidden, toolCalls)
}

// runSingleShot issues one non-streaming request and routes the reply through
// the adapter's response normalizer. Visible text is exposed as a single chunk
// so the host boundary handles both modes the same way.
func (e *Engine) runSingleShot(ctx context.Context, adapter adapters.Adapter, model string, messages []sdk.Message, tools *[]sdk.ChatCompletionTool, followedTools bool) {
	resp, err := e.backend.Generate(ctx, model, messages, tools)
	if err != nil {
		e.mu.Lock()
		e.failTurnLocked(err)
		return
	}

	e.mu.Lock()
	if err := e.transitionLocked(domain.StateStreaming); err != nil {
		e.failTurnLocked(err)
		return
	}
	e.mu.Unlock()

	resp = adapter.NormalizeResponse(resp)
	if len(resp.Choices) == 0 {
		e.mu.Lock()
		e.failTurnLocked(errors.New("backend returned no choices"))
		return
	}

	message := resp.Choices[0].Message
	visible := domain.MessageText(message)
	if visible != "" {
		e.publish(domain.ChatChunkEvent{BaseChatEvent: e.base(), Content: visible})
	}

	var toolCalls []sdk.ChatCompletionMessageToolCall
	if message.ToolCalls != nil {
		toolCalls = *message.ToolCalls
	}
	hidden := false
	if len(toolCalls) == 0 {
		if extracted, ok := tooldetect.Extract(visible); ok {
			toolCalls = extracted
			hidden = true
			logger.Debug("extracted tool calls from free text", "session", e.sessionID(), "calls", len(toolCalls))
		}
	}

	if len(toolCalls) == 0 {
		e.completeTurn(visible, followedTools)
		return
	}

	e.beginToolHandshake(visible, hidden, toolCalls)
}

// consumeStream folds the decoded deltas into visible text and the tool-call
// accumulator, exposing text incrementally as chunk events
func (e *Engine) consumeStream(body io.Reader, adapter adapters.Adapter) (string, *stream.ToolCallAccumulator, error) {
	decoder := stream.NewDecoder(body)
	accumulated := stream.NewToolCallAccumulator()
	normalizer := adapter.NewChunkNormalizer(len(e.tools) > 0)

	var visible strings.Builder
	for {
		resp, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, err
		}

		resp = normalizer.Normalize(resp)
		for _, choice := range resp.Choices {
			if choice.Delta.Content != "" {
				visible.WriteString(choice.Delta.Content)
				e.publish(domain.ChatChunkEvent{BaseChatEvent: e.base(), Content: choice.Delta.Content})
			}
			if len(choice.Delta.ToolCalls) > 0 {
				accumulated.Add(choice.Delta.ToolCalls)
			}
		}
	}

	if held := normalizer.Flush(); held != "" {
		visible.WriteString(held)
		e.publish(domain.ChatChunkEvent{BaseChatEvent: e.base(), Content: held})
	}

	return visible.String(), accumulated, nil
}

// completeTurn freezes the assistant message, returns to idle and immediately
// sends any queued user message
func (e *Engine) completeTurn(content string, followedTools bool) {
	e.mu.Lock()
	e.session.Append(sdk.Message{
		Role:    sdk.Assistant,
		Content: sdk.NewMessageContent(content),
	})
	e.idleAndDrainQueueLocked(content, followedTools)
}

// idleAndDrainQueueLocked transitions to idle, publishes the completion and
// re-enters sending when a queued message exists. Called with the mutex held;
// releases it.
func (e *Engine) idleAndDrainQueueLocked(content string, followedTools bool) {
	if err := e.transitionLocked(domain.StateIdle); err != nil {
		e.failTurnLocked(err)
		return
	}

	queued := e.session.TakeQueued()
	if queued != nil {
		e.session.Append(userMessage(queued.Text))
		if err := e.transitionLocked(domain.StateSending); err != nil {
			e.failTurnLocked(err)
			return
		}
	}
	e.mu.Unlock()

	e.publish(domain.ChatCompleteEvent{
		BaseChatEvent:         e.base(),
		Content:               content,
		FollowedToolExecution: followedTools,
	})

	if queued != nil {
		e.publish(domain.QueueChangedEvent{BaseChatEvent: e.base()})
		go e.runTurn(false)
	}
}

// beginToolHandshake appends the assistant message with its tool calls
// preserved, dispatches each call across the bridge and suspends the session
// until correlated results arrive. There is no timeout on this wait.
func (e *Engine) beginToolHandshake(content string, hidden bool, toolCalls []sdk.ChatCompletionMessageToolCall) {
	e.mu.Lock()
	if err := e.transitionLocked(domain.StateToolCallsPending); err != nil {
		e.failTurnLocked(err)
		return
	}

	for i := range toolCalls {
		if toolCalls[i].Id == "" {
			toolCalls[i].Id = tooldetect.NewCallID()
		}
	}

	// The assistant turn keeps its tool calls verbatim in history even when
	// the visible text is empty or suppressed, so downstream model context
	// preserves the full turn.
	historyContent := content
	if hidden {
		historyContent = ""
	}
	e.session.Append(sdk.Message{
		Role:      sdk.Assistant,
		Content:   sdk.NewMessageContent(historyContent),
		ToolCalls: &toolCalls,
	})

	var dispatchable []sdk.ChatCompletionMessageToolCall
	for _, call := range toolCalls {
		arguments := strings.TrimSpace(call.Function.Arguments)
		if arguments == "" {
			arguments = "{}"
		}
		if !json.Valid([]byte(arguments)) {
			logger.Warn("abandoning tool call with malformed arguments",
				"session", e.sessionID(),
				"tool_call_id", call.Id,
				"tool", call.Function.Name)
			continue
		}
		call.Function.Arguments = arguments
		e.session.AddPending(call)
		dispatchable = append(dispatchable, call)
	}

	if len(dispatchable) == 0 {
		e.failTurnLocked(errors.New("no tool call with valid arguments remained"))
		return
	}

	if err := e.transitionLocked(domain.StateAwaitingToolResults); err != nil {
		e.failTurnLocked(err)
		return
	}
	e.mu.Unlock()

	e.publish(domain.ToolCallsDetectedEvent{
		BaseChatEvent: e.base(),
		ToolCalls:     dispatchable,
	})

	if e.dispatch == nil {
		return
	}
	for _, call := range dispatchable {
		e.dispatch.Send(domain.ToolCallRequest{
			ToolCallID: call.Id,
			Name:       call.Function.Name,
			Arguments:  json.RawMessage(call.Function.Arguments),
		})
	}
}

// failTurnLocked surfaces a transport or protocol failure as an inline error
// and returns the session to idle without corrupting history. A queued message
// is consumed on any return to idle, failed turns included, so input queued
// behind the broken turn is not stranded. Called with the mutex held;
// releases it.
func (e *Engine) failTurnLocked(err error) {
	logger.Error("conversation turn failed", "session", e.sessionID(), "error", err)

	e.session.ClearPending()
	if e.session.State().CanTransition(domain.StateFailed) {
		_ = e.transitionLocked(domain.StateFailed)
	}
	_ = e.transitionLocked(domain.StateIdle)

	queued := e.session.TakeQueued()
	if queued != nil {
		e.session.Append(userMessage(queued.Text))
		if terr := e.transitionLocked(domain.StateSending); terr != nil {
			queued = nil
		}
	}
	e.mu.Unlock()

	e.publishError(err)

	if queued != nil {
		e.publish(domain.QueueChangedEvent{BaseChatEvent: e.base()})
		go e.runTurn(false)
	}
}

// transitionLocked performs a validated state transition. Callers hold the
// mutex.
func (e *Engine) transitionLocked(to domain.ConversationState) error {
	from := e.session.State()
	if from == to {
		return nil
	}
	if !from.CanTransition(to) {
		return &domain.InvalidTransitionError{From: from, To: to}
	}

	e.session.state = to
	logger.Debug("conversation state transition", "session", e.sessionID(), "from", from.String(), "to", to.String())
	e.publish(domain.StateChangedEvent{BaseChatEvent: e.base(), From: from, To: to})
	return nil
}

// publish never blocks: a consumer that stopped draining the event channel
// must not freeze the session, so overflow is dropped with a warning
func (e *Engine) publish(event domain.ChatEvent) {
	select {
	case <-e.done:
	case e.events <- event:
	default:
		logger.Warn("dropping chat event, consumer not keeping up", "session", e.sessionID())
	}
}

func (e *Engine) publishError(err error) {
	e.publish(domain.ChatErrorEvent{BaseChatEvent: e.base(), Err: err})
}

func (e *Engine) base() domain.BaseChatEvent {
	return domain.BaseChatEvent{SessionID: e.sessionID(), Timestamp: time.Now()}
}

func (e *Engine) sessionID() string {
	return e.session.ID
}

func userMessage(text string) sdk.Message {
	return sdk.Message{
		Role:    sdk.User,
		Content: sdk.NewMessageContent(text),
	}
}
