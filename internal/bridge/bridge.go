// Package bridge is the correlated request/response channel between the
// conversation engine and the external tool executor hosting the widget.
//
// It is built as two independent message-passing endpoints over explicit
// typed channels, each exposing only send and on-receive. Neither endpoint
// holds shared mutable state, so both sides can be exercised in isolation.
package bridge

import (
	"encoding/json"
	"sync"

	"github.com/chatwire/chatwire/internal/domain"
)

// RawResult is a host answer before classification: the correlation
// identifier plus whatever JSON the executor produced
type RawResult struct {
	ToolCallID string
	Payload    json.RawMessage
}

// EngineEndpoint is the engine side: it sends tool-invocation requests and
// receives correlated results
type EngineEndpoint struct {
	requests chan<- domain.ToolCallRequest
	results  <-chan RawResult
	closed   <-chan struct{}
}

// HostEndpoint is the executor side: it receives tool-invocation requests
// and sends back results
type HostEndpoint struct {
	requests  <-chan domain.ToolCallRequest
	results   chan<- RawResult
	closed    <-chan struct{}
	closeOnce *sync.Once
	done      chan<- struct{}
}

// Pair creates a connected endpoint pair. The buffer keeps a slow host from
// blocking the engine on dispatch of several calls from one turn.
func Pair(buffer int) (*EngineEndpoint, *HostEndpoint) {
	requests := make(chan domain.ToolCallRequest, buffer)
	results := make(chan RawResult, buffer)
	done := make(chan struct{})
	once := &sync.Once{}

	engine := &EngineEndpoint{
		requests: requests,
		results:  results,
		closed:   done,
	}
	host := &HostEndpoint{
		requests:  requests,
		results:   results,
		closed:    done,
		closeOnce: once,
		done:      done,
	}
	return engine, host
}

// Send dispatches a tool-invocation request to the host. Sending on a closed
// bridge is dropped silently since the widget has already unmounted.
func (e *EngineEndpoint) Send(req domain.ToolCallRequest) {
	select {
	case <-e.closed:
	case e.requests <- req:
	}
}

// OnReceive runs the handler for every inbound result until the bridge
// closes. It starts its own goroutine and returns immediately.
func (e *EngineEndpoint) OnReceive(handler func(RawResult)) {
	go func() {
		for {
			select {
			case <-e.closed:
				return
			case result, ok := <-e.results:
				if !ok {
					return
				}
				handler(result)
			}
		}
	}()
}

// Send returns a correlated result to the engine. Results sent after close
// are dropped.
func (h *HostEndpoint) Send(result RawResult) {
	select {
	case <-h.closed:
	case h.results <- result:
	}
}

// OnReceive runs the handler for every outbound tool-invocation request until
// the bridge closes. It starts its own goroutine and returns immediately.
func (h *HostEndpoint) OnReceive(handler func(domain.ToolCallRequest)) {
	go func() {
		for {
			select {
			case <-h.closed:
				return
			case req, ok := <-h.requests:
				if !ok {
					return
				}
				handler(req)
			}
		}
	}()
}

// Close tears the bridge down; both endpoints stop delivering. Safe to call
// more than once.
func (h *HostEndpoint) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}
