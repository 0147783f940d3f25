package stream

import (
	sdk "github.com/inference-gateway/sdk"
)

// ToolCallAccumulator merges partial tool-call fragments into complete calls.
// Fragments are keyed by their zero-based slot index, so backends that
// interleave several simultaneous calls are handled, and arrival order across
// indices does not matter as long as fragments within one index stay ordered.
type ToolCallAccumulator struct {
	calls    map[int]*sdk.ChatCompletionMessageToolCall
	maxIndex int
}

// NewToolCallAccumulator creates an empty accumulator
func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{calls: make(map[int]*sdk.ChatCompletionMessageToolCall)}
}

// Add merges a batch of fragments. The name is set the first time it is seen
// since backends send it once in full; arguments stream in pieces and are
// always appended; the id takes the latest non-empty value.
func (a *ToolCallAccumulator) Add(deltas []sdk.ChatCompletionMessageToolCallChunk) {
	for _, delta := range deltas {
		index := delta.Index
		if index > a.maxIndex {
			a.maxIndex = index
		}

		call, ok := a.calls[index]
		if !ok {
			call = &sdk.ChatCompletionMessageToolCall{
				Id:   delta.ID,
				Type: sdk.Function,
			}
			a.calls[index] = call
		}

		if delta.ID != "" {
			call.Id = delta.ID
		}
		if delta.Function.Name != "" && call.Function.Name == "" {
			call.Function.Name = delta.Function.Name
		}
		if delta.Function.Arguments != "" {
			call.Function.Arguments += delta.Function.Arguments
		}
	}
}

// HasNamedCall reports whether at least one slot accumulated a non-empty
// name, which is the completion test for structured tool calling
func (a *ToolCallAccumulator) HasNamedCall() bool {
	for _, call := range a.calls {
		if call.Function.Name != "" {
			return true
		}
	}
	return false
}

// Calls returns all accumulated calls in slot-index order, skipping slots
// that never received a name
func (a *ToolCallAccumulator) Calls() []sdk.ChatCompletionMessageToolCall {
	result := make([]sdk.ChatCompletionMessageToolCall, 0, len(a.calls))
	for i := 0; i <= a.maxIndex; i++ {
		call, ok := a.calls[i]
		if !ok || call.Function.Name == "" {
			continue
		}
		result = append(result, *call)
	}
	return result
}
