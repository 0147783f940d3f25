// Package adapters contains the per-backend strategies that shape outgoing
// requests and normalize inbound responses into the canonical structured
// tool-call form.
package adapters

import (
	"strings"

	sdk "github.com/inference-gateway/sdk"

	"github.com/chatwire/chatwire/internal/domain"
)

// Adapter is a backend-family strategy. Preprocess rewrites the outgoing
// request, NormalizeResponse rewrites a non-streaming reply, and
// NewChunkNormalizer produces a stateful per-request normalizer for the
// streaming path.
type Adapter interface {
	Name() string
	Preprocess(messages []sdk.Message, tools []domain.ToolDefinition) ([]sdk.Message, *[]sdk.ChatCompletionTool)
	NormalizeResponse(resp *sdk.CreateChatCompletionResponse) *sdk.CreateChatCompletionResponse
	NewChunkNormalizer(toolsDeclared bool) ChunkNormalizer
}

// ChunkNormalizer rewrites streamed deltas for one request. Flush returns any
// withheld text that turned out not to be a tool call so the caller can
// restore it at end of stream.
type ChunkNormalizer interface {
	Normalize(resp *sdk.CreateChatCompletionStreamResponse) *sdk.CreateChatCompletionStreamResponse
	Flush() string
}

// Predicate decides whether an adapter handles a given model identifier
type Predicate func(model string) bool

type registration struct {
	matches Predicate
	adapter Adapter
}

// Registry maps model-identifier predicates to adapters. Selection walks the
// registrations in order and falls back to the native pass-through adapter,
// keeping backend conditionals out of the request path.
type Registry struct {
	registrations []registration
	fallback      Adapter
}

// NewRegistry creates an empty registry with the given fallback
func NewRegistry(fallback Adapter) *Registry {
	return &Registry{fallback: fallback}
}

// Register appends a predicate/adapter pair; earlier registrations win
func (r *Registry) Register(matches Predicate, adapter Adapter) {
	r.registrations = append(r.registrations, registration{matches: matches, adapter: adapter})
}

// ForModel selects the adapter for a model identifier
func (r *Registry) ForModel(model string) Adapter {
	for _, reg := range r.registrations {
		if reg.matches(model) {
			return reg.adapter
		}
	}
	return r.fallback
}

// promptToolFamilies are model families known to lack native structured tool
// calling; they get the prompt-injection adapter.
var promptToolFamilies = []string{"qwen", "gemma", "phi", "vicuna"}

// DefaultRegistry wires the built-in adapters: prompt-injection for model
// families without native tool calling, native pass-through for the rest
func DefaultRegistry() *Registry {
	r := NewRegistry(NewNativeAdapter())
	prompt := NewPromptToolAdapter()
	r.Register(func(model string) bool {
		lowered := strings.ToLower(model)
		for _, family := range promptToolFamilies {
			if strings.Contains(lowered, family) {
				return true
			}
		}
		return false
	}, prompt)
	return r
}

// NativeAdapter is the pass-through strategy for backends with structured
// tool calling: requests and responses travel unchanged.
type NativeAdapter struct{}

// NewNativeAdapter creates the pass-through adapter
func NewNativeAdapter() *NativeAdapter {
	return &NativeAdapter{}
}

func (a *NativeAdapter) Name() string { return "native" }

func (a *NativeAdapter) Preprocess(messages []sdk.Message, tools []domain.ToolDefinition) ([]sdk.Message, *[]sdk.ChatCompletionTool) {
	return messages, domain.ToSDKTools(tools)
}

func (a *NativeAdapter) NormalizeResponse(resp *sdk.CreateChatCompletionResponse) *sdk.CreateChatCompletionResponse {
	return resp
}

func (a *NativeAdapter) NewChunkNormalizer(toolsDeclared bool) ChunkNormalizer {
	return passthroughNormalizer{}
}

type passthroughNormalizer struct{}

func (passthroughNormalizer) Normalize(resp *sdk.CreateChatCompletionStreamResponse) *sdk.CreateChatCompletionStreamResponse {
	return resp
}

func (passthroughNormalizer) Flush() string { return "" }
