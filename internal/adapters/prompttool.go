package adapters

import (
	"encoding/json"
	"fmt"
	"strings"

	sdk "github.com/inference-gateway/sdk"

	"github.com/chatwire/chatwire/internal/domain"
	"github.com/chatwire/chatwire/internal/logger"
	"github.com/chatwire/chatwire/internal/tooldetect"
)

// toolPromptHeader is the natural-language specification of the JSON
// convention injected for backends that cannot emit structured tool calls
const toolPromptHeader = `You have access to the following tools:

%s
When you decide to call a tool, respond with a single JSON object and nothing else, in exactly this shape:

{"name": "<tool name>", "arguments": {<tool arguments>}}

Do not wrap the JSON in explanations. When no tool is needed, answer normally in plain text.`

// PromptToolAdapter serves backend families without native tool calling.
// It injects the tool-calling convention into the system message on the way
// out and promotes convention-shaped replies into structured tool calls on
// the way back.
type PromptToolAdapter struct{}

// NewPromptToolAdapter creates the prompt-injection adapter
func NewPromptToolAdapter() *PromptToolAdapter {
	return &PromptToolAdapter{}
}

func (a *PromptToolAdapter) Name() string { return "prompt-tool" }

// Preprocess merges the tool-calling instructions into the first system
// message, prepending one when the conversation has none. The tools array is
// dropped from the request since the backend would reject or ignore it.
func (a *PromptToolAdapter) Preprocess(messages []sdk.Message, tools []domain.ToolDefinition) ([]sdk.Message, *[]sdk.ChatCompletionTool) {
	if len(tools) == 0 {
		return messages, nil
	}

	instructions := a.renderInstructions(tools)

	rewritten := make([]sdk.Message, len(messages))
	copy(rewritten, messages)

	for i, msg := range rewritten {
		if msg.Role == sdk.System {
			existing := domain.MessageText(msg)
			rewritten[i].Content = sdk.NewMessageContent(instructions + "\n\n" + existing)
			return rewritten, nil
		}
	}

	system := sdk.Message{
		Role:    sdk.System,
		Content: sdk.NewMessageContent(instructions),
	}
	return append([]sdk.Message{system}, rewritten...), nil
}

func (a *PromptToolAdapter) renderInstructions(tools []domain.ToolDefinition) string {
	var list strings.Builder
	for _, tool := range tools {
		list.WriteString(fmt.Sprintf("- %s: %s\n", tool.Name, tool.Description))
		if tool.Parameters != nil {
			if schema, err := json.Marshal(tool.Parameters); err == nil {
				list.WriteString(fmt.Sprintf("  parameters: %s\n", schema))
			}
		}
	}
	return fmt.Sprintf(toolPromptHeader, list.String())
}

// NormalizeResponse promotes a free-text-encoded tool call in a non-streaming
// reply into the canonical structured field, hiding the JSON text
func (a *PromptToolAdapter) NormalizeResponse(resp *sdk.CreateChatCompletionResponse) *sdk.CreateChatCompletionResponse {
	if resp == nil {
		return nil
	}

	for i := range resp.Choices {
		message := &resp.Choices[i].Message
		if message.ToolCalls != nil && len(*message.ToolCalls) > 0 {
			continue
		}

		calls, ok := tooldetect.Extract(domain.MessageText(*message))
		if !ok {
			continue
		}

		logger.Debug("promoted free-text tool call", "adapter", a.Name(), "calls", len(calls))
		message.ToolCalls = &calls
		message.Content = sdk.NewMessageContent("")
	}

	return resp
}

// NewChunkNormalizer returns the stateful per-request streaming normalizer.
// Only requests that declared at least one tool get JSON detection, so an
// ordinary JSON-shaped answer cannot turn into a phantom tool call.
func (a *PromptToolAdapter) NewChunkNormalizer(toolsDeclared bool) ChunkNormalizer {
	return &promptToolNormalizer{active: toolsDeclared}
}

// promptToolNormalizer accumulates streamed text while it still looks like
// the tool-call convention, emits a synthesized structured delta once the
// JSON completes, and restores withheld text the moment the content stops
// looking like a tool call.
type promptToolNormalizer struct {
	active      bool
	buf         strings.Builder
	passthrough bool
	emitted     bool
}

func (n *promptToolNormalizer) Normalize(resp *sdk.CreateChatCompletionStreamResponse) *sdk.CreateChatCompletionStreamResponse {
	if !n.active || n.passthrough || resp == nil {
		return resp
	}

	for i := range resp.Choices {
		delta := &resp.Choices[i].Delta
		if delta.Content == "" {
			continue
		}

		n.buf.WriteString(delta.Content)
		delta.Content = ""

		if n.emitted {
			// the tool call was already synthesized; trailing text is noise
			continue
		}

		trimmed := strings.TrimSpace(n.buf.String())
		if trimmed == "" {
			continue
		}

		if trimmed[0] != '{' && trimmed[0] != '`' {
			// ordinary prose: stop intercepting and release everything held
			delta.Content = n.release()
			return resp
		}

		candidate := tooldetect.StripFences(trimmed)
		if !tooldetect.IsCompleteJSON(candidate) {
			continue
		}

		calls, ok := tooldetect.Extract(trimmed)
		if !ok {
			// complete JSON that is not a tool call stays visible
			delta.Content = n.release()
			return resp
		}

		delta.ToolCalls = append(delta.ToolCalls, synthesizeChunks(calls)...)
		n.emitted = true
	}

	return resp
}

// Flush returns text that was withheld but never became a tool call
func (n *promptToolNormalizer) Flush() string {
	if !n.active || n.passthrough || n.emitted {
		return ""
	}
	return n.release()
}

func (n *promptToolNormalizer) release() string {
	n.passthrough = true
	held := n.buf.String()
	n.buf.Reset()
	return held
}

func synthesizeChunks(calls []sdk.ChatCompletionMessageToolCall) []sdk.ChatCompletionMessageToolCallChunk {
	chunks := make([]sdk.ChatCompletionMessageToolCallChunk, 0, len(calls))
	for i, call := range calls {
		var chunk sdk.ChatCompletionMessageToolCallChunk
		chunk.Index = i
		chunk.ID = call.Id
		chunk.Function.Name = call.Function.Name
		chunk.Function.Arguments = call.Function.Arguments
		chunks = append(chunks, chunk)
	}
	return chunks
}
