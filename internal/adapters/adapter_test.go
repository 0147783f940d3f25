package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdk "github.com/inference-gateway/sdk"

	"github.com/chatwire/chatwire/internal/domain"
)

func TestDefaultRegistrySelection(t *testing.T) {
	registry := DefaultRegistry()

	tests := []struct {
		model   string
		adapter string
	}{
		{model: "qwen2.5-7b-instruct", adapter: "prompt-tool"},
		{model: "Qwen/Qwen2-72B", adapter: "prompt-tool"},
		{model: "gemma-2-9b", adapter: "prompt-tool"},
		{model: "phi-3-mini", adapter: "prompt-tool"},
		{model: "gpt-4o", adapter: "native"},
		{model: "claude-sonnet-4", adapter: "native"},
		{model: "", adapter: "native"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.adapter, registry.ForModel(tt.model).Name())
		})
	}
}

func TestRegistryOrderAndFallback(t *testing.T) {
	registry := NewRegistry(NewNativeAdapter())
	prompt := NewPromptToolAdapter()
	registry.Register(func(model string) bool { return model == "special" }, prompt)

	assert.Equal(t, "prompt-tool", registry.ForModel("special").Name())
	assert.Equal(t, "native", registry.ForModel("anything else").Name())
}

func TestNativeAdapterPassthrough(t *testing.T) {
	adapter := NewNativeAdapter()

	messages := []sdk.Message{
		{Role: sdk.User, Content: sdk.NewMessageContent("hi")},
	}
	tools := []domain.ToolDefinition{
		{Name: "lookup", Description: "find things"},
	}

	outMessages, outTools := adapter.Preprocess(messages, tools)

	assert.Equal(t, messages, outMessages)
	require.NotNil(t, outTools)
	require.Len(t, *outTools, 1)
	assert.Equal(t, "lookup", (*outTools)[0].Function.Name)

	resp := &sdk.CreateChatCompletionResponse{}
	assert.Same(t, resp, adapter.NormalizeResponse(resp))
}

func TestNativeChunkNormalizerPassthrough(t *testing.T) {
	normalizer := NewNativeAdapter().NewChunkNormalizer(true)

	resp := &sdk.CreateChatCompletionStreamResponse{
		Choices: []sdk.ChatCompletionStreamChoice{
			{Delta: sdk.ChatCompletionStreamResponseDelta{Content: `{"name":"looks like json"}`}},
		},
	}

	normalized := normalizer.Normalize(resp)
	assert.Equal(t, `{"name":"looks like json"}`, normalized.Choices[0].Delta.Content)
	assert.Empty(t, normalizer.Flush())
}

func TestNativeAdapterNoTools(t *testing.T) {
	adapter := NewNativeAdapter()

	_, outTools := adapter.Preprocess(nil, nil)
	assert.Nil(t, outTools)
}
