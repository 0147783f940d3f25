// Package llmclient is the HTTP client for the chat-completions wire format:
// a JSON body carrying ordered messages and optional tool declarations,
// answered either by one JSON document or by a server-sent-event stream.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	sdk "github.com/inference-gateway/sdk"

	"github.com/chatwire/chatwire/internal/domain"
	"github.com/chatwire/chatwire/internal/logger"
)

// maxErrorBodyBytes caps how much of an error response is kept for reporting
const maxErrorBodyBytes = 2048

// ChatRequest is the outbound request body
type ChatRequest struct {
	Model    string                    `json:"model"`
	Messages []sdk.Message             `json:"messages"`
	Tools    *[]sdk.ChatCompletionTool `json:"tools,omitempty"`
	Stream   bool                      `json:"stream"`
}

// Client issues chat-completion requests against one backend. There is no
// retry or backoff: a request either completes within the single timeout or
// fails.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a client. The timeout bounds a whole request including the
// streamed body, and should be generous since some backends load large
// contexts slowly.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Stream issues a streaming request and returns the raw response body for
// the chunk decoder. The caller owns closing the body.
func (c *Client) Stream(ctx context.Context, model string, messages []sdk.Message, tools *[]sdk.ChatCompletionTool) (io.ReadCloser, error) {
	resp, err := c.post(ctx, ChatRequest{
		Model:    model,
		Messages: messages,
		Tools:    tools,
		Stream:   true,
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Generate issues a non-streaming request and decodes the single reply
func (c *Client) Generate(ctx context.Context, model string, messages []sdk.Message, tools *[]sdk.ChatCompletionTool) (*sdk.CreateChatCompletionResponse, error) {
	resp, err := c.post(ctx, ChatRequest{
		Model:    model,
		Messages: messages,
		Tools:    tools,
		Stream:   false,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	var completion sdk.CreateChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, &domain.TransportError{Err: fmt.Errorf("failed to decode completion: %w", err)}
	}
	return &completion, nil
}

func (c *Client) post(ctx context.Context, chatReq ChatRequest) (*http.Response, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build chat request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if chatReq.Stream {
		req.Header.Set("Accept", "text/event-stream")
	}

	logger.Debug("issuing chat request",
		"url", url,
		"model", chatReq.Model,
		"messages", len(chatReq.Messages),
		"stream", chatReq.Stream)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		_ = resp.Body.Close()
		return nil, &domain.TransportError{StatusCode: resp.StatusCode, Body: string(excerpt)}
	}

	return resp, nil
}
