package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwire/chatwire/internal/domain"
)

func sseBody(frames ...string) string {
	var b strings.Builder
	for _, frame := range frames {
		b.WriteString("data: ")
		b.WriteString(frame)
		b.WriteString("\n\n")
	}
	b.WriteString("data: [DONE]\n")
	return b.String()
}

func contentFrame(text string) string {
	encoded, _ := json.Marshal(text)
	return `{"choices":[{"delta":{"content":` + string(encoded) + `}}]}`
}

func toolFrame(id, name, arguments string) string {
	frame := map[string]any{
		"choices": []map[string]any{
			{"delta": map[string]any{
				"tool_calls": []map[string]any{
					{"index": 0, "id": id, "function": map[string]string{"name": name, "arguments": arguments}},
				},
			}},
		},
	}
	encoded, _ := json.Marshal(frame)
	return string(encoded)
}

// wsClient dials the boundary socket against an in-process server
type wsClient struct {
	conn *websocket.Conn
}

func dialWidget(t *testing.T, backend *scriptedBackend) *wsClient {
	t.Helper()

	sm := newTestManager(backend)
	t.Cleanup(sm.CloseAll)

	server := httptest.NewServer(NewRouter(NewWebSocketHandler(sm)))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})

	return &wsClient{conn: conn}
}

func (c *wsClient) send(t *testing.T, msg WSMessage) {
	t.Helper()
	require.NoError(t, c.conn.WriteJSON(msg))
}

// next reads frames until one of the wanted type arrives, failing on an
// error frame unless errors are what is wanted
func (c *wsClient) next(t *testing.T, wantType string) WSMessage {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	require.NoError(t, c.conn.SetReadDeadline(deadline))
	for {
		var msg WSMessage
		require.NoError(t, c.conn.ReadJSON(&msg))
		if msg.Type == wantType {
			return msg
		}
		if msg.Type == MessageTypeError {
			t.Fatalf("unexpected error frame while waiting for %q: %s", wantType, msg.Error)
		}
	}
}

func (c *wsClient) configure(t *testing.T, tools ...domain.ToolDefinition) string {
	t.Helper()
	c.send(t, WSMessage{Type: MessageTypeConfigure, Model: "gpt-4o", Tools: tools})
	ready := c.next(t, MessageTypeSessionReady)
	require.NotEmpty(t, ready.SessionID)
	return ready.SessionID
}

func TestWidgetChatExchange(t *testing.T) {
	backend := &scriptedBackend{bodies: []string{
		sseBody(contentFrame("Hello "), contentFrame("widget!")),
	}}
	client := dialWidget(t, backend)
	client.configure(t)

	client.send(t, WSMessage{Type: MessageTypeChatMessage, Text: "hi"})

	start := client.next(t, MessageTypeChatStart)
	assert.Equal(t, "gpt-4o", start.Model)

	var streamed strings.Builder
	for {
		var msg WSMessage
		require.NoError(t, client.conn.ReadJSON(&msg))
		if msg.Type == MessageTypeChunk {
			streamed.WriteString(msg.Content)
			continue
		}
		if msg.Type == MessageTypeComplete {
			assert.Equal(t, "Hello widget!", msg.Content)
			assert.False(t, msg.FollowedToolExecution)
			break
		}
	}
	assert.Equal(t, "Hello widget!", streamed.String())
}

func TestNonStreamingConfigureUsesSingleShot(t *testing.T) {
	backend := &scriptedBackend{replies: []string{"single-shot reply"}}
	client := dialWidget(t, backend)

	stream := false
	client.send(t, WSMessage{Type: MessageTypeConfigure, Model: "gpt-4o", Stream: &stream})
	client.next(t, MessageTypeSessionReady)

	client.send(t, WSMessage{Type: MessageTypeChatMessage, Text: "hi"})

	chunk := client.next(t, MessageTypeChunk)
	assert.Equal(t, "single-shot reply", chunk.Content)

	complete := client.next(t, MessageTypeComplete)
	assert.Equal(t, "single-shot reply", complete.Content)
	assert.Equal(t, 1, backend.requestCount())
}

func TestMessagesBeforeConfigureAreRejected(t *testing.T) {
	client := dialWidget(t, &scriptedBackend{})

	client.send(t, WSMessage{Type: MessageTypeChatMessage, Text: "too early"})

	var msg WSMessage
	require.NoError(t, client.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, client.conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Contains(t, msg.Error, "not configured")
}

func TestDoubleConfigureIsRejected(t *testing.T) {
	client := dialWidget(t, &scriptedBackend{})
	client.configure(t)

	client.send(t, WSMessage{Type: MessageTypeConfigure, Model: "gpt-4o"})

	var msg WSMessage
	require.NoError(t, client.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, client.conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Contains(t, msg.Error, "already configured")
}

func TestToolCallRoundTripOverSocket(t *testing.T) {
	backend := &scriptedBackend{bodies: []string{
		sseBody(toolFrame("call_9", "lookup", `{"q":"go"}`)),
		sseBody(contentFrame("Go is a language.")),
	}}
	client := dialWidget(t, backend)
	client.configure(t, domain.ToolDefinition{Name: "lookup", Description: "look things up"})

	client.send(t, WSMessage{Type: MessageTypeChatMessage, Text: "what is go?"})

	call := client.next(t, MessageTypeToolCall)
	assert.Equal(t, "call_9", call.ToolCallID)
	assert.Equal(t, "lookup", call.Name)
	assert.JSONEq(t, `{"q":"go"}`, string(call.Arguments))

	client.send(t, WSMessage{
		Type:       MessageTypeToolResult,
		ToolCallID: call.ToolCallID,
		Payload:    json.RawMessage(`{"definition":"a language"}`),
	})

	complete := client.next(t, MessageTypeComplete)
	assert.Equal(t, "Go is a language.", complete.Content)
	assert.True(t, complete.FollowedToolExecution)
	assert.Equal(t, 2, backend.requestCount())
}

func TestFinalToolResultOverSocket(t *testing.T) {
	backend := &scriptedBackend{bodies: []string{
		sseBody(toolFrame("call_1", "update_name", `{"name":"Bob"}`)),
	}}
	client := dialWidget(t, backend)
	client.configure(t, domain.ToolDefinition{Name: "update_name"})

	client.send(t, WSMessage{Type: MessageTypeChatMessage, Text: "call me Bob"})
	call := client.next(t, MessageTypeToolCall)

	client.send(t, WSMessage{
		Type:       MessageTypeToolResult,
		ToolCallID: call.ToolCallID,
		Payload:    json.RawMessage(`{"success":true,"message":"Your name is now Bob."}`),
	})

	complete := client.next(t, MessageTypeComplete)
	assert.Equal(t, "Your name is now Bob.", complete.Content)
	assert.True(t, complete.FollowedToolExecution)

	// a final result never triggers a second model request
	assert.Equal(t, 1, backend.requestCount())
}

func TestUnknownMessageTypeYieldsError(t *testing.T) {
	client := dialWidget(t, &scriptedBackend{})
	client.configure(t)

	client.send(t, WSMessage{Type: "dance"})

	var msg WSMessage
	require.NoError(t, client.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, client.conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeError, msg.Type)
	assert.Contains(t, msg.Error, "unknown message type")
}

func TestHealthEndpoint(t *testing.T) {
	sm := newTestManager(&scriptedBackend{})
	defer sm.CloseAll()
	server := httptest.NewServer(NewRouter(NewWebSocketHandler(sm)))
	defer server.Close()

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer func() {
		_ = resp.Body.Close()
	}()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])

	post, err := http.Post(server.URL+"/health", "application/json", nil)
	require.NoError(t, err)
	defer func() {
		_ = post.Body.Close()
	}()
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}
