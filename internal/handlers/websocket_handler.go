package handlers

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/chatwire/chatwire/internal/bridge"
	"github.com/chatwire/chatwire/internal/domain"
	"github.com/chatwire/chatwire/internal/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// the embedding page may live on any origin; authenticating hosts is
		// out of scope for the protocol engine
		return true
	},
}

// WebSocketHandler carries the engine's inbound and outbound interface over
// one socket per embedded widget
type WebSocketHandler struct {
	sessionManager *SessionManager
}

// NewWebSocketHandler creates the boundary handler
func NewWebSocketHandler(sessionManager *SessionManager) *WebSocketHandler {
	return &WebSocketHandler{sessionManager: sessionManager}
}

// HandleWebSocket upgrades the connection and runs the message loop until
// the widget disconnects. The session dies with the connection.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("failed to upgrade to websocket", "error", err)
		return
	}

	client := newClientConn(conn)
	defer client.close()

	var session *WidgetSession
	defer func() {
		if session != nil {
			h.sessionManager.CloseSession(session.ID)
		}
	}()

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		if msg.Type == MessageTypeConfigure {
			if session != nil {
				client.sendError("session already configured")
				continue
			}
			session = h.configureSession(client, msg)
			continue
		}

		if session == nil {
			client.sendError("session is not configured yet")
			continue
		}

		h.handleMessage(client, session, msg)
	}
}

// configureSession creates the engine for this widget and starts forwarding
// its events and tool-invocation requests onto the socket
func (h *WebSocketHandler) configureSession(client *clientConn, msg WSMessage) *WidgetSession {
	session, err := h.sessionManager.CreateSession(SessionConfig{
		Model:        msg.Model,
		SystemPrompt: msg.SystemPrompt,
		Tools:        msg.Tools,
		NonStreaming: msg.Stream != nil && !*msg.Stream,
	})
	if err != nil {
		client.sendError(err.Error())
		return nil
	}

	session.Host.OnReceive(func(req domain.ToolCallRequest) {
		client.send(WSMessage{
			Type:       MessageTypeToolCall,
			ToolCallID: req.ToolCallID,
			Name:       req.Name,
			Arguments:  req.Arguments,
		})
	})

	go forwardEvents(client, session)

	client.send(WSMessage{Type: MessageTypeSessionReady, SessionID: session.ID})
	return session
}

func (h *WebSocketHandler) handleMessage(client *clientConn, session *WidgetSession, msg WSMessage) {
	switch msg.Type {
	case MessageTypeChatMessage:
		if err := session.Engine.SendMessage(msg.Text); err != nil {
			client.sendError(err.Error())
		}
	case MessageTypeUpdateQueued:
		if err := session.Engine.UpdateQueuedMessage(msg.Text); err != nil {
			client.sendError(err.Error())
		}
	case MessageTypeCancelQueued:
		session.Engine.WithdrawQueuedMessage()
	case MessageTypeToolResult:
		// results travel through the bridge rather than straight into the
		// engine so correlation stays in one place
		session.Host.Send(bridge.RawResult{ToolCallID: msg.ToolCallID, Payload: msg.Payload})
	default:
		logger.Warn("unknown websocket message type", "type", msg.Type)
		client.sendError("unknown message type: " + msg.Type)
	}
}

// forwardEvents translates engine events into boundary frames
func forwardEvents(client *clientConn, session *WidgetSession) {
	for {
		var event domain.ChatEvent
		select {
		case <-session.Engine.Done():
			return
		case event = <-session.Engine.Events():
		}

		switch ev := event.(type) {
		case domain.ChatStartEvent:
			client.send(WSMessage{Type: MessageTypeChatStart, Model: ev.Model})
		case domain.ChatChunkEvent:
			client.send(WSMessage{Type: MessageTypeChunk, Content: ev.Content})
		case domain.ChatCompleteEvent:
			client.send(WSMessage{
				Type:                  MessageTypeComplete,
				Content:               ev.Content,
				FollowedToolExecution: ev.FollowedToolExecution,
			})
		case domain.ChatErrorEvent:
			client.sendError(ev.Err.Error())
		case domain.QueueChangedEvent:
			out := WSMessage{Type: MessageTypeQueued, Cleared: ev.Queued == nil}
			if ev.Queued != nil {
				out.Text = ev.Queued.Text
			}
			client.send(out)
		}
	}
}

// clientConn serializes writes: gorilla connections allow one concurrent
// writer, and frames arrive from both the event loop and the bridge
type clientConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func newClientConn(conn *websocket.Conn) *clientConn {
	return &clientConn{conn: conn}
}

func (c *clientConn) send(msg WSMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(msg); err != nil {
		logger.Warn("failed to write websocket message", "type", msg.Type, "error", err)
	}
}

func (c *clientConn) sendError(message string) {
	c.send(WSMessage{Type: MessageTypeError, Error: message})
}

func (c *clientConn) close() {
	if err := c.conn.Close(); err != nil {
		logger.Debug("failed to close websocket connection", "error", err)
	}
}
