package handlers

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chatwire/chatwire/internal/adapters"
	"github.com/chatwire/chatwire/internal/bridge"
	"github.com/chatwire/chatwire/internal/domain"
	"github.com/chatwire/chatwire/internal/engine"
	"github.com/chatwire/chatwire/internal/logger"
)

// toolRequestBuffer sizes the bridge channels; one turn rarely dispatches
// more than a handful of calls
const toolRequestBuffer = 16

// WidgetSession binds one connected widget to its conversation engine and
// the host side of the dispatch bridge
type WidgetSession struct {
	ID     string
	Engine *engine.Engine
	Host   *bridge.HostEndpoint
}

// SessionConfig is what the hosting page declares when it configures its
// embedded conversation surface. NonStreaming selects single-shot completions
// for hosts that cannot consume incremental output.
type SessionConfig struct {
	Model        string
	SystemPrompt string
	Tools        []domain.ToolDefinition
	NonStreaming bool
}

// SessionManager creates and tears down widget sessions. Each session is
// owned by exactly one widget instance and destroyed when it unmounts.
type SessionManager struct {
	backend  engine.Backend
	registry *adapters.Registry
	timeout  time.Duration

	mu       sync.RWMutex
	sessions map[string]*WidgetSession
}

// NewSessionManager creates a session manager backed by the given model client
func NewSessionManager(backend engine.Backend, registry *adapters.Registry, timeout time.Duration) *SessionManager {
	return &SessionManager{
		backend:  backend,
		registry: registry,
		timeout:  timeout,
		sessions: make(map[string]*WidgetSession),
	}
}

// CreateSession builds a fresh engine and bridge pair for one widget
func (sm *SessionManager) CreateSession(cfg SessionConfig) (*WidgetSession, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("session configuration is missing a model")
	}

	sessionID := uuid.NewString()
	engineSide, hostSide := bridge.Pair(toolRequestBuffer)

	eng := engine.New(engine.Options{
		SessionID:    sessionID,
		Model:        cfg.Model,
		SystemPrompt: cfg.SystemPrompt,
		Tools:        cfg.Tools,
		Backend:      sm.backend,
		Registry:     sm.registry,
		Dispatch:     engineSide,
		Timeout:      sm.timeout,
		NonStreaming: cfg.NonStreaming,
	})

	session := &WidgetSession{
		ID:     sessionID,
		Engine: eng,
		Host:   hostSide,
	}

	sm.mu.Lock()
	sm.sessions[sessionID] = session
	sm.mu.Unlock()

	logger.Info("created widget session",
		"session", sessionID,
		"model", cfg.Model,
		"tools", len(cfg.Tools))
	return session, nil
}

// Session looks up a live session by id
func (sm *SessionManager) Session(sessionID string) (*WidgetSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	session, ok := sm.sessions[sessionID]
	return session, ok
}

// CloseSession destroys a session; its history is not persisted anywhere
func (sm *SessionManager) CloseSession(sessionID string) {
	sm.mu.Lock()
	session, ok := sm.sessions[sessionID]
	delete(sm.sessions, sessionID)
	sm.mu.Unlock()

	if !ok {
		return
	}

	session.Engine.Close()
	session.Host.Close()
	logger.Info("closed widget session", "session", sessionID)
}

// CloseAll tears down every live session, used at server shutdown
func (sm *SessionManager) CloseAll() {
	sm.mu.Lock()
	sessions := sm.sessions
	sm.sessions = make(map[string]*WidgetSession)
	sm.mu.Unlock()

	for id, session := range sessions {
		session.Engine.Close()
		session.Host.Close()
		logger.Debug("closed widget session", "session", id)
	}
}
