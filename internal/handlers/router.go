package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/chatwire/chatwire/internal/logger"
)

// NewRouter registers the boundary routes: the widget socket and a health
// probe. Everything beyond header validation and dispatch lives in the
// engine.
func NewRouter(wsHandler *WebSocketHandler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/v1/ws", wsHandler.HandleWebSocket)
	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "ok"}); err != nil {
		logger.Error("failed to write health response", "error", err)
	}
}
