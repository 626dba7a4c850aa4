package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"campus-chat/internal/database"
	"campus-chat/internal/models"
	"campus-chat/internal/presence"
	ws "campus-chat/internal/websocket"
	"campus-chat/pkg/logger"
)

// PresenceHandlers exposes the online-user queries used by other services,
// e.g. private messaging looking up live routing targets.
type PresenceHandlers struct {
	registry *presence.Registry
	hub      *ws.Hub
	lastSeen database.PresenceRepository
}

// NewPresenceHandlers builds the handlers. lastSeen may be nil when no
// journal is configured.
func NewPresenceHandlers(registry *presence.Registry, hub *ws.Hub, lastSeen database.PresenceRepository) *PresenceHandlers {
	return &PresenceHandlers{
		registry: registry,
		hub:      hub,
		lastSeen: lastSeen,
	}
}

// ListOnline serves GET /online.
func (h *PresenceHandlers) ListOnline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	users := h.registry.OnlineUsers()
	if users == nil {
		users = []string{}
	}
	writeJSON(w, http.StatusOK, models.OnlineUsers{Count: len(users), Users: users})
}

// User serves GET and DELETE /online/{identity}.
func (h *PresenceHandlers) User(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimPrefix(r.URL.Path, "/online/")
	if identity == "" || strings.Contains(identity, "/") {
		http.Error(w, "invalid identity", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getUser(w, r, identity)
	case http.MethodDelete:
		n := h.hub.DisconnectUser(r.Context(), identity)
		if n == 0 {
			http.Error(w, "user is not online", http.StatusNotFound)
			return
		}
		logger.Info("Disconnected %d session(s) of %s", n, identity)
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *PresenceHandlers) getUser(w http.ResponseWriter, r *http.Request, identity string) {
	sessions := h.registry.Sessions(identity)
	if sessions == nil {
		sessions = []string{}
	}
	resp := models.UserPresence{
		Identity: identity,
		Online:   len(sessions) > 0,
		Sessions: sessions,
	}
	if h.lastSeen != nil {
		at, err := h.lastSeen.LastSeen(r.Context(), identity)
		switch {
		case err == nil:
			resp.LastSeen = &at
		case !errors.Is(err, database.ErrNotFound):
			logger.Error("Get last seen error: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Health serves GET /healthz.
func (h *PresenceHandlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"connections": h.hub.NumClients(),
		"online":      h.registry.OnlineCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Encode response error: %v", err)
	}
}
