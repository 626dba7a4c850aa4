package handlers

import (
	"net/http"

	"campus-chat/internal/presence"
	ws "campus-chat/internal/websocket"
	"campus-chat/pkg/logger"

	"github.com/gorilla/websocket"
)

var stompSubprotocols = []string{"v12.stomp", "v11.stomp", "v10.stomp"}

type WebSocketHandlers struct {
	hub       *ws.Hub
	extractor presence.IdentityExtractor
	upgrader  websocket.Upgrader
}

func NewWebSocketHandlers(hub *ws.Hub, extractor presence.IdentityExtractor, allowedOrigin string) *WebSocketHandlers {
	return &WebSocketHandlers{
		hub:       hub,
		extractor: extractor,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			Subprotocols:    stompSubprotocols,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// The claimed identity is optional here, CONNECT may still carry it.
	attrs := &presence.Attributes{}
	if identity := h.extractor.FromHandshake(r, attrs); identity != "" {
		logger.Debug("WebSocket handshake: %s = %s", h.extractor.Param, identity)
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Upgrade error: %v", err)
		return
	}

	ws.NewClient(h.hub, conn, attrs).Start()
}
