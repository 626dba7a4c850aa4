package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"campus-chat/internal/presence"
	"campus-chat/internal/stomp"
	ws "campus-chat/internal/websocket"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWebSocketServer(t *testing.T, allowedOrigin string) (*presence.Coordinator, string) {
	t.Helper()
	extractor := presence.NewIdentityExtractor("", "")
	hub := ws.NewHub(extractor, ws.Options{}, nil)
	coord := presence.NewCoordinator(presence.NewRegistry(4), hub, presence.Options{})
	hub.SetPresence(coord)
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(NewWebSocketHandlers(hub, extractor, allowedOrigin).HandleWebSocket))
	t.Cleanup(func() {
		srv.Close()
		_ = hub.Shutdown(context.Background())
	})
	return coord, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHandshakeIdentityWinsOverConnectHeader(t *testing.T) {
	coord, url := newWebSocketServer(t, "")

	dialer := websocket.Dialer{Subprotocols: []string{"v12.stomp"}}
	conn, resp, err := dialer.Dial(url+"?username=alice", nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, "v12.stomp", resp.Header.Get("Sec-WebSocket-Protocol"))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		stomp.Encode(stomp.New(stomp.CmdConnect, "username", "mallory"))))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	f, err := stomp.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, stomp.CmdConnected, f.Command)
	assert.Equal(t, "alice", f.Header.Get(stomp.HdrUserName))
	assert.True(t, coord.Registry().IsOnline("alice"))
	assert.False(t, coord.Registry().IsOnline("mallory"))
}

func TestHandshakeRejectsForeignOrigin(t *testing.T) {
	_, url := newWebSocketServer(t, "https://lostfound.example.edu")

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
