package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"campus-chat/internal/database"
	"campus-chat/internal/models"
	"campus-chat/internal/presence"
	ws "campus-chat/internal/websocket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLastSeen struct {
	at map[string]time.Time
}

func (s stubLastSeen) RecordPresence(context.Context, string, models.EventType, int, time.Time) error {
	return nil
}

func (s stubLastSeen) LastSeen(_ context.Context, identity string) (time.Time, error) {
	at, ok := s.at[identity]
	if !ok {
		return time.Time{}, database.ErrNotFound
	}
	return at, nil
}

func newPresenceHandlers(t *testing.T, lastSeen database.PresenceRepository) (*PresenceHandlers, *presence.Coordinator) {
	t.Helper()
	registry := presence.NewRegistry(4)
	hub := ws.NewHub(presence.NewIdentityExtractor("", ""), ws.Options{}, nil)
	coord := presence.NewCoordinator(registry, hub, presence.Options{})
	hub.SetPresence(coord)
	go hub.Run()
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })
	return NewPresenceHandlers(registry, hub, lastSeen), coord
}

func TestListOnline(t *testing.T) {
	h, coord := newPresenceHandlers(t, nil)

	rec := httptest.NewRecorder()
	h.ListOnline(rec, httptest.NewRequest(http.MethodGet, "/online", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":0,"users":[]}`, rec.Body.String())

	coord.OnConnect("bob", "c2")
	coord.OnConnect("alice", "c1")
	coord.OnConnect("alice", "c3")

	rec = httptest.NewRecorder()
	h.ListOnline(rec, httptest.NewRequest(http.MethodGet, "/online", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body models.OnlineUsers
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	assert.Equal(t, []string{"alice", "bob"}, body.Users)
}

func TestListOnlineRejectsOtherMethods(t *testing.T) {
	h, _ := newPresenceHandlers(t, nil)

	rec := httptest.NewRecorder()
	h.ListOnline(rec, httptest.NewRequest(http.MethodPost, "/online", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestGetUser(t *testing.T) {
	seen := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h, coord := newPresenceHandlers(t, stubLastSeen{at: map[string]time.Time{"carol": seen}})
	coord.OnConnect("alice", "c1")

	rec := httptest.NewRecorder()
	h.User(rec, httptest.NewRequest(http.MethodGet, "/online/alice", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var alice models.UserPresence
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alice))
	assert.True(t, alice.Online)
	assert.Equal(t, []string{"c1"}, alice.Sessions)
	assert.Nil(t, alice.LastSeen)

	rec = httptest.NewRecorder()
	h.User(rec, httptest.NewRequest(http.MethodGet, "/online/carol", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var carol models.UserPresence
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &carol))
	assert.False(t, carol.Online)
	assert.Empty(t, carol.Sessions)
	require.NotNil(t, carol.LastSeen)
	assert.True(t, seen.Equal(*carol.LastSeen))
}

func TestUserRejectsBadPath(t *testing.T) {
	h, _ := newPresenceHandlers(t, nil)

	for _, path := range []string{"/online/", "/online/a/b"} {
		rec := httptest.NewRecorder()
		h.User(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestDeleteUser(t *testing.T) {
	h, coord := newPresenceHandlers(t, nil)
	coord.OnConnect("alice", "c1")
	coord.OnSubscribe(context.Background(), "alice", "c1", coord.Channel())

	rec := httptest.NewRecorder()
	h.User(rec, httptest.NewRequest(http.MethodDelete, "/online/alice", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, coord.Registry().IsOnline("alice"))
	assert.Equal(t, presence.Absent, coord.State("alice"))

	rec = httptest.NewRecorder()
	h.User(rec, httptest.NewRequest(http.MethodDelete, "/online/alice", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	h, coord := newPresenceHandlers(t, nil)
	coord.OnConnect("alice", "c1")

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","connections":0,"online":1}`, rec.Body.String())
}
