package broadcast

import (
	"context"
	"errors"
	"testing"

	"campus-chat/internal/models"

	"github.com/stretchr/testify/require"
)

type stubBroadcaster struct {
	calls int
	err   error
}

func (s *stubBroadcaster) Publish(context.Context, string, models.Event) error {
	s.calls++
	return s.err
}

func TestFanoutPublishesToAll(t *testing.T) {
	failing := &stubBroadcaster{err: errors.New("nats down")}
	ok := &stubBroadcaster{}

	err := Fanout{failing, ok}.Publish(context.Background(), "/topic/global", models.Event{Type: models.EventJoin})
	require.ErrorIs(t, err, failing.err)
	require.Equal(t, 1, failing.calls)
	require.Equal(t, 1, ok.calls)
}

func TestFanoutNoErrors(t *testing.T) {
	a, b := &stubBroadcaster{}, &stubBroadcaster{}
	require.NoError(t, Fanout{a, b}.Publish(context.Background(), "/topic/global", models.Event{}))
	require.NoError(t, Fanout{}.Publish(context.Background(), "/topic/global", models.Event{}))
}

func TestSubject(t *testing.T) {
	require.Equal(t, "campus.presence.topic.global", Subject("campus.presence", "/topic/global"))
	require.Equal(t, "topic.private_room", Subject("", "/topic/private room"))
	require.Equal(t, "campus.presence", Subject("campus.presence", "/"))
}
