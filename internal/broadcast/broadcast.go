// Package broadcast provides Broadcaster implementations beyond the
// in-process websocket hub.
package broadcast

import (
	"context"
	"errors"

	"campus-chat/internal/models"
	"campus-chat/internal/presence"
)

// Fanout publishes every event to each of its broadcasters in order. A
// failing broadcaster does not stop the others.
type Fanout []presence.Broadcaster

func (f Fanout) Publish(ctx context.Context, channel string, event models.Event) error {
	var errs []error
	for _, b := range f {
		if err := b.Publish(ctx, channel, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
