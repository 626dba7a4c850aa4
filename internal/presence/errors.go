package presence

import "errors"

var (
	// ErrMissingIdentity is returned when a lifecycle event carries no
	// resolvable identity. Presence effects for the event are skipped.
	ErrMissingIdentity = errors.New("presence: missing identity")

	// ErrUnknownConnection is returned when a connection id was never
	// registered for the identity.
	ErrUnknownConnection = errors.New("presence: unknown connection")

	// ErrBroadcasterClosed is wrapped by broadcasters that no longer accept
	// events. Announcements made during shutdown fail with it.
	ErrBroadcasterClosed = errors.New("presence: broadcaster closed")
)
