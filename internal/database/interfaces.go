package database

import (
	"context"
	"time"

	"campus-chat/internal/models"
)

type PresenceRepository interface {
	RecordPresence(ctx context.Context, identity string, kind models.EventType, online int, at time.Time) error
	LastSeen(ctx context.Context, identity string) (time.Time, error)
}

type Database interface {
	PresenceRepository
	Migrate(ctx context.Context) error
	Close() error
}
