package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-chat/internal/models"
	"campus-chat/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

type PostgresDB struct {
	pool *pgxpool.Pool
}

var _ Database = (*PostgresDB)(nil)

func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

func (db *PostgresDB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS presence_events (
			id           BIGSERIAL PRIMARY KEY,
			identity     TEXT        NOT NULL,
			kind         TEXT        NOT NULL,
			online_count INTEGER     NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS presence_events_identity_idx ON presence_events (identity, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS user_last_seen (
			identity  TEXT PRIMARY KEY,
			online    BOOLEAN     NOT NULL,
			last_seen TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// RecordPresence appends the announcement and refreshes the identity's
// last-seen row in one transaction.
func (db *PostgresDB) RecordPresence(ctx context.Context, identity string, kind models.EventType, online int, at time.Time) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`INSERT INTO presence_events (identity, kind, online_count, created_at) VALUES ($1, $2, $3, $4)`,
		identity, string(kind), online, at,
	); err != nil {
		return fmt.Errorf("insert presence event: %w", err)
	}

	query := `
		INSERT INTO user_last_seen (identity, online, last_seen) VALUES ($1, $2, $3)
		ON CONFLICT (identity)
		DO UPDATE SET online = EXCLUDED.online, last_seen = EXCLUDED.last_seen`
	if _, err := tx.Exec(ctx, query, identity, kind == models.EventJoin, at); err != nil {
		return fmt.Errorf("update last seen: %w", err)
	}

	return tx.Commit(ctx)
}

func (db *PostgresDB) LastSeen(ctx context.Context, identity string) (time.Time, error) {
	var lastSeen time.Time
	err := db.pool.QueryRow(ctx, `SELECT last_seen FROM user_last_seen WHERE identity = $1`, identity).Scan(&lastSeen)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, ErrNotFound
	}
	return lastSeen, err
}
