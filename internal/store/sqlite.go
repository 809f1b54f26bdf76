// Package store persists the player identity in a local SQLite file,
// so the client survives restarts without re-registering.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"pokerclient/internal/identity"
)

const opTimeout = 5 * time.Second

type SQLite struct {
	db *sql.DB
}

// Open opens (creating if needed) the identity database at dbPath.
// ":memory:" is accepted for tests.
func Open(dbPath string) (*SQLite, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS identity (
    slot         INTEGER PRIMARY KEY CHECK (slot = 1),
    player_id    TEXT    NOT NULL,
    display_name TEXT    NOT NULL,
    chips        INTEGER NOT NULL,
    updated_at   INTEGER NOT NULL
);`)
	return err
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the stored identity, or nil when none has been saved.
func (s *SQLite) Load() (*identity.Identity, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var rec identity.Identity
	err := s.db.QueryRowContext(ctx,
		`SELECT player_id, display_name, chips FROM identity WHERE slot = 1`,
	).Scan(&rec.PlayerID, &rec.DisplayName, &rec.Chips)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Save upserts the single identity row.
func (s *SQLite) Save(rec identity.Identity) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO identity (slot, player_id, display_name, chips, updated_at)
VALUES (1, ?, ?, ?, ?)
ON CONFLICT(slot) DO UPDATE SET
    player_id    = excluded.player_id,
    display_name = excluded.display_name,
    chips        = excluded.chips,
    updated_at   = excluded.updated_at`,
		rec.PlayerID, rec.DisplayName, rec.Chips, time.Now().Unix())
	return err
}

// Clear removes the stored identity. Used on explicit logout only.
func (s *SQLite) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `DELETE FROM identity WHERE slot = 1`)
	return err
}
