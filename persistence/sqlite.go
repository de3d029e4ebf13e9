// persistence/sqlite.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS round_records (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        round_id INTEGER NOT NULL,
        variant TEXT NOT NULL,
        width INTEGER NOT NULL,
        height INTEGER NOT NULL,
        length INTEGER NOT NULL,
        winner_id TEXT NOT NULL DEFAULT '',
        termination TEXT NOT NULL,
        players TEXT NOT NULL,
        moves TEXT NOT NULL,
        started_at DATETIME NOT NULL,
        ended_at DATETIME NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS round_players (
        record_id INTEGER NOT NULL REFERENCES round_records(id),
        user_id TEXT NOT NULL,
        outcome TEXT NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS idx_round_records_round_id ON round_records(round_id)`,
	`CREATE INDEX IF NOT EXISTS idx_round_players_user_id ON round_players(user_id)`,
}

// SQLite is a single-file archive.
type SQLite struct {
	sqlArchive
}

// NewSQLite opens (creating if needed) the database at path.
func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; serialise through a single connection.
	db.SetMaxOpenConns(1)

	if err := initSchema(context.Background(), db, sqliteSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{sqlArchive{db: db}}, nil
}

func initSchema(ctx context.Context, db *sql.DB, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}
