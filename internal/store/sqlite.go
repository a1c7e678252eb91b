package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DefaultSQLitePath is used when no DSN is configured.
const DefaultSQLitePath = "file:aituber.db"

var sqliteDialect = dialect{
	name: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			stream_title TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			ended_at INTEGER
		)`,
		`CREATE TABLE IF NOT EXISTS viewers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			username TEXT NOT NULL,
			username_reading TEXT NOT NULL,
			UNIQUE(session_id, username)
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			username TEXT NOT NULL,
			comment TEXT NOT NULL,
			response TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_session_created ON conversations(session_id, created_at)`,
	},
}

// OpenSQLite opens (or creates) an embedded SQLite database at dsn.
func OpenSQLite(ctx context.Context, dsn string) (*SQLStore, error) {
	if dsn == "" {
		dsn = DefaultSQLitePath
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serialises writers anyway; a single connection avoids SQLITE_BUSY under concurrent comments.
	db.SetMaxOpenConns(1)

	return newSQLStore(ctx, db, sqliteDialect)
}
