package db

import (
	"database/sql"
)

func init() {
	RegisterMigration(Migration{
		Version:     1,
		Description: "Create session_state table for archive and read tracking",
		Up:          migration001_initial,
	})
}

func migration001_initial(db *sql.DB) error {
	// Per-session client-side state the transcript files themselves don't
	// carry: archive status and the last message count the user has seen.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS session_state (
			session_id      TEXT PRIMARY KEY,
			archived_at     INTEGER,
			last_read_count INTEGER NOT NULL DEFAULT 0,
			updated_at      INTEGER NOT NULL DEFAULT 0
		)
	`)
	return err
}
