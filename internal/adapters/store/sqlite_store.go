package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStore is a SQLite implementation of the Store interface
type SQLiteStore struct {
	*sqlStore
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	// One writer keeps per-key writes serialized
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS classification_records (
			key_hash TEXT PRIMARY KEY,
			subject_key TEXT NOT NULL,
			kind TEXT NOT NULL,
			verdict TEXT NOT NULL,
			sender TEXT,
			subject TEXT,
			body_excerpt TEXT,
			classified_at TEXT NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_verdict ON classification_records(verdict)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &SQLiteStore{&sqlStore{
		db:     db,
		logger: logger,
		upsert: `
			INSERT OR REPLACE INTO classification_records
				(key_hash, subject_key, kind, verdict, sender, subject, body_excerpt, classified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
		changeFeed: newChangeFeed(),
	}}, nil
}
