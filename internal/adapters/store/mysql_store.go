package store

import (
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLStore is a MySQL implementation of the Store interface
type MySQLStore struct {
	*sqlStore
}

// NewMySQLStore creates a new MySQL store
func NewMySQLStore(dsn string, logger *zap.Logger) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS classification_records (
			key_hash CHAR(64) PRIMARY KEY,
			subject_key TEXT NOT NULL,
			kind VARCHAR(16) NOT NULL,
			verdict VARCHAR(16) NOT NULL,
			sender VARCHAR(320),
			subject TEXT,
			body_excerpt TEXT,
			classified_at VARCHAR(40) NOT NULL,
			INDEX idx_verdict (verdict)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	return &MySQLStore{&sqlStore{
		db:     db,
		logger: logger,
		upsert: `
			INSERT INTO classification_records
				(key_hash, subject_key, kind, verdict, sender, subject, body_excerpt, classified_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				subject_key = VALUES(subject_key),
				kind = VALUES(kind),
				verdict = VALUES(verdict),
				sender = VALUES(sender),
				subject = VALUES(subject),
				body_excerpt = VALUES(body_excerpt),
				classified_at = VALUES(classified_at)
		`,
		changeFeed: newChangeFeed(),
	}}, nil
}
