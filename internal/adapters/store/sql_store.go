package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/phish-alert/internal/core"
)

// sqlStore holds the statements shared by the SQLite and MySQL stores.
// Each dialect supplies its own upsert statement. Rows are keyed by the
// SHA-256 of the subject key, so URLs of any length fit the primary key.
type sqlStore struct {
	db     *sql.DB
	logger *zap.Logger
	upsert string
	*changeFeed
}

const selectColumns = `SELECT subject_key, kind, verdict, sender, subject, body_excerpt, classified_at
		FROM classification_records`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*core.Record, error) {
	var (
		r                            core.Record
		kind, verdict, classifiedAt  string
		sender, subject, bodyExcerpt sql.NullString
	)
	if err := row.Scan(&r.SubjectKey, &kind, &verdict, &sender, &subject, &bodyExcerpt, &classifiedAt); err != nil {
		return nil, err
	}

	var err error
	if r.Kind, err = core.ParseKind(kind); err != nil {
		return nil, err
	}
	if r.Verdict, err = core.ParseVerdict(verdict); err != nil {
		return nil, err
	}
	if r.ClassifiedAt, err = time.Parse(time.RFC3339Nano, classifiedAt); err != nil {
		return nil, fmt.Errorf("failed to parse classified_at timestamp: %w", err)
	}
	if r.Kind == core.KindEmail {
		r.Email = &core.EmailMeta{
			Sender:      sender.String,
			Subject:     subject.String,
			BodyExcerpt: bodyExcerpt.String,
		}
	}
	return &r, nil
}

// keyHash is the primary key stored for a subject key
func keyHash(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func recordArgs(r *core.Record) []any {
	var sender, subject, bodyExcerpt sql.NullString
	if r.Email != nil {
		sender = sql.NullString{String: r.Email.Sender, Valid: true}
		subject = sql.NullString{String: r.Email.Subject, Valid: true}
		bodyExcerpt = sql.NullString{String: r.Email.BodyExcerpt, Valid: true}
	}
	return []any{
		keyHash(r.SubjectKey), r.SubjectKey, string(r.Kind), string(r.Verdict),
		sender, subject, bodyExcerpt,
		r.ClassifiedAt.UTC().Format(time.RFC3339Nano),
	}
}

// GetAll returns every record ordered by key
func (s *sqlStore) GetAll(ctx context.Context) ([]*core.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY subject_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []*core.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			s.logger.Warn("Skipping unreadable record", zap.Error(err))
			continue
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return out, nil
}

// Get retrieves the record stored under key
func (s *sqlStore) Get(ctx context.Context, key string) (*core.Record, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+` WHERE key_hash = ?`, keyHash(key)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query record: %w", err)
	}
	return r, nil
}

// Set stores a record, replacing any previous record with the same key
func (s *sqlStore) Set(ctx context.Context, record *core.Record) error {
	if err := validateRecord(record); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.upsert, recordArgs(record)...); err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	s.publish([]string{record.SubjectKey})
	return nil
}

// Remove deletes the records stored under keys
func (s *sqlStore) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keys)), ",")
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = keyHash(k)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM classification_records WHERE key_hash IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	s.publish(keys)
	return nil
}

// Clear deletes every record
func (s *sqlStore) Clear(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT subject_key FROM classification_records`)
	if err != nil {
		return fmt.Errorf("failed to list record keys: %w", err)
	}
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan record key: %w", err)
		}
		keys = append(keys, k)
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx, `DELETE FROM classification_records`); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit clear: %w", err)
	}

	s.logger.Debug("Cleared record store", zap.Int("removed_count", len(keys)))
	s.publish(keys)
	return nil
}

// Stop closes the database connection
func (s *sqlStore) Stop() {
	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close record database", zap.Error(err))
	}
}
