package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"cloudmon/migrations"
)

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// WasMessageScanned reports whether the message was recorded under any rule
// index.
func (s *SQLite) WasMessageScanned(ctx context.Context, channelID string, messageID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM processed_msgs WHERE channel_id = ? AND msg_id = ?`,
		channelID, messageID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check scanned: %w", err)
	}
	return count > 0, nil
}

// WasLinkSent reports whether the (link, rule) pair was recorded as sent.
func (s *SQLite) WasLinkSent(ctx context.Context, link string, ruleIdx int) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sent_links WHERE link = ? AND rule_idx = ?`,
		link, ruleIdx,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check sent: %w", err)
	}
	return count > 0, nil
}

// RecordLinkSent marks the (link, rule) pair as sent.
func (s *SQLite) RecordLinkSent(ctx context.Context, link string, ruleIdx int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sent_links (link, rule_idx) VALUES (?, ?)`,
		link, ruleIdx,
	)
	if err != nil {
		return fmt.Errorf("record sent: %w", err)
	}
	return nil
}

// RecordScannedBulk inserts a batch of examined-message records in one
// transaction.
func (s *SQLite) RecordScannedBulk(ctx context.Context, recs []ScannedMessage) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO processed_msgs (channel_id, msg_id, rule_idx, scanned_at) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, r.ChannelID, r.MessageID, r.RuleIndex, r.ScannedAt.Unix()); err != nil {
			return fmt.Errorf("insert scanned %s/%d: %w", r.ChannelID, r.MessageID, err)
		}
	}
	return tx.Commit()
}

// PurgeScannedBefore deletes processed-message rows older than cutoff. Rows
// with a zero timestamp (pre-migration data) are kept.
func (s *SQLite) PurgeScannedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM processed_msgs WHERE scanned_at > 0 AND scanned_at < ?`,
		cutoff.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("purge scanned: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
