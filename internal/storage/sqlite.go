package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"flat_bot/internal/model"
	"flat_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

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
	// One connection: a single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)

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

// LoadSeen returns every listing ID recorded so far.
func (s *SQLite) LoadSeen(ctx context.Context) (model.IDSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT listing_id FROM seen_listings`)
	if err != nil {
		return nil, fmt.Errorf("query seen listings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	seen := model.NewIDSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan seen listing: %w", err)
		}
		seen.Add(id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate seen listings: %w", err)
	}
	return seen, nil
}

// SaveSeen replaces the stored set with seen in a single transaction.
// IDs already stored keep their first-seen timestamp.
func (s *SQLite) SaveSeen(ctx context.Context, seen model.IDSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `CREATE TEMP TABLE IF NOT EXISTS keep_listings (listing_id TEXT PRIMARY KEY)`); err != nil {
		return fmt.Errorf("create temp table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM keep_listings`); err != nil {
		return fmt.Errorf("clear temp table: %w", err)
	}

	now := time.Now().UTC().Format(timeLayout)
	keep, err := tx.PrepareContext(ctx, `INSERT INTO keep_listings (listing_id) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("prepare keep: %w", err)
	}
	defer func() { _ = keep.Close() }()
	insert, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO seen_listings (listing_id, first_seen_at) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = insert.Close() }()

	for _, id := range seen.Sorted() {
		if _, err := keep.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("keep listing %s: %w", id, err)
		}
		if _, err := insert.ExecContext(ctx, id, now); err != nil {
			return fmt.Errorf("insert listing %s: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM seen_listings WHERE listing_id NOT IN (SELECT listing_id FROM keep_listings)`); err != nil {
		return fmt.Errorf("delete stale listings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM keep_listings`); err != nil {
		return fmt.Errorf("clear temp table: %w", err)
	}
	return tx.Commit()
}

// ListSubscribers returns all subscribed chat IDs in subscription order.
func (s *SQLite) ListSubscribers(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT chat_id FROM subscribers ORDER BY subscribed_at, chat_id`)
	if err != nil {
		return nil, fmt.Errorf("query subscribers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AddSubscriber subscribes a chat. Subscribing twice is not an error.
func (s *SQLite) AddSubscriber(ctx context.Context, chatID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO subscribers (chat_id, subscribed_at) VALUES (?, ?)`,
		chatID, time.Now().UTC().Format(timeLayout),
	)
	if err != nil {
		return false, fmt.Errorf("insert subscriber: %w", err)
	}
	return affected(res)
}

// RemoveSubscriber unsubscribes a chat.
func (s *SQLite) RemoveSubscriber(ctx context.Context, chatID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE chat_id = ?`, chatID)
	if err != nil {
		return false, fmt.Errorf("delete subscriber: %w", err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
