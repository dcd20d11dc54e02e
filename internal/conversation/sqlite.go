package conversation

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps conversation records in a local SQLite file.
type SQLiteStore struct {
	db    *sql.DB
	limit int
	now   func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at path and
// migrates the schema.
func NewSQLiteStore(path string, limit int) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time keeps read-modify-write appends serialised.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	limit = PairLimit(limit)
	s := &SQLiteStore{db: db, limit: limit, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS conversations (
		device_id TEXT PRIMARY KEY,
		messages TEXT NOT NULL,
		last_activity DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_last_activity ON conversations(last_activity);
	`)
	return err
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readMessages(ctx context.Context, q querier, deviceID string) ([]Message, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT messages FROM conversations WHERE device_id = ?`, deviceID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []Message{}, nil
	}
	if err != nil {
		return []Message{}, fmt.Errorf("select conversation: %w", err)
	}

	var msgs []Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return []Message{}, fmt.Errorf("decoding conversation: %w", err)
	}
	return msgs, nil
}

// Read implements Store.
func (s *SQLiteStore) Read(ctx context.Context, deviceID string) ([]Message, error) {
	return readMessages(ctx, s.db, deviceID)
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, deviceID, user, assistant string) error {
	now := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	existing, err := readMessages(ctx, tx, deviceID)
	if err != nil {
		return err
	}
	data, err := json.Marshal(Window(existing, s.limit, Pair(user, assistant, now)...))
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
	INSERT INTO conversations (device_id, messages, last_activity)
	VALUES (?, ?, ?)
	ON CONFLICT(device_id) DO UPDATE SET
		messages = excluded.messages,
		last_activity = excluded.last_activity
	`, deviceID, string(data), now.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return tx.Commit()
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context, deviceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE device_id = ?`, deviceID)
	return err
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
