// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	tallyerrors "github.com/tombee/tally/pkg/errors"
)

// SQLiteStore is a Sink backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// Config contains SQLite storage configuration.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// Special value ":memory:" creates an in-memory database.
	Path string

	// MaxOpenConns sets the maximum number of open connections.
	MaxOpenConns int
}

// Open opens the database at cfg.Path and creates the schema.
func Open(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, &tallyerrors.PersistError{Op: "open", Cause: fmt.Errorf("database path is required")}
	}

	connStr := cfg.Path
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, &tallyerrors.PersistError{Op: "open", Cause: err}
		}
		connStr += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, &tallyerrors.PersistError{Op: "open", Cause: err}
	}

	maxConns := cfg.MaxOpenConns
	if maxConns == 0 {
		maxConns = 4
	}
	// Every connection to :memory: is a separate database.
	if cfg.Path == ":memory:" {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &tallyerrors.PersistError{Op: "connect", Cause: err}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, &tallyerrors.PersistError{Op: "migrate", Cause: err}
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS count_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			processed_at INTEGER NOT NULL,
			value INTEGER NOT NULL,
			producer TEXT,
			consumer TEXT,
			queue_name TEXT,
			message TEXT,
			kernel TEXT,
			framework TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_count_history_processed_at ON count_history(processed_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Save inserts rec. A zero ProcessedAt is replaced by the current time.
func (s *SQLiteStore) Save(ctx context.Context, rec Record) error {
	processedAt := rec.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO count_history (processed_at, value, producer, consumer, queue_name,
			message, kernel, framework)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		processedAt.UTC().UnixNano(),
		rec.Result.Value,
		nullable(rec.Result.Producer),
		nullable(rec.Consumer),
		nullable(rec.Queue),
		rec.Result.Message,
		nullable(rec.Result.Kernel),
		nullable(rec.Result.Framework),
	)
	if err != nil {
		return &tallyerrors.PersistError{Op: "save", Cause: err}
	}
	return nil
}

// Recent returns up to limit entries, newest first. Times are in UTC.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, processed_at, value, producer, consumer, queue_name, message, kernel, framework
		FROM count_history
		ORDER BY processed_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, &tallyerrors.PersistError{Op: "query", Cause: err}
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                                      Entry
			processedAt                            int64
			producer, consumer, queue, msg, kernel sql.NullString
			framework                              sql.NullString
		)
		if err := rows.Scan(&e.ID, &processedAt, &e.Result.Value, &producer, &consumer,
			&queue, &msg, &kernel, &framework); err != nil {
			return nil, &tallyerrors.PersistError{Op: "scan", Cause: err}
		}
		e.ProcessedAt = time.Unix(0, processedAt).UTC()
		e.Result.Producer = producer.String
		e.Consumer = consumer.String
		e.Queue = queue.String
		e.Result.Kernel = kernel.String
		e.Result.Framework = framework.String
		if msg.Valid {
			m := msg.String
			e.Result.Message = &m
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &tallyerrors.PersistError{Op: "query", Cause: err}
	}
	return entries, nil
}

// DeleteOlderThan deletes entries processed before the given time and
// returns the number of rows removed.
func (s *SQLiteStore) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM count_history WHERE processed_at < ?",
		before.UTC().UnixNano(),
	)
	if err != nil {
		return 0, &tallyerrors.PersistError{Op: "delete", Cause: err}
	}
	count, _ := result.RowsAffected()
	return count, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ Sink = (*SQLiteStore)(nil)
