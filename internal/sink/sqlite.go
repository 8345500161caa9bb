package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned by Get when no record matches.
var ErrNotFound = errors.New("record not found")

// SQLiteSink stores records in a SQLite database, one row per source and
// format.
type SQLiteSink struct {
	db *sql.DB
}

// busyTimeout is how long a connection waits on a locked database, in
// milliseconds.
const busyTimeout = 5000

// OpenSQLite opens or creates the database at path with WAL mode enabled.
// The pragmas are part of the DSN so every pooled connection gets them.
func OpenSQLite(ctx context.Context, path string) (*SQLiteSink, error) {
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteSink{db: db}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	format TEXT NOT NULL,
	pages INTEGER NOT NULL,
	text TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE(source, format)
);
CREATE INDEX IF NOT EXISTS idx_documents_created ON documents(created_at);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Write inserts rec or replaces the earlier record for the same source and
// format. A replaced row takes the new ID.
func (s *SQLiteSink) Write(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		rec.ID = NewID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO documents (id, source, format, pages, text, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(source, format) DO UPDATE SET
	id = excluded.id,
	pages = excluded.pages,
	text = excluded.text,
	created_at = excluded.created_at`,
		rec.ID, rec.Source, rec.Format, rec.Pages, rec.Text, rec.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store %s: %w", rec.Source, err)
	}
	return nil
}

// Get returns the stored record for source and format.
func (s *SQLiteSink) Get(ctx context.Context, source, format string) (Record, error) {
	var rec Record
	var created string
	err := s.db.QueryRowContext(ctx, `
SELECT id, source, format, pages, text, created_at
FROM documents WHERE source = ? AND format = ?`, source, format).
		Scan(&rec.ID, &rec.Source, &rec.Format, &rec.Pages, &rec.Text, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s (%s)", ErrNotFound, source, format)
	}
	if err != nil {
		return Record{}, err
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Record{}, fmt.Errorf("parse created_at: %w", err)
	}
	return rec, nil
}

// Count returns the number of stored records.
func (s *SQLiteSink) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
