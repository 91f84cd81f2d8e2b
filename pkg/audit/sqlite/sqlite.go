// Package sqlite provides a file-backed audit.Sink on the pure Go SQLite
// driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/audit"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_records (
	id          TEXT PRIMARY KEY,
	recorded_at INTEGER NOT NULL,
	request_id  TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL,
	protocol    TEXT NOT NULL,
	remote_addr TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL,
	duration_us INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_records_recorded_at_idx ON audit_records (recorded_at DESC);
`

// Store is a SQLite-backed audit.Sink.
type Store struct {
	db *sql.DB
}

var _ audit.Sink = (*Store)(nil)

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Append inserts rec.
func (s *Store) Append(ctx context.Context, rec audit.Record) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO audit_records (
	id, recorded_at, request_id, kind, protocol,
	remote_addr, subject, outcome, duration_us
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Time.UnixNano(), rec.RequestID, string(rec.Kind), rec.Protocol,
		rec.RemoteAddr, rec.Subject, rec.Outcome, rec.Duration.Microseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

const selectColumns = `
SELECT id, recorded_at, request_id, kind, protocol,
       remote_addr, subject, outcome, duration_us
FROM audit_records`

// Get returns the record with the given ID.
func (s *Store) Get(ctx context.Context, id string) (audit.Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return audit.Record{}, audit.ErrNotFound
	}
	if err != nil {
		return audit.Record{}, fmt.Errorf("query audit record: %w", err)
	}
	return rec, nil
}

// List returns matching records, newest first.
func (s *Store) List(ctx context.Context, opts audit.ListOptions) ([]audit.Record, error) {
	var (
		where []string
		args  []any
	)
	if opts.Subject != "" {
		where = append(where, "subject = ?")
		args = append(args, opts.Subject)
	}
	if opts.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(opts.Kind))
	}
	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_at DESC, id DESC LIMIT ?"
	args = append(args, opts.EffectiveLimit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (audit.Record, error) {
	var (
		rec        audit.Record
		kind       string
		at         int64
		durationUS int64
	)
	err := row.Scan(
		&rec.ID, &at, &rec.RequestID, &kind, &rec.Protocol,
		&rec.RemoteAddr, &rec.Subject, &rec.Outcome, &durationUS,
	)
	if err != nil {
		return audit.Record{}, err
	}
	rec.Kind = api.Kind(kind)
	rec.Time = time.Unix(0, at).UTC()
	rec.Duration = time.Duration(durationUS) * time.Microsecond
	return rec, nil
}
