// Package postgres provides a PostgreSQL audit.Sink built on a pgx
// connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/modelserve/pkg/api"
	"github.com/rhuss/modelserve/pkg/audit"
)

// Store is a PostgreSQL-backed audit.Sink.
type Store struct {
	pool *pgxpool.Pool
}

var _ audit.Sink = (*Store)(nil)

// New connects to the database and, if configured, applies migrations.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}
	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	return s, nil
}

// Append inserts rec.
func (s *Store) Append(ctx context.Context, rec audit.Record) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_records (
			id, recorded_at, request_id, kind, protocol,
			remote_addr, subject, outcome, duration_us
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		rec.ID, rec.Time, rec.RequestID, string(rec.Kind), rec.Protocol,
		rec.RemoteAddr, rec.Subject, rec.Outcome, rec.Duration.Microseconds(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("audit record %s already exists", rec.ID)
		}
		return fmt.Errorf("inserting audit record: %w", err)
	}
	return nil
}

const selectColumns = `
	SELECT id, recorded_at, request_id, kind, protocol,
	       remote_addr, subject, outcome, duration_us
	FROM audit_records`

// Get returns the record with the given ID.
func (s *Store) Get(ctx context.Context, id string) (audit.Record, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, selectColumns+" WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return audit.Record{}, audit.ErrNotFound
	}
	if err != nil {
		return audit.Record{}, fmt.Errorf("querying audit record: %w", err)
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
		args = append(args, opts.Subject)
		where = append(where, fmt.Sprintf("subject = $%d", len(args)))
	}
	if opts.Kind != "" {
		args = append(args, string(opts.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	query := selectColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, opts.EffectiveLimit())
	query += fmt.Sprintf(" ORDER BY recorded_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit records: %w", err)
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning audit record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func scanRecord(row pgx.Row) (audit.Record, error) {
	var (
		rec        audit.Record
		kind       string
		durationUS int64
	)
	err := row.Scan(
		&rec.ID, &rec.Time, &rec.RequestID, &kind, &rec.Protocol,
		&rec.RemoteAddr, &rec.Subject, &rec.Outcome, &durationUS,
	)
	if err != nil {
		return audit.Record{}, err
	}
	rec.Kind = api.Kind(kind)
	rec.Time = rec.Time.UTC()
	rec.Duration = time.Duration(durationUS) * time.Microsecond
	return rec, nil
}
