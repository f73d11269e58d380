// Package pgstore is the PostgreSQL counterpart of sqlitestore: the same
// one-row-per-path JSON bookkeeping scheme, over github.com/jackc/pgx/v5
// instead of database/sql+mattn/go-sqlite3. Queries go through a small
// Querier interface so tests can substitute pgxmock instead of a live
// database.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/smallnest/coregraph/metadata"
	"github.com/smallnest/coregraph/storage"
)

// Querier is the subset of pgxpool.Pool (and pgxmock.PgxPoolIface) this
// package needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is a DataStorage backed by a PostgreSQL table.
type Store struct {
	q         Querier
	pool      *pgxpool.Pool // non-nil only when this Store owns the connection
	tableName string
}

// Options configures a Store.
type Options struct {
	DSN string
	// TableName defaults to "data_items".
	TableName string
}

// Open connects to PostgreSQL and ensures the bookkeeping table exists.
func Open(ctx context.Context, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}

	s, err := newStore(ctx, pool, opts.TableName)
	if err != nil {
		pool.Close()
		return nil, err
	}
	s.pool = pool
	return s, nil
}

// NewWithPool builds a Store over an already-connected Querier (a
// *pgxpool.Pool, or a pgxmock.PgxPoolIface in tests). The caller owns q's
// lifecycle; Close is a no-op on a Store built this way.
func NewWithPool(ctx context.Context, q Querier, tableName string) (*Store, error) {
	return newStore(ctx, q, tableName)
}

func newStore(ctx context.Context, q Querier, tableName string) (*Store, error) {
	if tableName == "" {
		tableName = "data_items"
	}
	s := &Store{q: q, tableName: tableName}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			path TEXT PRIMARY KEY,
			format TEXT NOT NULL,
			payload JSONB NOT NULL
		)
	`, s.tableName)

	if _, err := s.q.Exec(ctx, query); err != nil {
		return fmt.Errorf("pgstore: create schema: %w", err)
	}
	return nil
}

// Close releases the connection pool, if this Store opened one itself.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

type payload struct {
	Rows [][]any `json:"rows"`
}

// ReadTable reads the row stored at path and decodes it against schema.
func (s *Store) ReadTable(ctx context.Context, schema metadata.TableDefinition, path, format string, options map[string]string) (*storage.Table, error) {
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE path = $1`, s.tableName)

	var raw []byte
	err := s.q.QueryRow(ctx, query, path).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, &storage.DataNotAvailableError{DataItem: path, Reason: "no row stored at this path"}
	}
	if err != nil {
		return nil, fmt.Errorf("pgstore: read %q: %w", path, err)
	}

	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("pgstore: decode %q: %w", path, err)
	}
	return &storage.Table{Schema: schema, Rows: p.Rows}, nil
}

// WriteTable upserts table's rows as the JSON payload stored at path.
func (s *Store) WriteTable(ctx context.Context, schema metadata.TableDefinition, table *storage.Table, path, format string, options map[string]string) error {
	raw, err := json.Marshal(payload{Rows: table.Rows})
	if err != nil {
		return fmt.Errorf("pgstore: encode %q: %w", path, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (path, format, payload) VALUES ($1, $2, $3)
		ON CONFLICT (path) DO UPDATE SET format = excluded.format, payload = excluded.payload
	`, s.tableName)

	if _, err := s.q.Exec(ctx, query, path, format, raw); err != nil {
		return fmt.Errorf("pgstore: write %q: %w", path, err)
	}
	return nil
}
