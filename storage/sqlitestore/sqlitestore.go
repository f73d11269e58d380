// Package sqlitestore is a DataStorage backend over SQLite: every table is
// stored as one JSON-encoded row in a single bookkeeping table, keyed by
// its path. Shipping structured state as a JSON blob column keeps the
// backend schema fixed regardless of what table shapes callers store.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/smallnest/coregraph/metadata"
	"github.com/smallnest/coregraph/storage"
)

// Store is a DataStorage backed by a SQLite database file.
type Store struct {
	db        *sql.DB
	tableName string
}

// Options configures a Store.
type Options struct {
	Path string
	// TableName defaults to "data_items".
	TableName string
}

// Open opens (creating if necessary) the SQLite database at opts.Path and
// ensures its bookkeeping table exists.
func Open(opts Options) (*Store, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open %q: %w", opts.Path, err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "data_items"
	}
	s := &Store{db: db, tableName: tableName}

	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			path TEXT PRIMARY KEY,
			format TEXT NOT NULL,
			payload TEXT NOT NULL
		);
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sqlitestore: create schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

type payload struct {
	Rows [][]any `json:"rows"`
}

// ReadTable reads the row stored at path and decodes it against schema.
func (s *Store) ReadTable(ctx context.Context, schema metadata.TableDefinition, path, format string, options map[string]string) (*storage.Table, error) {
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE path = ?`, s.tableName)

	var raw string
	err := s.db.QueryRowContext(ctx, query, path).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, &storage.DataNotAvailableError{DataItem: path, Reason: "no row stored at this path"}
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: read %q: %w", path, err)
	}

	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("sqlitestore: decode %q: %w", path, err)
	}
	return &storage.Table{Schema: schema, Rows: p.Rows}, nil
}

// WriteTable upserts table's rows as the JSON payload stored at path.
func (s *Store) WriteTable(ctx context.Context, schema metadata.TableDefinition, table *storage.Table, path, format string, options map[string]string) error {
	raw, err := json.Marshal(payload{Rows: table.Rows})
	if err != nil {
		return fmt.Errorf("sqlitestore: encode %q: %w", path, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (path, format, payload) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET format = excluded.format, payload = excluded.payload
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query, path, format, string(raw)); err != nil {
		return fmt.Errorf("sqlitestore: write %q: %w", path, err)
	}
	return nil
}
