// Package localfs is the reference storage backend: a plain directory on
// local disk holding one CSV file per table path. It exists so the module
// runs end to end without any external service.
package localfs

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/smallnest/coregraph/metadata"
	"github.com/smallnest/coregraph/storage"
)

// Store is a FileStorage and DataStorage rooted at one local directory.
type Store struct {
	root string
}

// New creates a Store rooted at dir. The directory is created if absent.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("localfs: create root %q: %w", dir, err)
	}
	return &Store{root: dir}, nil
}

func (s *Store) resolve(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

// Stat reports whether path is a file, a directory, or absent.
func (s *Store) Stat(ctx context.Context, path string) (storage.FileStat, error) {
	info, err := os.Stat(s.resolve(path))
	if os.IsNotExist(err) {
		return storage.FileStat{FileType: storage.FileTypeUnknown}, nil
	}
	if err != nil {
		return storage.FileStat{}, fmt.Errorf("localfs: stat %q: %w", path, err)
	}
	if info.IsDir() {
		return storage.FileStat{FileType: storage.FileTypeDirectory}, nil
	}
	return storage.FileStat{FileType: storage.FileTypeFile}, nil
}

// ReadTable reads a CSV file at path into a Table, coercing each field
// according to schema. format is accepted for interface conformance; only
// "CSV" is implemented.
func (s *Store) ReadTable(ctx context.Context, schema metadata.TableDefinition, path, format string, options map[string]string) (*storage.Table, error) {
	if format != "" && format != "CSV" {
		return nil, fmt.Errorf("localfs: unsupported format %q", format)
	}

	f, err := os.Open(s.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("localfs: open %q: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("localfs: read %q: %w", path, err)
	}

	rows := make([][]any, 0, len(records))
	for _, rec := range records {
		row, err := decodeRow(schema, rec)
		if err != nil {
			return nil, fmt.Errorf("localfs: decode %q: %w", path, err)
		}
		rows = append(rows, row)
	}

	return &storage.Table{Schema: schema, Rows: rows}, nil
}

// WriteTable writes table's rows to path as CSV, creating parent
// directories as needed.
func (s *Store) WriteTable(ctx context.Context, schema metadata.TableDefinition, table *storage.Table, path, format string, options map[string]string) error {
	if format != "" && format != "CSV" {
		return fmt.Errorf("localfs: unsupported format %q", format)
	}

	full := s.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("localfs: create parent dir for %q: %w", path, err)
	}

	f, err := os.Create(full)
	if err != nil {
		return fmt.Errorf("localfs: create %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for _, row := range table.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = fmt.Sprint(v)
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("localfs: write %q: %w", path, err)
		}
	}
	w.Flush()
	return w.Error()
}

func decodeRow(schema metadata.TableDefinition, rec []string) ([]any, error) {
	row := make([]any, len(rec))
	for i, raw := range rec {
		var fieldType metadata.BasicType
		if i < len(schema.Fields) {
			fieldType = schema.Fields[i].FieldType
		}
		v, err := decodeValue(fieldType, raw)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

func decodeValue(fieldType metadata.BasicType, raw string) (any, error) {
	switch fieldType {
	case metadata.BasicTypeInteger:
		return strconv.ParseInt(raw, 10, 64)
	case metadata.BasicTypeFloat, metadata.BasicTypeDecimal:
		return strconv.ParseFloat(raw, 64)
	case metadata.BasicTypeBoolean:
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}
