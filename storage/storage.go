// Package storage narrows the runtime's view of physical data and file
// storage to the handful of operations the graph processor's LoadData and
// SaveData node functions actually need: existence checks, file stat, and
// typed table read/write. Concrete backends (localfs, sqlitestore,
// pgstore, rediscache) implement these interfaces; callers only ever see
// the interfaces.
package storage

import (
	"context"
	"fmt"

	"github.com/smallnest/coregraph/metadata"
)

// FileType discriminates what a stat call found at a path.
type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeFile
	FileTypeDirectory
)

// FileStat is the result of a FileStorage.Stat call.
type FileStat struct {
	FileType FileType
}

// FileStorage answers existence/shape questions about paths within one
// named storage location.
type FileStorage interface {
	Stat(ctx context.Context, path string) (FileStat, error)
}

// Table is an in-memory tabular dataset: a schema plus rows, each row a
// positional slice matching Schema.Fields in order. A plain struct, not a
// dataframe library, is enough here: the core never transforms tables, it
// only carries them between a DataStorage backend and a model.
type Table struct {
	Schema metadata.TableDefinition
	Rows   [][]any
}

// DataStorage reads and writes whole tables by path, within one named
// storage location.
type DataStorage interface {
	ReadTable(ctx context.Context, schema metadata.TableDefinition, path, format string, options map[string]string) (*Table, error)
	WriteTable(ctx context.Context, schema metadata.TableDefinition, table *Table, path, format string, options map[string]string) error
}

// StorageManager is the facade LoadDataNode/SaveDataNode resolve against:
// one registry of named storage locations, each backed by a FileStorage
// and a DataStorage.
type StorageManager interface {
	HasDataStorage(key string) bool
	GetFileStorage(key string) (FileStorage, error)
	GetDataStorage(key string) (DataStorage, error)
}

// DataNotAvailableError is raised when no available copy of a data item
// can be found in any connected storage location.
type DataNotAvailableError struct {
	DataItem string
	Reason   string
}

func (e *DataNotAvailableError) Error() string {
	return fmt.Sprintf("data item %q not available: %s", e.DataItem, e.Reason)
}

// InvalidMetadataError is raised when a data item's storage bookkeeping is
// missing or structurally broken.
type InvalidMetadataError struct {
	DataItem string
	Reason   string
}

func (e *InvalidMetadataError) Error() string {
	return fmt.Sprintf("invalid metadata for data item %q: %s", e.DataItem, e.Reason)
}

// location is one named storage destination: a DataStorage is mandatory,
// a FileStorage is optional (only localfs's Store implements both; the
// database-backed DataStorage backends have no filesystem of their own).
type location struct {
	file FileStorage
	data DataStorage
}

// Registry is the StorageManager reference implementation: a fixed set of
// named locations, assembled once at startup (see runtime.NewRuntime) and shared
// read-only across every job the engine runs. Nothing adds a storage
// location after the runtime has started, so Add is the only mutator and
// is never called past construction.
type Registry struct {
	locations map[string]location
}

// NewRegistry builds an empty Registry. Use Add to populate it.
func NewRegistry() *Registry {
	return &Registry{locations: make(map[string]location)}
}

// Add registers a named location. Either backend may be nil; a nil
// DataStorage leaves the key visible to HasDataStorage as false for data
// purposes, and a nil FileStorage makes GetFileStorage fail for that key.
func (r *Registry) Add(key string, file FileStorage, data DataStorage) {
	r.locations[key] = location{file: file, data: data}
}

// HasDataStorage implements StorageManager.
func (r *Registry) HasDataStorage(key string) bool {
	loc, ok := r.locations[key]
	return ok && loc.data != nil
}

// GetFileStorage implements StorageManager.
func (r *Registry) GetFileStorage(key string) (FileStorage, error) {
	loc, ok := r.locations[key]
	if !ok || loc.file == nil {
		return nil, fmt.Errorf("storage: no file storage configured for key %q", key)
	}
	return loc.file, nil
}

// GetDataStorage implements StorageManager.
func (r *Registry) GetDataStorage(key string) (DataStorage, error) {
	loc, ok := r.locations[key]
	if !ok || loc.data == nil {
		return nil, fmt.Errorf("storage: no data storage configured for key %q", key)
	}
	return loc.data, nil
}
