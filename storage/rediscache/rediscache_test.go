package rediscache_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/coregraph/metadata"
	"github.com/smallnest/coregraph/storage"
	"github.com/smallnest/coregraph/storage/rediscache"
)

type fakeBackend struct {
	reads int
	table *storage.Table
}

func (f *fakeBackend) ReadTable(ctx context.Context, schema metadata.TableDefinition, path, format string, options map[string]string) (*storage.Table, error) {
	f.reads++
	return f.table, nil
}

func (f *fakeBackend) WriteTable(ctx context.Context, schema metadata.TableDefinition, table *storage.Table, path, format string, options map[string]string) error {
	f.table = table
	return nil
}

var schema = metadata.TableDefinition{Fields: []metadata.FieldDefinition{{Name: "id", FieldType: metadata.BasicTypeInteger}}}

func TestReadTableCachesAfterFirstMiss(t *testing.T) {
	mr := miniredis.RunT(t)
	backend := &fakeBackend{table: &storage.Table{Schema: schema, Rows: [][]any{{float64(1)}}}}
	cache := rediscache.New(backend, rediscache.Options{Addr: mr.Addr()})

	first, err := cache.ReadTable(context.Background(), schema, "customers", "JSON", nil)
	require.NoError(t, err)
	assert.Equal(t, backend.table.Rows, first.Rows)
	assert.Equal(t, 1, backend.reads)

	second, err := cache.ReadTable(context.Background(), schema, "customers", "JSON", nil)
	require.NoError(t, err)
	assert.Equal(t, backend.table.Rows, second.Rows)
	assert.Equal(t, 1, backend.reads, "second read must be served from cache, not the backend")
}

func TestWriteTableInvalidatesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	backend := &fakeBackend{table: &storage.Table{Schema: schema, Rows: [][]any{{float64(1)}}}}
	cache := rediscache.New(backend, rediscache.Options{Addr: mr.Addr()})

	_, err := cache.ReadTable(context.Background(), schema, "customers", "JSON", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.reads)

	updated := &storage.Table{Schema: schema, Rows: [][]any{{float64(2)}}}
	require.NoError(t, cache.WriteTable(context.Background(), schema, updated, "customers", "JSON", nil))

	got, err := cache.ReadTable(context.Background(), schema, "customers", "JSON", nil)
	require.NoError(t, err)
	assert.Equal(t, updated.Rows, got.Rows)
	assert.Equal(t, 2, backend.reads, "read after a write must go through the backend again")
}
