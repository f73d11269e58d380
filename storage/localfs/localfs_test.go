package localfs_test

import (
	"context"
	"testing"

	"github.com/smallnest/coregraph/metadata"
	"github.com/smallnest/coregraph/storage"
	"github.com/smallnest/coregraph/storage/localfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var schema = metadata.TableDefinition{Fields: []metadata.FieldDefinition{
	{Name: "id", FieldType: metadata.BasicTypeInteger},
	{Name: "name", FieldType: metadata.BasicTypeString},
}}

func TestWriteThenReadTableRoundTrips(t *testing.T) {
	store, err := localfs.New(t.TempDir())
	require.NoError(t, err)

	table := &storage.Table{Schema: schema, Rows: [][]any{{int64(1), "alice"}, {int64(2), "bob"}}}
	require.NoError(t, store.WriteTable(context.Background(), schema, table, "customers.csv", "CSV", nil))

	got, err := store.ReadTable(context.Background(), schema, "customers.csv", "CSV", nil)
	require.NoError(t, err)
	assert.Equal(t, table.Rows, got.Rows)
}

func TestStatReportsFileType(t *testing.T) {
	store, err := localfs.New(t.TempDir())
	require.NoError(t, err)

	st, err := store.Stat(context.Background(), "missing.csv")
	require.NoError(t, err)
	assert.Equal(t, storage.FileTypeUnknown, st.FileType)

	table := &storage.Table{Schema: schema}
	require.NoError(t, store.WriteTable(context.Background(), schema, table, "present.csv", "CSV", nil))

	st, err = store.Stat(context.Background(), "present.csv")
	require.NoError(t, err)
	assert.Equal(t, storage.FileTypeFile, st.FileType)
}
