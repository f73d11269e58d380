package pgstore_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/coregraph/metadata"
	"github.com/smallnest/coregraph/storage"
	"github.com/smallnest/coregraph/storage/pgstore"
)

var schema = metadata.TableDefinition{Fields: []metadata.FieldDefinition{{Name: "id", FieldType: metadata.BasicTypeInteger}}}

func TestWriteTableUpsertsRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(pgconn.NewCommandTag("CREATE TABLE"))
	mock.ExpectExec("INSERT INTO data_items").
		WithArgs("customers", "JSON", pgxmock.AnyArg()).
		WillReturnResult(pgconn.NewCommandTag("INSERT 0 1"))

	store, err := pgstore.NewWithPool(context.Background(), mock, "")
	require.NoError(t, err)

	table := &storage.Table{Schema: schema, Rows: [][]any{{float64(1)}}}
	require.NoError(t, store.WriteTable(context.Background(), schema, table, "customers", "JSON", nil))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadTableDecodesStoredPayload(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE").WillReturnResult(pgconn.NewCommandTag("CREATE TABLE"))
	rows := pgxmock.NewRows([]string{"payload"}).AddRow([]byte(`{"rows":[[1]]}`))
	mock.ExpectQuery("SELECT payload FROM data_items").WithArgs("customers").WillReturnRows(rows)

	store, err := pgstore.NewWithPool(context.Background(), mock, "")
	require.NoError(t, err)

	got, err := store.ReadTable(context.Background(), schema, "customers", "JSON", nil)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{float64(1)}}, got.Rows)

	assert.NoError(t, mock.ExpectationsWereMet())
}
