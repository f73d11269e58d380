package rtconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/smallnest/coregraph/rtconfig"
	"github.com/stretchr/testify/require"
)

const sampleJobYAML = `
target: my_model
parameters:
  threshold: "0.5"
inputs:
  customers: customers_data
outputs:
  scored: scored_data
objects:
  my_model:
    objectType: 1
    model:
      repository: local
      entryPoint: models.scoring:ScoringModel
      input:
        customers:
          fields:
            - name: id
              fieldOrder: 0
              fieldType: 2
      output:
        scored:
          fields:
            - name: id
              fieldOrder: 0
              fieldType: 2
  customers_data:
    objectType: 2
    data:
      dataItem: customers_item
      schema:
        fields:
          - name: id
            fieldOrder: 0
            fieldType: 2
  customers_data:storage:
    objectType: 3
    storage:
      dataItems:
        customers_item:
          incarnations:
            - incarnationStatus: 1
              copies:
                - copyStatus: 1
                  storageKey: local_storage
                  storagePath: customers.csv
                  storageFormat: CSV
`

func TestLoadJobConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleJobYAML), 0o644))

	cfg, err := rtconfig.LoadJobConfig(path)
	require.NoError(t, err)
	require.Equal(t, "my_model", cfg.Target)

	model, err := cfg.Model()
	require.NoError(t, err)
	require.Equal(t, "models.scoring:ScoringModel", model.EntryPoint)

	data, err := cfg.Data("customers_data")
	require.NoError(t, err)
	require.Equal(t, "customers_item", data.DataItem)

	storage, err := cfg.Storage("customers_data")
	require.NoError(t, err)
	require.Contains(t, storage.DataItems, "customers_item")
}

func TestLoadJobConfigUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.txt")
	require.NoError(t, os.WriteFile(path, []byte("irrelevant"), 0o644))

	_, err := rtconfig.LoadJobConfig(path)
	require.Error(t, err)
}
