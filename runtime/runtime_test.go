package runtime

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/coregraph/examplemodels"
	"github.com/smallnest/coregraph/repos"
)

const sysConfigYAML = `
storage:
  local:
    storageType: localfs
    storageConfig:
      dir: %s
storageSettings:
  defaultStorage: local
  defaultFormat: CSV
`

const jobConfigYAML = `
target: my_model
inputs:
  customers: customers_data
outputs:
  scored: scored_data
objects:
  my_model:
    objectType: 1
    model:
      repository: builtin
      entryPoint: "examplemodels:Passthrough"
      input:
        customers:
          fields:
            - name: id
              fieldType: 2
      output:
        scored:
          fields:
            - name: id
              fieldType: 2
  customers_data:
    objectType: 2
    data:
      dataItem: customers_item
      schema:
        fields:
          - name: id
            fieldType: 2
  "customers_data:storage":
    objectType: 3
    storage:
      dataItems:
        customers_item:
          incarnations:
            - incarnationStatus: 1
              copies:
                - copyStatus: 1
                  storageKey: local
                  storagePath: customers.csv
                  storageFormat: CSV
  scored_data:
    objectType: 2
    data:
      dataItem: scored_item
      schema:
        fields:
          - name: id
            fieldType: 2
  "scored_data:storage":
    objectType: 3
    storage:
      dataItems: {}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRuntimeRunsJobEndToEndOverLocalfs(t *testing.T) {
	dir := t.TempDir()
	dataDir := filepath.Join(dir, "data")

	sysConfigPath := writeFile(t, dir, "sys.yaml", fmt.Sprintf(sysConfigYAML, dataDir))
	jobConfigPath := writeFile(t, dir, "job.yaml", jobConfigYAML)

	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "customers.csv"), []byte("7\n"), 0o644))

	loader := repos.NewInProcessLoader()
	loader.Register("examplemodels:Passthrough", examplemodels.NewPassthrough)

	rt, err := NewRuntime(sysConfigPath, true,
		WithRepositories(repos.NewStaticRepositories(map[string]repos.ModelLoader{"builtin": loader})),
		WithBatchMode(),
	)
	require.NoError(t, err)
	require.NoError(t, rt.Start(time.Second))

	_, resultCh, err := rt.SubmitJob(jobConfigPath)
	require.NoError(t, err)

	select {
	case res := <-resultCh:
		require.NoError(t, res.Err)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not complete in time")
	}

	rt.WaitForShutdown()
	assert.Equal(t, 0, rt.ShutdownCode())

	written, err := os.ReadFile(filepath.Join(dataDir, "scored_item"))
	require.NoError(t, err)
	assert.Equal(t, "7\n", string(written))
}

func TestBuildStorageManagerUnknownType(t *testing.T) {
	dir := t.TempDir()
	sysConfigPath := writeFile(t, dir, "sys.yaml", `
storage:
  bogus:
    storageType: not-a-real-backend
`)
	_, err := NewRuntime(sysConfigPath, false)
	require.Error(t, err)
}

func TestBuildStorageManagerRediscacheNeedsBackend(t *testing.T) {
	dir := t.TempDir()
	sysConfigPath := writeFile(t, dir, "sys.yaml", `
storage:
  cache:
    storageType: rediscache
    storageConfig:
      backend: missing
`)
	_, err := NewRuntime(sysConfigPath, false)
	require.Error(t, err)
}
