package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chartsync/internal/mapstore"
)

func mappingsFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "map.db")

	store, err := mapstore.Open(dbPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, mapstore.Entry{
		RecordType: "patient", LocalID: "7081608", RemoteID: "91003",
		FirstName: "John", LastName: "Smith", DateOfBirth: "1990-05-15",
	}))
	require.NoError(t, store.Put(ctx, mapstore.Entry{
		RecordType: "transaction", LocalID: "T100", RemoteID: "RX-1",
	}))

	return writeTestConfig(t, dir, `
remote:
  base_url: https://api.example.com
sync:
  mapping_db: `+dbPath+`
sources:
  patient:
    path: `+filepath.Join(dir, "patients.csv")+`
`)
}

func TestMappingsList(t *testing.T) {
	cfgPath := mappingsFixture(t)

	out, err := execute(t, "mappings", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "2 mapping(s)")
	assert.Contains(t, out, "patient/7081608 -> 91003")
}

func TestMappingsList_FilterByType(t *testing.T) {
	cfgPath := mappingsFixture(t)

	out, err := execute(t, "mappings", "list", "--type", "transaction", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1 mapping(s)")
	assert.NotContains(t, out, "7081608")
}

func TestMappingsStats(t *testing.T) {
	cfgPath := mappingsFixture(t)

	out, err := execute(t, "mappings", "stats", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "patient")
	assert.Contains(t, out, "transaction")
}

func TestMappingsExport(t *testing.T) {
	cfgPath := mappingsFixture(t)

	out, err := execute(t, "mappings", "export", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "record_type,local_id,remote_id")
	assert.Contains(t, out, "7081608")
}

func TestMappingsRemove(t *testing.T) {
	cfgPath := mappingsFixture(t)

	out, err := execute(t, "mappings", "remove", "patient", "7081608", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "removed mapping patient/7081608")

	out, err = execute(t, "mappings", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1 mapping(s)")
}

func TestMappingsRemove_NotFound(t *testing.T) {
	cfgPath := mappingsFixture(t)

	_, err := execute(t, "mappings", "remove", "patient", "ghost", "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}
