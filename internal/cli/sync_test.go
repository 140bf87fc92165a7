package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a minimal remote endpoint: health, patient create, search.
func fakeAPI(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var creates atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /api/v1/patients/search", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"patients": []any{}})
	})
	mux.HandleFunc("POST /api/v1/patients", func(w http.ResponseWriter, r *http.Request) {
		n := creates.Add(1)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": fmt.Sprintf("P%d", n)})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &creates
}

func syncFixture(t *testing.T, baseURL string) string {
	t.Helper()
	dir := t.TempDir()

	exportPath := filepath.Join(dir, "patients.csv")
	rows := "1001,John,,1990-05-15,Smith,M,12 Main St,,Portland,OR,97201,5035551234,john@example.com,\n" +
		"1002,Jane,,1985-01-02,Doe,F,9 Oak Ave,,Salem,OR,97301,5035559876,jane@example.com,\n"
	require.NoError(t, os.WriteFile(exportPath, []byte(rows), 0o644))

	return writeTestConfig(t, dir, `
remote:
  base_url: `+baseURL+`
sync:
  mapping_db: `+filepath.Join(dir, "map.db")+`
sources:
  patient_compact:
    path: `+exportPath+`
`)
}

func TestSync_EndToEnd(t *testing.T) {
	srv, creates := fakeAPI(t)
	cfgPath := syncFixture(t, srv.URL)

	out, err := execute(t, "sync", "--config", cfgPath)
	require.NoError(t, err)

	assert.Equal(t, int32(2), creates.Load())
	assert.Contains(t, out, "created              2")
}

func TestSync_SecondRunIsNoop(t *testing.T) {
	srv, creates := fakeAPI(t)
	cfgPath := syncFixture(t, srv.URL)

	_, err := execute(t, "sync", "--config", cfgPath)
	require.NoError(t, err)

	out, err := execute(t, "sync", "--config", cfgPath)
	require.NoError(t, err)

	assert.Equal(t, int32(2), creates.Load(), "unchanged records must not call the remote again")
	assert.Contains(t, out, "skipped_unchanged    2")
}

func TestSync_DryRun(t *testing.T) {
	srv, creates := fakeAPI(t)
	cfgPath := syncFixture(t, srv.URL)

	out, err := execute(t, "sync", "--dry-run", "--config", cfgPath)
	require.NoError(t, err)

	assert.Zero(t, creates.Load())
	assert.Contains(t, out, "dry run")
	assert.Contains(t, out, "created              2")
}

func TestSync_JSONOutput(t *testing.T) {
	srv, _ := fakeAPI(t)
	cfgPath := syncFixture(t, srv.URL)

	out, err := execute(t, "sync", "--format", "json", "--config", cfgPath)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestSync_UnknownTypeFlag(t *testing.T) {
	srv, _ := fakeAPI(t)
	cfgPath := syncFixture(t, srv.URL)

	_, err := execute(t, "sync", "--type", "mystery", "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSync_UnreachableRemote(t *testing.T) {
	srv, _ := fakeAPI(t)
	cfgPath := syncFixture(t, srv.URL)
	srv.Close()

	_, err := execute(t, "sync", "--config", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSync_BadConfigPath(t *testing.T) {
	_, err := execute(t, "sync", "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
