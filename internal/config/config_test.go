package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chartsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
remote:
  base_url: https://api.example.com
sources:
  patient:
    path: ./exports/patients.csv
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, DefaultMappingDB, cfg.Sync.MappingDB)
	assert.Equal(t, DefaultBatchSize, cfg.Sync.BatchSize)
	assert.Equal(t, DefaultRetryCeiling, cfg.Remote.RetryCeiling)
	assert.Equal(t, DefaultTimeout, cfg.Remote.Timeout())
	assert.False(t, cfg.Sync.DryRun)
	assert.False(t, cfg.Sync.AbortOnFirstError, "the default run continues past failed records")
}

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
remote:
  base_url: https://api.example.com
  api_key: secret
  timeout_seconds: 10
  retry_ceiling: 5
sync:
  mapping_db: /var/lib/chartsync/map.db
  specs_dir: ./specs
  batch_size: 50
  dry_run: true
  abort_on_first_error: true
sources:
  patient:
    path: ./exports/patients.csv
    min_significance: 8
    date_formats: ["2006-01-02"]
  transaction:
    path: ./exports/transactions.csv
    delimiter: "\t"
    limit: 1000
`))
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, cfg.Remote.Timeout())
	assert.Equal(t, 5, cfg.Remote.RetryCeiling)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.True(t, cfg.Sync.DryRun)
	assert.True(t, cfg.Sync.AbortOnFirstError)
	assert.Equal(t, 8, cfg.Sources["patient"].MinSignificance)
	assert.Equal(t, "\t", cfg.Sources["transaction"].Delimiter)
	assert.Equal(t, 1000, cfg.Sources["transaction"].Limit)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("CHARTSYNC_TEST_KEY", "from-env")

	cfg, err := Load(writeConfig(t, `
remote:
  base_url: ${CHARTSYNC_TEST_URL:-https://fallback.example.com}
  api_key: ${CHARTSYNC_TEST_KEY}
sources:
  patient:
    path: ./exports/patients.csv
`))
	require.NoError(t, err)

	assert.Equal(t, "https://fallback.example.com", cfg.Remote.BaseURL)
	assert.Equal(t, "from-env", cfg.Remote.APIKey)
}

func TestLoad_MissingEnvVar(t *testing.T) {
	_, err := Load(writeConfig(t, `
remote:
  base_url: https://api.example.com
  api_key: ${CHARTSYNC_DEFINITELY_UNSET}
sources:
  patient:
    path: ./exports/patients.csv
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHARTSYNC_DEFINITELY_UNSET")
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing base url",
			content: "sources:\n  patient:\n    path: ./p.csv\n",
			want:    "remote.base_url is required",
		},
		{
			name:    "no sources",
			content: "remote:\n  base_url: https://api.example.com\n",
			want:    "at least one source",
		},
		{
			name:    "source without path",
			content: minimalConfig + "  transaction: {}\n",
			want:    "sources.transaction.path is required",
		},
		{
			name:    "multi-char delimiter",
			content: minimalConfig + "    delimiter: \",,\"\n",
			want:    "delimiter must be a single character",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+"extra_section: true\n"))
	require.Error(t, err)
}

func TestExpandEnv_MultipleMissing(t *testing.T) {
	_, err := ExpandEnv("${CHARTSYNC_UNSET_A} and ${CHARTSYNC_UNSET_B}")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHARTSYNC_UNSET_A")
	assert.Contains(t, err.Error(), "CHARTSYNC_UNSET_B")
}

func TestExpandEnv_EmptyDefault(t *testing.T) {
	out, err := ExpandEnv("key: ${CHARTSYNC_UNSET_C:-}")
	require.NoError(t, err)
	assert.Equal(t, "key: ", out)
}
