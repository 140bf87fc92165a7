package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandTree(t *testing.T) {
	cmd := NewRootCommand()
	require.Equal(t, "chartsync", cmd.Use)

	for _, name := range []string{"sync", "validate", "mappings"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, "missing %s command", name)
		assert.Equal(t, name, sub.Name())
	}

	for _, sub := range []string{"list", "stats", "export", "remove"} {
		found, _, err := cmd.Find([]string{"mappings", sub})
		require.NoError(t, err, "missing mappings %s", sub)
		assert.Equal(t, sub, found.Name())
	}
}

func TestGlobalFlags(t *testing.T) {
	flags := NewRootCommand().PersistentFlags()

	configFlag := flags.Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
	assert.Equal(t, "chartsync.yaml", configFlag.DefValue)

	verboseFlag := flags.Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)

	formatFlag := flags.Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestSyncCommandFlags(t *testing.T) {
	syncCmd, _, err := NewRootCommand().Find([]string{"sync"})
	require.NoError(t, err)

	dryRunFlag := syncCmd.Flags().Lookup("dry-run")
	require.NotNil(t, dryRunFlag)
	assert.Equal(t, "false", dryRunFlag.DefValue)

	assert.NotNil(t, syncCmd.Flags().Lookup("type"))
	assert.NotNil(t, syncCmd.Flags().Lookup("skip-health-check"))
}

func TestInvalidFormatRejected(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"validate", "--format", "xml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
}
