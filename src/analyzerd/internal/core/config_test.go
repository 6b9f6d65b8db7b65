package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestNewConfigMergesListedFiles(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"meta.yaml": "files:\n  - base.yaml\n  - local.yaml\n",
		"base.yaml": "logging:\n  level: info\nheartbeat:\n  intervalSeconds: 30\n",
		"local.yaml": "logging:\n  level: warn\n",
	})
	t.Setenv("ANALYZERD_CONFIG_DIR", dir)

	provider, err := NewConfig()
	require.NoError(t, err)
	require.NotNil(t, provider)

	// Later files override earlier ones.
	level := provider.Get("logging.level")
	assert.True(t, level.HasValue())
	assert.Equal(t, "warn", level.String())

	var interval int
	require.NoError(t, provider.Get("heartbeat.intervalSeconds").Populate(&interval))
	assert.Equal(t, 30, interval)
}

func TestNewConfigSkipsMissingListedFiles(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"meta.yaml": "files:\n  - base.yaml\n  - local.yaml\n",
		"base.yaml": "logging:\n  level: info\n",
	})
	t.Setenv("ANALYZERD_CONFIG_DIR", dir)

	provider, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "info", provider.Get("logging.level").String())
}

func TestNewConfigExpandsEnvironmentVariables(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"meta.yaml": "files:\n  - base.yaml\n",
		"base.yaml": "analyzer:\n  command: ${ANALYZERD_ANALYZER_BIN:\"\"}\n",
	})
	t.Setenv("ANALYZERD_CONFIG_DIR", dir)
	t.Setenv("ANALYZERD_ANALYZER_BIN", "/usr/local/bin/analyzer")

	provider, err := NewConfig()
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/analyzer", provider.Get("analyzer.command").String())
}

func TestNewConfigFailsWithoutAnyFiles(t *testing.T) {
	dir := writeConfigDir(t, map[string]string{
		"meta.yaml": "files:\n  - base.yaml\n",
	})
	t.Setenv("ANALYZERD_CONFIG_DIR", dir)

	_, err := NewConfig()
	assert.Error(t, err)
}

func TestGetConfigDir(t *testing.T) {
	t.Setenv("ANALYZERD_CONFIG_DIR", "/custom/config/path")
	assert.Equal(t, "/custom/config/path", getConfigDir())

	t.Setenv("ANALYZERD_CONFIG_DIR", "")
	assert.Equal(t, "src/analyzerd/config", getConfigDir())
}

func TestConfigName(t *testing.T) {
	assert.Equal(t, "config", Config{}.Name())
}
