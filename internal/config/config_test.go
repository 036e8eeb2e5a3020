package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)

	require.Equal(t, "dark", cfg.Theme)
	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 8192, cfg.Download.ChunkSize)
	require.Equal(t, 100*time.Millisecond, cfg.ProgressInterval())
	require.Equal(t, time.Duration(0), cfg.HTTPTimeout())
	require.Equal(t, 30*time.Second, cfg.APITimeout())
	require.Equal(t, filepath.Join(dir, "repositories.json"), cfg.Storage.RepositoriesFile)
	require.NotEmpty(t, cfg.GitHub.APIURL)
	require.Empty(t, cfg.Metrics.Addr)
}

func TestLoadReadsFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	content := `theme: light
download:
  chunk_size: 4096
storage:
  repositories_file: /srv/repos.json
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644))
	t.Setenv("GHUPDATER_METRICS_ADDR", ":9100")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	require.Equal(t, "light", cfg.Theme)
	require.Equal(t, 4096, cfg.Download.ChunkSize)
	require.Equal(t, "/srv/repos.json", cfg.Storage.RepositoriesFile)
	require.Equal(t, ":9100", cfg.Metrics.Addr)
}

func TestSavePersistsTheme(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)
	cfg.SetTheme("light")
	require.NoError(t, cfg.Save())

	reloaded, err := LoadFrom(dir)
	require.NoError(t, err)
	require.Equal(t, "light", reloaded.Theme)
}

func TestMalformedConfigFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("theme: [unclosed"), 0644))

	_, err := LoadFrom(dir)
	require.Error(t, err)
}
