package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 8855, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "http://127.0.0.1:8855", cfg.Reconcile.ServerURL)
	assert.Equal(t, 10, cfg.Reconcile.Workers)
	assert.Equal(t, 50, cfg.Reconcile.BatchSize)
	assert.Equal(t, 3, cfg.Reconcile.MaxAttempts)
	assert.NoError(t, cfg.validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("NSE_SERVER_PORT", "9100")
	t.Setenv("NSE_RECONCILE_WORKERS", "4")
	t.Setenv("NSE_RECONCILE_BATCH_DELAY", "250ms")
	t.Setenv("NSE_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Reconcile.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Reconcile.BatchDelay)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("NSE_SERVER_PORT", "70000")
	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Reconcile.Workers = 0
	assert.Error(t, cfg.validate())

	cfg = Default()
	cfg.Reconcile.MaxAttempts = -1
	assert.Error(t, cfg.validate())

	cfg = Default()
	cfg.Server.ReadTimeout = 0
	assert.Error(t, cfg.validate())
}

func TestNewPathsResolvesRelativeToBase(t *testing.T) {
	base := t.TempDir()
	paths, err := NewPaths(base, Default().Paths)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(base, "data"), paths.DataDir)
	assert.Equal(t, filepath.Join(base, "data", "ledgers"), paths.LedgersDir)
	assert.Equal(t, filepath.Join(base, "data", "ledgers", "2024"), paths.LedgerDir(2024))
	assert.Equal(t, filepath.Join(base, "data", "ledgers", "2024", "tracking.xlsx"), paths.LedgerFile(2024))
	assert.Equal(t, filepath.Join(base, "data", "downloads", "indices"), paths.DownloadDir("indices"))
}

func TestNewPathsKeepsAbsolutePaths(t *testing.T) {
	abs := t.TempDir()
	cfg := Default().Paths
	cfg.DataDir = abs

	paths, err := NewPaths(t.TempDir(), cfg)
	require.NoError(t, err)
	assert.Equal(t, abs, paths.DataDir)
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	paths, err := NewPaths(base, Default().Paths)
	require.NoError(t, err)

	require.NoError(t, paths.EnsureDirectories())
	for _, dir := range []string{paths.DataDir, paths.LedgersDir, paths.DownloadsDir, paths.ReportsDir, paths.LogsDir} {
		assert.DirExists(t, dir)
	}
}
