package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, 5*time.Second, cfg.Watch.FlushInterval)
	assert.Equal(t, 24*time.Hour, cfg.Maintenance.SweepInterval)
	assert.NotEmpty(t, cfg.Storage.Path)
}

func TestLoad_YAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  path: /tmp/devjournal-test.db
logging:
  level: debug
  format: json
watch:
  debounce: 750ms
  report_dirs:
    - /work/api/reports
maintenance:
  enabled: true
  sweep_interval: 1h
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/devjournal-test.db", cfg.Storage.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 750*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, []string{"/work/api/reports"}, cfg.Watch.ReportDirs)
	assert.True(t, cfg.Maintenance.Enabled)
	assert.Equal(t, time.Hour, cfg.Maintenance.SweepInterval)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: warn\n"), 0o600))

	t.Setenv("DEVJOURNAL_LOGGING_LEVEL", "error")
	t.Setenv("DEVJOURNAL_WATCH_FLUSH_INTERVAL", "10s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.Logging.Level)
	assert.Equal(t, 10*time.Second, cfg.Watch.FlushInterval)
}

func TestLoad_RejectsInvalidLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: loud\n"), 0o600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "invalid logging level")
}

func TestValidate_SweepFloor(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Maintenance.SweepInterval = time.Second
	assert.Error(t, cfg.Validate())
}
