// File: internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// loadClean isolates tests from viper's package-level state
func loadClean(t *testing.T, path string) (*Config, error) {
	t.Helper()
	viper.Reset()
	return Load(path)
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadClean(t, "")
	require.NoError(t, err)

	assert.Equal(t, "logward", cfg.App.Name)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, 30, cfg.Storage.RetentionDays)
	assert.Equal(t, 100, cfg.Pipeline.DedupCapacity)
	assert.Equal(t, "logward", cfg.Pipeline.InternalChannel)
	assert.Equal(t, 30*time.Second, cfg.Stream.HeartbeatInterval)
	assert.Equal(t, 2*time.Second, cfg.Stream.PollInterval)
	assert.Equal(t, time.Hour, cfg.Stream.MaxSessionTime)
	assert.Equal(t, 50, cfg.Stream.ReplayLimit)
	assert.Equal(t, 8081, cfg.Server.Port)
	// SSE sessions need an unbounded write timeout.
	assert.Equal(t, time.Duration(0), cfg.Server.WriteTimeout)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  type: sqlite
  connection_string: /tmp/custom.db
  retention_days: 7
pipeline:
  dedup_capacity: 500
  allowed_environments:
    - production
    - staging
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := loadClean(t, path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/custom.db", cfg.Storage.ConnectionString)
	assert.Equal(t, 7, cfg.Storage.RetentionDays)
	assert.Equal(t, 500, cfg.Pipeline.DedupCapacity)
	assert.Equal(t, []string{"production", "staging"}, cfg.Pipeline.AllowedEnvironments)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Untouched sections keep their defaults.
	assert.Equal(t, 2*time.Second, cfg.Stream.PollInterval)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := loadClean(t, "")
	require.NoError(t, err)

	cfg.Storage.ConnectionString = ""
	assert.Error(t, cfg.Validate())

	cfg, _ = loadClean(t, "")
	cfg.Pipeline.DedupCapacity = 0
	assert.Error(t, cfg.Validate())

	cfg, _ = loadClean(t, "")
	cfg.Stream.PollInterval = 0
	assert.Error(t, cfg.Validate())
}
