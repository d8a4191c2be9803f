package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
auth:
  keys:
    test-key: tester
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 60, cfg.RateLimit.Limit)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window())
	assert.Equal(t, 4, cfg.Crawler.Workers)
	assert.Equal(t, 3, cfg.Fetch.MaxAttempts)
	assert.Equal(t, 30, cfg.Retention.Days)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention.MaxAge())
	assert.Equal(t, "/classic-teams", cfg.Crawler.CategoryPaths["classic"])
	assert.False(t, cfg.API.AggregateAllCategories)
}

func TestLoadValidatesAuthKeys(t *testing.T) {
	path := writeConfig(t, `
auth:
  enabled: true
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "auth.keys")
}

func TestLoadValidatesRateLimitBackend(t *testing.T) {
	path := writeConfig(t, `
auth:
  keys:
    k: caller
rate_limit:
  backend: redis
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.addr")
}

func TestLoadValidatesExportBackend(t *testing.T) {
	path := writeConfig(t, `
auth:
  keys:
    k: caller
export:
  backend: ftp
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export.backend")
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}
