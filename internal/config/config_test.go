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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
env: prod
api:
  base_url: "https://api.example.com/api"
  timeout: 3s
  rate_limit: 2
  rate_burst: 4
storage:
  driver: redis
  path: "/tmp/session.json"
  key_prefix: "sp:"
  redis_connection:
    addressredis: "localhost:6380"
    password: "redis_pass"
    user: "redis_user"
    db: 2
    max_retries: 3
    dial_timeout: 5s
    timeoutredis: 10s
session:
  auto_refresh: true
  refresh_timeout: 7s
  min_refresh_interval: 1m
  drop_expired_tokens: true
metrics:
  address: ":9100"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, EnvProd, cfg.Env)
	assert.Equal(t, "https://api.example.com/api", cfg.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, 2.0, cfg.RateLimit)
	assert.Equal(t, 4, cfg.RateBurst)
	assert.Equal(t, "redis", cfg.Driver)
	assert.Equal(t, "/tmp/session.json", cfg.Path)
	assert.Equal(t, "sp:", cfg.KeyPrefix)
	assert.Equal(t, "localhost:6380", cfg.AddressRedis)
	assert.Equal(t, "redis_pass", cfg.Password)
	assert.Equal(t, "redis_user", cfg.User)
	assert.Equal(t, 2, cfg.DB)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 10*time.Second, cfg.TimeoutRedis)
	assert.True(t, cfg.AutoRefresh)
	assert.Equal(t, 7*time.Second, cfg.RefreshTimeout)
	assert.Equal(t, time.Minute, cfg.MinRefreshInterval)
	assert.True(t, cfg.DropExpiredTokens)
	assert.Equal(t, ":9100", cfg.Metrics.Address)
}

func TestLoad_DefaultValues(t *testing.T) {
	path := writeConfig(t, `
env: dev
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, EnvDev, cfg.Env)
	assert.Equal(t, "http://localhost:8080/api", cfg.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Equal(t, "file", cfg.Driver)
	assert.Equal(t, "stockpicks:", cfg.KeyPrefix)
	assert.Equal(t, "localhost:6379", cfg.AddressRedis)
	assert.False(t, cfg.AutoRefresh)
	assert.Equal(t, 15*time.Second, cfg.RefreshTimeout)
	assert.Equal(t, 30*time.Second, cfg.MinRefreshInterval)
	assert.False(t, cfg.DropExpiredTokens)
}

func TestLoad_EnvOnly(t *testing.T) {
	t.Setenv("STOCKPICKS_API_BASE_URL", "http://backend:9000/api")
	t.Setenv("STOCKPICKS_STORAGE_DRIVER", "memory")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, EnvLocal, cfg.Env)
	assert.Equal(t, "http://backend:9000/api", cfg.BaseURL)
	assert.Equal(t, "memory", cfg.Driver)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestConfig_String(t *testing.T) {
	path := writeConfig(t, "env: local\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	out := cfg.String()
	assert.Contains(t, out, "Env: local")
	assert.Contains(t, out, "BaseURL: http://localhost:8080/api")
}
