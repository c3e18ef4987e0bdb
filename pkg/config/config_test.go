package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eshaffer321/apiclient-go/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, types.DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
	assert.Equal(t, 3, cfg.MaxRetryAttempts)
	assert.Equal(t, 1000, cfg.BaseRetryDelayMs)
	assert.True(t, cfg.RetryEnabled)
	assert.Equal(t, "1.0.0", cfg.ClientVersion)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, StorageMemory, cfg.Storage.Kind)

	rc := cfg.RetryConfig()
	assert.Equal(t, time.Second, rc.BaseDelay)
	assert.Zero(t, rc.MaxDelay)
	assert.True(t, rc.Enabled)
}

func TestLoadBytes_OverridesDefaults(t *testing.T) {
	cfg, err := LoadBytes([]byte(`
base_url: https://api.example.com
timeout_ms: 5000
max_retry_attempts: 5
base_retry_delay_ms: 250
retry_enabled: false
log:
  level: debug
  pretty: true
storage:
  kind: file
  file: /tmp/tokens.json
`))
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Timeout())
	assert.Equal(t, 5, cfg.MaxRetryAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryConfig().BaseDelay)
	assert.False(t, cfg.RetryEnabled)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
	assert.Equal(t, "/tmp/tokens.json", cfg.Storage.File)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://file.example.com\nmax_retry_attempts: 2\n"), 0600))

	t.Setenv("APICLIENT_MAX_RETRY_ATTEMPTS", "7")
	t.Setenv("APICLIENT_LOG__LEVEL", "warn")
	t.Setenv("APICLIENT_RETRY_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://file.example.com", cfg.BaseURL)
	assert.Equal(t, 7, cfg.MaxRetryAttempts, "env wins over file")
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.False(t, cfg.RetryEnabled)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.BaseURL = "" }},
		{"negative attempts", func(c *Config) { c.MaxRetryAttempts = -1 }},
		{"negative delay", func(c *Config) { c.BaseRetryDelayMs = -1 }},
		{"negative timeout", func(c *Config) { c.TimeoutMs = -1 }},
		{"file storage without path", func(c *Config) { c.Storage.Kind = StorageFile }},
		{"redis storage without addr", func(c *Config) { c.Storage.Kind = StorageRedis }},
		{"unknown storage", func(c *Config) { c.Storage.Kind = "s3" }},
		{"negative rate", func(c *Config) { c.RateLimit.RPS = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			require.NoError(t, Validate(cfg))

			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "base_url", envKey("APICLIENT_BASE_URL"))
	assert.Equal(t, "storage.redis.addr", envKey("APICLIENT_STORAGE__REDIS__ADDR"))
}
