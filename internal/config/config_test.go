package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heartline/internal/config"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Hour, cfg.CodeTTL.Duration)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout.Duration)
	assert.Equal(t, time.Second, cfg.BackoffBase.Duration)
	assert.Equal(t, 5*time.Minute, cfg.BackoffMax.Duration)
	assert.Equal(t, config.MailboxMemory, cfg.MailboxBackend)
}

func TestLoad_FileFormats(t *testing.T) {
	files := map[string]string{
		"heartline.toml": `
home = "/tmp/hl"
relay_url = "http://relay:9000"
code_ttl = "30m"
backoff_max = "2m"
`,
		"heartline.yaml": `
home: /tmp/hl
relay_url: http://relay:9000
code_ttl: 30m
backoff_max: 2m
`,
		"heartline.json": `{
  "home": "/tmp/hl",
  "relay_url": "http://relay:9000",
  "code_ttl": "30m",
  "backoff_max": "2m"
}`,
	}
	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			cfg, err := config.Load(writeFile(t, name, body))
			require.NoError(t, err)
			assert.Equal(t, "/tmp/hl", cfg.Home)
			assert.Equal(t, "http://relay:9000", cfg.RelayURL)
			assert.Equal(t, 30*time.Minute, cfg.CodeTTL.Duration)
			assert.Equal(t, 2*time.Minute, cfg.BackoffMax.Duration)
			assert.Equal(t, time.Second, cfg.BackoffBase.Duration, "unset keys keep defaults")
		})
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "heartline.toml", `relay_url = "http://file"`)
	t.Setenv("HEARTLINE_RELAY_URL", "http://env")
	t.Setenv("HEARTLINE_CODE_TTL", "15m")
	t.Setenv("HEARTLINE_LOG_LEVEL", "DEBUG")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env", cfg.RelayURL)
	assert.Equal(t, 15*time.Minute, cfg.CodeTTL.Duration)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)

	_, err = config.Load(writeFile(t, "heartline.ini", "x=1"))
	assert.ErrorContains(t, err, "unsupported config format")

	t.Setenv("HEARTLINE_BACKOFF_BASE", "soon")
	_, err = config.Load("")
	assert.ErrorContains(t, err, "HEARTLINE_BACKOFF_BASE")
}

func TestValidate(t *testing.T) {
	cfg := config.Default()
	cfg.MailboxBackend = config.MailboxRedis
	cfg.BackoffBase = config.Duration{Duration: time.Minute}
	cfg.BackoffMax = config.Duration{Duration: time.Second}
	cfg.CodeTTL = config.Duration{}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "redis_url")
	assert.ErrorContains(t, err, "backoff_max")
	assert.ErrorContains(t, err, "code_ttl")

	cfg = config.Default()
	cfg.MailboxBackend = "carrier-pigeon"
	assert.ErrorContains(t, cfg.Validate(), "unknown mailbox_backend")

	cfg = config.Default()
	cfg.CodeTTL = config.Duration{Duration: 48 * time.Hour}
	assert.ErrorContains(t, cfg.Validate(), "code_ttl must not exceed")
}
