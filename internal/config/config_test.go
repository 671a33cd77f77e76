package config_test

import (
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/rollkit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rollkit.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, "stdio", cfg.MCP.Transport)
	assert.Nil(t, cfg.Engine.Seed)
	assert.True(t, cfg.Telemetry.Enabled)
	assert.Empty(t, cfg.Telemetry.Endpoint)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := writeFile(t, `
log_level: debug
engine:
  lenient: true
  max_iterations: 50
  max_dice: 500
  mode: maximize
  seed: 42
store:
  backend: redis
  redis_addr: localhost:6379
  lock_ttl: 5s
  redact_keys: [email]
http:
  addr: ":9000"
`)
	t.Setenv("ROLLKIT_HTTP_ADDR", ":9100")
	t.Setenv("ROLLKIT_STORE_REDACT_KEYS", "email,ip")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.True(t, cfg.Engine.Lenient)
	assert.Equal(t, 50, cfg.Engine.MaxIterations)
	assert.Equal(t, 500, cfg.Engine.MaxDice)
	assert.Equal(t, "maximize", cfg.Engine.Mode)
	require.NotNil(t, cfg.Engine.Seed)
	assert.Equal(t, int64(42), *cfg.Engine.Seed)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, 5*time.Second, cfg.Store.LockTTL)
	assert.Equal(t, ":9100", cfg.HTTP.Addr, "env wins over file")
	assert.Equal(t, []string{"email", "ip"}, cfg.Store.RedactKeys)
}

func TestLoad_TelemetryEnv(t *testing.T) {
	t.Setenv("ROLLKIT_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("ROLLKIT_OTEL_ENABLED", "false")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "http://localhost:4318", cfg.Telemetry.Endpoint)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  map[string]string
		want string
	}{
		{name: "bad level", env: map[string]string{"ROLLKIT_LOG_LEVEL": "loud"}, want: "LogLevel"},
		{name: "bad backend", env: map[string]string{"ROLLKIT_STORE_BACKEND": "s3"}, want: "Backend"},
		{name: "redis without addr", env: map[string]string{"ROLLKIT_STORE_BACKEND": "redis"}, want: "RedisAddr"},
		{name: "sqlite without path", env: map[string]string{"ROLLKIT_STORE_BACKEND": "sqlite"}, want: "Path"},
		{name: "bad mode", file: "engine:\n  mode: chaotic\n", want: "Mode"},
		{name: "short key", env: map[string]string{"ROLLKIT_STORE_ENCRYPTION_KEY": base64.StdEncoding.EncodeToString([]byte("short"))}, want: "32 bytes"},
		{name: "bad env type", env: map[string]string{"ROLLKIT_ENGINE_MAX_ITERATIONS": "lots"}, want: "parse env"},
		{name: "bad endpoint", env: map[string]string{"ROLLKIT_OTEL_ENDPOINT": "not a url"}, want: "Endpoint"},
		{name: "bad yaml", file: "engine: [", want: "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}
			_, err := config.Load(path)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), err.Error())
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestStoreConfig_Key(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}
	t.Setenv("ROLLKIT_STORE_ENCRYPTION_KEY", base64.StdEncoding.EncodeToString(raw))

	cfg, err := config.Load("")
	require.NoError(t, err)
	key, err := cfg.Store.Key()
	require.NoError(t, err)
	assert.Equal(t, raw, key)
}
