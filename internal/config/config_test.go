package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ericfitz/whiteboard/internal/slogging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTestMode(t *testing.T) {
	config := &Config{}
	assert.True(t, config.IsTestMode(), "running under go test")
	assert.True(t, isRunningInTest())
}

func TestGetDefaultConfig(t *testing.T) {
	config := getDefaultConfig()

	assert.Equal(t, "8080", config.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", config.ListenAddress())
	assert.Equal(t, DatabaseTypeSQLite, config.Database.Type)
	assert.Equal(t, "data/whiteboard.db", config.Database.SQLite.Path)
	assert.False(t, config.Redis.Enabled)
	assert.Equal(t, "localhost:6379", config.RedisAddress())
	assert.Equal(t, "HS256", config.Auth.JWT.SigningMethod)
	assert.Equal(t, "userId", config.Auth.JWT.UserIDClaim)

	assert.Equal(t, 100*time.Millisecond, config.WebSocket.DragDebounce)
	assert.Equal(t, 2*time.Second, config.WebSocket.DrawingTimeout)
	assert.Equal(t, 1024, config.EventLog.QueueSize)

	assert.NoError(t, config.Validate())
	assert.Error(t, config.ValidateSecrets(), "no jwt secret by default")
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := `
server:
  port: "9090"
database:
  type: postgres
  postgres:
    host: db.internal
    database: boards
auth:
  jwt:
    secret: from-yaml
websocket:
  drag_debounce: 250ms
  allowed_origins: ["https://a.example"]
`
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0600))

	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("WEBSOCKET_DRAWING_TIMEOUT", "3s")
	t.Setenv("WEBSOCKET_ALLOWED_ORIGINS", "https://b.example, https://c.example")
	t.Setenv("WHITEBOARD_REDIS_DB", "4")

	config, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", config.Server.Port)
	assert.Equal(t, DatabaseTypePostgres, config.Database.Type)
	assert.Equal(t, "db.internal", config.Database.Postgres.Host)
	assert.Equal(t, "from-env", config.Auth.JWT.Secret, "env wins over yaml")
	assert.Equal(t, 250*time.Millisecond, config.WebSocket.DragDebounce)
	assert.Equal(t, 3*time.Second, config.WebSocket.DrawingTimeout)
	assert.Equal(t, []string{"https://b.example", "https://c.example"}, config.WebSocket.AllowedOrigins)
	assert.Equal(t, 4, config.Redis.DB)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad env value", func(t *testing.T) {
		t.Setenv("REDIS_ENABLED", "sometimes")
		_, err := Load("")
		assert.ErrorContains(t, err, "REDIS_ENABLED")
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv("WEBSOCKET_DRAG_DEBOUNCE", "soon")
		_, err := Load("")
		assert.ErrorContains(t, err, "invalid duration")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"empty port", func(c *Config) { c.Server.Port = "" }, "server port"},
		{"unknown database", func(c *Config) { c.Database.Type = "oracle" }, "unsupported database type"},
		{"sqlite without path", func(c *Config) { c.Database.SQLite.Path = "" }, "sqlite path"},
		{"postgres without host", func(c *Config) {
			c.Database.Type = DatabaseTypePostgres
			c.Database.Postgres.Host = ""
		}, "postgres host"},
		{"redis without host", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Host = ""
		}, "redis host"},
		{"bad signing method", func(c *Config) { c.Auth.JWT.SigningMethod = "RS256" }, "signing method"},
		{"zero debounce", func(c *Config) { c.WebSocket.DragDebounce = 0 }, "drag debounce"},
		{"zero drawing timeout", func(c *Config) { c.WebSocket.DrawingTimeout = 0 }, "drawing timeout"},
		{"zero send buffer", func(c *Config) { c.WebSocket.SendBufferSize = 0 }, "send buffer"},
		{"ping after pong", func(c *Config) { c.WebSocket.PingInterval = time.Hour }, "ping interval"},
		{"zero queue", func(c *Config) { c.EventLog.QueueSize = 0 }, "queue size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := getDefaultConfig()
			tt.mutate(config)
			assert.ErrorContains(t, config.Validate(), tt.wantErr)
		})
	}
}

func TestGetLogLevel(t *testing.T) {
	config := getDefaultConfig()
	config.Logging.Level = "debug"
	assert.Equal(t, slogging.LogLevelDebug, config.GetLogLevel())
}

func TestGenerateExampleConfig(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, GenerateExampleConfig(&buf))

	out := buf.String()
	assert.Contains(t, out, "drag_debounce")
	assert.Contains(t, out, "secret: change-me")

	path := filepath.Join(t.TempDir(), "generated.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0600))
	_, err := Load(path)
	assert.NoError(t, err, "generated example must round-trip through Load")
}
