package infra

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "file", cfg.Storage.Driver)
	assert.Equal(t, "profiles", cfg.Storage.Dir)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, uint64(42), cfg.Anomaly.Seed)
	assert.Equal(t, 100, cfg.Anomaly.Trees)
	assert.Equal(t, 256, cfg.Anomaly.MaxSamples)
	assert.InDelta(t, 0.1, cfg.Anomaly.Contamination, 1e-12)
	assert.Equal(t, 20, cfg.Anomaly.LOFNeighbors)
	assert.Equal(t, uint32(5), cfg.Engine.CBFailureThreshold)
	assert.Equal(t, 10000, cfg.Engine.AuditBufferSize)
	assert.Equal(t, "dataset/logins.csv", cfg.Ingest.Logins)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
server:
  port: 9090
  rate_limit: 25
storage:
  driver: postgres
database:
  url: postgres://fraud@localhost/fraud
redis:
  enabled: true
  cache_ttl: 10m
anomaly:
  contamination: 0.05
logger:
  format: console
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))
	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("ENGINE_CB_TIMEOUT", "2s")

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port)
	assert.InDelta(t, 25.0, cfg.Server.RateLimit, 1e-12)
	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://fraud@localhost/fraud", cfg.Database.URL)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, 2*time.Second, cfg.Engine.CBTimeout)
	assert.InDelta(t, 0.05, cfg.Anomaly.Contamination, 1e-12)
	assert.Equal(t, "console", cfg.Logger.Format)
}

func TestConfig_Validate(t *testing.T) {
	base := func() Config {
		return Config{
			Storage: StorageConfig{Driver: "file", Dir: "profiles"},
			Anomaly: AnomalyConfig{Contamination: 0.1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"ok", func(*Config) {}, false},
		{"file without dir", func(c *Config) { c.Storage.Dir = "" }, true},
		{"postgres without url", func(c *Config) { c.Storage.Driver = "postgres" }, true},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "s3" }, true},
		{"zero contamination", func(c *Config) { c.Anomaly.Contamination = 0 }, true},
		{"contamination above half", func(c *Config) { c.Anomaly.Contamination = 0.6 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"", "json", "console"} {
		l, err := NewLogger(LoggerConfig{Level: "debug", Format: format})
		require.NoError(t, err, format)
		assert.True(t, l.Core().Enabled(zapcore.DebugLevel), format)
	}

	_, err := NewLogger(LoggerConfig{Level: "loud"})
	assert.Error(t, err)
	_, err = NewLogger(LoggerConfig{Level: "info", Format: "xml"})
	assert.Error(t, err)

	l, err := NewLogger(LoggerConfig{})
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}
