package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.hcl"))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigParsesAndFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battleline.hcl")
	content := `
server {
  port      = 9090
  log_level = "debug"
}

store {
  path = "/tmp/archive.db"
}

game {
  bot_think_delay_ms = 50
}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	require.Equal(t, "localhost", cfg.Server.Address, "missing address filled from defaults")
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "/tmp/archive.db", cfg.Store.Path)
	require.Equal(t, 64, cfg.Game.EventQueueSize, "missing queue size filled from defaults")
	require.Equal(t, 50*time.Millisecond, cfg.BotThinkDelay())
	require.Equal(t, "localhost:9090", cfg.ListenAddress())
}

func TestLoadConfigRejectsBadHCL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.hcl")
	require.NoError(t, os.WriteFile(path, []byte("server {"), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"bad log level", func(c *Config) { c.Server.LogLevel = "loud" }},
		{"bad queue size", func(c *Config) { c.Game.EventQueueSize = -1 }},
		{"negative delay", func(c *Config) { c.Game.BotThinkDelayMs = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
