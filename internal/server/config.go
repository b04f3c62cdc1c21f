package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// Config is the complete server configuration.
type Config struct {
	Server ServerSettings `hcl:"server,block"`
	Store  StoreSettings  `hcl:"store,block"`
	Game   GameSettings   `hcl:"game,block"`
}

// ServerSettings contains listener-level configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// StoreSettings configures the session archive. An empty path keeps the
// archive in memory.
type StoreSettings struct {
	Path string `hcl:"path,optional"`
}

// GameSettings tunes the event fan-out and computer players.
type GameSettings struct {
	EventQueueSize  int `hcl:"event_queue_size,optional"`
	BotThinkDelayMs int `hcl:"bot_think_delay_ms,optional"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Store: StoreSettings{
			Path: "battleline.db",
		},
		Game: GameSettings{
			EventQueueSize:  64,
			BotThinkDelayMs: 500,
		},
	}
}

// LoadConfig loads configuration from an HCL file, falling back to
// defaults when the file does not exist.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	defaults := DefaultConfig()
	if config.Server.Address == "" {
		config.Server.Address = defaults.Server.Address
	}
	if config.Server.Port == 0 {
		config.Server.Port = defaults.Server.Port
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = defaults.Server.LogLevel
	}
	if config.Game.EventQueueSize == 0 {
		config.Game.EventQueueSize = defaults.Game.EventQueueSize
	}
	if config.Game.BotThinkDelayMs == 0 {
		config.Game.BotThinkDelayMs = defaults.Game.BotThinkDelayMs
	}
	return &config, nil
}

// Validate checks the configuration for nonsense values.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Game.EventQueueSize < 1 {
		return fmt.Errorf("event queue size must be positive: %d", c.Game.EventQueueSize)
	}
	if c.Game.BotThinkDelayMs < 0 {
		return fmt.Errorf("bot think delay must not be negative: %d", c.Game.BotThinkDelayMs)
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Server.LogLevel)
	}
	return nil
}

// ListenAddress returns the host:port the server binds to.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// BotThinkDelay returns the configured think delay as a duration.
func (c *Config) BotThinkDelay() time.Duration {
	return time.Duration(c.Game.BotThinkDelayMs) * time.Millisecond
}
