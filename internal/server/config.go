package server

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/nextrun/augment/internal/knowledge"
	"github.com/nextrun/augment/internal/memory"
	"github.com/nextrun/augment/internal/session"
	"github.com/nextrun/augment/pkg/llm"
	"github.com/nextrun/augment/pkg/log"
)

// Config holds all configuration values
type Config struct {
	Server    ServerConfig     `toml:"server"`
	Log       log.Config       `toml:"log"`
	OpenAI    llm.Config       `toml:"openai"`
	Knowledge knowledge.Config `toml:"knowledge"`
	Memory    memory.Config    `toml:"memory"`
	Tools     session.Config   `toml:"tools"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	Mode string `toml:"mode"` // http, mcp, or both
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Validate checks server configuration
func (s *ServerConfig) Validate() error {
	if s.Mode == "" {
		s.Mode = "http" // default mode
	}
	switch s.Mode {
	case "http", "mcp", "both":
		// valid
	default:
		return fmt.Errorf("invalid mode: %s, must be http, mcp, or both", s.Mode)
	}
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port <= 0 || s.Port > 65535 {
		return fmt.Errorf("port is required and must be between 1 and 65535")
	}
	return nil
}

// Validate checks all configuration fields
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}

	if err := c.OpenAI.Validate(); err != nil {
		return fmt.Errorf("openai: %w", err)
	}

	if err := c.Knowledge.Validate(); err != nil {
		return fmt.Errorf("knowledge: %w", err)
	}

	if err := c.Memory.Validate(); err != nil {
		return fmt.Errorf("memory: %w", err)
	}

	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools: %w", err)
	}

	return nil
}

// LoadConfig reads and parses the configuration file
func LoadConfig(filename string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(filename)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
