package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"chess-core/internal/agent"
	"chess-core/internal/game"
)

type Config struct {
	Environment string `json:"environment"`
	Server      struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"server"`
	MongoDB struct {
		URI      string `json:"uri"` // empty selects the in-memory store
		Database string `json:"database"`
	} `json:"mongodb"`
	Frontend struct {
		URL string `json:"url"`
	} `json:"frontend"`
	JWT struct {
		Secret   string `json:"secret"`
		TTLHours int    `json:"ttlHours"`
	} `json:"jwt"`
	Engine struct {
		agent.Options
		MoveDelayMs int `json:"moveDelayMs"`
	} `json:"engine"`
	Rules game.Rules `json:"rules"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{Environment: "dev"}
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 9029
	cfg.MongoDB.Database = "chess_core"
	cfg.Frontend.URL = "http://localhost:5173"
	cfg.JWT.Secret = "dev-secret-change-me"
	cfg.JWT.TTLHours = 24 * 7
	cfg.Engine.Options = agent.DefaultOptions()
	cfg.Engine.MoveDelayMs = 500
	cfg.Rules = game.DefaultRules()
	return cfg
}

// Load reads configs/config.<env>.json (CONFIG_DIR overrides the directory)
// over the defaults. ${VAR} references are expanded from the environment.
func Load(env string) (*Config, error) {
	configDir := os.Getenv("CONFIG_DIR")
	if configDir == "" {
		// Default to configs directory relative to working directory
		configDir = "configs"
	}

	filename := fmt.Sprintf("config.%s.json", env)
	configPath := filepath.Join(configDir, filename)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Replace environment variables in the config
	configStr := string(data)
	configStr = expandEnvVars(configStr)

	cfg := Default()
	if err := json.Unmarshal([]byte(configStr), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Environment = env
	return cfg, nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// TokenTTL is the lifetime of player tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWT.TTLHours) * time.Hour
}

// MoveDelay is the engine's pause before replying.
func (c *Config) MoveDelay() time.Duration {
	return time.Duration(c.Engine.MoveDelayMs) * time.Millisecond
}

// expandEnvVars replaces ${VAR_NAME} with environment variable values
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

func GetEnv() string {
	env := os.Getenv("CHESS_ENV")
	if env == "" {
		return "dev"
	}
	return env
}
