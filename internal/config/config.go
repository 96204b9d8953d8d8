// Package config loads application configuration from defaults,
// config files, environment variables and CLI flags.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	State     StateConfig     `mapstructure:"state"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Serve     ServeConfig     `mapstructure:"serve"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OracleConfig configures the generation backend.
type OracleConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKeyEnv       string        `mapstructure:"api_key_env"`
	Model           string        `mapstructure:"model"`
	TimeoutNormal   time.Duration `mapstructure:"timeout_normal"`
	TimeoutExtended time.Duration `mapstructure:"timeout_extended"`
}

// APIKey resolves the API key from the configured environment variable.
func (o OracleConfig) APIKey() string {
	return os.Getenv(o.APIKeyEnv)
}

// StateConfig configures task persistence.
type StateConfig struct {
	Backend string `mapstructure:"backend"`
	Path    string `mapstructure:"path"`
}

// EngineConfig configures workflow execution.
type EngineConfig struct {
	RecursionBudget int `mapstructure:"recursion_budget"`
}

// ServeConfig configures the HTTP API server.
type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

// WorkspaceConfig configures the directory tools operate in.
type WorkspaceConfig struct {
	Root string `mapstructure:"root"`
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("invalid log format: %q", c.Log.Format)
	}
	switch c.State.Backend {
	case "json", "sqlite", "memory":
	default:
		return fmt.Errorf("invalid state backend: %q", c.State.Backend)
	}
	if c.Oracle.TimeoutNormal <= 0 {
		return fmt.Errorf("oracle.timeout_normal must be positive, got %s", c.Oracle.TimeoutNormal)
	}
	if c.Oracle.TimeoutExtended < c.Oracle.TimeoutNormal {
		return fmt.Errorf("oracle.timeout_extended (%s) must not be shorter than timeout_normal (%s)",
			c.Oracle.TimeoutExtended, c.Oracle.TimeoutNormal)
	}
	if c.Engine.RecursionBudget < 0 {
		return fmt.Errorf("engine.recursion_budget must not be negative, got %d", c.Engine.RecursionBudget)
	}
	return nil
}
