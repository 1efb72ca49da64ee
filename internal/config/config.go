// Package config provides YAML-based configuration loading for Parley.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Parley configuration, loaded from parley.yaml.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Session  SessionConfig  `yaml:"session"`
	Server   ServerConfig   `yaml:"server"`
}

// DatabaseConfig selects and configures the storage backend. SQLite is the
// default; MySQL is available for shared deployments.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite" or "mysql"
	Path     string `yaml:"path"`   // sqlite file path
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// OpenAIConfig holds completion API settings. The API key may also be
// supplied via the OPENAI_API_KEY environment variable, which wins over the
// file value.
type OpenAIConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"` // max output tokens per reply
}

// SessionConfig holds defaults applied when creating sessions.
type SessionConfig struct {
	DefaultDuration    int `yaml:"default_duration"` // seconds
	DefaultTokenBudget int `yaml:"default_token_budget"`
	MaxMessageLength   int `yaml:"max_message_length"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Load reads a YAML config file from path and returns a validated Config.
// A missing file yields the defaults rather than an error, so the CLI works
// out of the box against a local sqlite database.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Parse(nil)
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse: %w", err)
		}
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Path == "" {
		c.Database.Path = "parley.db"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.Name == "" {
		c.Database.Name = "parley"
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.OpenAI.APIKey = key
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4"
	}
	if c.OpenAI.Temperature == 0 {
		c.OpenAI.Temperature = 0.7
	}
	if c.OpenAI.MaxTokens == 0 {
		c.OpenAI.MaxTokens = 2000
	}
	if c.Session.DefaultDuration == 0 {
		c.Session.DefaultDuration = 3600
	}
	if c.Session.DefaultTokenBudget == 0 {
		c.Session.DefaultTokenBudget = 50000
	}
	if c.Session.MaxMessageLength == 0 {
		c.Session.MaxMessageLength = 5000
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
}

// validate checks that all fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not supported (sqlite, mysql)", c.Database.Driver))
	}
	if c.Database.Driver == "mysql" && c.Database.User == "" {
		errs = append(errs, "database.user is required for mysql")
	}
	if c.OpenAI.Temperature < 0 || c.OpenAI.Temperature > 2 {
		errs = append(errs, "openai.temperature must be between 0 and 2")
	}
	if c.OpenAI.MaxTokens < 1 {
		errs = append(errs, "openai.max_tokens must be positive")
	}
	if c.Session.DefaultDuration < 1 {
		errs = append(errs, "session.default_duration must be positive")
	}
	if c.Session.DefaultTokenBudget < 1 {
		errs = append(errs, "session.default_token_budget must be positive")
	}
	if c.Session.MaxMessageLength < 1 {
		errs = append(errs, "session.max_message_length must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
