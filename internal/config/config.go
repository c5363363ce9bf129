// Package config models daydash.yml, the host configuration for the
// server and the fetch loop.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"daydash/internal/identity"
)

// Config models daydash.yml.
type Config struct {
	Server struct {
		Listen   string `yaml:"listen"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
	Auth struct {
		JWTSecret  string `yaml:"jwt_secret"`
		TokenHours int    `yaml:"token_hours"`
	} `yaml:"auth"`
	Data struct {
		Root string `yaml:"root"`
	} `yaml:"data"`
}

// Default returns the config used when daydash.yml is absent.
func Default() *Config {
	var cfg Config
	cfg.Server.Listen = "127.0.0.1:8787"
	cfg.Server.BasePath = "/api/v1"
	cfg.Auth.TokenHours = 24 * 30
	if root, err := identity.DefaultDataRoot(); err == nil {
		cfg.Data.Root = root
	}
	return &cfg
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "daydash.yml")
}

// Load reads config from workspace, falling back to defaults when the
// file does not exist.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes. Unset fields
// inherit defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Server.Listen == "" {
		return fmt.Errorf("config.server.listen is required")
	}
	if c.Auth.TokenHours <= 0 {
		return fmt.Errorf("config.auth.token_hours must be positive")
	}
	if c.Data.Root == "" {
		return fmt.Errorf("config.data.root is required")
	}
	return nil
}
