// Package config loads the YAML configuration of the admin server.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/bitechdev/changelist/pkg/changelist"
)

// Supported values of Database.Driver and Server.Router.
const (
	DriverGORM = "gorm"
	DriverBun  = "bun"

	RouterMux       = "mux"
	RouterBunRouter = "bunrouter"
)

// Config is the admin server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`

	// Admins overrides the change list options of registered models by name.
	Admins map[string]changelist.Options `yaml:"admins,omitempty"`
}

type ServerConfig struct {
	Addr   string `yaml:"addr"`
	Router string `yaml:"router"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// Seed creates the demo schema and sample rows on startup.
	Seed bool `yaml:"seed"`
	// LogQueries enables the gorm SQL logger.
	LogQueries bool `yaml:"log_queries"`
}

type LoggingConfig struct {
	Development bool `yaml:"development"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:   ":8080",
			Router: RouterMux,
		},
		Database: DatabaseConfig{
			Driver: DriverGORM,
			DSN:    "changelist.db",
			Seed:   true,
		},
		Logging: LoggingConfig{
			Development: true,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverGORM, DriverBun:
	default:
		return fmt.Errorf("invalid database driver %q (valid: %s, %s)", c.Database.Driver, DriverGORM, DriverBun)
	}
	switch c.Server.Router {
	case RouterMux, RouterBunRouter:
	default:
		return fmt.Errorf("invalid router %q (valid: %s, %s)", c.Server.Router, RouterMux, RouterBunRouter)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	for name, opts := range c.Admins {
		if opts.ListPerPage < 0 {
			return fmt.Errorf("admin %s: list_per_page must be >= 0, got %d", name, opts.ListPerPage)
		}
	}
	return nil
}
