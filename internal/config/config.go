// Package config loads repertoire settings from an optional YAML file, then
// REPERTOIRE_* environment overrides, then validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Server  ServerConfig  `yaml:"server"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
}

type StorageConfig struct {
	Driver string `yaml:"driver" env:"REPERTOIRE_STORAGE_DRIVER" validate:"oneof=sqlite badger"`
	// Path is the sqlite file or the badger directory
	Path string `yaml:"path" env:"REPERTOIRE_STORAGE_PATH" validate:"required"`
}

type ServerConfig struct {
	Host      string `yaml:"host" env:"REPERTOIRE_SERVER_HOST"`
	Port      int    `yaml:"port" env:"REPERTOIRE_SERVER_PORT" validate:"min=1,max=65535"`
	DevMode   bool   `yaml:"dev_mode" env:"REPERTOIRE_SERVER_DEV_MODE"`
	RateLimit int    `yaml:"rate_limit" env:"REPERTOIRE_SERVER_RATE_LIMIT" validate:"min=1"`
	AccessLog bool   `yaml:"access_log" env:"REPERTOIRE_SERVER_ACCESS_LOG"`
}

type SessionConfig struct {
	IdleTTL         time.Duration `yaml:"idle_ttl" env:"REPERTOIRE_SESSION_IDLE_TTL" validate:"gt=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" env:"REPERTOIRE_SESSION_CLEANUP_INTERVAL" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"REPERTOIRE_LOG_LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env:"REPERTOIRE_LOG_FORMAT" validate:"oneof=text json"`
}

func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Driver: DriverSQLite,
			Path:   "repertoire.db",
		},
		Server: ServerConfig{
			Host:      "localhost",
			Port:      8080,
			RateLimit: 10,
			AccessLog: true,
		},
		Session: SessionConfig{
			IdleTTL:         2 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates. An empty path or a missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes cfg as YAML, creating the parent directory
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Addr is the listen address of the API server
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
