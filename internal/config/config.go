// Package config provides the configuration structure for the voice design service.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// Defaults applied when the corresponding keys are absent.
const (
	DefaultHost     = "0.0.0.0"
	DefaultPort     = 8867
	DefaultLanguage = "Chinese"
)

// HTTPConfig holds the listen address of the HTTP surface.
type HTTPConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ModelConfig holds the configuration for the voice design model collaborator.
type ModelConfig struct {
	BinaryPath     string `toml:"binary_path"`
	ModelPath      string `toml:"model_path"`
	Device         string `toml:"device"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// ArchiveConfig holds the optional NATS object store archive settings.
type ArchiveConfig struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
	Bucket  string `toml:"bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	HTTP    HTTPConfig    `toml:"http"`
	Model   ModelConfig   `toml:"model"`
	Archive ArchiveConfig `toml:"archive"`
	Paths   PathsConfig   `toml:"paths"`
}

// Load loads the configuration for the voice design service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// ListenAddr returns the host:port pair the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

func (c *Config) applyDefaults() {
	if c.HTTP.Host == "" {
		c.HTTP.Host = DefaultHost
	}

	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultPort
	}
}
