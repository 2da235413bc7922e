package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Provider   ProviderConfig   `yaml:"provider"`
	Transcoder TranscoderConfig `yaml:"transcoder"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string        `yaml:"host" envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port           int           `yaml:"port" envconfig:"SERVER_PORT" default:"5000"`
	Debug          bool          `yaml:"debug" envconfig:"DEBUG" default:"false"`
	ReadTimeout    time.Duration `yaml:"read_timeout" envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout   time.Duration `yaml:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT" default:"45m"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"SERVER_REQUEST_TIMEOUT" default:"30m"`
}

// StorageConfig holds the download directory configuration.
type StorageConfig struct {
	DownloadPath  string        `yaml:"download_path" envconfig:"STORAGE_DOWNLOAD_PATH" default:"static/downloads"`
	MinFreeBytes  uint64        `yaml:"min_free_bytes" envconfig:"STORAGE_MIN_FREE_BYTES" default:"0"`
	SweepInterval time.Duration `yaml:"sweep_interval" envconfig:"STORAGE_SWEEP_INTERVAL" default:"10m"`
	MaxAge        time.Duration `yaml:"max_age" envconfig:"STORAGE_MAX_AGE" default:"1h"`
}

// ProviderConfig holds extraction provider (yt-dlp) configuration.
type ProviderConfig struct {
	Binary          string        `yaml:"binary" envconfig:"PROVIDER_BINARY" default:"yt-dlp"`
	MaxHeight       int           `yaml:"max_height" envconfig:"PROVIDER_MAX_HEIGHT" default:"2160"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"PROVIDER_TIMEOUT" default:"60s"`
	DownloadTimeout time.Duration `yaml:"download_timeout" envconfig:"PROVIDER_DOWNLOAD_TIMEOUT" default:"15m"`
}

// TranscoderConfig holds ffmpeg configuration.
type TranscoderConfig struct {
	Binary  string        `yaml:"binary" envconfig:"TRANSCODER_BINARY" default:"ffmpeg"`
	Timeout time.Duration `yaml:"timeout" envconfig:"TRANSCODER_TIMEOUT" default:"10m"`
}

// Load reads configuration from file and environment variables.
// Environment variables override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Load from YAML file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	// Override with environment variables
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration values are set.
//
// A download request runs the provider fetch and the transcoder back to back
// under the route deadline, so SERVER_REQUEST_TIMEOUT must exceed
// PROVIDER_DOWNLOAD_TIMEOUT + TRANSCODER_TIMEOUT; otherwise a slow job is cut
// by the route instead of failing in its own stage. SERVER_WRITE_TIMEOUT, when
// set, must exceed the route deadline so the connection outlives the response.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Storage.DownloadPath == "" {
		return fmt.Errorf("STORAGE_DOWNLOAD_PATH is required")
	}
	if c.Storage.SweepInterval > 0 && c.Storage.MaxAge <= 0 {
		return fmt.Errorf("STORAGE_MAX_AGE must be positive when sweeping is enabled")
	}
	if c.Provider.Binary == "" {
		return fmt.Errorf("PROVIDER_BINARY is required")
	}
	if c.Provider.MaxHeight <= 0 {
		return fmt.Errorf("PROVIDER_MAX_HEIGHT must be positive, got %d", c.Provider.MaxHeight)
	}
	if c.Provider.Timeout <= 0 || c.Provider.DownloadTimeout <= 0 {
		return fmt.Errorf("provider timeouts must be positive")
	}
	if c.Transcoder.Binary == "" {
		return fmt.Errorf("TRANSCODER_BINARY is required")
	}
	if c.Transcoder.Timeout <= 0 {
		return fmt.Errorf("TRANSCODER_TIMEOUT must be positive")
	}
	if stages := c.Provider.DownloadTimeout + c.Transcoder.Timeout; c.Server.RequestTimeout <= stages {
		return fmt.Errorf("SERVER_REQUEST_TIMEOUT (%v) must exceed PROVIDER_DOWNLOAD_TIMEOUT + TRANSCODER_TIMEOUT (%v)",
			c.Server.RequestTimeout, stages)
	}
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout <= c.Server.RequestTimeout {
		return fmt.Errorf("SERVER_WRITE_TIMEOUT (%v) must exceed SERVER_REQUEST_TIMEOUT (%v)",
			c.Server.WriteTimeout, c.Server.RequestTimeout)
	}
	return nil
}

// Address returns the server address in host:port format.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
