package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds every setting of the server. LoadConfig applies defaults, the
// YAML file and then LOB_* environment overrides.
type Config struct {
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Address string `yaml:"address"`
	} `yaml:"metrics"`

	Sequencer struct {
		QueueSize int `yaml:"queue_size"`
	} `yaml:"sequencer"`

	Book struct {
		TickSize     decimal.Decimal `yaml:"tick_size"`
		FirstOrderID uint64          `yaml:"first_order_id"`
	} `yaml:"book"`

	Logging struct {
		Level      string `yaml:"level"`
		Console    bool   `yaml:"console"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// Default returns a configuration usable without a file.
func Default() *Config {
	var cfg Config
	cfg.Server.Address = "0.0.0.0"
	cfg.Server.Port = 9001
	cfg.Metrics.Enabled = true
	cfg.Metrics.Address = "127.0.0.1:9100"
	cfg.Sequencer.QueueSize = 1024
	cfg.Book.TickSize = decimal.RequireFromString("0.01")
	cfg.Book.FirstOrderID = 1
	cfg.Logging.Level = "info"
	cfg.Logging.Console = true
	cfg.Logging.MaxSizeMB = 10
	cfg.Logging.MaxBackups = 3
	cfg.Logging.MaxAgeDays = 28
	return &cfg
}

// LoadConfig reads path on top of the defaults. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := overrideWithEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server port %d", ErrInvalidConfig, c.Server.Port)
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("%w: metrics address required when metrics are enabled", ErrInvalidConfig)
	}
	if c.Sequencer.QueueSize <= 0 {
		return fmt.Errorf("%w: sequencer queue size must be positive", ErrInvalidConfig)
	}
	if !c.Book.TickSize.IsPositive() {
		return fmt.Errorf("%w: tick size %s", ErrInvalidConfig, c.Book.TickSize)
	}
	if c.Book.FirstOrderID == 0 {
		return fmt.Errorf("%w: first order id must be positive", ErrInvalidConfig)
	}
	return nil
}

// Listen returns the gateway listen address.
func (c *Config) Listen() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// overrideWithEnv replaces values for which a LOB_* variable is set.
func overrideWithEnv(cfg *Config) error {
	if v := os.Getenv("LOB_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("LOB_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: LOB_SERVER_PORT: %v", ErrInvalidConfig, err)
		}
		cfg.Server.Port = port
	}
	if v := os.Getenv("LOB_METRICS_ADDRESS"); v != "" {
		cfg.Metrics.Address = v
	}
	if v := os.Getenv("LOB_TICK_SIZE"); v != "" {
		tick, err := decimal.NewFromString(v)
		if err != nil {
			return fmt.Errorf("%w: LOB_TICK_SIZE: %v", ErrInvalidConfig, err)
		}
		cfg.Book.TickSize = tick
	}
	if v := os.Getenv("LOB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOB_LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	return nil
}
