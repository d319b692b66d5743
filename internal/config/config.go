// Package config loads the harp collector daemon's TOML configuration via
// viper.
package config

import (
	"fmt"
	"net"

	"github.com/spf13/viper"
)

// DefaultConfigPath is used when the CLI's -c/--config flag is not given.
const DefaultConfigPath = "/etc/harp/config.toml"

// Defaults mirror the original implementation's stated defaults.
const (
	DefaultProcessInterval = 1
	DefaultMaxPacketSize   = 1024
	MinMaxPacketSize       = 128
	DefaultDBMaxConns      = 3

	// DefaultQueueReserveFraction and DefaultQueueEstBytesPerRecord feed
	// the capacity sampler's MaxQueueRecords derivation (see
	// internal/server/capacity.go): MaxQueueRecords = (availableMemory *
	// ReserveFraction) / EstBytesPerRecord.
	DefaultQueueReserveFraction   = 0.25
	DefaultQueueEstBytesPerRecord = 512
)

// DatabaseConfig is the [database] table.
type DatabaseConfig struct {
	Name          string `mapstructure:"name"`
	User          string `mapstructure:"user"`
	Pass          string `mapstructure:"pass"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	MaxConnections int   `mapstructure:"max_connections"`
}

// AlertConfig is the optional [alert] table controlling the NATS publisher.
type AlertConfig struct {
	NATSURL string `mapstructure:"nats_url"`
}

// Config is the full daemon configuration: spec.md §6's TOML shape plus
// the optional log_level, metrics_addr, queue_reserve_fraction,
// queue_est_bytes_per_record keys and the [alert] table.
type Config struct {
	Host            string         `mapstructure:"host"`
	Port            int            `mapstructure:"port"`
	ProcessInterval int            `mapstructure:"process_interval"`
	MaxPacketSize   int            `mapstructure:"max_packet_size"`
	LogLevel        string         `mapstructure:"log_level"`
	MetricsAddr     string         `mapstructure:"metrics_addr"`
	Database        DatabaseConfig `mapstructure:"database"`
	Alert           AlertConfig    `mapstructure:"alert"`

	// QueueReserveFraction and QueueEstBytesPerRecord parameterize the
	// capacity sampler's derived queue hard cap (internal/server/capacity.go).
	QueueReserveFraction   float64 `mapstructure:"queue_reserve_fraction"`
	QueueEstBytesPerRecord int     `mapstructure:"queue_est_bytes_per_record"`
}

// Load reads and parses the TOML config at path, applying defaults for any
// field the file omits.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetDefault("process_interval", DefaultProcessInterval)
	v.SetDefault("max_packet_size", DefaultMaxPacketSize)
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("database.max_connections", DefaultDBMaxConns)
	v.SetDefault("queue_reserve_fraction", DefaultQueueReserveFraction)
	v.SetDefault("queue_est_bytes_per_record", DefaultQueueEstBytesPerRecord)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}

	if cfg.MaxPacketSize < MinMaxPacketSize {
		cfg.MaxPacketSize = MinMaxPacketSize
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return &cfg, nil
}

// Validate checks required fields, ranges, and cross-field consistency,
// mirroring the style of required/range/logical/enum checks used elsewhere
// in the pack's config loaders.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if net.ParseIP(c.Host) == nil {
		return fmt.Errorf("host %q is not a valid IP address", c.Host)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range [1,65535]", c.Port)
	}
	if c.ProcessInterval <= 0 {
		return fmt.Errorf("process_interval must be positive, got %d", c.ProcessInterval)
	}
	if c.MaxPacketSize < MinMaxPacketSize {
		return fmt.Errorf("max_packet_size must be at least %d, got %d", MinMaxPacketSize, c.MaxPacketSize)
	}

	if c.Database.Name == "" || c.Database.User == "" {
		return fmt.Errorf("database.name and database.user are required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("database.port %d out of range [1,65535]", c.Database.Port)
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("database.max_connections must be positive, got %d", c.Database.MaxConnections)
	}

	if c.QueueReserveFraction <= 0 || c.QueueReserveFraction > 1 {
		return fmt.Errorf("queue_reserve_fraction must be in (0,1], got %v", c.QueueReserveFraction)
	}
	if c.QueueEstBytesPerRecord <= 0 {
		return fmt.Errorf("queue_est_bytes_per_record must be positive, got %d", c.QueueEstBytesPerRecord)
	}

	return nil
}

// DatabaseURL builds a libpq-compatible connection string from the
// [database] table.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		c.Database.User, c.Database.Pass, c.Database.Host, c.Database.Port, c.Database.Name)
}

// Addr is the listener address the server binds.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
