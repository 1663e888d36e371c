package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds all configuration for the greeting server
type Config struct {
	// Server configuration
	HTTPHost string `env:"HELLO_HTTP_HOST" envDefault:"0.0.0.0"`
	HTTPPort int    `env:"HELLO_HTTP_PORT" envDefault:"5000"`
	Debug    bool   `env:"HELLO_DEBUG" envDefault:"false"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Log file configuration
	Log LogConfig

	// Admin listener (health + metrics)
	Admin AdminConfig

	// gRPC health listener
	GRPC GRPCConfig

	// Debug-mode auto-reload
	Reload ReloadConfig

	// Timeouts
	Timeouts TimeoutConfig
}

// LogConfig holds the optional rotated log file configuration
type LogConfig struct {
	File       string `env:"LOG_FILE"`
	MaxSizeMB  int    `env:"LOG_FILE_MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"LOG_FILE_MAX_BACKUPS" envDefault:"3"`
	MaxAgeDays int    `env:"LOG_FILE_MAX_AGE_DAYS" envDefault:"28"`
}

// AdminConfig holds admin listener configuration. Port 0 disables it.
type AdminConfig struct {
	Port int `env:"HELLO_ADMIN_PORT" envDefault:"0"`
}

// GRPCConfig holds gRPC health listener configuration. Port 0 disables it.
type GRPCConfig struct {
	Port int `env:"HELLO_GRPC_PORT" envDefault:"0"`
}

// ReloadConfig holds auto-reload configuration
type ReloadConfig struct {
	Enabled    bool          `env:"HELLO_RELOAD" envDefault:"true"`
	ExtraFiles []string      `env:"HELLO_RELOAD_EXTRA_FILES" envSeparator:","`
	Debounce   time.Duration `env:"HELLO_RELOAD_DEBOUNCE" envDefault:"500ms"`
}

// TimeoutConfig holds various timeout configurations
type TimeoutConfig struct {
	ShutdownTimeout time.Duration `env:"HELLO_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.HTTPHost == "" {
		return fmt.Errorf("HTTP host is required")
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.Admin.Port < 0 || c.Admin.Port > 65535 {
		return fmt.Errorf("invalid admin port: %d", c.Admin.Port)
	}
	if c.GRPC.Port < 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}

	// Enabled listeners share a host, so their ports must differ
	ports := map[int]string{c.HTTPPort: "HTTP"}
	for name, port := range map[string]int{"admin": c.Admin.Port, "gRPC": c.GRPC.Port} {
		if port == 0 {
			continue
		}
		if other, ok := ports[port]; ok {
			return fmt.Errorf("%s port %d conflicts with %s port", name, port, other)
		}
		ports[port] = name
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.Log.File != "" && (c.Log.MaxSizeMB < 1 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0) {
		return fmt.Errorf("invalid log file rotation settings")
	}

	if c.ReloadActive() && c.Reload.Debounce <= 0 {
		return fmt.Errorf("reload debounce must be positive, got %s", c.Reload.Debounce)
	}

	if c.Timeouts.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %s", c.Timeouts.ShutdownTimeout)
	}

	return nil
}

// ReloadActive reports whether the auto-reloader should run.
// Reloading only happens in debug mode.
func (c *Config) ReloadActive() bool {
	return c.Debug && c.Reload.Enabled
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return net.JoinHostPort(c.HTTPHost, strconv.Itoa(c.HTTPPort))
}

// GetAdminAddr returns the admin server address, or "" when disabled
func (c *Config) GetAdminAddr() string {
	if c.Admin.Port == 0 {
		return ""
	}
	return net.JoinHostPort(c.HTTPHost, strconv.Itoa(c.Admin.Port))
}

// GetGRPCAddr returns the gRPC server address, or "" when disabled
func (c *Config) GetGRPCAddr() string {
	if c.GRPC.Port == 0 {
		return ""
	}
	return net.JoinHostPort(c.HTTPHost, strconv.Itoa(c.GRPC.Port))
}
