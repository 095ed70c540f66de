// Package config handles configuration loading and validation for scribble.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hay-kot/criterio"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	History   HistoryConfig   `yaml:"history"`
	Transport TransportConfig `yaml:"transport"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Activity  ActivityConfig  `yaml:"activity"`
	DataDir   string          `yaml:"-"` // set by caller, not from config file
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// AllowedOrigins are glob patterns matched against the Origin host of
	// websocket upgrades and CORS requests.
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// HistoryConfig bounds per-room action history.
type HistoryConfig struct {
	Capacity int `yaml:"capacity"`
}

// TransportConfig tunes websocket connections.
type TransportConfig struct {
	SendBuffer      int           `yaml:"send_buffer"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	PongTimeout     time.Duration `yaml:"pong_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	MaxMessageBytes int64         `yaml:"max_message_bytes"`
}

// DiscoveryConfig controls mDNS advertisement on the local network.
type DiscoveryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Instance string `yaml:"instance"`
}

// ActivityConfig controls the room activity log.
type ActivityConfig struct {
	Enabled    bool `yaml:"enabled"`
	MaxEntries int  `yaml:"max_entries"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":3000",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 10 * time.Second,
		},
		History: HistoryConfig{
			Capacity: 100,
		},
		Transport: TransportConfig{
			SendBuffer:      256,
			WriteTimeout:    10 * time.Second,
			PongTimeout:     60 * time.Second,
			PingInterval:    54 * time.Second,
			MaxMessageBytes: 64 * 1024,
		},
		Activity: ActivityConfig{
			MaxEntries: 1000,
		},
	}
}

// Load reads configuration from the given path and sets the data directory.
// If configPath is empty or doesn't exist, returns defaults with the provided dataDir.
func Load(configPath, dataDir string) (*Config, error) {
	cfg := DefaultConfig()
	// Derived from pong_timeout in applyDefaults unless the file sets it.
	cfg.Transport.PingInterval = 0

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.DataDir = dataDir
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()

	if c.Server.Addr == "" {
		c.Server.Addr = defaults.Server.Addr
	}
	if len(c.Server.AllowedOrigins) == 0 {
		c.Server.AllowedOrigins = defaults.Server.AllowedOrigins
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = defaults.Server.ShutdownTimeout
	}
	if c.History.Capacity == 0 {
		c.History.Capacity = defaults.History.Capacity
	}
	if c.Transport.SendBuffer == 0 {
		c.Transport.SendBuffer = defaults.Transport.SendBuffer
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = defaults.Transport.WriteTimeout
	}
	if c.Transport.PongTimeout == 0 {
		c.Transport.PongTimeout = defaults.Transport.PongTimeout
	}
	if c.Transport.PingInterval == 0 {
		c.Transport.PingInterval = c.Transport.PongTimeout * 9 / 10
	}
	if c.Transport.MaxMessageBytes == 0 {
		c.Transport.MaxMessageBytes = defaults.Transport.MaxMessageBytes
	}
	if c.Activity.MaxEntries == 0 {
		c.Activity.MaxEntries = defaults.Activity.MaxEntries
	}
	if c.Discovery.Instance == "" {
		if host, err := os.Hostname(); err == nil {
			c.Discovery.Instance = host
		} else {
			c.Discovery.Instance = "scribble"
		}
	}
}

// Validate checks that the configuration is valid. Field problems are
// reported together as criterio.FieldErrors.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if _, err := c.Port(); err != nil {
		errs = errs.Append("server.addr", err)
	}
	for i, pattern := range c.Server.AllowedOrigins {
		if !doublestar.ValidatePattern(pattern) {
			errs = errs.Append(fmt.Sprintf("server.allowed_origins[%d]", i), fmt.Errorf("invalid glob %q", pattern))
		}
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = errs.Append("server.shutdown_timeout", fmt.Errorf("must not be negative"))
	}

	if c.History.Capacity < 1 {
		errs = errs.Append("history.capacity", fmt.Errorf("must be at least 1"))
	}

	t := c.Transport
	if t.SendBuffer < 1 {
		errs = errs.Append("transport.send_buffer", fmt.Errorf("must be at least 1"))
	}
	if t.WriteTimeout <= 0 {
		errs = errs.Append("transport.write_timeout", fmt.Errorf("must be positive"))
	}
	if t.PongTimeout <= 0 {
		errs = errs.Append("transport.pong_timeout", fmt.Errorf("must be positive"))
	}
	if t.PingInterval <= 0 || t.PingInterval >= t.PongTimeout {
		errs = errs.Append("transport.ping_interval", fmt.Errorf("must be positive and less than pong_timeout (%s)", t.PongTimeout))
	}
	if t.MaxMessageBytes < 512 {
		errs = errs.Append("transport.max_message_bytes", fmt.Errorf("must be at least 512"))
	}

	if c.Activity.MaxEntries < 1 {
		errs = errs.Append("activity.max_entries", fmt.Errorf("must be at least 1"))
	}
	if c.Activity.Enabled && c.DataDir == "" {
		errs = errs.Append("data_dir", fmt.Errorf("required when activity is enabled"))
	}

	return errs.ToError()
}

// Port returns the numeric port of Server.Addr. Port 0 is allowed and means
// an ephemeral port.
func (c *Config) Port() (int, error) {
	_, portStr, err := net.SplitHostPort(c.Server.Addr)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", c.Server.Addr, err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return 0, fmt.Errorf("invalid port %q", portStr)
	}
	return port, nil
}

// ActivityDir returns the directory holding the activity log.
func (c *Config) ActivityDir() string {
	return filepath.Join(c.DataDir, "activity")
}

// Warning is a non-fatal configuration issue reported by `scribble doctor`.
type Warning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// Warnings reports settings that are valid but probably not intended.
func (c *Config) Warnings() []Warning {
	var warnings []Warning

	for i, pattern := range c.Server.AllowedOrigins {
		if pattern == "*" || pattern == "**" {
			warnings = append(warnings, Warning{
				Category: "Server",
				Item:     fmt.Sprintf("allowed_origins[%d]", i),
				Message:  "any browser origin may connect",
			})
		}
	}

	if c.Discovery.Enabled {
		if host, _, err := net.SplitHostPort(c.Server.Addr); err == nil {
			if ip := net.ParseIP(host); (ip != nil && ip.IsLoopback()) || host == "localhost" {
				warnings = append(warnings, Warning{
					Category: "Discovery",
					Item:     "server.addr",
					Message:  "advertised on the network but listening on loopback only",
				})
			}
		}
	}

	if c.History.Capacity > 10000 {
		warnings = append(warnings, Warning{
			Category: "History",
			Item:     "capacity",
			Message:  fmt.Sprintf("%d actions per room are replayed to every joining client", c.History.Capacity),
		})
	}

	return warnings
}
