// Package config loads and validates the agent's YAML configuration file.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when the file leaves a field unset.
const (
	DefaultEndpoint   = "unix:///var/run/docker.sock"
	DefaultModuleType = "docker"
	DefaultListen     = "127.0.0.1:15580"
	DefaultLogLevel   = "info"
)

// Engine configures how the agent reaches the container engine.
type Engine struct {
	// Endpoint is the engine API endpoint: a unix:// or npipe:// socket
	// path, or a tcp:// / http(s):// URL.
	Endpoint string `yaml:"endpoint"`
	// Network is the container network Init ensures exists. Empty disables
	// network bootstrap.
	Network string `yaml:"network"`
}

// Config is the agent configuration.
type Config struct {
	Engine Engine `yaml:"engine"`
	// ModuleType is the module type tag the runtime supports; specs
	// carrying any other type are rejected at create time.
	ModuleType string `yaml:"moduleType"`
	// Listen is the host:port the management API binds to.
	Listen string `yaml:"listen"`
	// LogLevel is a zerolog level name (trace, debug, info, warn, error).
	LogLevel string `yaml:"logLevel"`
}

// Load reads, parses, defaults and validates the configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config read: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML configuration document, applies defaults and
// validates it. It is the canonical entry point for loading agent
// configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config parse: %w", err)
	}
	cfg.applyDefaults()
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Engine.Endpoint == "" {
		c.Engine.Endpoint = DefaultEndpoint
	}
	if c.ModuleType == "" {
		c.ModuleType = DefaultModuleType
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}

// Validate checks a Config for structural correctness. It returns the first
// validation error encountered, or nil if the config is valid.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config must not be nil")
	}

	u, err := url.Parse(cfg.Engine.Endpoint)
	if err != nil {
		return fmt.Errorf("engine.endpoint: %w", err)
	}
	switch u.Scheme {
	case "unix", "npipe", "tcp", "http", "https":
	default:
		return fmt.Errorf("engine.endpoint: unsupported scheme %q", u.Scheme)
	}

	if strings.TrimSpace(cfg.ModuleType) == "" {
		return fmt.Errorf("moduleType must not be blank")
	}

	if _, _, err := net.SplitHostPort(cfg.Listen); err != nil {
		return fmt.Errorf("listen must be host:port, got %q", cfg.Listen)
	}

	switch strings.ToLower(cfg.LogLevel) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logLevel must be one of trace, debug, info, warn, error; got %q", cfg.LogLevel)
	}

	return nil
}
