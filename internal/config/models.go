package config

import (
	"fmt"
	"net"
	"time"
)

// Config represents the entire gateway configuration file.
type Config struct {
	Version   int              `yaml:"version"`
	Server    *ServerConfig    `yaml:"server,omitempty"`
	Discovery *DiscoveryConfig `yaml:"discovery,omitempty"`
	Alpaca    *AlpacaConfig    `yaml:"alpaca,omitempty"`
	// ManualServers are Alpaca servers registered at startup without waiting
	// for a discovery broadcast (devices on other subnets, broadcast-filtered
	// networks, etc.).
	ManualServers []*ManualServer `yaml:"manual_servers,omitempty"`
}

// ServerConfig holds the gateway HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"` // Listen host (default "127.0.0.1")
	Port int    `yaml:"port"` // Listen port (default 8750)
}

// DiscoveryConfig holds Alpaca discovery protocol settings.
type DiscoveryConfig struct {
	Port          int  `yaml:"port"`           // UDP discovery port (default 32227)
	WindowSeconds int  `yaml:"window_seconds"` // Reply collection window after a broadcast
	EnableMDNS    bool `yaml:"enable_mdns"`    // Also browse _alpaca._tcp via mDNS
}

// AlpacaConfig holds settings for talking to discovered Alpaca servers.
type AlpacaConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"` // HTTP timeout for management API calls
	// SupportedTypes is the device-type allow list applied when resolving a
	// server's configured devices. Types are compared lowercased.
	SupportedTypes []string `yaml:"supported_types,omitempty"`
}

// ManualServer identifies one manually configured Alpaca server.
type ManualServer struct {
	Address string `yaml:"address"` // IPv4 address
	Port    int    `yaml:"port"`    // Alpaca API port
}

// Default values applied by NewConfig and Load.
const (
	DefaultServerHost       = "127.0.0.1"
	DefaultServerPort       = 8750
	DefaultDiscoveryPort    = 32227
	DefaultWindowSeconds    = 2
	DefaultAlpacaTimeoutSec = 10
)

// DefaultSupportedTypes is the device-type allow list used when the config
// file does not override it. Telescope and camera are always supported.
var DefaultSupportedTypes = []string{
	"telescope",
	"camera",
	"focuser",
	"filterwheel",
	"dome",
	"rotator",
	"switch",
	"covercalibrator",
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Server: &ServerConfig{
			Host: DefaultServerHost,
			Port: DefaultServerPort,
		},
		Discovery: &DiscoveryConfig{
			Port:          DefaultDiscoveryPort,
			WindowSeconds: DefaultWindowSeconds,
		},
		Alpaca: &AlpacaConfig{
			TimeoutSeconds: DefaultAlpacaTimeoutSec,
			SupportedTypes: append([]string(nil), DefaultSupportedTypes...),
		},
	}
}

// applyDefaults fills in any sections or fields missing from a loaded file.
func (c *Config) applyDefaults() {
	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}

	if c.Discovery == nil {
		c.Discovery = &DiscoveryConfig{}
	}
	if c.Discovery.Port == 0 {
		c.Discovery.Port = DefaultDiscoveryPort
	}
	if c.Discovery.WindowSeconds == 0 {
		c.Discovery.WindowSeconds = DefaultWindowSeconds
	}

	if c.Alpaca == nil {
		c.Alpaca = &AlpacaConfig{}
	}
	if c.Alpaca.TimeoutSeconds == 0 {
		c.Alpaca.TimeoutSeconds = DefaultAlpacaTimeoutSec
	}
	if len(c.Alpaca.SupportedTypes) == 0 {
		c.Alpaca.SupportedTypes = append([]string(nil), DefaultSupportedTypes...)
	}
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", c.Version)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Discovery.Port < 1 || c.Discovery.Port > 65535 {
		return fmt.Errorf("invalid discovery port: %d", c.Discovery.Port)
	}
	for _, ms := range c.ManualServers {
		if net.ParseIP(ms.Address) == nil {
			return fmt.Errorf("invalid manual server address: %q", ms.Address)
		}
		if ms.Port < 1 || ms.Port > 65535 {
			return fmt.Errorf("invalid manual server port: %d", ms.Port)
		}
	}
	return nil
}

// DiscoveryWindow returns the reply collection window as a duration.
func (c *Config) DiscoveryWindow() time.Duration {
	return time.Duration(c.Discovery.WindowSeconds) * time.Second
}

// AlpacaTimeout returns the management API HTTP timeout as a duration.
func (c *Config) AlpacaTimeout() time.Duration {
	return time.Duration(c.Alpaca.TimeoutSeconds) * time.Second
}

// ListenAddr returns the gateway listen address in host:port form.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
