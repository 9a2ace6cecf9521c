// Package config provides configuration management for the alpacahub gateway.
//
// This package manages a YAML-based configuration file holding the gateway
// listener settings, Alpaca discovery protocol settings, the device-type allow
// list, and manually registered Alpaca servers. The configuration follows
// OS-specific conventions for storage location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/alpacahub/config.yaml or $HOME/.config/alpacahub/config.yaml
//   - macOS: $HOME/.config/alpacahub/config.yaml
//   - Windows: %LOCALAPPDATA%\alpacahub\config.yaml
//
// # Usage Example
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Register a server that cannot answer broadcasts (other subnet)
//	cfg.ManualServers = append(cfg.ManualServers, &config.ManualServer{
//	    Address: "10.0.0.5",
//	    Port:    11111,
//	})
//
//	// Save changes atomically
//	if err := cfg.Save(); err != nil {
//	    log.Fatal(err)
//	}
//
// A missing config file is not an error; Load returns defaults so the gateway
// runs with zero configuration.
//
// # Thread Safety
//
// File operations are protected by a mutex to ensure atomic writes.
package config
