// Package config provides user configuration management for the bridge.
//
// This package manages a YAML-based configuration file that names the
// RS485-to-UDP gateway, the AC units on the bus, the captured command
// templates the codec learns its frame layout from, and optional tuning
// knobs. The configuration follows OS-specific conventions for storage
// location.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/acbridge/config.yaml or $HOME/.config/acbridge/config.yaml
//   - macOS: $HOME/.config/acbridge/config.yaml
//   - Windows: %LOCALAPPDATA%\acbridge\config.yaml
//
// # File Format
//
//	version: 1
//	gateway:
//	  ip: 192.168.1.100
//	  port: 6000
//	devices:
//	  - address: "1.13"
//	    name: Living Room
//	templates:
//	  "off": "c0a80164...1cf0"
//	  "on": "c0a80164...b6a1"
//	  on_1.14: "c0a80164...7841"
//	tuning:
//	  suppression_window_ms: 2500
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	schema, err := protocol.Discover(cfg.Templates)
//
// # Thread Safety
//
// File operations are protected by a mutex to ensure atomic writes.
// A loaded Config is read-only by convention.
package config
