package config

import (
	"fmt"
	"time"

	"github.com/hdlbus/acbridge/internal/protocol"
)

// Config represents the entire user configuration file.
// It names the gateway, the units to track, the captured command
// templates the codec learns from, and optional tuning knobs.
type Config struct {
	Version   int               `yaml:"version"`
	Gateway   Gateway           `yaml:"gateway"`
	Devices   []DeviceEntry     `yaml:"devices,omitempty"`
	Templates map[string]string `yaml:"templates,omitempty"` // Keyed by template name (off, on, on_<addr>, ...)
	Tuning    *Tuning           `yaml:"tuning,omitempty"`
	Server    *Server           `yaml:"server,omitempty"`
}

// Gateway is the RS485-to-UDP bridge the bus hangs off.
type Gateway struct {
	IP   string `yaml:"ip"`             // Gateway IP address (e.g., "192.168.1.100")
	Port int    `yaml:"port,omitempty"` // UDP port; 0 selects DefaultGatewayPort
}

// DefaultGatewayPort is the port HDL-style gateways listen on.
const DefaultGatewayPort = 6000

// DeviceEntry names one AC unit on the bus.
type DeviceEntry struct {
	Address string `yaml:"address"`        // "subnet.device", e.g. "1.13"
	Name    string `yaml:"name,omitempty"` // User-friendly name (e.g., "Living Room")
}

// Addr parses the entry's bus address.
func (d DeviceEntry) Addr() (protocol.Address, error) {
	return protocol.ParseAddress(d.Address)
}

// Tuning holds optional reconciliation knobs. Absent fields keep the
// built-in defaults.
type Tuning struct {
	SuppressionWindowMS int   `yaml:"suppression_window_ms,omitempty"`
	RemapUnexposedModes *bool `yaml:"remap_unexposed_modes,omitempty"`
}

// SuppressionWindow returns the configured echo window, or zero when
// the default should apply.
func (t *Tuning) SuppressionWindow() time.Duration {
	if t == nil || t.SuppressionWindowMS <= 0 {
		return 0
	}
	return time.Duration(t.SuppressionWindowMS) * time.Millisecond
}

// RemapModes reports whether unexposed modes should be folded into the
// exposed set. Defaults to true when unset.
func (t *Tuning) RemapModes() bool {
	if t == nil || t.RemapUnexposedModes == nil {
		return true
	}
	return *t.RemapUnexposedModes
}

// Server configures the WebSocket state-stream endpoint.
type Server struct {
	Listen string `yaml:"listen"` // Bind address (e.g., ":8673")
}

// DefaultServerListen is the state-stream bind address used when the
// config file does not set one.
const DefaultServerListen = ":8673"

// ListenAddr returns the configured bind address or the default.
func (s *Server) ListenAddr() string {
	if s == nil || s.Listen == "" {
		return DefaultServerListen
	}
	return s.Listen
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Gateway: Gateway{
			Port: DefaultGatewayPort,
		},
		Templates: make(map[string]string),
	}
}

// GatewayAddr returns the gateway's "ip:port" dial string.
func (c *Config) GatewayAddr() string {
	port := c.Gateway.Port
	if port == 0 {
		port = DefaultGatewayPort
	}
	return fmt.Sprintf("%s:%d", c.Gateway.IP, port)
}

// DeviceByName finds a device entry by its configured name or address
// string. Returns nil when nothing matches.
func (c *Config) DeviceByName(name string) *DeviceEntry {
	for i := range c.Devices {
		if c.Devices[i].Name == name || c.Devices[i].Address == name {
			return &c.Devices[i]
		}
	}
	return nil
}

// Validate checks the configuration for problems that would only
// surface later as confusing runtime failures.
func (c *Config) Validate() error {
	if c.Version != 1 {
		return fmt.Errorf("unsupported config version: %d (expected 1)", c.Version)
	}
	if c.Gateway.IP == "" {
		return fmt.Errorf("gateway.ip is required")
	}
	if c.Gateway.Port < 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("gateway.port %d out of range", c.Gateway.Port)
	}

	seen := make(map[string]string, len(c.Devices))
	for _, d := range c.Devices {
		addr, err := d.Addr()
		if err != nil {
			return fmt.Errorf("device %q: %w", d.Name, err)
		}
		if prev, dup := seen[addr.String()]; dup {
			return fmt.Errorf("devices %q and %q share address %s", prev, d.Name, addr)
		}
		seen[addr.String()] = d.Name
	}

	for _, name := range []string{protocol.TemplateOff, protocol.TemplateOn} {
		if _, ok := c.Templates[name]; !ok {
			return fmt.Errorf("templates: %q capture is required", name)
		}
	}

	return nil
}
