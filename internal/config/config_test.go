package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
version: 1
gateway:
  ip: 192.168.1.100
  port: 6000
devices:
  - address: "1.13"
    name: Living Room
  - address: "1.14"
    name: Bedroom
templates:
  "off": "aaaa1001fb1234193a010d00001800001cf0"
  "on": "aaaa1001fb1234193a010d0100180000b6a1"
tuning:
  suppression_window_ms: 1500
  remap_unexposed_modes: false
server:
  listen: ":9000"
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Gateway.IP != "192.168.1.100" {
		t.Errorf("gateway ip = %q", cfg.Gateway.IP)
	}
	if got := cfg.GatewayAddr(); got != "192.168.1.100:6000" {
		t.Errorf("GatewayAddr() = %q", got)
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("got %d devices, want 2", len(cfg.Devices))
	}

	addr, err := cfg.Devices[0].Addr()
	if err != nil {
		t.Fatalf("Addr() error = %v", err)
	}
	if addr.Subnet != 1 || addr.Device != 13 {
		t.Errorf("address = %v, want 1.13", addr)
	}

	if got := cfg.Tuning.SuppressionWindow(); got != 1500*time.Millisecond {
		t.Errorf("SuppressionWindow() = %v, want 1.5s", got)
	}
	if cfg.Tuning.RemapModes() {
		t.Error("RemapModes() = true, want false")
	}
	if got := cfg.Server.ListenAddr(); got != ":9000" {
		t.Errorf("ListenAddr() = %q", got)
	}
}

func TestParseDefaults(t *testing.T) {
	minimal := `
version: 1
gateway:
  ip: 10.0.0.5
templates:
  "off": "00"
  "on": "00"
`
	cfg, err := Parse([]byte(minimal))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Gateway.Port != DefaultGatewayPort {
		t.Errorf("port = %d, want default %d", cfg.Gateway.Port, DefaultGatewayPort)
	}
	if got := cfg.Tuning.SuppressionWindow(); got != 0 {
		t.Errorf("SuppressionWindow() = %v, want 0 (use built-in default)", got)
	}
	if !cfg.Tuning.RemapModes() {
		t.Error("RemapModes() should default to true")
	}
	if got := cfg.Server.ListenAddr(); got != DefaultServerListen {
		t.Errorf("ListenAddr() = %q, want default %q", got, DefaultServerListen)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "not yaml",
			yaml:    "{{{",
			wantErr: "parse",
		},
		{
			name: "wrong version",
			yaml: `
version: 2
gateway:
  ip: 10.0.0.5
templates: {"off": "00", "on": "00"}
`,
			wantErr: "version",
		},
		{
			name: "missing gateway ip",
			yaml: `
version: 1
templates: {"off": "00", "on": "00"}
`,
			wantErr: "gateway.ip",
		},
		{
			name: "bad device address",
			yaml: `
version: 1
gateway: {ip: 10.0.0.5}
devices:
  - {address: "not-an-address", name: Broken}
templates: {"off": "00", "on": "00"}
`,
			wantErr: "Broken",
		},
		{
			name: "duplicate device address",
			yaml: `
version: 1
gateway: {ip: 10.0.0.5}
devices:
  - {address: "1.13", name: A}
  - {address: "1.13", name: B}
templates: {"off": "00", "on": "00"}
`,
			wantErr: "share address",
		},
		{
			name: "missing on template",
			yaml: `
version: 1
gateway: {ip: 10.0.0.5}
templates: {"off": "00"}
`,
			wantErr: `"on"`,
		},
		{
			name: "no templates at all",
			yaml: `
version: 1
gateway: {ip: 10.0.0.5}
`,
			wantErr: "required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("Parse() succeeded, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	// Saved file carries the explanatory header.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.HasPrefix(string(raw), "# acbridge configuration file") {
		t.Error("saved file missing header comment")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Gateway.IP != cfg.Gateway.IP || len(loaded.Devices) != len(cfg.Devices) {
		t.Errorf("round trip lost data: %+v", loaded)
	}
	if loaded.Templates["off"] != cfg.Templates["off"] {
		t.Error("round trip lost templates")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() on missing file succeeded, want error")
	}
}

func TestDeviceByName(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if d := cfg.DeviceByName("Bedroom"); d == nil || d.Address != "1.14" {
		t.Errorf("DeviceByName(Bedroom) = %+v", d)
	}
	// Address strings resolve too, so CLI users can skip naming.
	if d := cfg.DeviceByName("1.13"); d == nil || d.Name != "Living Room" {
		t.Errorf("DeviceByName(1.13) = %+v", d)
	}
	if d := cfg.DeviceByName("Garage"); d != nil {
		t.Errorf("DeviceByName(Garage) = %+v, want nil", d)
	}
}
