package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hdlbus/acbridge/internal/config"
	"github.com/hdlbus/acbridge/internal/gateway"
	"github.com/hdlbus/acbridge/internal/logging"
	"github.com/hdlbus/acbridge/internal/protocol"
	"github.com/hdlbus/acbridge/internal/reconcile"
	"github.com/hdlbus/acbridge/internal/server"
	"github.com/hdlbus/acbridge/internal/ui"
)

// Command flags
var (
	flagTemp    int
	flagMode    string
	flagFan     string
	flagTimeout time.Duration
	flagListen  string
	flagRaw     bool
)

func init() {
	for _, c := range []*cobra.Command{onCmd, setCmd} {
		c.Flags().IntVar(&flagTemp, "temp", 0, "Target temperature in °C")
		c.Flags().StringVar(&flagMode, "mode", "", "HVAC mode (cool, fan, dry)")
		c.Flags().StringVar(&flagFan, "fan", "", "Fan speed (auto, high, medium, low)")
	}
	statusCmd.Flags().DurationVar(&flagTimeout, "timeout", 5*time.Second, "How long to wait for the unit's answer")
	listenCmd.Flags().BoolVar(&flagRaw, "raw", false, "Also print every packet's raw bytes")
	serveCmd.Flags().StringVar(&flagListen, "listen", "", "State stream bind address (default from config)")

	rootCmd.AddCommand(onCmd)
	rootCmd.AddCommand(offCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(configCmd)
}

// setup loads the config, learns the schema from its captures, and
// opens the gateway socket. Every bus-facing command starts here.
func setup() (*config.Config, *gateway.Gateway, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	schema, err := protocol.Discover(cfg.Templates)
	if err != nil {
		return nil, nil, fmt.Errorf("learning frame layout from captures: %w", err)
	}

	g, err := gateway.New(schema, gateway.Config{
		GatewayAddr: cfg.GatewayAddr(),
		ListenPort:  cfg.Gateway.Port,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, g, nil
}

// resolveDevice accepts a configured name or a bare "subnet.device".
func resolveDevice(cfg *config.Config, arg string) (protocol.Address, string, error) {
	if d := cfg.DeviceByName(arg); d != nil {
		addr, err := d.Addr()
		return addr, d.Name, err
	}
	addr, err := protocol.ParseAddress(arg)
	if err != nil {
		var known []string
		for _, d := range cfg.Devices {
			known = append(known, d.Name)
		}
		if len(known) > 0 {
			return protocol.Address{}, "", fmt.Errorf("unknown device %q (configured: %s)", arg, strings.Join(known, ", "))
		}
		return protocol.Address{}, "", err
	}
	return addr, "", nil
}

func overridesFromFlags(cmd *cobra.Command) (*int, *protocol.Mode, *protocol.FanSpeed, error) {
	var temp *int
	var mode *protocol.Mode
	var fan *protocol.FanSpeed

	if cmd.Flags().Changed("temp") {
		t := flagTemp
		temp = &t
	}
	if flagMode != "" {
		m, err := protocol.ParseMode(flagMode)
		if err != nil {
			return nil, nil, nil, err
		}
		mode = &m
	}
	if flagFan != "" {
		f, err := protocol.ParseFanSpeed(flagFan)
		if err != nil {
			return nil, nil, nil, err
		}
		fan = &f
	}
	return temp, mode, fan, nil
}

func sendIntent(cmd *cobra.Command, title string, deviceArg string, intent protocol.Intent) error {
	cfg, g, err := setup()
	if err != nil {
		return err
	}
	defer g.Close()

	addr, name, err := resolveDevice(cfg, deviceArg)
	if err != nil {
		return err
	}

	p := ui.NewPrinter(nil)
	warnings, err := g.SendIntent(intent, addr)
	if err != nil {
		p.PrintError(title, err, []string{
			"Check gateway.ip and gateway.port in the config file",
			"Verify the gateway is reachable on the network",
		})
		return err
	}

	details := map[string]string{"Device": addr.String()}
	if name != "" {
		details["Name"] = name
	}
	if intent.Temperature != nil {
		details["Target"] = fmt.Sprintf("%d°C", *intent.Temperature)
	}
	if intent.Mode != nil {
		details["Mode"] = intent.Mode.String()
	}
	if intent.Fan != nil {
		details["Fan"] = intent.Fan.String()
	}
	for i, w := range warnings {
		details[fmt.Sprintf("Warning %d", i+1)] = w
	}
	p.PrintSuccess(title, details)
	return nil
}

var onCmd = &cobra.Command{
	Use:   "on <device>",
	Short: "Turn a unit on",
	Long: `Turn a unit on, optionally setting temperature, mode, and fan speed.

Without overrides the unit resumes its last settings. Overrides require
the cool_23c/fan_24c capture pair in the config file.`,
	Example: `  # Resume last settings
  acbridge on living-room

  # Cool to 23° with automatic fan
  acbridge on living-room --temp 23 --mode cool --fan auto

  # Address a unit that has no config entry
  acbridge on 1.14 --temp 24`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		temp, mode, fan, err := overridesFromFlags(cmd)
		if err != nil {
			return err
		}
		return sendIntent(cmd, "Power On", args[0], protocol.Intent{
			Kind:        protocol.PowerOn,
			Temperature: temp,
			Mode:        mode,
			Fan:         fan,
		})
	},
}

var offCmd = &cobra.Command{
	Use:   "off <device>",
	Short: "Turn a unit off",
	Long:  `Turn a unit off. The unit keeps its setpoint for the next power on.`,
	Example: `  acbridge off living-room
  acbridge off 1.13`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return sendIntent(cmd, "Power Off", args[0], protocol.Intent{Kind: protocol.PowerOff})
	},
}

var setCmd = &cobra.Command{
	Use:   "set <device>",
	Short: "Change a running unit's settings",
	Long: `Change temperature, mode, or fan speed.

The bus has no standalone setpoint command, so set sends a power-on
frame carrying the overrides; a unit that was off turns on.`,
	Example: `  acbridge set living-room --temp 21
  acbridge set living-room --mode fan --fan low`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		temp, mode, fan, err := overridesFromFlags(cmd)
		if err != nil {
			return err
		}
		if temp == nil && mode == nil && fan == nil {
			return fmt.Errorf("nothing to set: pass at least one of --temp, --mode, --fan")
		}
		return sendIntent(cmd, "Update Settings", args[0], protocol.Intent{
			Kind:        protocol.PowerOn,
			Temperature: temp,
			Mode:        mode,
			Fan:         fan,
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <device>",
	Short: "Query a unit's current state",
	Long: `Send a status request and wait for the unit's answer.

Requires the status_request capture in the config file.`,
	Example: `  acbridge status living-room
  acbridge status 1.13 --timeout 10s`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, g, err := setup()
	if err != nil {
		return err
	}
	defer g.Close()

	addr, name, err := resolveDevice(cfg, args[0])
	if err != nil {
		return err
	}

	answers := make(chan *protocol.StatusRecord, 4)
	g.SetTap(func(a protocol.Address, rec *protocol.StatusRecord) {
		if a == addr {
			answers <- rec
		}
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go g.Listen(ctx)

	if err := g.RequestStatus(addr); err != nil {
		return err
	}

	p := ui.NewPrinter(nil)
	select {
	case rec := <-answers:
		details := map[string]string{"Device": addr.String()}
		if name != "" {
			details["Name"] = name
		}
		details["Power"] = "unknown"
		if rec.Power != nil {
			details["Power"] = map[bool]string{true: "ON", false: "OFF"}[*rec.Power]
		}
		if rec.TargetTemp != nil {
			details["Target"] = fmt.Sprintf("%d°C", *rec.TargetTemp)
		}
		if rec.CurrentTemp != nil {
			details["Room"] = fmt.Sprintf("%d°C", *rec.CurrentTemp)
		}
		if rec.Mode != nil {
			details["Mode"] = rec.Mode.String()
		}
		if rec.Fan != nil {
			details["Fan"] = rec.Fan.String()
		}
		p.PrintSuccess("Status", details)
		return nil
	case <-time.After(flagTimeout):
		err := fmt.Errorf("no answer from %s within %s", addr, flagTimeout)
		p.PrintError("Status", err, []string{
			"The unit may be powered down at the breaker",
			"Check the address against the unit's bus configuration",
			"Snoop with 'acbridge listen' to see whether the unit broadcasts at all",
		})
		return err
	}
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Print every AC status broadcast on the bus",
	Long: `Passively decode bus traffic and print each AC status broadcast.

Useful for finding unit addresses and verifying captures. Pass --raw
to also print every packet's bytes, decodable or not.`,
	Example: `  acbridge listen
  acbridge listen --raw`,
	RunE: runListen,
}

func runListen(cmd *cobra.Command, args []string) error {
	cfg, g, err := setup()
	if err != nil {
		return err
	}
	defer g.Close()

	p := ui.NewPrinter(nil)
	p.PrintHeader("Bus Listen", "acbridge listen", map[string]string{
		"Gateway": cfg.GatewayAddr(),
	})
	fmt.Println("Waiting for AC broadcasts (Ctrl+C to stop)...")
	fmt.Println()

	if flagRaw {
		g.SetRawTap(func(data []byte) {
			label := fmt.Sprintf("%s  raw packet (%d bytes)", time.Now().Format("15:04:05"), len(data))
			p.PrintPacket(label, hex.EncodeToString(data))
		})
	}

	g.SetTap(func(addr protocol.Address, rec *protocol.StatusRecord) {
		parts := []string{fmt.Sprintf("%-8s", addr.String())}
		if d := cfg.DeviceByName(addr.String()); d != nil && d.Name != "" {
			parts[0] = fmt.Sprintf("%-8s %-16s", addr.String(), d.Name)
		}
		if rec.Power != nil {
			parts = append(parts, map[bool]string{true: "ON ", false: "OFF"}[*rec.Power])
		}
		if rec.TargetTemp != nil {
			parts = append(parts, fmt.Sprintf("set %d°", *rec.TargetTemp))
		}
		if rec.CurrentTemp != nil {
			parts = append(parts, fmt.Sprintf("room %d°", *rec.CurrentTemp))
		}
		if rec.Mode != nil {
			parts = append(parts, rec.Mode.String())
		}
		if rec.Fan != nil {
			parts = append(parts, "fan "+rec.Fan.String())
		}
		fmt.Printf("%s  %s\n", time.Now().Format("15:04:05"), strings.Join(parts, "  "))
	})

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return g.Listen(ctx)
}

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Live dashboard of all configured units",
	Long: `Open a live dashboard showing every configured unit's state.

State fills in as broadcasts arrive; with the status_request capture
present the dashboard can also poll on demand (press r).`,
	RunE: runMonitor,
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, g, err := setup()
	if err != nil {
		return err
	}
	defer g.Close()

	if len(cfg.Devices) == 0 {
		return fmt.Errorf("no devices configured; add entries under devices: in the config file")
	}

	var infos []ui.DeviceInfo
	var addrs []protocol.Address
	for _, d := range cfg.Devices {
		addr, err := d.Addr()
		if err != nil {
			return err
		}
		infos = append(infos, ui.DeviceInfo{Address: addr.String(), Name: d.Name})
		addrs = append(addrs, addr)
	}

	var refresh func()
	if g.Schema().HasStatusRequest() {
		refresh = func() {
			for _, addr := range addrs {
				if err := g.RequestStatus(addr); err != nil {
					logging.Warn("status request failed",
						zap.String("device", addr.String()), zap.Error(err))
				}
			}
		}
	}

	p := ui.RunMonitor(cfg.GatewayAddr(), infos, refresh)

	opts := reconcile.DefaultOptions()
	if w := cfg.Tuning.SuppressionWindow(); w > 0 {
		opts.SuppressionWindow = w
	}
	opts.RemapUnexposedModes = cfg.Tuning.RemapModes()

	for _, addr := range addrs {
		a := addr
		g.Register(reconcile.New(a, opts, func(s reconcile.State) {
			p.Send(ui.StateMsg{Device: a.String(), State: s, At: time.Now()})
		}))
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go g.Listen(ctx)

	_, err = p.Run()
	return err
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge daemon with the WebSocket state stream",
	Long: `Run the bridge as a long-lived daemon.

The daemon tracks every configured unit and republishes state changes
as JSON on a WebSocket endpoint at /stream, with a snapshot replayed to
each new subscriber.`,
	Example: `  acbridge serve
  acbridge serve --listen :9000 --log-level info`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, g, err := setup()
	if err != nil {
		return err
	}
	defer g.Close()

	if len(cfg.Devices) == 0 {
		return fmt.Errorf("no devices configured; add entries under devices: in the config file")
	}

	listen := flagListen
	if listen == "" {
		listen = cfg.Server.ListenAddr()
	}
	srv := server.New(&server.Config{Listen: listen})

	opts := reconcile.DefaultOptions()
	if w := cfg.Tuning.SuppressionWindow(); w > 0 {
		opts.SuppressionWindow = w
	}
	opts.RemapUnexposedModes = cfg.Tuning.RemapModes()

	for _, d := range cfg.Devices {
		addr, err := d.Addr()
		if err != nil {
			return err
		}
		a, name := addr, d.Name
		g.Register(reconcile.New(a, opts, func(s reconcile.State) {
			srv.Publish(server.StateUpdate{
				Device:      a.String(),
				Name:        name,
				Power:       s.Power,
				TargetTemp:  s.TargetTemp,
				CurrentTemp: s.CurrentTemp,
				Mode:        s.Mode.String(),
				Fan:         s.Fan.String(),
				At:          time.Now(),
			})
		}))
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errChan := make(chan error, 2)
	go func() { errChan <- g.Listen(ctx) }()
	go func() { errChan <- srv.Start(ctx) }()

	// Prime the state with one poll if the captures allow it.
	if g.Schema().HasStatusRequest() {
		for _, d := range cfg.Devices {
			if addr, err := d.Addr(); err == nil {
				if err := g.RequestStatus(addr); err != nil {
					logging.Warn("initial status request failed",
						zap.String("device", addr.String()), zap.Error(err))
				}
			}
		}
	}

	select {
	case <-ctx.Done():
		logging.Info("Shutdown signal received")
		<-errChan
		return nil
	case err := <-errChan:
		cancel()
		return err
	}
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the frame layout learned from the captures",
	Long: `Run template discovery and print what was learned.

Useful after editing captures: shows which byte offsets were inferred
and which optional capabilities (overrides, polling) are available.`,
	RunE: runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	schema, err := protocol.Discover(cfg.Templates)
	if err != nil {
		return fmt.Errorf("learning frame layout from captures: %w", err)
	}

	p := ui.NewPrinter(nil)
	details := map[string]string{
		"Prefix":        fmt.Sprintf("%d bytes", len(schema.Prefix)),
		"Opcode offset": fmt.Sprintf("%d", schema.OpcodeOffset),
		"Subnet offset": fmt.Sprintf("%d", schema.SubnetOffset),
		"Device offset": fmt.Sprintf("%d", schema.DeviceOffset),
	}
	if schema.TemperatureOffset >= 0 {
		details["Temp offset"] = fmt.Sprintf("%d", schema.TemperatureOffset)
		details["Mode offset"] = fmt.Sprintf("%d", schema.ModeOffset)
		details["Overrides"] = "available"
	} else {
		details["Overrides"] = "unavailable (add cool_23c and fan_24c captures)"
	}
	if schema.HasStatusRequest() {
		details["Polling"] = "available"
	} else {
		details["Polling"] = "unavailable (add status_request capture)"
	}
	p.PrintSuccess("Frame Layout", details)
	return nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.CreateDefaultConfig(); err != nil {
			return err
		}
		path, err := config.GetConfigPath()
		if err != nil {
			return err
		}
		fmt.Printf("Wrote starter config to %s\n", path)
		fmt.Println("Fill in the gateway address and paste your hex captures under templates:.")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
}
