// Acbridge drives bus-attached air conditioners through an
// RS485-to-UDP gateway.
//
// The wire protocol is proprietary and undocumented; acbridge learns
// it from hex captures of known-good commands listed in the config
// file, then edits those captures to target any unit, temperature,
// mode, or fan speed. Inbound status broadcasts keep a per-unit state
// that a live monitor and a WebSocket stream expose.
//
// Usage:
//
//	acbridge [command] [flags]
//
// See 'acbridge --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hdlbus/acbridge/internal/logging"
	"github.com/hdlbus/acbridge/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "acbridge",
	Short: "Bus AC gateway bridge",
	Long: `Control bus-attached air conditioners through an RS485-to-UDP gateway.

Commands are built by editing captured known-good frames, so the bridge
needs a config file with at least the "off" and "on" hex captures. Run
'acbridge config init' to create a starter file.`,
	Version: version.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Initialize(logLevel)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("acbridge %s (commit: %s)\n", version.Version, version.Commit)
	},
}
