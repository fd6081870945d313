// Package ui provides terminal UI components for the acbridge CLI.
//
// This package uses Bubble Tea and Lipgloss for two output styles:
// "run once and exit" boxes for one-shot commands (on, off, set,
// status), and the interactive monitor dashboard that renders live
// unit state as broadcasts arrive.
//
// # One-shot Components
//
//   - Header: command banner showing operation name and parameters
//   - Result: success/failure boxes with styled information
//   - Packet: raw bus traffic box for verbose mode
//
// Example:
//
//	p := ui.NewPrinter(nil)
//	p.PrintHeader("Power On", "acbridge on living-room", map[string]string{
//	    "Device": "1.13",
//	})
//	p.PrintSuccess("Command sent", map[string]string{"Target": "23°"})
//
// # Monitor
//
// The monitor is a full Bubble Tea program. The caller starts it with
// RunMonitor and feeds it StateMsg values from the gateway's notify
// path; rows update in place and flag units that have gone quiet.
//
// # Logging Integration
//
// This package expects logging to be controlled via the ACBRIDGE_LOG_LEVEL
// environment variable. When unset or empty, zap logging is silent, allowing
// the curated UI output to be displayed cleanly. Set ACBRIDGE_LOG_LEVEL to
// "debug", "info", "warn", or "error" to enable logging output.
package ui
