// Package logging provides structured logging for the bridge.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the bridge. It provides both general logging functions
// and specialized functions for protocol-specific logging needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (hex dumps, frame parsing, echo drops)
//   - Info: Normal operations (commands sent, state changes, subscribers)
//   - Warn: Non-fatal issues (out-of-range values, connection drops)
//   - Error: Fatal issues (startup failures, critical errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("State changed",
//	    zap.String("device", "1.13"),
//	    zap.Bool("power", true),
//	    zap.Int("target_temp", 23),
//	)
//
// # Specialized Logging
//
// Raw bus traffic can be dumped at debug level:
//
//	logging.LogRawBytes("udp packet received", payload)
//
// WebSocket state-stream traffic:
//
//	logging.LogWebSocketMessage(remoteAddr, "sent", msgType, payload)
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// CLI commands default to silent mode; set ACBRIDGE_LOG_LEVEL to enable
// output without a flag.
//
// # Output Format
//
// Logs are written to stdout in console format (human-readable):
//
//	2026-08-30T10:30:45.123-0800  INFO  Command sent
//	  device=1.13
//	  intent=power_on
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
