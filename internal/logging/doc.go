// Package logging provides structured logging for the alpacahub gateway.
//
// This package wraps zap logger with convenience functions for common logging
// patterns used throughout the gateway. It provides both general logging
// functions and specialized functions for protocol-specific logging needs.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Detailed debugging info (discovery datagram hex dumps, proxy traffic)
//   - Info: Normal operations (scans, device registration, state changes)
//   - Warn: Non-fatal issues (malformed discovery replies, unreachable servers)
//   - Error: Fatal issues (startup failures, critical errors)
//
// # Structured Logging
//
// All log functions use structured fields for queryability:
//
//	logging.Info("Device registered",
//	    zap.String("device_id", "192.168.1.50:11111:telescope:0"),
//	    zap.String("name", "Simulator Telescope"),
//	)
//
// # Specialized Logging
//
// Discovery datagram logging (hex plus printable-ASCII view of the payload):
//
//	logging.LogDatagram("Discovery reply", remoteAddr, payload)
//
// HTTP request logging for the gateway surface:
//
//	logging.LogHTTPRequest(remoteAddr, method, path)
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
// When no level is given and ALPACAHUB_LOG_LEVEL is unset, logging is silent.
//
// # Thread Safety
//
// All logging functions are safe for concurrent use. The underlying zap logger
// handles synchronization automatically.
package logging
