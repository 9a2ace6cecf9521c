// Package server implements the HTTP gateway for the Alpaca hub.
//
// The server ties the rest of the application together behind a single
// listener: it exposes the device registry as a small REST API, forwards
// Alpaca traffic to discovered servers through the reverse proxy, streams
// registry events over a websocket, and publishes Prometheus metrics.
//
// # Routes
//
//	GET  /healthz                         - liveness probe
//	GET  /metrics                         - Prometheus metrics
//	POST /discovery/scan                  - start a discovery sweep (202, or 409 if running)
//	GET  /discovery/devices               - discovered Alpaca servers
//	GET  /api/devices                     - registered devices
//	POST /api/devices                     - add a device by address/port
//	GET  /api/devices/{id}                - single device
//	DELETE /api/devices/{id}              - remove a device
//	POST /api/devices/{id}/connect        - connect a device
//	POST /api/devices/{id}/disconnect     - disconnect a device
//	GET  /events                          - websocket event stream
//	/proxy/{address}/{port}/*             - reverse proxy to an Alpaca server
//
// # Usage Example
//
//	deps := server.Deps{
//	    Registry:     reg,
//	    Discoverer:   disc,
//	    Orchestrator: orch,
//	}
//	srv, err := server.New(&server.Config{Port: 8750, LogLevel: "info"}, deps)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start blocks until shutdown signal or error
//	if err := srv.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Event Stream
//
// Clients subscribing to /events receive every registry event as a JSON
// message with the event type, device snapshot, and timestamp. Slow
// subscribers are disconnected rather than allowed to stall the bus.
//
// # Graceful Shutdown
//
// The server handles SIGINT and SIGTERM for graceful shutdown:
//  1. Close websocket subscribers
//  2. Close the discovery socket
//  3. Drain in-flight HTTP requests
package server
