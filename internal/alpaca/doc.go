// Package alpaca provides an HTTP client for the ASCOM Alpaca management and
// device APIs.
//
// Each Client talks to exactly one Alpaca server, identified by address and
// API port. The management surface describes the server and its configured
// devices; the device surface is used only for the Connected property, which
// the device registry invokes as its connect/disconnect side effect.
//
// # Endpoints
//
//   - GET /management/v1/description — server metadata
//   - GET /management/v1/configureddevices — configured device list
//   - GET /management/apiversions — supported API versions
//   - PUT /api/v1/{type}/{number}/connected — set device Connected state
//
// Every request carries ClientID and an incrementing ClientTransactionID
// query parameter; servers echo both back in the response envelope.
//
// # Error Classification
//
// All failures are returned as *Error with a Type that distinguishes
// transport failures (network, timeout, connection refused), HTTP status
// errors, malformed payloads (protocol), Alpaca device error numbers, and
// invalid input. Callers use the Is* predicates rather than matching
// message strings:
//
//	devices, err := client.ConfiguredDevices(ctx)
//	if alpaca.IsNetworkError(err) {
//	    // server unreachable; skip it this scan
//	}
//
// # Thread Safety
//
// A Client is safe for concurrent use. Transaction IDs are allocated
// atomically and the underlying http.Client handles its own pooling.
package alpaca
