// Package proxy mediates browser access to Alpaca devices across hosts.
//
// Browsers cannot call http://{device}:{port} directly from a page served by
// the gateway (same-origin policy), so every device apiBaseUrl is a
// proxy-relative path. The gateway forwards
//
//	ANY /proxy/{address}/{port}/rest...
//
// to http://{address}:{port}/rest... with method, headers, and body intact
// and the Host header rewritten. Upstream connection failures produce an
// HTTP 500 with a JSON {error, message} body; only the message crosses the
// boundary, never internal stack detail.
package proxy
