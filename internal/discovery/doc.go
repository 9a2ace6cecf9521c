// Package discovery finds ASCOM Alpaca servers on the local network.
//
// The primary mechanism is the Alpaca discovery protocol: a fixed-format
// 64-byte UDP broadcast ("alpacadiscovery" + protocol version "1" + reserved
// padding) sent to port 32227, answered by each server with a unicast JSON
// reply containing its AlpacaPort.
//
// # Discovery Process
//
// A scan works as follows:
//  1. Sends the broadcast datagram from a socket bound to an ephemeral port
//  2. Collects unicast JSON replies on that socket
//  3. Accepts a reply iff it decodes to an object with a numeric AlpacaPort
//  4. Caches accepted responders keyed by "responderAddress:AlpacaPort"
//  5. Returns a cache snapshot after a fixed collection window (default 2s)
//
// The window is a scatter/gather approximation: the number of responders is
// unknown a priori, so collection is best-effort with no completeness
// guarantee. Only one scan may be in flight at a time; overlapping calls
// fail with ErrScanInProgress.
//
// # Usage Example
//
//	d := discovery.NewDiscoverer()
//	defer d.Close()
//
//	servers, err := d.Scan(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, s := range servers {
//	    fmt.Printf("Found: %s\n", s)
//	}
//
// # Manual Entries
//
// Servers that cannot answer broadcasts (other subnets, broadcast-filtered
// networks) are inserted with AddManual and flagged IsManual. Rediscovery
// refreshes an entry's metadata but never clears the manual flag.
//
// # mDNS Secondary Source
//
// MDNSBrowser optionally browses for advertised "_alpaca._tcp" services and
// feeds them into the same cache. Broadcast remains the primary protocol.
//
// # Network Requirements
//
//   - UDP broadcast to port 32227 must reach the servers
//   - Firewall must allow inbound unicast UDP replies to the ephemeral port
//
// # Thread Safety
//
// The discoverer is safe for concurrent use. The cache is owned exclusively
// by the discoverer and only snapshots escape.
package discovery
