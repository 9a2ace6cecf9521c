package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/openskies-io/alpacahub/internal/logging"
)

const (
	// DiscoveryMessage is the ASCII literal occupying bytes 0-14 of every
	// discovery datagram
	DiscoveryMessage = "alpacadiscovery"

	// ProtocolVersion is the ASCII protocol version digit at byte 15
	ProtocolVersion = '1'

	// PacketSize is the fixed size of a discovery datagram; bytes after the
	// version digit are reserved and zero-filled
	PacketSize = 64

	// DefaultPort is the well-known Alpaca discovery UDP port
	DefaultPort = 32227

	// DefaultWindow is the default reply collection window after a broadcast
	DefaultWindow = 2 * time.Second

	// maxDatagramSize bounds the receive buffer for discovery replies
	maxDatagramSize = 1024
)

// Request builds the fixed-format 64-byte discovery request datagram.
func Request() []byte {
	packet := make([]byte, PacketSize)
	copy(packet, DiscoveryMessage)
	packet[len(DiscoveryMessage)] = ProtocolVersion
	return packet
}

// Discoverer finds Alpaca servers via the UDP broadcast discovery protocol
// and maintains a keyed cache of responding servers.
//
// The discoverer binds its own receiving socket to an ephemeral port; replies
// arrive as unicast datagrams addressed to that socket, not on the broadcast
// port itself.
type Discoverer struct {
	// Port is the UDP discovery port broadcasts are sent to
	Port int

	// Window is how long Scan waits for replies to accumulate. The window is
	// fixed per scan: collection is best-effort with no completeness
	// guarantee, because the number of responders is unknown a priori.
	Window time.Duration

	// OnReply, when set, is called for every accepted discovery reply,
	// including re-replies from already-cached servers. Set before the first
	// Broadcast or Scan.
	OnReply func(*DiscoveredServer)

	mu     sync.Mutex
	conn   *net.UDPConn
	cache  map[string]*DiscoveredServer
	closed bool

	scanning atomic.Bool
}

// NewDiscoverer creates a discoverer with default port and window.
func NewDiscoverer() *Discoverer {
	return &Discoverer{
		Port:   DefaultPort,
		Window: DefaultWindow,
		cache:  make(map[string]*DiscoveredServer),
	}
}

// ensureConn lazily binds the receiving socket and starts the reader.
// Callers must hold d.mu.
func (d *Discoverer) ensureConn() error {
	if d.closed {
		return ErrClosed
	}
	if d.conn != nil {
		return nil
	}

	// Port 0: the kernel picks an ephemeral port for unicast replies.
	// Go enables SO_BROADCAST on UDP sockets, so the same socket sends the
	// broadcast request.
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return fmt.Errorf("failed to bind discovery socket: %w", err)
	}
	d.conn = conn

	logging.Debug("Discovery socket bound",
		zap.String("local_addr", conn.LocalAddr().String()),
	)

	go d.readLoop(conn)
	return nil
}

// readLoop collects unicast replies until the socket is closed.
func (d *Discoverer) readLoop(conn *net.UDPConn) {
	buf := make([]byte, maxDatagramSize)
	for {
		n, sender, err := conn.ReadFromUDP(buf)
		if err != nil {
			// Socket closed during shutdown
			return
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		d.handleDatagram(payload, sender)
	}
}

// handleDatagram parses one received datagram. A reply is accepted iff it
// decodes to a JSON object containing a numeric AlpacaPort field; anything
// else is logged and discarded.
func (d *Discoverer) handleDatagram(payload []byte, sender *net.UDPAddr) {
	// A looped-back discovery request is not a reply
	if bytes.HasPrefix(payload, []byte(DiscoveryMessage)) {
		return
	}

	logging.LogDatagram("Discovery datagram received", sender.String(), payload)

	var decoded map[string]interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		logging.Warn("Discarding malformed discovery reply",
			zap.String("remote_addr", sender.String()),
			zap.Error(err),
		)
		return
	}

	port, ok := alpacaPort(decoded)
	if !ok {
		logging.Warn("Discarding discovery reply without valid AlpacaPort",
			zap.String("remote_addr", sender.String()),
		)
		return
	}

	// The responder's IP comes from the UDP source address; the payload's
	// own claims about its address are not trusted.
	server := &DiscoveredServer{
		Address:      sender.IP.String(),
		Port:         port,
		DiscoveredAt: time.Now(),
		Metadata:     decoded,
	}
	d.insert(server)

	if d.OnReply != nil {
		d.OnReply(server)
	}
}

// alpacaPort extracts a valid AlpacaPort value from a decoded reply.
func alpacaPort(payload map[string]interface{}) (int, bool) {
	v, present := payload["AlpacaPort"]
	if !present {
		return 0, false
	}
	f, isNumber := v.(float64)
	if !isNumber || f != math.Trunc(f) {
		return 0, false
	}
	port := int(f)
	if port < 1 || port > 65535 {
		return 0, false
	}
	return port, true
}

// insert adds or refreshes a cache entry. Re-replies overwrite metadata and
// timestamp (last-write-wins) but never clear resolved server info or the
// manual-entry flag.
func (d *Discoverer) insert(server *DiscoveredServer) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := server.Key()
	existing, known := d.cache[key]
	if !known {
		d.cache[key] = server
		logging.Info("Alpaca server discovered",
			zap.String("server", key),
			zap.Bool("manual", server.IsManual),
		)
		return
	}

	existing.DiscoveredAt = server.DiscoveredAt
	if server.Metadata != nil {
		existing.Metadata = server.Metadata
	}
	if server.IsManual {
		existing.IsManual = true
	}
}

// Broadcast sends one discovery request datagram to the broadcast address.
func (d *Discoverer) Broadcast() error {
	d.mu.Lock()
	err := d.ensureConn()
	conn := d.conn
	port := d.Port
	d.mu.Unlock()
	if err != nil {
		return err
	}

	dest := &net.UDPAddr{IP: net.IPv4bcast, Port: port}
	if _, err := conn.WriteToUDP(Request(), dest); err != nil {
		return fmt.Errorf("failed to send discovery broadcast: %w", err)
	}

	logging.Debug("Discovery broadcast sent",
		zap.String("dest", dest.String()),
	)
	return nil
}

// Scan sends a broadcast, waits for the collection window to elapse, and
// returns a snapshot of the response cache. Overlapping scans are rejected:
// only one discovery cycle may be in flight.
func (d *Discoverer) Scan(ctx context.Context) ([]*DiscoveredServer, error) {
	if !d.scanning.CompareAndSwap(false, true) {
		return nil, ErrScanInProgress
	}
	defer d.scanning.Store(false)

	if err := d.Broadcast(); err != nil {
		return nil, err
	}

	window := d.Window
	if window <= 0 {
		window = DefaultWindow
	}

	select {
	case <-time.After(window):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return d.Servers(), nil
}

// Scanning reports whether a discovery window is currently open.
func (d *Discoverer) Scanning() bool {
	return d.scanning.Load()
}

// Servers returns a snapshot of the current response cache, ordered by key.
func (d *Discoverer) Servers() []*DiscoveredServer {
	d.mu.Lock()
	defer d.mu.Unlock()

	servers := make([]*DiscoveredServer, 0, len(d.cache))
	for _, s := range d.cache {
		servers = append(servers, s.clone())
	}
	sort.Slice(servers, func(i, j int) bool {
		return servers[i].Key() < servers[j].Key()
	})
	return servers
}

// AddManual inserts a user-supplied server entry into the cache.
func (d *Discoverer) AddManual(address string, port int) (*DiscoveredServer, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}

	server := &DiscoveredServer{
		Address:      ip.String(),
		Port:         port,
		DiscoveredAt: time.Now(),
		IsManual:     true,
	}
	d.insert(server)
	return server.clone(), nil
}

// UpdateServerInfo records resolved management-API metadata on a cache entry.
// Returns false if the server is not in the cache.
func (d *Discoverer) UpdateServerInfo(address string, port int, name, manufacturer, version, location string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := fmt.Sprintf("%s:%d", address, port)
	server, known := d.cache[key]
	if !known {
		return false
	}
	server.ServerName = name
	server.Manufacturer = manufacturer
	server.ManufacturerVersion = version
	server.Location = location
	return true
}

// Close shuts down the receiving socket. Subsequent broadcasts fail with
// ErrClosed.
func (d *Discoverer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	if d.conn == nil {
		return nil
	}
	err := d.conn.Close()
	d.conn = nil
	return err
}
