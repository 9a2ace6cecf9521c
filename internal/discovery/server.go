package discovery

import (
	"fmt"
	"time"
)

// DiscoveredServer represents one responding Alpaca host on the network.
type DiscoveredServer struct {
	// Address is the IPv4 address the reply came from (e.g., "192.168.1.50").
	// Always taken from the UDP source address, never from the payload.
	Address string `json:"address"`

	// Port is the server's Alpaca API port from the discovery reply
	// (distinct from the discovery port itself)
	Port int `json:"port"`

	// ServerName is the server's self-reported name (from the management API)
	ServerName string `json:"serverName,omitempty"`

	// Manufacturer is the server's manufacturer string (from the management API)
	Manufacturer string `json:"manufacturer,omitempty"`

	// ManufacturerVersion is the server software version (from the management API)
	ManufacturerVersion string `json:"manufacturerVersion,omitempty"`

	// Location is the server's configured site description (from the management API)
	Location string `json:"location,omitempty"`

	// DiscoveredAt is when the server was last seen
	DiscoveredAt time.Time `json:"discoveredAt"`

	// IsManual is true when the entry was added by explicit user entry
	// rather than a broadcast response
	IsManual bool `json:"isManual"`

	// Metadata contains the full decoded discovery reply payload
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Key returns the cache key for the server ("address:port").
func (s *DiscoveredServer) Key() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

// String returns a human-readable string representation of the server
func (s *DiscoveredServer) String() string {
	name := s.ServerName
	if name == "" {
		name = "Alpaca server"
	}
	return fmt.Sprintf("%s at %s:%d", name, s.Address, s.Port)
}

// BaseURL returns the HTTP base URL for the server's Alpaca API
func (s *DiscoveredServer) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", s.Address, s.Port)
}

// clone returns a copy so cache internals never escape the discoverer.
func (s *DiscoveredServer) clone() *DiscoveredServer {
	c := *s
	if s.Metadata != nil {
		c.Metadata = make(map[string]interface{}, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}
