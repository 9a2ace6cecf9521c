package registry

import (
	"fmt"
	"strings"
)

// Status is a device's connection lifecycle state.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusConnecting    Status = "connecting"
	StatusConnected     Status = "connected"
	StatusDisconnecting Status = "disconnecting"
	StatusError         Status = "error"
)

// PropertyAPIBaseURL is the properties key holding the proxy-relative base
// path used for all subsequent API calls to a device.
const PropertyAPIBaseURL = "apiBaseUrl"

// UnifiedDevice is the registry's canonical record for one device: the join
// of a discovered server and one of its configured devices.
type UnifiedDevice struct {
	// ID is the deterministic registry key "address:port:type:number".
	// It is stable for the lifetime of the record.
	ID string `json:"id"`

	// Name is the device's display name
	Name string `json:"name"`

	// Type is the lowercased Alpaca device type (e.g., "telescope")
	Type string `json:"type"`

	// DeviceNumber is the zero-based device number, unique per type per server
	DeviceNumber int `json:"deviceNumber"`

	// IPAddress is the owning server's address
	IPAddress string `json:"ipAddress"`

	// Port is the owning server's Alpaca API port
	Port int `json:"port"`

	// Connection state. At most one of IsConnecting/IsDisconnecting may be
	// set, and neither while IsConnected transitions are not in flight.
	IsConnected     bool `json:"isConnected"`
	IsConnecting    bool `json:"isConnecting"`
	IsDisconnecting bool `json:"isDisconnecting"`

	// Status is the lifecycle state derived from the transitions
	Status Status `json:"status"`

	// Properties holds apiBaseUrl plus server metadata copied at resolution
	// time, and any free-form attributes set later
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// DeviceID builds the deterministic registry key for a device.
func DeviceID(address string, port int, deviceType string, deviceNumber int) string {
	return fmt.Sprintf("%s:%d:%s:%d", address, port, strings.ToLower(deviceType), deviceNumber)
}

// ProxyBaseURL builds the proxy-relative API base path for a device. Paths of
// this form stay same-origin from the browser's perspective; a direct
// cross-origin URL never appears in a registry record.
func ProxyBaseURL(address string, port int, deviceType string, deviceNumber int) string {
	return fmt.Sprintf("/proxy/%s/%d/api/v1/%s/%d", address, port, strings.ToLower(deviceType), deviceNumber)
}

// APIBaseURL returns the device's proxy-relative API base path, or "" when
// not yet populated (manually entered devices before resolution).
func (d *UnifiedDevice) APIBaseURL() string {
	if d.Properties == nil {
		return ""
	}
	if url, ok := d.Properties[PropertyAPIBaseURL].(string); ok {
		return url
	}
	return ""
}

// Clone returns a deep copy so registry internals never escape.
func (d *UnifiedDevice) Clone() *UnifiedDevice {
	c := *d
	if d.Properties != nil {
		c.Properties = make(map[string]interface{}, len(d.Properties))
		for k, v := range d.Properties {
			c.Properties[k] = v
		}
	}
	return &c
}

// String returns a human-readable string representation of the device
func (d *UnifiedDevice) String() string {
	name := d.Name
	if name == "" {
		name = d.Type
	}
	return fmt.Sprintf("%s (%s) [%s]", name, d.ID, d.Status)
}
