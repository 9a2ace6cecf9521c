package resolve

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openskies-io/alpacahub/internal/alpaca"
	"github.com/openskies-io/alpacahub/internal/discovery"
	"github.com/openskies-io/alpacahub/internal/logging"
	"github.com/openskies-io/alpacahub/internal/registry"
)

// ManagementClient is the slice of the Alpaca client the resolver needs.
type ManagementClient interface {
	Description(ctx context.Context) (*alpaca.ServerDescription, error)
	ConfiguredDevices(ctx context.Context) ([]alpaca.ConfiguredDevice, error)
}

// TypeFilter decides whether a device type becomes a registry candidate.
// Filtering happens at this single point only.
type TypeFilter func(deviceType string) bool

// Resolver turns a discovered server into addressable device candidates by
// querying its management API.
type Resolver struct {
	// Filter is the device-type predicate. Defaults to allowing every type.
	Filter TypeFilter

	// Timeout applies to each management API call
	Timeout time.Duration

	// newClient builds the management client for one server (stubbed in tests)
	newClient func(address string, port int) ManagementClient
}

// NewResolver creates a resolver whose filter allows the given device types
// (compared lowercased). An empty list allows every type.
func NewResolver(supportedTypes []string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = alpaca.DefaultTimeout
	}
	r := &Resolver{
		Filter:  AllowTypes(supportedTypes),
		Timeout: timeout,
	}
	r.newClient = func(address string, port int) ManagementClient {
		return alpaca.NewClientWithTimeout(address, port, timeout)
	}
	return r
}

// AllowTypes builds a filter allowing exactly the listed device types. An
// empty list allows everything.
func AllowTypes(types []string) TypeFilter {
	if len(types) == 0 {
		return func(string) bool { return true }
	}
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[strings.ToLower(t)] = true
	}
	return func(deviceType string) bool {
		return allowed[strings.ToLower(deviceType)]
	}
}

// ResolveServer queries the server's management API and returns one
// candidate record per configured device passing the type filter, plus the
// server description. Resolution is atomic: if either management call fails,
// no partial device list is returned and the error identifies the server.
func (r *Resolver) ResolveServer(ctx context.Context, server *discovery.DiscoveredServer) ([]*registry.UnifiedDevice, *alpaca.ServerDescription, error) {
	client := r.newClient(server.Address, server.Port)

	desc, err := client.Description(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving server %s: %w", server.Key(), err)
	}

	configured, err := client.ConfiguredDevices(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving server %s: %w", server.Key(), err)
	}

	devices := make([]*registry.UnifiedDevice, 0, len(configured))
	for _, cd := range configured {
		deviceType := strings.ToLower(cd.DeviceType)
		if r.Filter != nil && !r.Filter(deviceType) {
			logging.Debug("Skipping unsupported device type",
				zap.String("server", server.Key()),
				zap.String("type", deviceType),
			)
			continue
		}
		devices = append(devices, buildDevice(server, desc, cd, deviceType))
	}

	logging.Info("Server resolved",
		zap.String("server", server.Key()),
		zap.String("name", desc.ServerName),
		zap.Int("devices", len(devices)),
	)
	return devices, desc, nil
}

// buildDevice joins server and configured-device data into a candidate
// record. The apiBaseUrl property is always proxy-relative.
func buildDevice(server *discovery.DiscoveredServer, desc *alpaca.ServerDescription, cd alpaca.ConfiguredDevice, deviceType string) *registry.UnifiedDevice {
	name := cd.DeviceName
	if name == "" {
		name = fmt.Sprintf("%s %d", deviceType, cd.DeviceNumber)
	}

	properties := map[string]interface{}{
		registry.PropertyAPIBaseURL: registry.ProxyBaseURL(server.Address, server.Port, deviceType, cd.DeviceNumber),
		"serverName":                desc.ServerName,
		"manufacturer":              desc.Manufacturer,
		"manufacturerVersion":       desc.ManufacturerVersion,
		"location":                  desc.Location,
	}
	if cd.UniqueID != "" {
		properties["uniqueId"] = cd.UniqueID
	}

	return &registry.UnifiedDevice{
		ID:           registry.DeviceID(server.Address, server.Port, deviceType, cd.DeviceNumber),
		Name:         name,
		Type:         deviceType,
		DeviceNumber: cd.DeviceNumber,
		IPAddress:    server.Address,
		Port:         server.Port,
		Status:       registry.StatusIdle,
		Properties:   properties,
	}
}

// IsDeviceAdded reports whether a candidate is already present among the
// existing devices. Two tiers:
//
//  1. exact apiBaseUrl match (primary, most reliable), or
//  2. all four of type, device number, IP address, and port match.
//
// Partial matches on a subset of the four fields never count. The fallback
// tuple exists because manually entered devices may lack a populated
// apiBaseUrl at comparison time.
func IsDeviceAdded(candidate *registry.UnifiedDevice, existing []*registry.UnifiedDevice) bool {
	candidateURL := candidate.APIBaseURL()
	for _, device := range existing {
		if candidateURL != "" && candidateURL == device.APIBaseURL() {
			return true
		}
		if strings.EqualFold(candidate.Type, device.Type) &&
			candidate.DeviceNumber == device.DeviceNumber &&
			candidate.IPAddress == device.IPAddress &&
			candidate.Port == device.Port {
			return true
		}
	}
	return false
}
