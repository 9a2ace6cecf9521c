package autodiscovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/openskies-io/alpacahub/internal/alpaca"
	"github.com/openskies-io/alpacahub/internal/discovery"
	"github.com/openskies-io/alpacahub/internal/logging"
	"github.com/openskies-io/alpacahub/internal/registry"
	"github.com/openskies-io/alpacahub/internal/resolve"
)

// Result summarizes one discovery cycle.
type Result struct {
	// Added are the devices newly registered this cycle
	Added []*registry.UnifiedDevice

	// Skipped counts candidates dropped as already present
	Skipped int

	// Failures maps server key to the resolution error for servers that
	// answered the broadcast but could not be resolved. Failures are
	// isolated per server; one unreachable server never aborts the cycle.
	Failures map[string]error
}

// Names returns the display names of the newly added devices.
func (r *Result) Names() []string {
	names := make([]string, 0, len(r.Added))
	for _, d := range r.Added {
		names = append(names, d.Name)
	}
	return names
}

// Orchestrator composes discovery, resolution, deduplication, and
// registration into the auto-discovery pipeline.
type Orchestrator struct {
	discoverer *discovery.Discoverer
	resolver   *resolve.Resolver
	registry   *registry.Registry
}

// New wires an orchestrator over its three collaborators.
func New(d *discovery.Discoverer, r *resolve.Resolver, reg *registry.Registry) *Orchestrator {
	return &Orchestrator{
		discoverer: d,
		resolver:   r,
		registry:   reg,
	}
}

// DiscoverAndRegister runs one full discovery cycle: broadcast scan, resolve
// each responding server, dedup candidates against the current registry, and
// register survivors. All registration events plus one summary flush as a
// single batch so observers see one notification per cycle instead of one
// per device.
func (o *Orchestrator) DiscoverAndRegister(ctx context.Context) (*Result, error) {
	bus := o.registry.Events()
	bus.Publish(registry.Event{Type: registry.EventDiscoveryStarted})

	servers, err := o.discoverer.Scan(ctx)
	if err != nil {
		bus.Publish(registry.Event{Type: registry.EventDiscoveryStopped, Message: err.Error()})
		return nil, err
	}

	result := &Result{Failures: make(map[string]error)}

	scope := bus.Batch()
	defer scope.End()

	for _, server := range servers {
		o.registerServer(ctx, server, result)
	}

	summary := fmt.Sprintf("discovery complete: %d new device(s)", len(result.Added))
	scope.Queue(registry.Event{
		Type:    registry.EventDiscoveryStopped,
		Message: summary,
		Args:    []interface{}{len(result.Added), result.Names()},
	})

	logging.Info("Discovery cycle finished",
		zap.Int("servers", len(servers)),
		zap.Int("added", len(result.Added)),
		zap.Int("skipped", result.Skipped),
		zap.Int("failures", len(result.Failures)),
	)
	return result, nil
}

// registerServer resolves one server and registers its new devices.
func (o *Orchestrator) registerServer(ctx context.Context, server *discovery.DiscoveredServer, result *Result) {
	candidates, desc, err := o.resolver.ResolveServer(ctx, server)
	if err != nil {
		logging.Warn("Server resolution failed",
			zap.String("server", server.Key()),
			zap.Error(err),
		)
		result.Failures[server.Key()] = err
		return
	}

	o.discoverer.UpdateServerInfo(server.Address, server.Port,
		desc.ServerName, desc.Manufacturer, desc.ManufacturerVersion, desc.Location)

	for _, candidate := range candidates {
		// Discovery only proposes; an already-present candidate is dropped,
		// never merged over the existing record.
		if resolve.IsDeviceAdded(candidate, o.registry.List()) {
			result.Skipped++
			continue
		}
		o.registry.Add(candidate)
		result.Added = append(result.Added, candidate)
	}
}

// AddManualDevice resolves and registers a single user-supplied server. The
// target must answer its management API before anything is registered: on
// failure the registry and discovery cache are left untouched.
func (o *Orchestrator) AddManualDevice(ctx context.Context, address string, port int) ([]*registry.UnifiedDevice, error) {
	ip := net.ParseIP(address)
	if ip == nil {
		return nil, alpaca.NewValidationError(fmt.Sprintf("invalid device address %q", address))
	}
	if port < 1 || port > 65535 {
		return nil, alpaca.NewValidationError(fmt.Sprintf("invalid device port %d", port))
	}

	server := &discovery.DiscoveredServer{
		Address:      ip.String(),
		Port:         port,
		DiscoveredAt: time.Now(),
		IsManual:     true,
	}

	candidates, desc, err := o.resolver.ResolveServer(ctx, server)
	if err != nil {
		return nil, fmt.Errorf("manual device %s:%d could not be verified: %w", address, port, err)
	}

	// Verified reachable; now it may enter the cache and registry
	if _, err := o.discoverer.AddManual(server.Address, server.Port); err != nil {
		return nil, err
	}
	o.discoverer.UpdateServerInfo(server.Address, server.Port,
		desc.ServerName, desc.Manufacturer, desc.ManufacturerVersion, desc.Location)

	scope := o.registry.Events().Batch()
	defer scope.End()

	added := make([]*registry.UnifiedDevice, 0, len(candidates))
	for _, candidate := range candidates {
		if resolve.IsDeviceAdded(candidate, o.registry.List()) {
			continue
		}
		o.registry.Add(candidate)
		added = append(added, candidate)
	}
	return added, nil
}
