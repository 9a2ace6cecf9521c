package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/openskies-io/alpacahub/internal/logging"
)

// Connector performs the externally-supplied connection side effect for a
// device. The registry owns the state machine; the connector owns the wire
// call (for Alpaca devices, setting the Connected property).
type Connector interface {
	Connect(ctx context.Context, device *UnifiedDevice) error
	Disconnect(ctx context.Context, device *UnifiedDevice) error
}

// noopConnector is used when no connector is supplied (tests, dry runs).
type noopConnector struct{}

func (noopConnector) Connect(context.Context, *UnifiedDevice) error    { return nil }
func (noopConnector) Disconnect(context.Context, *UnifiedDevice) error { return nil }

// Registry is the authoritative in-memory map of device id to device record.
// It is constructed once at process start and injected into consumers; the
// internal map is owned exclusively by the registry and mutated only through
// its operations.
type Registry struct {
	mu        sync.Mutex
	devices   map[string]*UnifiedDevice
	bus       *Bus
	connector Connector
}

// New creates an empty registry. A nil connector makes connect/disconnect
// transitions succeed without side effects.
func New(connector Connector) *Registry {
	if connector == nil {
		connector = noopConnector{}
	}
	return &Registry{
		devices:   make(map[string]*UnifiedDevice),
		bus:       NewBus(),
		connector: connector,
	}
}

// Events returns the registry's event bus.
func (r *Registry) Events() *Bus {
	return r.bus
}

// Add upserts a device by id. A new id inserts the record; an existing id
// shallow-merges the incoming fields into the existing record instead of
// duplicating it (discovery re-resolves the same device across repeated
// scans). Returns true when a new record was inserted.
func (r *Registry) Add(device *UnifiedDevice) bool {
	r.mu.Lock()
	existing, known := r.devices[device.ID]
	if !known {
		record := device.Clone()
		if record.Status == "" {
			record.Status = StatusIdle
		}
		r.devices[device.ID] = record
		snapshot := record.Clone()
		r.mu.Unlock()

		logging.Info("Device registered",
			zap.String("device_id", snapshot.ID),
			zap.String("name", snapshot.Name),
		)
		r.bus.Publish(Event{Type: EventDeviceAdded, Device: snapshot, DeviceID: snapshot.ID})
		return true
	}

	mergeDevice(existing, device)
	snapshot := existing.Clone()
	r.mu.Unlock()

	r.bus.Publish(Event{Type: EventDeviceUpdated, Device: snapshot, DeviceID: snapshot.ID})
	return false
}

// mergeDevice shallow-merges non-zero incoming fields into an existing
// record. Connection state is never merged; it belongs to the state machine.
func mergeDevice(existing, incoming *UnifiedDevice) {
	if incoming.Name != "" {
		existing.Name = incoming.Name
	}
	if incoming.Type != "" {
		existing.Type = incoming.Type
	}
	if incoming.IPAddress != "" {
		existing.IPAddress = incoming.IPAddress
	}
	if incoming.Port != 0 {
		existing.Port = incoming.Port
	}
	if incoming.Properties != nil {
		if existing.Properties == nil {
			existing.Properties = make(map[string]interface{}, len(incoming.Properties))
		}
		for k, v := range incoming.Properties {
			existing.Properties[k] = v
		}
	}
}

// DeviceUpdate is a partial mutation applied by Update.
type DeviceUpdate struct {
	// Name replaces the display name when non-nil
	Name *string

	// Properties are merged into the device's properties map
	Properties map[string]interface{}
}

// Update applies a partial mutation to an existing device.
func (r *Registry) Update(id string, update DeviceUpdate) (*UnifiedDevice, error) {
	r.mu.Lock()
	device, known := r.devices[id]
	if !known {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if update.Name != nil {
		device.Name = *update.Name
	}
	if update.Properties != nil {
		if device.Properties == nil {
			device.Properties = make(map[string]interface{}, len(update.Properties))
		}
		for k, v := range update.Properties {
			device.Properties[k] = v
		}
	}
	snapshot := device.Clone()
	r.mu.Unlock()

	r.bus.Publish(Event{Type: EventDeviceUpdated, Device: snapshot, DeviceID: id})
	return snapshot, nil
}

// Remove deletes a device. The removal event is emitted before the record is
// physically deleted so observers can clean up derived state referencing the
// id. Removal is the only way a record disappears; discovery never removes.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	device, known := r.devices[id]
	if !known {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	snapshot := device.Clone()
	r.mu.Unlock()

	r.bus.Publish(Event{Type: EventDeviceRemoved, Device: snapshot, DeviceID: id})

	r.mu.Lock()
	delete(r.devices, id)
	r.mu.Unlock()

	logging.Info("Device removed", zap.String("device_id", id))
	return nil
}

// Get returns a snapshot of one device.
func (r *Registry) Get(id string) (*UnifiedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, known := r.devices[id]
	if !known {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return device.Clone(), nil
}

// Has reports whether a device id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, known := r.devices[id]
	return known
}

// List returns snapshots of all devices, ordered by id.
func (r *Registry) List() []*UnifiedDevice {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices := make([]*UnifiedDevice, 0, len(r.devices))
	for _, d := range r.devices {
		devices = append(devices, d.Clone())
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].ID < devices[j].ID
	})
	return devices
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// Connect transitions a device to connected, invoking the connector's side
// effect. Already-connected devices are a no-op success without re-invoking
// the side effect; a transition already in flight fails with
// ErrTransitionInProgress rather than starting a second attempt.
func (r *Registry) Connect(ctx context.Context, id string) error {
	r.mu.Lock()
	device, known := r.devices[id]
	if !known {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if device.IsConnected {
		r.mu.Unlock()
		return nil
	}
	if device.IsConnecting || device.IsDisconnecting {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTransitionInProgress, id)
	}
	device.IsConnecting = true
	device.Status = StatusConnecting
	snapshot := device.Clone()
	r.mu.Unlock()

	r.bus.Publish(Event{Type: EventDeviceConnecting, Device: snapshot, DeviceID: id})

	err := r.connector.Connect(ctx, snapshot)

	r.mu.Lock()
	device, known = r.devices[id]
	if !known {
		// Removed while the side effect was in flight
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	device.IsConnecting = false
	if err != nil {
		device.Status = StatusError
		snapshot = device.Clone()
		r.mu.Unlock()

		logging.Warn("Device connect failed",
			zap.String("device_id", id),
			zap.Error(err),
		)
		r.bus.Publish(Event{
			Type:     EventDeviceConnectionError,
			Device:   snapshot,
			DeviceID: id,
			Message:  err.Error(),
		})
		return fmt.Errorf("connect %s: %w", id, err)
	}
	device.IsConnected = true
	device.Status = StatusConnected
	snapshot = device.Clone()
	r.mu.Unlock()

	logging.Info("Device connected", zap.String("device_id", id))
	r.bus.Publish(Event{Type: EventDeviceConnected, Device: snapshot, DeviceID: id})
	return nil
}

// Disconnect transitions a device to idle, invoking the connector's side
// effect. Symmetric with Connect.
func (r *Registry) Disconnect(ctx context.Context, id string) error {
	r.mu.Lock()
	device, known := r.devices[id]
	if !known {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if !device.IsConnected && device.Status != StatusError {
		r.mu.Unlock()
		return nil
	}
	if device.IsConnecting || device.IsDisconnecting {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrTransitionInProgress, id)
	}
	device.IsDisconnecting = true
	device.Status = StatusDisconnecting
	snapshot := device.Clone()
	r.mu.Unlock()

	r.bus.Publish(Event{Type: EventDeviceDisconnecting, Device: snapshot, DeviceID: id})

	err := r.connector.Disconnect(ctx, snapshot)

	r.mu.Lock()
	device, known = r.devices[id]
	if !known {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	device.IsDisconnecting = false
	if err != nil {
		device.Status = StatusError
		snapshot = device.Clone()
		r.mu.Unlock()

		logging.Warn("Device disconnect failed",
			zap.String("device_id", id),
			zap.Error(err),
		)
		r.bus.Publish(Event{
			Type:     EventDeviceConnectionError,
			Device:   snapshot,
			DeviceID: id,
			Message:  err.Error(),
		})
		return fmt.Errorf("disconnect %s: %w", id, err)
	}
	device.IsConnected = false
	device.Status = StatusIdle
	snapshot = device.Clone()
	r.mu.Unlock()

	logging.Info("Device disconnected", zap.String("device_id", id))
	r.bus.Publish(Event{Type: EventDeviceDisconnected, Device: snapshot, DeviceID: id})
	return nil
}
