package registry

import "sync"

// EventType identifies one variant of the closed event set.
type EventType string

const (
	EventDeviceAdded           EventType = "deviceAdded"
	EventDeviceUpdated         EventType = "deviceUpdated"
	EventDeviceRemoved         EventType = "deviceRemoved"
	EventDeviceConnecting      EventType = "deviceConnecting"
	EventDeviceConnected       EventType = "deviceConnected"
	EventDeviceDisconnecting   EventType = "deviceDisconnecting"
	EventDeviceDisconnected    EventType = "deviceDisconnected"
	EventDeviceConnectionError EventType = "deviceConnectionError"
	EventDiscoveryStarted      EventType = "discoveryStarted"
	EventDiscoveryStopped      EventType = "discoveryStopped"
)

// Event is the single internal event representation: a tagged variant. The
// string-keyed channel is a derived projection of the same value, never an
// independent source of truth.
type Event struct {
	// Type is the variant tag
	Type EventType

	// Device is a snapshot of the affected device (nil for discovery events)
	Device *UnifiedDevice

	// DeviceID is set for device events even after removal
	DeviceID string

	// Message carries error text or summary text where applicable
	Message string

	// Args are extra positional arguments for the string-keyed projection
	Args []interface{}
}

// Name returns the string-keyed channel name for the event.
func (e Event) Name() string {
	return string(e.Type)
}

// stringArgs projects the variant into the positional-argument form the
// string-keyed channel delivers: device snapshot first (when present), then
// message, then extra args.
func (e Event) stringArgs() []interface{} {
	args := make([]interface{}, 0, 2+len(e.Args))
	if e.Device != nil {
		args = append(args, e.Device)
	}
	if e.Message != "" {
		args = append(args, e.Message)
	}
	return append(args, e.Args...)
}

// TypedListener receives structured events.
type TypedListener func(Event)

// Handler receives string-keyed events with positional arguments.
type Handler func(args ...interface{})

// Subscription identifies a registered listener or handler for removal.
type Subscription int

type typedEntry struct {
	id Subscription
	fn TypedListener
}

type handlerEntry struct {
	id Subscription
	fn Handler
}

// Bus is the ordered notification mechanism over registry mutations. It
// feeds two parallel channels from the same Event: typed listeners and
// string-keyed handlers. Dispatch is synchronous and in mutation order;
// batching (see Batch) queues events instead of dispatching them.
type Bus struct {
	mu         sync.Mutex
	nextID     Subscription
	typed      []typedEntry
	handlers   map[string][]handlerEntry
	batchDepth int
	queue      []Event
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]handlerEntry)}
}

// AddListener registers a typed listener for all events. Returns a
// subscription handle for RemoveListener.
func (b *Bus) AddListener(fn TypedListener) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.typed = append(b.typed, typedEntry{id: id, fn: fn})
	return id
}

// RemoveListener unregisters a typed listener.
func (b *Bus) RemoveListener(id Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, entry := range b.typed {
		if entry.id == id {
			b.typed = append(b.typed[:i], b.typed[i+1:]...)
			return
		}
	}
}

// On registers a string-keyed handler for one event name. Returns a
// subscription handle for Off.
func (b *Bus) On(name string, fn Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], handlerEntry{id: id, fn: fn})
	return id
}

// Off unregisters a string-keyed handler.
func (b *Bus) Off(name string, id Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.handlers[name]
	for i, entry := range entries {
		if entry.id == id {
			b.handlers[name] = append(entries[:i], entries[i+1:]...)
			return
		}
	}
}

// Emit publishes a synthetic string-keyed event. It flows through the same
// internal variant as mutation events, so batching and ordering apply.
func (b *Bus) Emit(name string, args ...interface{}) {
	b.Publish(Event{Type: EventType(name), Args: args})
}

// Publish delivers an event to both channels, or queues it when a batching
// scope is open.
func (b *Bus) Publish(event Event) {
	b.mu.Lock()
	if b.batchDepth > 0 {
		b.queue = append(b.queue, event)
		b.mu.Unlock()
		return
	}
	typed, handlers := b.snapshotSubscribers(event.Name())
	b.mu.Unlock()

	dispatch(event, typed, handlers)
}

// snapshotSubscribers copies the subscriber lists so handlers can register
// or unregister during dispatch. Callers must hold b.mu.
func (b *Bus) snapshotSubscribers(name string) ([]typedEntry, []handlerEntry) {
	typed := make([]typedEntry, len(b.typed))
	copy(typed, b.typed)
	entries := b.handlers[name]
	handlers := make([]handlerEntry, len(entries))
	copy(handlers, entries)
	return typed, handlers
}

// dispatch invokes subscribers in registration order, typed channel first.
func dispatch(event Event, typed []typedEntry, handlers []handlerEntry) {
	for _, entry := range typed {
		entry.fn(event)
	}
	args := event.stringArgs()
	for _, entry := range handlers {
		entry.fn(args...)
	}
}
