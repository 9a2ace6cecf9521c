package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// recordingConnector counts side-effect invocations and can be told to fail.
type recordingConnector struct {
	mu          sync.Mutex
	connects    int
	disconnects int
	failWith    error
}

func (c *recordingConnector) Connect(ctx context.Context, d *UnifiedDevice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	return c.failWith
}

func (c *recordingConnector) Disconnect(ctx context.Context, d *UnifiedDevice) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	return c.failWith
}

func (c *recordingConnector) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects, c.disconnects
}

func testDevice(id string) *UnifiedDevice {
	return &UnifiedDevice{
		ID:           id,
		Name:         "Telescope 0",
		Type:         "telescope",
		DeviceNumber: 0,
		IPAddress:    "192.168.1.50",
		Port:         11111,
	}
}

func TestAdd_NewDevice(t *testing.T) {
	r := New(nil)

	if added := r.Add(testDevice("192.168.1.50:11111:telescope:0")); !added {
		t.Error("Add() = false, want true for new device")
	}

	d, err := r.Get("192.168.1.50:11111:telescope:0")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if d.Status != StatusIdle {
		t.Errorf("Status = %s, new device should start idle", d.Status)
	}
	if d.IsConnected {
		t.Error("new device should not be connected")
	}
}

// TestAdd_ExistingDeviceMerges verifies re-registration merges fields without
// duplicating the record or touching connection state.
func TestAdd_ExistingDeviceMerges(t *testing.T) {
	r := New(nil)
	id := "192.168.1.50:11111:telescope:0"
	r.Add(testDevice(id))

	if err := r.Connect(context.Background(), id); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	update := testDevice(id)
	update.Name = "Renamed Telescope"
	update.Properties = map[string]interface{}{"serverName": "Obs"}
	if added := r.Add(update); added {
		t.Error("Add() = true, want false for existing device")
	}

	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	d, _ := r.Get(id)
	if d.Name != "Renamed Telescope" {
		t.Errorf("Name = %s, want Renamed Telescope", d.Name)
	}
	if !d.IsConnected {
		t.Error("re-registration must not reset connection state")
	}
	if d.Properties["serverName"] != "Obs" {
		t.Error("properties should merge on re-registration")
	}
}

func TestGet_NotFound(t *testing.T) {
	r := New(nil)
	if _, err := r.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestGet_Snapshot(t *testing.T) {
	r := New(nil)
	id := "192.168.1.50:11111:telescope:0"
	r.Add(testDevice(id))

	d, _ := r.Get(id)
	d.Name = "mutated"

	fresh, _ := r.Get(id)
	if fresh.Name == "mutated" {
		t.Error("mutating a Get snapshot must not affect the registry")
	}
}

func TestUpdate(t *testing.T) {
	r := New(nil)
	id := "192.168.1.50:11111:telescope:0"
	r.Add(testDevice(id))

	name := "Main Scope"
	d, err := r.Update(id, DeviceUpdate{
		Name:       &name,
		Properties: map[string]interface{}{"location": "roof"},
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if d.Name != "Main Scope" {
		t.Errorf("Name = %s, want Main Scope", d.Name)
	}
	if d.Properties["location"] != "roof" {
		t.Error("Update() should merge properties")
	}

	if _, err := r.Update("missing", DeviceUpdate{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestRemove(t *testing.T) {
	r := New(nil)
	id := "192.168.1.50:11111:telescope:0"
	r.Add(testDevice(id))

	if err := r.Remove(id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if r.Has(id) {
		t.Error("device should be gone after Remove()")
	}

	if err := r.Remove(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove() error = %v, want ErrNotFound", err)
	}
}

// TestRemove_EventBeforeDeletion verifies observers still see the record
// registered while handling the removal event.
func TestRemove_EventBeforeDeletion(t *testing.T) {
	r := New(nil)
	id := "192.168.1.50:11111:telescope:0"
	r.Add(testDevice(id))

	var presentDuringEvent bool
	r.Events().AddListener(func(e Event) {
		if e.Type == EventDeviceRemoved {
			presentDuringEvent = r.Has(e.DeviceID)
		}
	})

	if err := r.Remove(id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if !presentDuringEvent {
		t.Error("removal event must fire before the record is deleted")
	}
}

func TestList_Ordered(t *testing.T) {
	r := New(nil)
	b := testDevice("b-id")
	a := testDevice("a-id")
	r.Add(b)
	r.Add(a)

	devices := r.List()
	if len(devices) != 2 {
		t.Fatalf("List() returned %d devices, want 2", len(devices))
	}
	if devices[0].ID != "a-id" || devices[1].ID != "b-id" {
		t.Errorf("List() not ordered by id: %s, %s", devices[0].ID, devices[1].ID)
	}
}

func TestConnect_Lifecycle(t *testing.T) {
	conn := &recordingConnector{}
	r := New(conn)
	id := "192.168.1.50:11111:telescope:0"
	r.Add(testDevice(id))

	var seen []EventType
	r.Events().AddListener(func(e Event) {
		seen = append(seen, e.Type)
	})

	if err := r.Connect(context.Background(), id); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	d, _ := r.Get(id)
	if !d.IsConnected || d.Status != StatusConnected {
		t.Errorf("device state = connected:%v status:%s, want connected", d.IsConnected, d.Status)
	}
	if d.IsConnecting {
		t.Error("IsConnecting should clear after the transition")
	}

	connects, _ := conn.counts()
	if connects != 1 {
		t.Errorf("connector invoked %d times, want 1", connects)
	}

	want := []EventType{EventDeviceConnecting, EventDeviceConnected}
	if len(seen) != len(want) {
		t.Fatalf("saw events %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, seen[i], want[i])
		}
	}
}

// TestConnect_AlreadyConnected verifies the idempotent no-op: no error, no
// second side effect.
func TestConnect_AlreadyConnected(t *testing.T) {
	conn := &recordingConnector{}
	r := New(conn)
	id := "192.168.1.50:11111:telescope:0"
	r.Add(testDevice(id))

	if err := r.Connect(context.Background(), id); err != nil {
		t.Fatalf("first Connect() error = %v", err)
	}
	if err := r.Connect(context.Background(), id); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}

	connects, _ := conn.counts()
	if connects != 1 {
		t.Errorf("connector invoked %d times, want 1 (second connect is a no-op)", connects)
	}
}

func TestConnect_NotFound(t *testing.T) {
	r := New(nil)
	if err := r.Connect(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Connect() error = %v, want ErrNotFound", err)
	}
}

func TestConnect_SideEffectFailure(t *testing.T) {
	conn := &recordingConnector{failWith: errors.New("device powered off")}
	r := New(conn)
	id := "192.168.1.50:11111:telescope:0"
	r.Add(testDevice(id))

	var errorEvent *Event
	r.Events().AddListener(func(e Event) {
		if e.Type == EventDeviceConnectionError {
			copied := e
			errorEvent = &copied
		}
	})

	err := r.Connect(context.Background(), id)
	if err == nil {
		t.Fatal("Connect() should propagate the connector failure")
	}

	d, _ := r.Get(id)
	if d.IsConnected {
		t.Error("failed connect must not mark the device connected")
	}
	if d.Status != StatusError {
		t.Errorf("Status = %s, want %s", d.Status, StatusError)
	}
	if d.IsConnecting {
		t.Error("IsConnecting should clear after a failed transition")
	}

	if errorEvent == nil {
		t.Fatal("connection error event should be published")
	}
	if errorEvent.Message != "device powered off" {
		t.Errorf("event message = %q, want connector error text", errorEvent.Message)
	}
}

// TestConnect_TransitionInProgress verifies a second connect during an
// in-flight transition is rejected rather than doubling the side effect.
func TestConnect_TransitionInProgress(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	blocking := &blockingConnector{started: started, release: release}
	r := New(blocking)
	id := "192.168.1.50:11111:telescope:0"
	r.Add(testDevice(id))

	done := make(chan error, 1)
	go func() {
		done <- r.Connect(context.Background(), id)
	}()

	<-started
	if err := r.Connect(context.Background(), id); !errors.Is(err, ErrTransitionInProgress) {
		t.Errorf("overlapping Connect() error = %v, want ErrTransitionInProgress", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("original Connect() error = %v", err)
	}
}

// blockingConnector holds the side effect open until released.
type blockingConnector struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (c *blockingConnector) Connect(ctx context.Context, d *UnifiedDevice) error {
	c.once.Do(func() { close(c.started) })
	<-c.release
	return nil
}

func (c *blockingConnector) Disconnect(ctx context.Context, d *UnifiedDevice) error {
	return nil
}

// TestConnect_RemovedMidFlight verifies a device removed while its side
// effect runs resolves to not-found rather than resurrecting the record.
func TestConnect_RemovedMidFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	blocking := &blockingConnector{started: started, release: release}
	r := New(blocking)
	id := "192.168.1.50:11111:telescope:0"
	r.Add(testDevice(id))

	done := make(chan error, 1)
	go func() {
		done <- r.Connect(context.Background(), id)
	}()

	<-started
	if err := r.Remove(id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	close(release)

	if err := <-done; !errors.Is(err, ErrNotFound) {
		t.Errorf("Connect() after mid-flight removal error = %v, want ErrNotFound", err)
	}
	if r.Has(id) {
		t.Error("completing transition must not resurrect a removed device")
	}
}

func TestDisconnect_Lifecycle(t *testing.T) {
	conn := &recordingConnector{}
	r := New(conn)
	id := "192.168.1.50:11111:telescope:0"
	r.Add(testDevice(id))

	if err := r.Connect(context.Background(), id); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := r.Disconnect(context.Background(), id); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	d, _ := r.Get(id)
	if d.IsConnected || d.Status != StatusIdle {
		t.Errorf("device state = connected:%v status:%s, want idle", d.IsConnected, d.Status)
	}

	_, disconnects := conn.counts()
	if disconnects != 1 {
		t.Errorf("connector invoked %d times, want 1", disconnects)
	}
}

// TestDisconnect_NotConnected verifies disconnecting an idle device is a
// silent no-op.
func TestDisconnect_NotConnected(t *testing.T) {
	conn := &recordingConnector{}
	r := New(conn)
	id := "192.168.1.50:11111:telescope:0"
	r.Add(testDevice(id))

	if err := r.Disconnect(context.Background(), id); err != nil {
		t.Errorf("Disconnect() on idle device error = %v, want nil", err)
	}

	_, disconnects := conn.counts()
	if disconnects != 0 {
		t.Errorf("connector invoked %d times, want 0", disconnects)
	}
}

// TestDisconnect_ClearsErrorState verifies a device stuck in the error state
// can be disconnected back to idle.
func TestDisconnect_ClearsErrorState(t *testing.T) {
	conn := &recordingConnector{failWith: errors.New("flaky link")}
	r := New(conn)
	id := "192.168.1.50:11111:telescope:0"
	r.Add(testDevice(id))

	if err := r.Connect(context.Background(), id); err == nil {
		t.Fatal("Connect() should fail")
	}

	conn.mu.Lock()
	conn.failWith = nil
	conn.mu.Unlock()

	if err := r.Disconnect(context.Background(), id); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}

	d, _ := r.Get(id)
	if d.Status != StatusIdle {
		t.Errorf("Status = %s, want %s", d.Status, StatusIdle)
	}
}
