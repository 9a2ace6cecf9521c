package registry

import (
	"testing"
)

func TestBus_TypedListener(t *testing.T) {
	b := NewBus()

	var seen []Event
	b.AddListener(func(e Event) {
		seen = append(seen, e)
	})

	b.Publish(Event{Type: EventDeviceAdded, DeviceID: "d1"})
	b.Publish(Event{Type: EventDeviceRemoved, DeviceID: "d1"})

	if len(seen) != 2 {
		t.Fatalf("listener saw %d events, want 2", len(seen))
	}
	if seen[0].Type != EventDeviceAdded || seen[1].Type != EventDeviceRemoved {
		t.Errorf("events out of order: %s, %s", seen[0].Type, seen[1].Type)
	}
}

func TestBus_RemoveListener(t *testing.T) {
	b := NewBus()

	var count int
	id := b.AddListener(func(e Event) { count++ })

	b.Publish(Event{Type: EventDeviceAdded})
	b.RemoveListener(id)
	b.Publish(Event{Type: EventDeviceAdded})

	if count != 1 {
		t.Errorf("listener invoked %d times, want 1 after removal", count)
	}
}

// TestBus_StringHandlers verifies the string-keyed channel delivers the same
// events as the typed channel, filtered by name.
func TestBus_StringHandlers(t *testing.T) {
	b := NewBus()

	var addedArgs [][]interface{}
	var removedCount int
	b.On(string(EventDeviceAdded), func(args ...interface{}) {
		addedArgs = append(addedArgs, args)
	})
	b.On(string(EventDeviceRemoved), func(args ...interface{}) {
		removedCount++
	})

	device := &UnifiedDevice{ID: "d1"}
	b.Publish(Event{Type: EventDeviceAdded, Device: device, DeviceID: "d1"})

	if removedCount != 0 {
		t.Error("handler for a different name must not fire")
	}
	if len(addedArgs) != 1 {
		t.Fatalf("added handler fired %d times, want 1", len(addedArgs))
	}
	if len(addedArgs[0]) != 1 || addedArgs[0][0] != device {
		t.Errorf("handler args = %v, want the device snapshot", addedArgs[0])
	}
}

func TestBus_Off(t *testing.T) {
	b := NewBus()

	var count int
	id := b.On("custom", func(args ...interface{}) { count++ })

	b.Emit("custom")
	b.Off("custom", id)
	b.Emit("custom")

	if count != 1 {
		t.Errorf("handler invoked %d times, want 1 after Off", count)
	}
}

// TestBus_SameFunctionTwice verifies subscriptions are independent handles,
// so registering one function twice requires two removals.
func TestBus_SameFunctionTwice(t *testing.T) {
	b := NewBus()

	var count int
	fn := func(args ...interface{}) { count++ }
	id1 := b.On("custom", fn)
	b.On("custom", fn)

	b.Emit("custom")
	if count != 2 {
		t.Fatalf("handler invoked %d times, want 2", count)
	}

	b.Off("custom", id1)
	b.Emit("custom")
	if count != 3 {
		t.Errorf("handler invoked %d times, want 3 (one registration left)", count)
	}
}

func TestBus_EmitArgs(t *testing.T) {
	b := NewBus()

	var got []interface{}
	b.On("discoveryStopped", func(args ...interface{}) {
		got = args
	})

	b.Emit("discoveryStopped", 3, []string{"a", "b", "c"})

	if len(got) != 2 {
		t.Fatalf("handler got %d args, want 2", len(got))
	}
	if got[0] != 3 {
		t.Errorf("args[0] = %v, want 3", got[0])
	}
}

// TestBus_SubscribeDuringDispatch verifies a handler registered while an
// event dispatches does not receive that event.
func TestBus_SubscribeDuringDispatch(t *testing.T) {
	b := NewBus()

	var lateCount int
	b.AddListener(func(e Event) {
		b.AddListener(func(e Event) { lateCount++ })
	})

	b.Publish(Event{Type: EventDeviceAdded})
	if lateCount != 0 {
		t.Errorf("late listener saw %d events, want 0 for in-flight dispatch", lateCount)
	}

	b.Publish(Event{Type: EventDeviceAdded})
	if lateCount != 1 {
		t.Errorf("late listener saw %d events, want 1", lateCount)
	}
}

func TestBatch_FlushOrder(t *testing.T) {
	b := NewBus()

	var seen []string
	b.AddListener(func(e Event) {
		seen = append(seen, e.DeviceID)
	})

	scope := b.Batch()
	b.Publish(Event{Type: EventDeviceAdded, DeviceID: "first"})
	b.Publish(Event{Type: EventDeviceAdded, DeviceID: "second"})
	scope.Queue(Event{Type: EventDiscoveryStopped, DeviceID: "third"})

	if len(seen) != 0 {
		t.Fatalf("events dispatched inside open scope: %v", seen)
	}

	scope.End()

	want := []string{"first", "second", "third"}
	if len(seen) != len(want) {
		t.Fatalf("flushed %d events, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("flush[%d] = %s, want %s", i, seen[i], want[i])
		}
	}
}

// TestBatch_Nested verifies only the outermost End flushes.
func TestBatch_Nested(t *testing.T) {
	b := NewBus()

	var seen int
	b.AddListener(func(e Event) { seen++ })

	outer := b.Batch()
	inner := b.Batch()
	b.Publish(Event{Type: EventDeviceAdded})

	inner.End()
	if seen != 0 {
		t.Error("inner End must not flush while the outer scope is open")
	}

	outer.End()
	if seen != 1 {
		t.Errorf("outer End flushed %d events, want 1", seen)
	}
}

// TestBatch_EndIdempotent verifies double End on one scope cannot close an
// outer scope early.
func TestBatch_EndIdempotent(t *testing.T) {
	b := NewBus()

	var seen int
	b.AddListener(func(e Event) { seen++ })

	outer := b.Batch()
	inner := b.Batch()
	inner.End()
	inner.End()

	b.Publish(Event{Type: EventDeviceAdded})
	if seen != 0 {
		t.Error("double inner End must not flush the outer scope")
	}

	outer.End()
	if seen != 1 {
		t.Errorf("flushed %d events, want 1", seen)
	}
}

func TestBatch_EmptyFlush(t *testing.T) {
	b := NewBus()

	var seen int
	b.AddListener(func(e Event) { seen++ })

	scope := b.Batch()
	scope.End()

	if seen != 0 {
		t.Errorf("empty scope flushed %d events, want 0", seen)
	}

	// Bus dispatches immediately again after the scope closes
	b.Publish(Event{Type: EventDeviceAdded})
	if seen != 1 {
		t.Errorf("post-scope publish dispatched %d events, want 1", seen)
	}
}
