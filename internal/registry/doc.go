// Package registry maintains the authoritative in-memory record of every
// known Alpaca device and notifies observers of every change.
//
// # Device Records
//
// Each UnifiedDevice joins a discovered server with one of its configured
// devices. The id "address:port:type:number" is the sole registry key and is
// stable for the record's lifetime. Records are created by the resolver,
// inserted once, mutated in place by connect/disconnect/property updates,
// and removed only by explicit user action. Discovery never mutates an
// existing record; it only proposes candidates.
//
// # Connection State Machine
//
// Per device: idle → connecting → connected → disconnecting → idle, with an
// error status reachable from either transition on failure and left again on
// the next successful attempt. Transitions are exclusive per device (the
// transitional flags are the guard); independent devices transition
// concurrently. Connect on a connected device is a no-op success that does
// not re-invoke the side effect; connect while connecting fails with
// ErrTransitionInProgress rather than starting a second attempt.
//
// The wire side effect is injected as a Connector, keeping device command
// semantics out of the registry.
//
// # Events
//
// Every mutation publishes one Event: a tagged variant delivered
// synchronously, in mutation order, to two parallel channels fed from the
// same value — typed listeners (AddListener/RemoveListener) and string-keyed
// handlers (On/Off/Emit) receiving the name plus positional arguments.
//
// # Batching
//
// Batch opens a scope in which published events queue instead of
// dispatching; the outermost End flushes in enqueue order. Scopes nest via a
// depth count. End must run on every exit path:
//
//	scope := reg.Events().Batch()
//	defer scope.End()
//	for _, d := range candidates {
//	    reg.Add(d)
//	}
//
// # Concurrency
//
// One mutex guards the device map and is never held across I/O or handler
// invocation, so callers never observe a torn intermediate state. Event
// ordering for a single device follows from the per-device transition
// exclusivity.
package registry
