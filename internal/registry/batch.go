package registry

// BatchScope is an open batching scope on a Bus. While any scope is open,
// published events queue in order instead of dispatching; the outermost End
// flushes the queue to all subscribers in original enqueue order.
//
// Callers must guarantee End runs on every exit path, including error paths:
//
//	scope := bus.Batch()
//	defer scope.End()
type BatchScope struct {
	bus   *Bus
	ended bool
}

// Batch opens a batching scope. Scopes nest; events are held until the
// outermost scope ends, so nested Batch/End pairs never lose or double-flush
// events.
func (b *Bus) Batch() *BatchScope {
	b.mu.Lock()
	b.batchDepth++
	b.mu.Unlock()
	return &BatchScope{bus: b}
}

// Queue enqueues an event directly, for synthetic events not tied to a
// registry mutation. Order relative to mutation events is preserved.
func (s *BatchScope) Queue(event Event) {
	s.bus.Publish(event)
}

// End closes the scope. The outermost End flushes the queue in enqueue order
// and clears it. Calling End more than once on the same scope is a no-op.
func (s *BatchScope) End() {
	if s.ended {
		return
	}
	s.ended = true

	b := s.bus
	b.mu.Lock()
	if b.batchDepth > 0 {
		b.batchDepth--
	}
	if b.batchDepth > 0 {
		b.mu.Unlock()
		return
	}
	queued := b.queue
	b.queue = nil
	b.mu.Unlock()

	// Flush outside the lock; handlers may publish or manage subscriptions
	for _, event := range queued {
		typed, handlers := func() ([]typedEntry, []handlerEntry) {
			b.mu.Lock()
			defer b.mu.Unlock()
			return b.snapshotSubscribers(event.Name())
		}()
		dispatch(event, typed, handlers)
	}
}
