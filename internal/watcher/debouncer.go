package watcher

import (
	"sync"
	"time"
)

// Debouncer coalesces rapid file events to prevent index thrashing.
// Each path gets its own timer; events for the same path within the
// debounce window are merged according to these rules:
//   - CREATE + MODIFY = CREATE (file is still new)
//   - CREATE + DELETE = nothing (file never really existed)
//   - MODIFY + DELETE = DELETE (file is gone)
//   - DELETE + CREATE = MODIFY (file was replaced)
//
// At most one pending event exists per path, and a path's event is only
// emitted once its timer fires, so consumers never see two concurrent
// notifications for the same path.
type Debouncer struct {
	window time.Duration
	output chan Event
	stopCh chan struct{}

	mu       sync.Mutex
	pending  map[string]*pendingEvent
	inflight sync.WaitGroup
	stopped  bool
}

type pendingEvent struct {
	event   Event
	firstOp EventKind // first kind seen in this window, for coalescing
	timer   *time.Timer
}

// NewDebouncer creates a debouncer with the given window and queue size.
func NewDebouncer(window time.Duration, bufferSize int) *Debouncer {
	return &Debouncer{
		window:  window,
		output:  make(chan Event, bufferSize),
		stopCh:  make(chan struct{}),
		pending: make(map[string]*pendingEvent),
	}
}

// Add records an event, coalescing it with any pending event for the same
// path and (re)arming that path's timer.
func (d *Debouncer) Add(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	path := event.Path

	if existing, ok := d.pending[path]; ok {
		coalesced, keep := coalesce(existing.firstOp, event)
		if !keep {
			// CREATE + DELETE cancel out.
			existing.timer.Stop()
			delete(d.pending, path)
			return
		}
		existing.event = coalesced
		existing.timer.Reset(d.window)
		return
	}

	pe := &pendingEvent{
		event:   event,
		firstOp: event.Kind,
	}
	pe.timer = time.AfterFunc(d.window, func() {
		d.flush(path)
	})
	d.pending[path] = pe
}

// coalesce merges a new event into a window that started with firstOp.
// Returns keep=false when the events cancel each other out.
func coalesce(firstOp EventKind, event Event) (Event, bool) {
	switch firstOp {
	case Created:
		switch event.Kind {
		case Modified:
			// Still new to consumers.
			event.Kind = Created
			return event, true
		case Deleted:
			return Event{}, false
		}
	case Deleted:
		if event.Kind == Created {
			// Replaced in place.
			event.Kind = Modified
			return event, true
		}
	}
	return event, true
}

// flush emits the pending event for path. The send blocks when the queue
// is full — events must not be dropped — and aborts only on Stop.
func (d *Debouncer) flush(path string) {
	d.mu.Lock()
	pe, ok := d.pending[path]
	if !ok || d.stopped {
		d.mu.Unlock()
		return
	}
	delete(d.pending, path)
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	select {
	case d.output <- pe.event:
	case <-d.stopCh:
	}
}

// Output returns the channel of debounced events.
func (d *Debouncer) Output() <-chan Event {
	return d.output
}

// Pending returns the number of paths awaiting their debounce window.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop stops all timers, waits for in-flight emissions, and closes the
// output channel. Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.stopCh)
	for path, pe := range d.pending {
		pe.timer.Stop()
		delete(d.pending, path)
	}
	d.mu.Unlock()

	d.inflight.Wait()
	close(d.output)
}
