package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWindow = 30 * time.Millisecond

func collectOne(t *testing.T, d *Debouncer) Event {
	t.Helper()
	select {
	case ev, ok := <-d.Output():
		require.True(t, ok, "output closed before an event arrived")
		return ev
	case <-time.After(20 * testWindow):
		t.Fatal("timed out waiting for a debounced event")
		return Event{}
	}
}

func expectNone(t *testing.T, d *Debouncer) {
	t.Helper()
	select {
	case ev := <-d.Output():
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(4 * testWindow):
	}
}

// TS01: A single event passes through after the window
func TestDebouncer_SingleEvent(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(testWindow, 16)
	defer d.Stop()

	// When: one event is added
	d.Add(Event{Path: "/notes/a.md", Kind: Modified, Timestamp: time.Now()})

	// Then: it is emitted once the window elapses
	ev := collectOne(t, d)
	assert.Equal(t, "/notes/a.md", ev.Path)
	assert.Equal(t, Modified, ev.Kind)
	assert.Equal(t, 0, d.Pending())
}

// TS02: A burst for one path coalesces to one event
func TestDebouncer_BurstCoalesces(t *testing.T) {
	// Given: a debouncer
	d := NewDebouncer(testWindow, 16)
	defer d.Stop()

	// When: five rapid modifications to the same path
	for i := 0; i < 5; i++ {
		d.Add(Event{Path: "/notes/a.md", Kind: Modified, Timestamp: time.Now()})
	}

	// Then: exactly one event comes out
	ev := collectOne(t, d)
	assert.Equal(t, Modified, ev.Kind)
	expectNone(t, d)
}

// TS03: CREATE + MODIFY = CREATE
func TestDebouncer_CreateThenModify(t *testing.T) {
	d := NewDebouncer(testWindow, 16)
	defer d.Stop()

	d.Add(Event{Path: "/notes/a.md", Kind: Created, Timestamp: time.Now()})
	d.Add(Event{Path: "/notes/a.md", Kind: Modified, Timestamp: time.Now()})

	ev := collectOne(t, d)
	assert.Equal(t, Created, ev.Kind)
}

// TS04: CREATE + DELETE = nothing
func TestDebouncer_CreateThenDelete(t *testing.T) {
	d := NewDebouncer(testWindow, 16)
	defer d.Stop()

	d.Add(Event{Path: "/notes/a.md", Kind: Created, Timestamp: time.Now()})
	d.Add(Event{Path: "/notes/a.md", Kind: Deleted, Timestamp: time.Now()})

	expectNone(t, d)
	assert.Equal(t, 0, d.Pending())
}

// TS05: MODIFY + DELETE = DELETE
func TestDebouncer_ModifyThenDelete(t *testing.T) {
	d := NewDebouncer(testWindow, 16)
	defer d.Stop()

	d.Add(Event{Path: "/notes/a.md", Kind: Modified, Timestamp: time.Now()})
	d.Add(Event{Path: "/notes/a.md", Kind: Deleted, Timestamp: time.Now()})

	ev := collectOne(t, d)
	assert.Equal(t, Deleted, ev.Kind)
}

// TS06: DELETE + CREATE = MODIFY (file replaced in place)
func TestDebouncer_DeleteThenCreate(t *testing.T) {
	d := NewDebouncer(testWindow, 16)
	defer d.Stop()

	d.Add(Event{Path: "/notes/a.md", Kind: Deleted, Timestamp: time.Now()})
	d.Add(Event{Path: "/notes/a.md", Kind: Created, Timestamp: time.Now()})

	ev := collectOne(t, d)
	assert.Equal(t, Modified, ev.Kind)
}

// TS07: Distinct paths debounce independently
func TestDebouncer_IndependentPaths(t *testing.T) {
	d := NewDebouncer(testWindow, 16)
	defer d.Stop()

	d.Add(Event{Path: "/notes/a.md", Kind: Created, Timestamp: time.Now()})
	d.Add(Event{Path: "/notes/b.md", Kind: Modified, Timestamp: time.Now()})

	got := map[string]EventKind{}
	for i := 0; i < 2; i++ {
		ev := collectOne(t, d)
		got[ev.Path] = ev.Kind
	}
	assert.Equal(t, map[string]EventKind{
		"/notes/a.md": Created,
		"/notes/b.md": Modified,
	}, got)
}

// TS08: Stop closes the output channel and drops pending timers
func TestDebouncer_Stop(t *testing.T) {
	d := NewDebouncer(time.Hour, 16)

	d.Add(Event{Path: "/notes/a.md", Kind: Created, Timestamp: time.Now()})
	d.Stop()
	d.Stop() // idempotent

	_, ok := <-d.Output()
	assert.False(t, ok)

	// And: adds after Stop are ignored
	d.Add(Event{Path: "/notes/b.md", Kind: Created, Timestamp: time.Now()})
	assert.Equal(t, 0, d.Pending())
}

// TS09: No events are dropped when the queue fills
func TestDebouncer_FullQueueBlocksInsteadOfDropping(t *testing.T) {
	// Given: a debouncer with a one-slot queue and two paths
	d := NewDebouncer(testWindow, 1)
	defer d.Stop()

	d.Add(Event{Path: "/notes/a.md", Kind: Created, Timestamp: time.Now()})
	d.Add(Event{Path: "/notes/b.md", Kind: Created, Timestamp: time.Now()})

	// When: draining slowly
	time.Sleep(3 * testWindow)

	// Then: both events are eventually delivered
	paths := map[string]bool{}
	for i := 0; i < 2; i++ {
		ev := collectOne(t, d)
		paths[ev.Path] = true
	}
	assert.True(t, paths["/notes/a.md"])
	assert.True(t, paths["/notes/b.md"])
}
