// Package watcher observes the notes directory and emits debounced change
// events. Bursts of filesystem events for the same path are coalesced into
// one notification; distinct paths are independent. The output channel is a
// bounded queue meant to be consumed by a single dispatcher so per-path
// ordering is preserved.
package watcher

import (
	"context"
	"time"
)

// EventKind is the kind of change observed for a note file.
type EventKind int

const (
	// Created indicates a new note file appeared.
	Created EventKind = iota
	// Modified indicates an existing note file changed.
	Modified
	// Deleted indicates a note file was removed.
	Deleted
	// TreeRemoved indicates a watched directory was removed or renamed
	// away. The filesystem reports nothing for the notes under it, so
	// consumers must treat every tracked path below Path as deleted.
	TreeRemoved
)

// String returns a human-readable representation of the kind.
func (k EventKind) String() string {
	switch k {
	case Created:
		return "CREATED"
	case Modified:
		return "MODIFIED"
	case Deleted:
		return "DELETED"
	case TreeRemoved:
		return "TREE_REMOVED"
	default:
		return "UNKNOWN"
	}
}

// Event is a single debounced change notification.
type Event struct {
	// Path is the absolute path of the note file.
	Path string

	// Kind is the coalesced change kind.
	Kind EventKind

	// Timestamp is when the last underlying event was observed.
	Timestamp time.Time
}

// Watcher observes a directory tree for note changes.
type Watcher interface {
	// Start begins watching the given directory recursively. It blocks
	// until Stop is called or the context is cancelled.
	Start(ctx context.Context, path string) error

	// Stop stops the watcher and releases resources.
	// Safe to call multiple times.
	Stop() error

	// Events returns the channel of debounced events.
	// The channel is closed when the watcher stops.
	Events() <-chan Event

	// Errors returns a channel of watcher errors. Non-fatal errors are
	// sent here; the watcher continues running.
	Errors() <-chan error
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the time to wait before emitting a coalesced
	// event for a path. Default: 300ms.
	DebounceWindow time.Duration

	// EventBufferSize is the size of the bounded event queue.
	// Default: 1024. When the queue is full the debouncer blocks rather
	// than dropping events.
	EventBufferSize int

	// Extensions are the file extensions to watch. Default: [".md"].
	Extensions []string
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  300 * time.Millisecond,
		EventBufferSize: 1024,
		Extensions:      []string{".md"},
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	if len(o.Extensions) == 0 {
		o.Extensions = defaults.Extensions
	}
	return o
}
