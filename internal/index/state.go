package index

import (
	"time"
)

// State is the lifecycle state of a document in the index.
type State int

const (
	// StateAbsent means the document is not indexed and not in flight.
	StateAbsent State = iota
	// StateIndexing means an indexing operation is in flight.
	StateIndexing
	// StateReady means both index entries match the document's current hash.
	StateReady
	// StateStale means the content changed since the last successful index,
	// or restart verification found an outdated entry. Picked up by the
	// next sweep.
	StateStale
	// StateError means the last indexing attempt failed. Retried by the
	// next sweep.
	StateError
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateIndexing:
		return "indexing"
	case StateReady:
		return "ready"
	case StateStale:
		return "stale"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// docState tracks one document's lifecycle inside the coordinator.
// Protected by Coordinator.mu.
type docState struct {
	state State

	// path is the file path the latest event referenced.
	path string

	// hash is the content hash of the last successfully indexed content.
	hash string

	// gen is the write-generation: bumped on every change event for this
	// id. An indexing result is applied only if its generation is still
	// the newest, so a slow job finishing after a newer change was
	// scheduled is discarded rather than clobbering fresher state.
	gen uint64

	// inFlight is true while an indexing job for this id is running.
	// At most one job per id runs at a time.
	inFlight bool

	// pending is true when a change arrived while a job was in flight;
	// the finishing job reschedules itself.
	pending bool

	// lastErr is the most recent indexing failure, cleared on success.
	lastErr error

	// updatedAt is when the state last changed.
	updatedAt time.Time
}

// DocStatus is a read-only snapshot of one document's state.
type DocStatus struct {
	ID        string
	State     State
	Path      string
	LastErr   error
	UpdatedAt time.Time
}

// Stats summarizes the coordinator's view of the corpus.
type Stats struct {
	Total    int
	Ready    int
	Indexing int
	Stale    int
	Errored  int
}
