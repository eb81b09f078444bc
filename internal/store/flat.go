package store

import (
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
)

// flatEntry is one stored vector. Entries are immutable once published;
// updates replace the whole entry, never mutate it.
type flatEntry struct {
	Vector []float32 // unit-normalized
	Hash   string    // content hash of the source note
}

// FlatIndex is the brute-force baseline vector index: O(n) exact cosine
// scan per query.
//
// Reads never block behind writes. The entry map is an immutable snapshot
// published through an atomic pointer: writers copy, modify, and publish a
// new snapshot; readers always see a complete version, never a torn vector.
type FlatIndex struct {
	writeMu sync.Mutex // serializes writers; readers don't take it
	snap    atomic.Pointer[map[string]flatEntry]
	config  VectorIndexConfig
	closed  atomic.Bool
}

// NewFlatIndex creates an empty brute-force vector index.
func NewFlatIndex(cfg VectorIndexConfig) *FlatIndex {
	idx := &FlatIndex{config: cfg}
	empty := make(map[string]flatEntry)
	idx.snap.Store(&empty)
	return idx
}

// Upsert inserts or replaces the vector for id.
func (f *FlatIndex) Upsert(ctx context.Context, id string, vector []float32, contentHash string) error {
	if f.closed.Load() {
		return fmt.Errorf("index is closed")
	}
	if len(vector) != f.config.Dimensions {
		return ErrDimensionMismatch{Expected: f.config.Dimensions, Got: len(vector)}
	}

	// Normalize into a private copy so the published entry can never be
	// mutated by the caller afterwards.
	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalizeInPlace(vec)

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	next := f.copySnapshot()
	next[id] = flatEntry{Vector: vec, Hash: contentHash}
	f.snap.Store(&next)
	return nil
}

// Remove deletes the vector for id. Removing an absent id is a no-op.
func (f *FlatIndex) Remove(ctx context.Context, id string) error {
	if f.closed.Load() {
		return fmt.Errorf("index is closed")
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	current := *f.snap.Load()
	if _, ok := current[id]; !ok {
		return nil
	}

	next := f.copySnapshot()
	delete(next, id)
	f.snap.Store(&next)
	return nil
}

// Get returns the stored (normalized) vector for id.
func (f *FlatIndex) Get(id string) ([]float32, bool) {
	entry, ok := (*f.snap.Load())[id]
	if !ok {
		return nil, false
	}
	return entry.Vector, true
}

// Search scans all entries and returns the top k by cosine similarity,
// descending; ties broken by ascending id for determinism.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]VectorHit, error) {
	if f.closed.Load() {
		return nil, fmt.Errorf("index is closed")
	}
	if len(query) != f.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: f.config.Dimensions, Got: len(query)}
	}
	if k <= 0 {
		return []VectorHit{}, nil
	}

	q := make([]float32, len(query))
	copy(q, query)
	normalizeInPlace(q)

	entries := *f.snap.Load()

	hits := make([]VectorHit, 0, len(entries))
	for id, entry := range entries {
		hits = append(hits, VectorHit{ID: id, Similarity: dot(q, entry.Vector)})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Hashes returns id -> content hash for every entry.
func (f *FlatIndex) Hashes() map[string]string {
	entries := *f.snap.Load()
	out := make(map[string]string, len(entries))
	for id, entry := range entries {
		out[id] = entry.Hash
	}
	return out
}

// Count returns the number of vectors.
func (f *FlatIndex) Count() int {
	return len(*f.snap.Load())
}

// flatFile is the gob persistence format.
type flatFile struct {
	Config  VectorIndexConfig
	Entries map[string]flatEntry
}

// Save persists the index to disk atomically (temp file + rename).
func (f *FlatIndex) Save(path string) error {
	if f.closed.Load() {
		return fmt.Errorf("index is closed")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create index file: %w", err)
	}

	payload := flatFile{
		Config:  f.config,
		Entries: *f.snap.Load(),
	}

	if err := gob.NewEncoder(file).Encode(payload); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to encode index: %w", err)
	}

	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close index file: %w", err)
	}

	return os.Rename(tmpPath, path)
}

// Load replaces the index contents from disk.
func (f *FlatIndex) Load(path string) error {
	if f.closed.Load() {
		return fmt.Errorf("index is closed")
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open index file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var payload flatFile
	if err := gob.NewDecoder(file).Decode(&payload); err != nil {
		return fmt.Errorf("failed to decode index: %w", err)
	}

	if payload.Config.Dimensions != f.config.Dimensions {
		return ErrDimensionMismatch{Expected: f.config.Dimensions, Got: payload.Config.Dimensions}
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if payload.Entries == nil {
		payload.Entries = make(map[string]flatEntry)
	}
	f.snap.Store(&payload.Entries)
	return nil
}

// Close releases resources.
func (f *FlatIndex) Close() error {
	f.closed.Store(true)
	return nil
}

// copySnapshot returns a mutable copy of the current snapshot.
// Caller must hold writeMu.
func (f *FlatIndex) copySnapshot() map[string]flatEntry {
	current := *f.snap.Load()
	next := make(map[string]flatEntry, len(current)+1)
	for id, entry := range current {
		next[id] = entry
	}
	return next
}

var _ VectorIndex = (*FlatIndex)(nil)

// normalizeInPlace normalizes a vector to unit length in place.
func normalizeInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	invMagnitude := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= invMagnitude
	}
}

// dot computes the dot product of two equal-length vectors. For
// unit-normalized vectors this is the cosine similarity.
func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
