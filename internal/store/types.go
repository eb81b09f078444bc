// Package store provides the persistent index layer: the vector index
// (exact brute-force baseline plus an HNSW substitution) and the SQLite
// keyword index. Each persisted entry carries the content hash of the note
// it was built from so restart recovery can detect outdated entries.
package store

import (
	"context"
	"fmt"
)

// VectorHit is a single vector search result.
type VectorHit struct {
	// ID is the document ID.
	ID string

	// Similarity is the cosine similarity in [-1, 1]; higher is closer.
	Similarity float32
}

// VectorIndex is a nearest-neighbor structure over note embeddings.
// Implementations must never expose a torn vector: a concurrent read
// returns either the pre- or post-update value, never a mix.
type VectorIndex interface {
	// Upsert inserts or replaces the vector for id. The content hash of
	// the source note is stored alongside for restart verification.
	Upsert(ctx context.Context, id string, vector []float32, contentHash string) error

	// Remove deletes the vector for id. Removing an absent id is a no-op.
	Remove(ctx context.Context, id string) error

	// Get returns the stored vector for id.
	Get(id string) ([]float32, bool)

	// Search returns up to k results ordered by descending cosine
	// similarity; ties broken by ascending id. No duplicates.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Hashes returns id -> content hash for every entry (restart recovery).
	Hashes() map[string]string

	// Count returns the number of vectors.
	Count() int

	// Persistence.
	Save(path string) error
	Load(path string) error
	Close() error
}

// KeywordMatch is a single keyword search result.
type KeywordMatch struct {
	// ID is the document ID.
	ID string

	// Snippets are bounded-width context windows around matches,
	// capped per document.
	Snippets []string
}

// KeywordConfig configures keyword search output.
type KeywordConfig struct {
	// SnippetRadius is the number of runes of context on each side of a
	// match (default: 60).
	SnippetRadius int

	// MaxSnippets caps snippets per document (default: 3).
	MaxSnippets int
}

// DefaultKeywordConfig returns sensible defaults.
func DefaultKeywordConfig() KeywordConfig {
	return KeywordConfig{
		SnippetRadius: 60,
		MaxSnippets:   3,
	}
}

// VectorIndexConfig configures the vector index.
type VectorIndexConfig struct {
	// Dimensions is the vector dimension.
	Dimensions int

	// Backend selects the implementation: "flat" (exact baseline) or
	// "hnsw" (approximate; same ordering semantics within the documented
	// tolerance).
	Backend string

	// M is HNSW max connections per layer (hnsw only).
	M int

	// EfSearch is HNSW query-time search width (hnsw only).
	EfSearch int
}

// DefaultVectorIndexConfig returns sensible defaults for the baseline.
func DefaultVectorIndexConfig(dimensions int) VectorIndexConfig {
	return VectorIndexConfig{
		Dimensions: dimensions,
		Backend:    "flat",
		M:          16,
		EfSearch:   48,
	}
}

// NewVectorIndex creates the configured vector index backend.
func NewVectorIndex(cfg VectorIndexConfig) (VectorIndex, error) {
	switch cfg.Backend {
	case "", "flat":
		return NewFlatIndex(cfg), nil
	case "hnsw":
		return NewHNSWIndex(cfg)
	default:
		return nil, fmt.Errorf("unknown vector backend %q", cfg.Backend)
	}
}

// ErrDimensionMismatch indicates vector dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Got      int
}

func (e ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d (run 'notesage index --force')", e.Expected, e.Got)
}
