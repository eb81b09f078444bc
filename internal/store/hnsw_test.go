package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHNSW(t *testing.T) *HNSWIndex {
	t.Helper()
	cfg := DefaultVectorIndexConfig(4)
	cfg.Backend = "hnsw"
	idx, err := NewHNSWIndex(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

// TS01: Search ordering matches the flat baseline
func TestHNSWIndex_SearchOrdering(t *testing.T) {
	// Given: three vectors, two near the query direction
	idx := newTestHNSW(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0, 0, 0}, "h-a"))
	require.NoError(t, idx.Upsert(ctx, "b", []float32{0, 1, 0, 0}, "h-b"))
	require.NoError(t, idx.Upsert(ctx, "c", []float32{0.9, 0.1, 0, 0}, "h-c"))

	// When: searching for [1,0,0,0] with k=2
	hits, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 2)
	require.NoError(t, err)

	// Then: exact re-scoring puts a first, then c
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "c", hits[1].ID)
	assert.GreaterOrEqual(t, hits[0].Similarity, hits[1].Similarity)
}

// TS02: Upsert replaces without growing the live count
func TestHNSWIndex_UpsertReplaces(t *testing.T) {
	idx := newTestHNSW(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0, 0, 0}, "h1"))
	require.NoError(t, idx.Upsert(ctx, "a", []float32{0, 1, 0, 0}, "h2"))

	assert.Equal(t, 1, idx.Count())
	assert.Equal(t, map[string]string{"a": "h2"}, idx.Hashes())

	// And: the replaced vector never resurfaces in search
	hits, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
	assert.Less(t, hits[0].Similarity, float32(0.1))
}

// TS03: Removed ids never appear in results
func TestHNSWIndex_Remove(t *testing.T) {
	idx := newTestHNSW(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "a", []float32{1, 0, 0, 0}, "h"))
	require.NoError(t, idx.Upsert(ctx, "b", []float32{0.9, 0.1, 0, 0}, "h"))
	require.NoError(t, idx.Remove(ctx, "a"))
	require.NoError(t, idx.Remove(ctx, "a"))

	assert.Equal(t, 1, idx.Count())
	_, ok := idx.Get("a")
	assert.False(t, ok)

	hits, err := idx.Search(ctx, []float32{1, 0, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)
}

// TS04: Dimension mismatch is rejected
func TestHNSWIndex_DimensionMismatch(t *testing.T) {
	idx := newTestHNSW(t)
	ctx := context.Background()

	err := idx.Upsert(ctx, "a", []float32{1, 0}, "h")
	assert.ErrorAs(t, err, &ErrDimensionMismatch{})
}

// TS05: Persistence round-trip including sidecar metadata
func TestHNSWIndex_Persistence(t *testing.T) {
	// Given: an index with two vectors saved to disk
	path := filepath.Join(t.TempDir(), "vectors.idx")
	ctx := context.Background()

	cfg := DefaultVectorIndexConfig(4)
	cfg.Backend = "hnsw"
	idx1, err := NewHNSWIndex(cfg)
	require.NoError(t, err)
	require.NoError(t, idx1.Upsert(ctx, "a", []float32{1, 0, 0, 0}, "h-a"))
	require.NoError(t, idx1.Upsert(ctx, "b", []float32{0, 1, 0, 0}, "h-b"))
	require.NoError(t, idx1.Save(path))
	require.NoError(t, idx1.Close())

	// When: loading into a fresh index
	idx2, err := NewHNSWIndex(cfg)
	require.NoError(t, err)
	defer func() { _ = idx2.Close() }()
	require.NoError(t, idx2.Load(path))

	// Then: contents, hashes, and search survive
	assert.Equal(t, 2, idx2.Count())
	assert.Equal(t, map[string]string{"a": "h-a", "b": "h-b"}, idx2.Hashes())

	hits, err := idx2.Search(ctx, []float32{0, 1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].ID)

	// And: replacement still works after reload
	require.NoError(t, idx2.Upsert(ctx, "a", []float32{0, 0, 1, 0}, "h-a2"))
	assert.Equal(t, 2, idx2.Count())
}

// TS06: Backend factory
func TestNewVectorIndex_BackendSelection(t *testing.T) {
	flatIdx, err := NewVectorIndex(VectorIndexConfig{Dimensions: 4, Backend: "flat"})
	require.NoError(t, err)
	assert.IsType(t, &FlatIndex{}, flatIdx)

	hnswIdx, err := NewVectorIndex(VectorIndexConfig{Dimensions: 4, Backend: "hnsw"})
	require.NoError(t, err)
	assert.IsType(t, &HNSWIndex{}, hnswIdx)

	_, err = NewVectorIndex(VectorIndexConfig{Dimensions: 4, Backend: "quantum"})
	assert.Error(t, err)
}
