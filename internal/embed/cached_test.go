package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps an Embedder and counts inner Embed calls.
type countingEmbedder struct {
	Embedder
	calls atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls.Add(1)
	return c.Embedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	return c.Embedder.EmbedBatch(ctx, texts)
}

// TS01: Repeated Embed hits the cache
func TestCachedEmbedder_CacheHit(t *testing.T) {
	// Given: a cached embedder over a counting inner embedder
	inner := &countingEmbedder{Embedder: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 10)
	defer func() { _ = c.Close() }()

	// When: embedding the same text three times
	first, err := c.Embed(context.Background(), "repeated query")
	require.NoError(t, err)
	second, err := c.Embed(context.Background(), "repeated query")
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "repeated query")
	require.NoError(t, err)

	// Then: the inner embedder ran once and results are identical
	assert.Equal(t, int64(1), inner.calls.Load())
	assert.Equal(t, first, second)
}

// TS02: EmbedBatch only computes uncached entries
func TestCachedEmbedder_BatchPartialCache(t *testing.T) {
	// Given: one text already cached
	inner := &countingEmbedder{Embedder: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 10)
	defer func() { _ = c.Close() }()

	_, err := c.Embed(context.Background(), "cached")
	require.NoError(t, err)
	require.Equal(t, int64(1), inner.calls.Load())

	// When: batching the cached text with two new ones
	results, err := c.EmbedBatch(context.Background(), []string{"cached", "new one", "new two"})
	require.NoError(t, err)

	// Then: only the two new texts reached the inner embedder
	require.Len(t, results, 3)
	assert.Equal(t, int64(3), inner.calls.Load())
	for _, vec := range results {
		assert.Len(t, vec, StaticDimensions)
	}
}

// TS03: Distinct texts are distinct cache entries
func TestCachedEmbedder_DistinctTexts(t *testing.T) {
	inner := &countingEmbedder{Embedder: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 10)
	defer func() { _ = c.Close() }()

	_, err := c.Embed(context.Background(), "alpha")
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "beta")
	require.NoError(t, err)

	assert.Equal(t, int64(2), inner.calls.Load())
}

// TS04: Eviction re-computes evicted entries
func TestCachedEmbedder_Eviction(t *testing.T) {
	// Given: a cache that holds a single entry
	inner := &countingEmbedder{Embedder: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 1)
	defer func() { _ = c.Close() }()

	// When: alternating two texts
	_, err := c.Embed(context.Background(), "one")
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "two")
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "one")
	require.NoError(t, err)

	// Then: the first text was computed twice
	assert.Equal(t, int64(3), inner.calls.Load())
}
