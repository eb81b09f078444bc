// Package embed produces fixed-length vectors from note text.
// Embedders must be deterministic: identical text under the same model and
// version always yields the same vector, so similarity scores stay
// comparable across calls and across restarts.
package embed

import (
	"context"
	"math"
	"time"
)

// Common embedding constants.
const (
	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// DefaultTimeout is the default timeout for provider requests.
	DefaultTimeout = 60 * time.Second

	// TruncateBytes is the fixed input budget. Text beyond this is cut at
	// a rune boundary before embedding, keeping scores comparable between
	// short and very long notes.
	TruncateBytes = 8192
)

// Static embedder constants.
const (
	// StaticDimensions is the embedding dimension for the static embedder.
	StaticDimensions = 256
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text. Empty or
	// whitespace-only text yields the zero vector (see IsZeroVector);
	// callers should treat it as low-confidence.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// Truncate cuts text to the fixed input budget at a rune boundary.
func Truncate(text string) string {
	if len(text) <= TruncateBytes {
		return text
	}
	cut := TruncateBytes
	// Back up to a rune boundary so we never emit an invalid UTF-8 tail.
	for cut > 0 && text[cut]&0xC0 == 0x80 {
		cut--
	}
	return text[:cut]
}

// IsZeroVector reports whether v is the all-zero (low-confidence) vector
// produced for empty input.
func IsZeroVector(v []float32) bool {
	for _, val := range v {
		if val != 0 {
			return false
		}
	}
	return true
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v // zero vector stays zero
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
