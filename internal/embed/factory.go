package embed

import (
	"fmt"
)

// Options selects and configures an embedding provider.
type Options struct {
	// Provider is "static" or "ollama".
	Provider string

	// Model is the provider model name (ollama only).
	Model string

	// Dimensions is the declared dimensionality (ollama only; the static
	// embedder has a fixed dimensionality).
	Dimensions int

	// OllamaHost is the Ollama API endpoint.
	OllamaHost string

	// CacheSize is the LRU cache size; 0 uses the default.
	CacheSize int
}

// New creates an embedder for the given options, wrapped with LRU caching.
func New(opts Options) (Embedder, error) {
	var inner Embedder

	switch opts.Provider {
	case "", "static":
		inner = NewStaticEmbedder()
	case "ollama":
		cfg := DefaultOllamaConfig(opts.Dimensions)
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		if opts.OllamaHost != "" {
			cfg.Host = opts.OllamaHost
		}
		embedder, err := NewOllamaEmbedder(cfg)
		if err != nil {
			return nil, fmt.Errorf("create ollama embedder: %w", err)
		}
		inner = embedder
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}

	return NewCachedEmbedder(inner, opts.CacheSize), nil
}
