// Package config loads and validates NoteSage configuration.
// Configuration is resolved in priority order: built-in defaults, the YAML
// config file (.notesage.yaml in the notes directory or the user config
// dir), then NOTESAGE_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is the config schema version.
const CurrentVersion = 1

// Config represents the complete NoteSage configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Paths      PathsConfig      `yaml:"paths" json:"paths"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// PathsConfig configures the notes corpus and index data locations.
type PathsConfig struct {
	// NotesDir is the directory holding markdown notes.
	NotesDir string `yaml:"notes_dir" json:"notes_dir"`

	// DataDir is where indexes persist. Defaults to <NotesDir>/.notesage.
	DataDir string `yaml:"data_dir" json:"data_dir"`
}

// WatchConfig configures the filesystem watcher.
type WatchConfig struct {
	// DebounceWindow coalesces rapid events for the same path.
	DebounceWindow time.Duration `yaml:"debounce_window" json:"debounce_window"`

	// EventBufferSize is the size of the bounded event queue.
	EventBufferSize int `yaml:"event_buffer_size" json:"event_buffer_size"`
}

// IndexConfig configures the index coordinator.
type IndexConfig struct {
	// Workers bounds the number of documents indexing concurrently.
	Workers int `yaml:"workers" json:"workers"`

	// MaxFileSize is the largest note file to index, in bytes.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`

	// SweepInterval is how often stale and errored documents are retried.
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "static" (default, offline) or "ollama".
	Provider string `yaml:"provider" json:"provider"`

	// Model is the provider model name (ollama only).
	Model string `yaml:"model" json:"model"`

	// Dimensions is the declared embedding dimensionality.
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// OllamaHost is the Ollama API endpoint.
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`

	// CacheSize is the number of embeddings kept in the LRU cache.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// SearchConfig configures query behavior.
type SearchConfig struct {
	// MaxResults is the default k for semantic search.
	MaxResults int `yaml:"max_results" json:"max_results"`

	// SnippetRadius is the context window width (runes) around keyword matches.
	SnippetRadius int `yaml:"snippet_radius" json:"snippet_radius"`

	// MaxSnippets caps snippets per document in keyword results.
	MaxSnippets int `yaml:"max_snippets" json:"max_snippets"`

	// VectorBackend selects the vector index: "flat" (exact baseline) or
	// "hnsw" (approximate, faster on large corpora).
	VectorBackend string `yaml:"vector_backend" json:"vector_backend"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// Default returns the default configuration.
func Default() *Config {
	workers := runtime.NumCPU()
	if workers > 8 {
		workers = 8
	}

	return &Config{
		Version: CurrentVersion,
		Paths: PathsConfig{
			NotesDir: ".",
		},
		Watch: WatchConfig{
			DebounceWindow:  300 * time.Millisecond,
			EventBufferSize: 1024,
		},
		Index: IndexConfig{
			Workers:       workers,
			MaxFileSize:   10 * 1024 * 1024,
			SweepInterval: 30 * time.Second,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "static",
			Dimensions: 256,
			OllamaHost: "http://localhost:11434",
			CacheSize:  1000,
		},
		Search: SearchConfig{
			MaxResults:    5,
			SnippetRadius: 60,
			MaxSnippets:   3,
			VectorBackend: "flat",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// ConfigFileName is the per-corpus config file name.
const ConfigFileName = ".notesage.yaml"

// Load reads configuration from the given file, applies defaults for zero
// values, environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.applyDerivedDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads config from the notes directory if present, otherwise
// returns defaults (with env overrides applied).
func LoadOrDefault(notesDir string) (*Config, error) {
	path := filepath.Join(notesDir, ConfigFileName)
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		if err != nil {
			return nil, err
		}
		if cfg.Paths.NotesDir == "." || cfg.Paths.NotesDir == "" {
			cfg.Paths.NotesDir = notesDir
		}
		cfg.applyDerivedDefaults()
		return cfg, nil
	}

	cfg := Default()
	cfg.Paths.NotesDir = notesDir
	cfg.applyEnvOverrides()
	cfg.applyDerivedDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyDerivedDefaults fills values that depend on other settings.
func (c *Config) applyDerivedDefaults() {
	if c.Paths.DataDir == "" && c.Paths.NotesDir != "" {
		c.Paths.DataDir = filepath.Join(c.Paths.NotesDir, ".notesage")
	}
}

// applyEnvOverrides applies NOTESAGE_* environment variables.
// Env vars have the highest priority.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("NOTESAGE_NOTES_DIR"); v != "" {
		c.Paths.NotesDir = v
	}
	if v := os.Getenv("NOTESAGE_DATA_DIR"); v != "" {
		c.Paths.DataDir = v
	}
	if v := os.Getenv("NOTESAGE_EMBED_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("NOTESAGE_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("NOTESAGE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("NOTESAGE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.Workers = n
		}
	}
	if v := os.Getenv("NOTESAGE_DEBOUNCE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Watch.DebounceWindow = d
		}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Paths.NotesDir == "" {
		return fmt.Errorf("config: notes_dir is required")
	}
	if c.Index.Workers < 1 {
		return fmt.Errorf("config: index.workers must be >= 1, got %d", c.Index.Workers)
	}
	if c.Watch.DebounceWindow < 0 {
		return fmt.Errorf("config: watch.debounce_window must be >= 0")
	}
	if c.Watch.EventBufferSize < 1 {
		return fmt.Errorf("config: watch.event_buffer_size must be >= 1")
	}
	switch c.Embeddings.Provider {
	case "static", "ollama":
	default:
		return fmt.Errorf("config: unknown embeddings.provider %q", c.Embeddings.Provider)
	}
	switch c.Search.VectorBackend {
	case "flat", "hnsw":
	default:
		return fmt.Errorf("config: unknown search.vector_backend %q", c.Search.VectorBackend)
	}
	if c.Search.MaxResults < 1 {
		return fmt.Errorf("config: search.max_results must be >= 1")
	}
	return nil
}
