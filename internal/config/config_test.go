package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TS01: Defaults are complete and valid
func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, CurrentVersion, cfg.Version)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 256, cfg.Embeddings.Dimensions)
	assert.Equal(t, "flat", cfg.Search.VectorBackend)
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.DebounceWindow)
	assert.GreaterOrEqual(t, cfg.Index.Workers, 1)
	assert.LessOrEqual(t, cfg.Index.Workers, 8)
}

// TS02: A partial config file overrides only what it names
func TestLoad_PartialFile(t *testing.T) {
	// Given: a config file setting two fields
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(`
index:
  workers: 2
search:
  vector_backend: hnsw
`), 0o644))

	// When: loading
	cfg, err := Load(path)
	require.NoError(t, err)

	// Then: named fields changed, the rest stays default
	assert.Equal(t, 2, cfg.Index.Workers)
	assert.Equal(t, "hnsw", cfg.Search.VectorBackend)
	assert.Equal(t, "static", cfg.Embeddings.Provider)
	assert.Equal(t, 5, cfg.Search.MaxResults)
}

// TS03: Malformed YAML is rejected
func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("index: [not a map"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

// TS04: Environment variables take priority over the file
func TestLoad_EnvOverrides(t *testing.T) {
	// Given: a file naming one provider and an env var naming another
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("embeddings:\n  provider: static\n"), 0o644))

	t.Setenv("NOTESAGE_EMBED_PROVIDER", "ollama")
	t.Setenv("NOTESAGE_WORKERS", "3")
	t.Setenv("NOTESAGE_DEBOUNCE", "150ms")

	// When: loading
	cfg, err := Load(path)
	require.NoError(t, err)

	// Then: the env values win
	assert.Equal(t, "ollama", cfg.Embeddings.Provider)
	assert.Equal(t, 3, cfg.Index.Workers)
	assert.Equal(t, 150*time.Millisecond, cfg.Watch.DebounceWindow)
}

// TS05: Invalid env values are ignored, not fatal
func TestLoad_InvalidEnvIgnored(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("version: 1\n"), 0o644))

	t.Setenv("NOTESAGE_WORKERS", "banana")
	t.Setenv("NOTESAGE_DEBOUNCE", "-5s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default().Index.Workers, cfg.Index.Workers)
	assert.Equal(t, 300*time.Millisecond, cfg.Watch.DebounceWindow)
}

// TS06: LoadOrDefault without a file returns defaults rooted at the dir
func TestLoadOrDefault_NoFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadOrDefault(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.Paths.NotesDir)
	assert.Equal(t, filepath.Join(dir, ".notesage"), cfg.Paths.DataDir)
}

// TS07: LoadOrDefault picks up the per-corpus config file
func TestLoadOrDefault_WithFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName),
		[]byte("search:\n  max_results: 10\n"), 0o644))

	cfg, err := LoadOrDefault(dir)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Search.MaxResults)
	assert.Equal(t, dir, cfg.Paths.NotesDir)
	assert.Equal(t, filepath.Join(dir, ".notesage"), cfg.Paths.DataDir)
}

// TS08: Validation rejects bad values
func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty notes dir", func(c *Config) { c.Paths.NotesDir = "" }},
		{"zero workers", func(c *Config) { c.Index.Workers = 0 }},
		{"negative debounce", func(c *Config) { c.Watch.DebounceWindow = -time.Second }},
		{"zero event buffer", func(c *Config) { c.Watch.EventBufferSize = 0 }},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "psychic" }},
		{"unknown vector backend", func(c *Config) { c.Search.VectorBackend = "quantum" }},
		{"zero max results", func(c *Config) { c.Search.MaxResults = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// TS09: Save then Load round-trips
func TestSaveLoad(t *testing.T) {
	// Given: a customized config saved to disk
	path := filepath.Join(t.TempDir(), "sub", ConfigFileName)
	cfg := Default()
	cfg.Paths.NotesDir = "/notes"
	cfg.Search.MaxResults = 7
	require.NoError(t, cfg.Save(path))

	// When: loading it back
	loaded, err := Load(path)
	require.NoError(t, err)

	// Then: the customized values survive
	assert.Equal(t, "/notes", loaded.Paths.NotesDir)
	assert.Equal(t, 7, loaded.Search.MaxResults)
}
