package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestKeywordIndex(t *testing.T) *KeywordIndex {
	t.Helper()
	idx, err := NewKeywordIndex(filepath.Join(t.TempDir(), "keywords.db"), DefaultKeywordConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

// TS01: Substring search, case-insensitive by default
func TestKeywordIndex_Search(t *testing.T) {
	// Given: three entries, two containing "sqlite"
	idx := newTestKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "b-note", "Notes on SQLite pragmas and WAL mode.", "h1"))
	require.NoError(t, idx.Upsert(ctx, "a-note", "sqlite is a single-file database.", "h2"))
	require.NoError(t, idx.Upsert(ctx, "c-note", "Completely unrelated text.", "h3"))

	// When: searching case-insensitively
	matches, err := idx.Search(ctx, "sqlite", false)
	require.NoError(t, err)

	// Then: both matches, ordered by ascending id
	require.Len(t, matches, 2)
	assert.Equal(t, "a-note", matches[0].ID)
	assert.Equal(t, "b-note", matches[1].ID)
	require.NotEmpty(t, matches[0].Snippets)
	assert.Contains(t, strings.ToLower(matches[0].Snippets[0]), "sqlite")
}

// TS02: Case-sensitive search
func TestKeywordIndex_CaseSensitive(t *testing.T) {
	idx := newTestKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "upper", "SQLite rocks", "h1"))
	require.NoError(t, idx.Upsert(ctx, "lower", "sqlite rocks", "h2"))

	matches, err := idx.Search(ctx, "SQLite", true)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "upper", matches[0].ID)
}

// TS03: Snippets are bounded context windows with ellipses
func TestKeywordIndex_Snippets(t *testing.T) {
	// Given: a long body with the needle in the middle
	idx, err := NewKeywordIndex(filepath.Join(t.TempDir(), "keywords.db"),
		KeywordConfig{SnippetRadius: 10, MaxSnippets: 2})
	require.NoError(t, err)
	defer func() { _ = idx.Close() }()
	ctx := context.Background()

	body := strings.Repeat("x", 50) + " needle " + strings.Repeat("y", 50) +
		" needle " + strings.Repeat("z", 50) + " needle end"
	require.NoError(t, idx.Upsert(ctx, "doc", body, "h"))

	// When: searching
	matches, err := idx.Search(ctx, "needle", false)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	// Then: at most MaxSnippets, each with ellipses and bounded width
	snippets := matches[0].Snippets
	require.Len(t, snippets, 2)
	for _, s := range snippets {
		assert.Contains(t, s, "needle")
		assert.True(t, strings.HasPrefix(s, "..."))
		assert.LessOrEqual(t, len(s), len("needle")+2*10+2*3)
	}
}

// TS04: Upsert replaces; Remove deletes
func TestKeywordIndex_UpsertRemove(t *testing.T) {
	idx := newTestKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "doc", "first version", "h1"))
	require.NoError(t, idx.Upsert(ctx, "doc", "second version", "h2"))

	matches, err := idx.Search(ctx, "first", false)
	require.NoError(t, err)
	assert.Empty(t, matches)

	matches, err = idx.Search(ctx, "second", false)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	require.NoError(t, idx.Remove(ctx, "doc"))
	require.NoError(t, idx.Remove(ctx, "doc"))

	matches, err = idx.Search(ctx, "second", false)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

// TS05: Empty query matches nothing
func TestKeywordIndex_EmptyQuery(t *testing.T) {
	idx := newTestKeywordIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, "doc", "anything", "h"))

	matches, err := idx.Search(ctx, "", false)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

// TS06: Entries persist across reopen
func TestKeywordIndex_Persistence(t *testing.T) {
	// Given: an index with one entry, closed
	path := filepath.Join(t.TempDir(), "keywords.db")
	ctx := context.Background()

	idx1, err := NewKeywordIndex(path, DefaultKeywordConfig())
	require.NoError(t, err)
	require.NoError(t, idx1.Upsert(ctx, "doc", "durable text", "h1"))
	require.NoError(t, idx1.Close())

	// When: reopening the same file
	idx2, err := NewKeywordIndex(path, DefaultKeywordConfig())
	require.NoError(t, err)
	defer func() { _ = idx2.Close() }()

	// Then: the entry and its hash survive
	matches, err := idx2.Search(ctx, "durable", false)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	hashes, err := idx2.Hashes(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"doc": "h1"}, hashes)

	n, err := idx2.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TS07: Case-insensitive snippets keep the original casing even when
// folding changes byte widths
func TestKeywordIndex_SnippetOriginalCase(t *testing.T) {
	// Given: a body whose lowercase form is shorter than the original
	// (U+212A KELVIN SIGN folds to the one-byte "k")
	idx := newTestKeywordIndex(t)
	ctx := context.Background()

	body := "SENSOR READING: 300K at the thermocouple"
	require.NoError(t, idx.Upsert(ctx, "lab", body, "h1"))

	// When: searching case-insensitively for the folded form
	matches, err := idx.Search(ctx, "300k", false)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.NotEmpty(t, matches[0].Snippets)

	// Then: the snippet is sliced from the original text, casing intact
	snippet := matches[0].Snippets[0]
	assert.Contains(t, snippet, "300K")
	assert.Contains(t, snippet, "READING")
	assert.NotContains(t, snippet, "reading")
}

// TS08: Closed index rejects operations
func TestKeywordIndex_Closed(t *testing.T) {
	idx, err := NewKeywordIndex(filepath.Join(t.TempDir(), "keywords.db"), DefaultKeywordConfig())
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	assert.Error(t, idx.Upsert(context.Background(), "doc", "x", "h"))
	_, err = idx.Search(context.Background(), "x", false)
	assert.Error(t, err)
}
