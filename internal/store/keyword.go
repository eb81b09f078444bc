package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// KeywordIndex provides exact/substring search over note text, backed by
// SQLite. The table is the persistence layer; matching is a linear scan
// (instr over all rows), which is the documented baseline.
type KeywordIndex struct {
	db     *sql.DB
	path   string
	config KeywordConfig

	mu     sync.RWMutex
	closed bool
}

// NewKeywordIndex opens (or creates) the keyword index at path.
func NewKeywordIndex(path string, config KeywordConfig) (*KeywordIndex, error) {
	if config.SnippetRadius <= 0 {
		config.SnippetRadius = DefaultKeywordConfig().SnippetRadius
	}
	if config.MaxSnippets <= 0 {
		config.MaxSnippets = DefaultKeywordConfig().MaxSnippets
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	// WAL mode for concurrent access; busy_timeout handles lock contention.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite; DSN params
	// may be ignored.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	idx := &KeywordIndex{
		db:     db,
		path:   path,
		config: config,
	}

	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return idx, nil
}

// initSchema creates the entries table.
func (k *KeywordIndex) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- One row per note. body_lower is precomputed so case-insensitive
	-- search doesn't lowercase every row on every query.
	CREATE TABLE IF NOT EXISTS entries (
		id           TEXT PRIMARY KEY,
		body         TEXT NOT NULL,
		body_lower   TEXT NOT NULL,
		content_hash TEXT NOT NULL
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := k.db.Exec(schema)
	return err
}

// Upsert inserts or replaces the text for id.
func (k *KeywordIndex) Upsert(ctx context.Context, id, text, contentHash string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return fmt.Errorf("index is closed")
	}

	_, err := k.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO entries (id, body, body_lower, content_hash) VALUES (?, ?, ?, ?)`,
		id, text, strings.ToLower(text), contentHash)
	if err != nil {
		return fmt.Errorf("failed to upsert entry %s: %w", id, err)
	}
	return nil
}

// Remove deletes the entry for id. Removing an absent id is a no-op.
func (k *KeywordIndex) Remove(ctx context.Context, id string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return fmt.Errorf("index is closed")
	}

	if _, err := k.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to remove entry %s: %w", id, err)
	}
	return nil
}

// Search returns every document containing the substring, ordered by
// ascending id, each with bounded context snippets around its matches.
func (k *KeywordIndex) Search(ctx context.Context, substring string, caseSensitive bool) ([]*KeywordMatch, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.closed {
		return nil, fmt.Errorf("index is closed")
	}
	if substring == "" {
		return []*KeywordMatch{}, nil
	}

	var rows *sql.Rows
	var err error
	if caseSensitive {
		rows, err = k.db.QueryContext(ctx,
			`SELECT id, body FROM entries WHERE instr(body, ?) > 0 ORDER BY id ASC`, substring)
	} else {
		rows, err = k.db.QueryContext(ctx,
			`SELECT id, body FROM entries WHERE instr(body_lower, ?) > 0 ORDER BY id ASC`,
			strings.ToLower(substring))
	}
	if err != nil {
		return nil, fmt.Errorf("keyword query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []*KeywordMatch
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan keyword row: %w", err)
		}
		matches = append(matches, &KeywordMatch{
			ID:       id,
			Snippets: extractSnippets(body, substring, caseSensitive, k.config.SnippetRadius, k.config.MaxSnippets),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("keyword rows: %w", err)
	}

	if matches == nil {
		matches = []*KeywordMatch{}
	}
	return matches, nil
}

// Hashes returns id -> content hash for every entry (restart recovery).
func (k *KeywordIndex) Hashes(ctx context.Context) (map[string]string, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.closed {
		return nil, fmt.Errorf("index is closed")
	}

	rows, err := k.db.QueryContext(ctx, `SELECT id, content_hash FROM entries`)
	if err != nil {
		return nil, fmt.Errorf("hashes query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]string)
	for rows.Next() {
		var id, hash string
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, fmt.Errorf("scan hash row: %w", err)
		}
		out[id] = hash
	}
	return out, rows.Err()
}

// Count returns the number of entries.
func (k *KeywordIndex) Count(ctx context.Context) (int, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.closed {
		return 0, fmt.Errorf("index is closed")
	}

	var n int
	err := k.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&n)
	return n, err
}

// Close closes the database.
func (k *KeywordIndex) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil
	}
	k.closed = true
	return k.db.Close()
}

// extractSnippets returns up to maxSnippets context windows of radius runes
// on each side of each match. Matches are scanned left to right without
// overlap, so total output per document stays bounded. Snippets are always
// sliced from the original body, even when case folding changes byte
// widths, so matches keep their original casing.
func extractSnippets(body, query string, caseSensitive bool, radius, maxSnippets int) []string {
	hay := body
	needle := query
	var toOrig []int
	if !caseSensitive {
		hay, toOrig = foldWithOffsets(body)
		needle = strings.ToLower(query)
	}

	var snippets []string
	offset := 0
	for len(snippets) < maxSnippets {
		i := strings.Index(hay[offset:], needle)
		if i < 0 {
			break
		}
		matchStart := offset + i
		matchEnd := matchStart + len(needle)

		start := matchStart
		for r := 0; r < radius && start > 0; r++ {
			_, size := utf8.DecodeLastRuneInString(hay[:start])
			start -= size
		}
		end := matchEnd
		for r := 0; r < radius && end < len(hay); r++ {
			_, size := utf8.DecodeRuneInString(hay[end:])
			end += size
		}

		lo, hi := start, end
		if toOrig != nil {
			lo, hi = toOrig[start], toOrig[end]
		}
		snippet := strings.TrimSpace(body[lo:hi])
		if start > 0 {
			snippet = "..." + snippet
		}
		if end < len(hay) {
			snippet = snippet + "..."
		}
		snippets = append(snippets, snippet)

		offset = matchEnd
	}

	return snippets
}

// foldWithOffsets lowercases s rune by rune and maps every byte offset of
// the folded string (plus one past the end) back to the offset of the
// originating rune in s. The fold matches strings.ToLower, so indexes found
// in the folded text land on rune boundaries and map back cleanly even when
// folding changes a rune's byte width.
func foldWithOffsets(s string) (string, []int) {
	var b strings.Builder
	b.Grow(len(s))
	offsets := make([]int, 0, len(s)+1)
	for i, r := range s {
		lr := unicode.ToLower(r)
		b.WriteRune(lr)
		for j := 0; j < utf8.RuneLen(lr); j++ {
			offsets = append(offsets, i)
		}
	}
	offsets = append(offsets, len(s))
	return b.String(), offsets
}
