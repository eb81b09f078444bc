// Package note provides the document model and the Document Store.
// A Document is a parsed markdown note: frontmatter metadata, wiki-style
// links, and the note body. The store owns all Documents and is the only
// component that parses note files.
package note

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"
)

// Metadata is the fixed frontmatter schema. Unrecognized keys are kept in
// Extra rather than dropped, so round-tripping notes loses nothing.
type Metadata struct {
	Title    string
	Tags     []string
	Created  time.Time
	Modified time.Time
	Extra    map[string]any
}

// HasTag reports whether the metadata contains the given tag.
func (m Metadata) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Document represents a parsed markdown note.
type Document struct {
	// ID is derived from the note's file name (path stem). It is stable
	// across content changes and immutable once assigned.
	ID string

	// Path is the absolute path to the note file.
	Path string

	// RawText is the note body with frontmatter stripped.
	RawText string

	// Metadata holds frontmatter fields.
	Metadata Metadata

	// Links are wiki-style [[target]] references found in the body.
	Links []string

	// ContentHash is the SHA-256 of the raw file bytes.
	ContentHash string

	// ParseErr records a non-fatal frontmatter parse failure. A document
	// with a ParseErr is indexed as plain text, never rejected.
	ParseErr error
}

// IDForPath derives the stable document ID from a file path.
// The ID is the file name without its extension, matching how notes
// reference each other in [[wiki links]].
func IDForPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// HashContent returns the hex-encoded SHA-256 of the given bytes.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
