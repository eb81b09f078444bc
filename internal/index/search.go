package index

import (
	"context"
	"fmt"
	"strings"

	"github.com/notesage/notesage/internal/embed"
	sageerr "github.com/notesage/notesage/internal/errors"
	"github.com/notesage/notesage/internal/note"
)

// SemanticResult is one semantic search hit.
type SemanticResult struct {
	ID         string
	Title      string
	Path       string
	Similarity float32
	Preview    string
}

// KeywordResult is one keyword search hit.
type KeywordResult struct {
	ID       string
	Title    string
	Path     string
	Snippets []string
}

// previewRunes bounds the preview attached to semantic results.
const previewRunes = 160

// SemanticSearch embeds the query and returns up to k documents ordered by
// descending cosine similarity, ties broken by ascending id. Documents
// currently indexing or errored keep their last published vector; removed
// documents never appear.
func (c *Coordinator) SemanticSearch(ctx context.Context, query string, k int) ([]SemanticResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, sageerr.New(sageerr.ErrCodeInvalidQuery, "empty query", nil)
	}
	if k < 1 {
		return nil, sageerr.New(sageerr.ErrCodeInvalidQuery, fmt.Sprintf("k must be >= 1, got %d", k), nil)
	}

	vector, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, sageerr.EmbeddingError("embed query", err)
	}
	if embed.IsZeroVector(vector) {
		return []SemanticResult{}, nil
	}

	hits, err := c.vectors.Search(ctx, vector, k)
	if err != nil {
		return nil, sageerr.Wrap(sageerr.ErrCodeSearchFailed, err)
	}

	results := make([]SemanticResult, 0, len(hits))
	for _, hit := range hits {
		if !c.visible(hit.ID) {
			continue
		}
		res := SemanticResult{ID: hit.ID, Similarity: hit.Similarity}
		if doc, err := c.docs.Get(hit.ID); err == nil {
			res.Title = doc.Metadata.Title
			res.Path = doc.Path
			res.Preview = preview(doc.RawText)
		}
		results = append(results, res)
	}
	return results, nil
}

// KeywordSearch returns every document containing the substring, each with
// bounded context snippets, ordered by ascending id. The text pipeline is
// independent of embeddings, so documents whose embedding failed still
// appear here.
func (c *Coordinator) KeywordSearch(ctx context.Context, substring string, caseSensitive bool) ([]KeywordResult, error) {
	if substring == "" {
		return nil, sageerr.New(sageerr.ErrCodeInvalidQuery, "empty query", nil)
	}

	matches, err := c.keywords.Search(ctx, substring, caseSensitive)
	if err != nil {
		return nil, sageerr.Wrap(sageerr.ErrCodeSearchFailed, err)
	}

	results := make([]KeywordResult, 0, len(matches))
	for _, m := range matches {
		if !c.visible(m.ID) {
			continue
		}
		res := KeywordResult{ID: m.ID, Snippets: m.Snippets}
		if doc, err := c.docs.Get(m.ID); err == nil {
			res.Title = doc.Metadata.Title
			res.Path = doc.Path
		}
		results = append(results, res)
	}
	return results, nil
}

// FindSimilar returns up to k documents nearest to the stored vector for
// id, never including id itself.
func (c *Coordinator) FindSimilar(ctx context.Context, id string, k int) ([]SemanticResult, error) {
	if k < 1 {
		return nil, sageerr.New(sageerr.ErrCodeInvalidQuery, fmt.Sprintf("k must be >= 1, got %d", k), nil)
	}

	vector, ok := c.vectors.Get(id)
	if !ok {
		return nil, sageerr.NotFound(id)
	}

	// k+1 because the document is its own nearest neighbor.
	hits, err := c.vectors.Search(ctx, vector, k+1)
	if err != nil {
		return nil, sageerr.Wrap(sageerr.ErrCodeSearchFailed, err)
	}

	results := make([]SemanticResult, 0, k)
	for _, hit := range hits {
		if hit.ID == id || !c.visible(hit.ID) {
			continue
		}
		if len(results) == k {
			break
		}
		res := SemanticResult{ID: hit.ID, Similarity: hit.Similarity}
		if doc, err := c.docs.Get(hit.ID); err == nil {
			res.Title = doc.Metadata.Title
			res.Path = doc.Path
			res.Preview = preview(doc.RawText)
		}
		results = append(results, res)
	}
	return results, nil
}

// GetDocument returns the parsed document for id.
func (c *Coordinator) GetDocument(id string) (*note.Document, error) {
	return c.docs.Get(id)
}

// ListDocuments returns documents, optionally filtered by tag, in
// insertion order.
func (c *Coordinator) ListDocuments(tag string) []*note.Document {
	return c.docs.List(tag, note.OrderInsertion)
}

// RecentDocuments returns the n most recently modified documents.
func (c *Coordinator) RecentDocuments(n int) []*note.Document {
	return c.docs.Recent(n)
}

// preview returns the first line-ish chunk of body, bounded in runes.
func preview(body string) string {
	body = strings.TrimSpace(body)
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[:i]
	}
	runes := []rune(body)
	if len(runes) > previewRunes {
		return string(runes[:previewRunes]) + "..."
	}
	return body
}
