package note

import (
	"fmt"
	"os"
	"sort"
	"sync"

	sageerr "github.com/notesage/notesage/internal/errors"
)

// Store is the Document Store. It owns all Documents; no other component
// parses note files or mutates documents. All mutation flows through the
// index coordinator, which holds the store by handle.
type Store struct {
	mu    sync.RWMutex
	docs  map[string]*Document
	order []string // insertion order of IDs
}

// NewStore creates an empty document store.
func NewStore() *Store {
	return &Store{
		docs: make(map[string]*Document),
	}
}

// Upsert parses the file at path and stores the resulting Document,
// replacing any previous document with the same ID. The returned document
// may carry a recorded ParseErr; that is not a failure.
func (s *Store) Upsert(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, sageerr.Wrap(sageerr.ErrCodeFileRead, fmt.Errorf("stat %s: %w", path, err))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, sageerr.Wrap(sageerr.ErrCodeFileRead, fmt.Errorf("read %s: %w", path, err))
	}

	doc := Parse(path, content, info.ModTime())

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.ID]; !exists {
		s.order = append(s.order, doc.ID)
	}
	s.docs[doc.ID] = doc

	return doc, nil
}

// Put stores an already-parsed document. Used by tests; production code
// goes through Upsert so one path owns file reading and parsing.
func (s *Store) Put(doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.docs[doc.ID]; !exists {
		s.order = append(s.order, doc.ID)
	}
	s.docs[doc.ID] = doc
}

// Get returns the document with the given ID.
func (s *Store) Get(id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[id]
	if !ok {
		return nil, sageerr.NotFound(id)
	}
	return doc, nil
}

// Remove deletes the document with the given ID.
// Returns NotFound if the document is absent.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[id]; !ok {
		return sageerr.NotFound(id)
	}
	delete(s.docs, id)

	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// ListOrder selects the ordering for List.
type ListOrder int

const (
	// OrderInsertion lists documents in the order they were first stored.
	OrderInsertion ListOrder = iota
	// OrderModified lists documents by modification time, newest first.
	OrderModified
)

// List returns documents, optionally filtered by tag.
// An empty tag matches every document.
func (s *Store) List(tag string, order ListOrder) []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Document, 0, len(s.order))
	for _, id := range s.order {
		doc := s.docs[id]
		if tag != "" && !doc.Metadata.HasTag(tag) {
			continue
		}
		out = append(out, doc)
	}

	if order == OrderModified {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Metadata.Modified.After(out[j].Metadata.Modified)
		})
	}

	return out
}

// Recent returns the n most recently modified documents.
func (s *Store) Recent(n int) []*Document {
	docs := s.List("", OrderModified)
	if n < len(docs) {
		docs = docs[:n]
	}
	return docs
}

// Contains reports whether a document with the given ID exists.
func (s *Store) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.docs[id]
	return ok
}

// Count returns the number of stored documents.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// IDs returns all document IDs in insertion order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
