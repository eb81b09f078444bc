package index

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	sageerr "github.com/notesage/notesage/internal/errors"
	"github.com/notesage/notesage/internal/note"
)

// ReindexResult reports the outcome of a full reindex. Per-document
// failures never abort the batch; they are aggregated here instead.
type ReindexResult struct {
	// Indexed is the number of files processed, including unchanged ones.
	Indexed int

	// Removed is the number of documents whose files vanished.
	Removed int

	// Failed maps document id to its indexing error.
	Failed map[string]error

	// Duration is the wall time of the reindex.
	Duration time.Duration
}

// TriggerFullReindex walks every note file in the corpus through indexing
// and removes documents whose files are gone. It holds the index-wide
// exclusive lock for its duration; change events arriving meanwhile are
// queued and replayed afterward, never dropped or interleaved.
//
// Cancellation stops the walk: documents not yet processed retain their
// prior state unchanged.
func (c *Coordinator) TriggerFullReindex(ctx context.Context) (*ReindexResult, error) {
	c.queueMu.Lock()
	if c.reindexing {
		c.queueMu.Unlock()
		return nil, sageerr.New(sageerr.ErrCodeInvalidInput, "full reindex already in progress", nil)
	}
	c.reindexing = true
	c.queueMu.Unlock()

	defer func() {
		c.queueMu.Lock()
		c.reindexing = false
		queued := c.queued
		c.queued = nil
		c.queueMu.Unlock()

		for _, ev := range queued {
			c.dispatch(ev)
		}
	}()

	c.reindexMu.Lock()
	defer c.reindexMu.Unlock()

	start := time.Now()
	result := &ReindexResult{Failed: make(map[string]error)}

	files, err := c.listNoteFiles()
	if err != nil {
		return nil, fmt.Errorf("walk notes dir: %w", err)
	}

	c.log.Info("full reindex started",
		slog.Int("files", len(files)),
		slog.Int("workers", c.opts.Workers))

	// Pin a generation per file up front; anything queued during the
	// reindex bumps past it and wins on replay.
	gens := make(map[string]uint64, len(files))
	onDisk := make(map[string]bool, len(files))
	c.mu.Lock()
	for _, path := range files {
		id := note.IDForPath(path)
		ds := c.ensureLocked(id)
		ds.path = path
		gens[id] = ds.gen
		onDisk[id] = true
	}
	c.mu.Unlock()

	var resMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)

	for _, path := range files {
		id := note.IDForPath(path)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := c.indexFile(gctx, id, path, gens[id]); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				resMu.Lock()
				result.Failed[id] = err
				resMu.Unlock()
				return nil
			}
			resMu.Lock()
			result.Indexed++
			resMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		result.Duration = time.Since(start)
		c.log.Warn("full reindex cancelled",
			slog.Int("indexed", result.Indexed),
			slog.Duration("duration", result.Duration))
		return result, err
	}

	// Settle deletions: tracked documents whose files are gone.
	c.mu.Lock()
	var gone []string
	for id, ds := range c.states {
		if !onDisk[id] && ds.state != StateAbsent {
			ds.gen++
			gone = append(gone, id)
		}
	}
	goneGens := make(map[string]uint64, len(gone))
	for _, id := range gone {
		goneGens[id] = c.states[id].gen
	}
	c.mu.Unlock()

	for _, id := range gone {
		c.removeDoc(ctx, id, goneGens[id])
		result.Removed++
	}

	if err := c.Save(); err != nil {
		c.log.Warn("vector index save failed", slog.String("error", err.Error()))
	}

	result.Duration = time.Since(start)
	c.log.Info("full reindex finished",
		slog.Int("indexed", result.Indexed),
		slog.Int("removed", result.Removed),
		slog.Int("failed", len(result.Failed)),
		slog.Duration("duration", result.Duration))
	return result, nil
}

// reconcile verifies persisted index entries against the files on disk at
// startup. Matching entries come up ready; mismatches are marked stale for
// lazy reindexing; entries whose file vanished are removed. No embedding
// happens here, so startup never blocks on the provider.
func (c *Coordinator) reconcile(ctx context.Context) error {
	vectorHashes := c.vectors.Hashes()
	keywordHashes, err := c.keywords.Hashes(ctx)
	if err != nil {
		return fmt.Errorf("read keyword hashes: %w", err)
	}

	files, err := c.listNoteFiles()
	if err != nil {
		return fmt.Errorf("walk notes dir: %w", err)
	}

	var ready, stale int
	onDisk := make(map[string]bool, len(files))

	for _, path := range files {
		id := note.IDForPath(path)
		onDisk[id] = true

		doc, err := c.docs.Upsert(path)
		if err != nil {
			c.log.Warn("unreadable note skipped during startup",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}
		hash := doc.ContentHash

		c.mu.Lock()
		ds := c.ensureLocked(id)
		ds.path = path
		if vectorHashes[id] == hash && keywordHashes[id] == hash {
			ds.state = StateReady
			ds.hash = hash
			ready++
		} else {
			ds.state = StateStale
			stale++
		}
		c.mu.Unlock()
	}

	// Persisted entries with no file behind them.
	var removed int
	for id := range vectorHashes {
		if !onDisk[id] {
			_ = c.vectors.Remove(ctx, id)
			removed++
		}
	}
	for id := range keywordHashes {
		if !onDisk[id] {
			_ = c.keywords.Remove(ctx, id)
			if _, also := vectorHashes[id]; !also {
				removed++
			}
		}
	}

	c.log.Info("index reconciled",
		slog.Int("ready", ready),
		slog.Int("stale", stale),
		slog.Int("removed", removed))
	return nil
}

// listNoteFiles returns every note file under the corpus root, skipping
// hidden directories (the data dir among them).
func (c *Coordinator) listNoteFiles() ([]string, error) {
	var files []string
	err := filepath.WalkDir(c.opts.NotesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != c.opts.NotesDir {
				return filepath.SkipDir
			}
			return nil
		}
		if c.isNoteFile(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
