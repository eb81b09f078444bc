// Package index contains the index coordinator: the single component that
// mutates the document store, vector index, and keyword index. It owns the
// per-document state machine, serializes indexing per document id, bounds
// concurrent indexing with a worker pool, and serves hybrid queries by
// composing the stores it coordinates.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/notesage/notesage/internal/embed"
	sageerr "github.com/notesage/notesage/internal/errors"
	"github.com/notesage/notesage/internal/note"
	"github.com/notesage/notesage/internal/store"
	"github.com/notesage/notesage/internal/watcher"
)

// Options configures the coordinator.
type Options struct {
	// NotesDir is the root of the note corpus.
	NotesDir string

	// DataDir is where indexes persist. Locked for the coordinator's
	// lifetime so two processes never write the same index.
	DataDir string

	// Workers bounds the number of documents indexing concurrently.
	Workers int

	// MaxFileSize is the largest note file to index, in bytes.
	MaxFileSize int64

	// SweepInterval is how often stale and errored documents are retried.
	SweepInterval time.Duration

	// Extensions are the note file extensions. Default: [".md"].
	Extensions []string

	// Logger receives structured coordinator logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// VectorIndexFile is the vector index file name inside the data dir.
const VectorIndexFile = "vectors.idx"

// KeywordIndexFile is the keyword database file name inside the data dir.
const KeywordIndexFile = "keywords.db"

// lockFile is the data-dir lock file name.
const lockFile = "notesage.lock"

// Coordinator owns all mutation of the document store, vector index, and
// keyword index. External callers only read through its query methods.
type Coordinator struct {
	opts Options
	log  *slog.Logger

	docs     *note.Store
	embedder embed.Embedder
	vectors  store.VectorIndex
	keywords *store.KeywordIndex

	fileLock *flock.Flock

	// mu guards states.
	mu     sync.Mutex
	states map[string]*docState

	// reindexMu serializes a full reindex (writer) against incremental
	// indexing jobs (readers).
	reindexMu sync.RWMutex

	// queueMu guards the replay queue filled while a full reindex runs.
	queueMu    sync.Mutex
	reindexing bool
	queued     []watcher.Event

	// sem is the worker pool for incremental indexing jobs.
	sem chan struct{}

	// jobCtx cancels in-flight jobs on Close.
	jobCtx    context.Context
	jobCancel context.CancelFunc

	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    bool
}

// Open acquires the data-dir lock, loads persisted index state, and
// reconciles it against the files currently on disk. Documents whose
// persisted hash no longer matches the file are marked stale for lazy
// reindexing; startup never blocks on embedding.
func Open(opts Options, docs *note.Store, embedder embed.Embedder, vectors store.VectorIndex, keywords *store.KeywordIndex) (*Coordinator, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 30 * time.Second
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".md"}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	fileLock := flock.New(filepath.Join(opts.DataDir, lockFile))
	locked, err := fileLock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock data dir: %w", err)
	}
	if !locked {
		return nil, sageerr.New(sageerr.ErrCodeDataDirLock,
			fmt.Sprintf("data dir %s is locked by another process", opts.DataDir), nil)
	}

	jobCtx, jobCancel := context.WithCancel(context.Background())

	c := &Coordinator{
		opts:      opts,
		log:       opts.Logger,
		docs:      docs,
		embedder:  embedder,
		vectors:   vectors,
		keywords:  keywords,
		fileLock:  fileLock,
		states:    make(map[string]*docState),
		sem:       make(chan struct{}, opts.Workers),
		jobCtx:    jobCtx,
		jobCancel: jobCancel,
	}

	vectorPath := filepath.Join(opts.DataDir, VectorIndexFile)
	if _, statErr := os.Stat(vectorPath); statErr == nil {
		if err := vectors.Load(vectorPath); err != nil {
			// A corrupt index is recoverable: start empty, everything
			// reconciles to stale and gets rebuilt by the sweep.
			c.log.Warn("vector index load failed, rebuilding",
				slog.String("path", vectorPath),
				slog.String("error", err.Error()))
		}
	}

	if err := c.reconcile(jobCtx); err != nil {
		jobCancel()
		_ = fileLock.Unlock()
		return nil, err
	}

	return c, nil
}

// Run consumes debounced change events and runs the periodic sweep. It
// blocks until the context is cancelled or the event channel closes.
func (c *Coordinator) Run(ctx context.Context, events <-chan watcher.Event) error {
	ticker := time.NewTicker(c.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.NotifyChange(ev)
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// NotifyChange schedules indexing work for a change event. During a full
// reindex events are queued and replayed afterward rather than interleaved.
func (c *Coordinator) NotifyChange(ev watcher.Event) {
	c.queueMu.Lock()
	if c.reindexing {
		c.queued = append(c.queued, ev)
		c.queueMu.Unlock()
		return
	}
	c.queueMu.Unlock()

	c.dispatch(ev)
}

// dispatch bumps the write-generation for the event's document and schedules
// a job. The job decides create/modify/delete by looking at the file, so a
// coalesced event stream needs no kind-specific handling here; only subtree
// removals fan out to multiple documents.
func (c *Coordinator) dispatch(ev watcher.Event) {
	if ev.Kind == watcher.TreeRemoved {
		c.removeTree(ev.Path)
		return
	}

	id := note.IDForPath(ev.Path)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	ds := c.ensureLocked(id)
	ds.gen++
	ds.path = ev.Path
	c.mu.Unlock()

	c.log.Debug("change event",
		slog.String("id", id),
		slog.String("kind", ev.Kind.String()),
		slog.String("path", ev.Path))

	c.scheduleJob(id)
}

// removeTree schedules removal for every tracked document whose file lived
// under the removed directory. Each document goes through the normal
// generation-guarded job, so a racing re-create of the tree wins cleanly.
func (c *Coordinator) removeTree(dir string) {
	prefix := strings.TrimSuffix(dir, string(filepath.Separator)) + string(filepath.Separator)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	var ids []string
	for id, ds := range c.states {
		if strings.HasPrefix(ds.path, prefix) {
			ds.gen++
			ids = append(ids, id)
		}
	}
	c.mu.Unlock()

	if len(ids) == 0 {
		return
	}
	c.log.Debug("directory removed",
		slog.String("path", dir),
		slog.Int("documents", len(ids)))
	for _, id := range ids {
		c.scheduleJob(id)
	}
}

// ensureLocked returns the state entry for id, creating it if absent.
// Caller holds c.mu.
func (c *Coordinator) ensureLocked(id string) *docState {
	ds, ok := c.states[id]
	if !ok {
		ds = &docState{state: StateAbsent, updatedAt: time.Now()}
		c.states[id] = ds
	}
	return ds
}

// scheduleJob starts an indexing job for id unless one is already in
// flight, in which case the running job reschedules on completion. This is
// the single-writer-per-id invariant.
func (c *Coordinator) scheduleJob(id string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	ds, ok := c.states[id]
	if !ok {
		c.mu.Unlock()
		return
	}
	if ds.inFlight {
		ds.pending = true
		c.mu.Unlock()
		return
	}
	ds.inFlight = true
	gen := ds.gen
	path := ds.path
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		select {
		case c.sem <- struct{}{}:
		case <-c.jobCtx.Done():
			c.finishJob(id)
			return
		}
		// Incremental jobs yield to a full reindex.
		c.reindexMu.RLock()
		c.processDoc(c.jobCtx, id, path, gen)
		c.reindexMu.RUnlock()
		<-c.sem

		c.finishJob(id)
	}()
}

// finishJob clears the in-flight flag and reschedules when a newer change
// arrived while the job was running.
func (c *Coordinator) finishJob(id string) {
	c.mu.Lock()
	ds, ok := c.states[id]
	if !ok || c.closed {
		c.mu.Unlock()
		return
	}
	ds.inFlight = false
	rerun := ds.pending
	ds.pending = false
	c.mu.Unlock()

	if rerun {
		c.scheduleJob(id)
	}
}

// processDoc runs one indexing operation for id at the given generation.
// The file's current existence decides between upsert and removal.
func (c *Coordinator) processDoc(ctx context.Context, id, path string, gen uint64) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		c.removeDoc(ctx, id, gen)
		return
	}
	_ = c.indexFile(ctx, id, path, gen)
}

// indexFile reads, parses, and indexes one note file. The result is applied
// only if gen is still the newest generation for id; otherwise the work is
// discarded and the rescheduled job picks up the fresher content.
//
// Embedding runs before any index write: cancellation during the (slow)
// embedding step leaves both indexes exactly as they were.
func (c *Coordinator) indexFile(ctx context.Context, id, path string, gen uint64) error {
	info, err := os.Stat(path)
	if err != nil {
		werr := sageerr.Wrap(sageerr.ErrCodeFileRead, err)
		c.markError(id, gen, werr)
		return werr
	}
	if c.opts.MaxFileSize > 0 && info.Size() > c.opts.MaxFileSize {
		c.log.Warn("skipping oversized note",
			slog.String("id", id),
			slog.Int64("size", info.Size()))
		return nil
	}

	// The Document Store owns file reading and parsing; everything the
	// indexes need (text, hash, metadata) comes off the Document.
	doc, err := c.docs.Upsert(path)
	if err != nil {
		c.markError(id, gen, err)
		return err
	}
	if doc.ParseErr != nil {
		c.log.Warn("frontmatter parse failed, indexing as plain text",
			slog.String("id", id),
			slog.String("error", doc.ParseErr.Error()))
	}
	hash := doc.ContentHash

	c.mu.Lock()
	ds, ok := c.states[id]
	if !ok || ds.gen != gen {
		c.mu.Unlock()
		c.logSuperseded(id)
		return nil
	}
	if ds.state == StateReady && ds.hash == hash {
		// Unchanged content: no transition, no reindex work.
		c.mu.Unlock()
		return nil
	}
	ds.state = StateIndexing
	ds.updatedAt = time.Now()
	c.mu.Unlock()

	vector, embedErr := c.embedder.Embed(ctx, embeddingText(doc))
	if embedErr != nil && ctx.Err() != nil {
		// Cancelled mid-embed: nothing was written. Mark stale so the
		// next sweep picks the document up again.
		c.setState(id, gen, StateStale)
		return ctx.Err()
	}

	// The keyword entry is written even when embedding failed: the text
	// pipeline is independent of embeddings, so the document stays
	// keyword-searchable while the embedding is retried.
	if err := c.keywords.Upsert(ctx, id, doc.RawText, hash); err != nil {
		werr := sageerr.IndexWriteError(fmt.Sprintf("keyword upsert for %q", id), err)
		c.markError(id, gen, werr)
		return werr
	}
	if embedErr != nil {
		werr := sageerr.EmbeddingError(fmt.Sprintf("embed %q", id), embedErr)
		c.markError(id, gen, werr)
		return werr
	}

	c.mu.Lock()
	if ds.gen != gen {
		c.mu.Unlock()
		c.logSuperseded(id)
		return nil
	}
	c.mu.Unlock()

	if err := c.vectors.Upsert(ctx, id, vector, hash); err != nil {
		werr := sageerr.IndexWriteError(fmt.Sprintf("vector upsert for %q", id), err)
		c.markError(id, gen, werr)
		return werr
	}

	c.mu.Lock()
	if ds.gen == gen {
		ds.state = StateReady
		ds.hash = hash
		ds.lastErr = nil
		ds.updatedAt = time.Now()
	}
	c.mu.Unlock()

	c.log.Debug("document indexed", slog.String("id", id))
	return nil
}

// logSuperseded records an indexing result that lost the write-generation
// race and was discarded without touching the indexes.
func (c *Coordinator) logSuperseded(id string) {
	err := sageerr.StaleGeneration(id)
	c.log.Debug("indexing result superseded",
		slog.String("id", id),
		slog.String("code", sageerr.GetCode(err)),
		slog.String("error", err.Error()))
}

// setState applies a state transition if gen is still current.
func (c *Coordinator) setState(id string, gen uint64, state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ds, ok := c.states[id]; ok && ds.gen == gen {
		ds.state = state
		ds.updatedAt = time.Now()
	}
}

// embeddingText is the text fed to the embedder: title plus body, so notes
// whose meaning lives mostly in the title still embed sensibly.
func embeddingText(doc *note.Document) string {
	if doc.Metadata.Title == "" {
		return doc.RawText
	}
	return doc.Metadata.Title + "\n" + doc.RawText
}

// removeDoc removes id from all three stores. The state flips to absent
// first so racing queries stop returning the id before the store deletions
// land; the whole removal is one coordinator transaction.
func (c *Coordinator) removeDoc(ctx context.Context, id string, gen uint64) {
	c.mu.Lock()
	ds, ok := c.states[id]
	if !ok || ds.gen != gen {
		c.mu.Unlock()
		return
	}
	ds.state = StateAbsent
	ds.updatedAt = time.Now()
	c.mu.Unlock()

	if err := c.vectors.Remove(ctx, id); err != nil {
		c.log.Warn("vector remove failed", slog.String("id", id), slog.String("error", err.Error()))
	}
	if err := c.keywords.Remove(ctx, id); err != nil {
		c.log.Warn("keyword remove failed", slog.String("id", id), slog.String("error", err.Error()))
	}
	if err := c.docs.Remove(id); err != nil && !sageerr.IsNotFound(err) {
		c.log.Warn("document remove failed", slog.String("id", id), slog.String("error", err.Error()))
	}

	c.mu.Lock()
	if ds.gen == gen {
		delete(c.states, id)
	}
	c.mu.Unlock()

	c.log.Debug("document removed", slog.String("id", id))
}

// markError records a per-document failure. It never aborts other
// documents; the sweep retries errored documents later.
func (c *Coordinator) markError(id string, gen uint64, err error) {
	c.mu.Lock()
	ds, ok := c.states[id]
	if ok && ds.gen == gen {
		ds.state = StateError
		ds.lastErr = err
		ds.updatedAt = time.Now()
	}
	c.mu.Unlock()

	c.log.Error("indexing failed",
		slog.String("id", id),
		slog.String("code", sageerr.GetCode(err)),
		slog.String("error", err.Error()))
}

// Sweep reschedules every stale and errored document. Safe to call from
// the ticker or directly.
func (c *Coordinator) Sweep() {
	c.queueMu.Lock()
	reindexing := c.reindexing
	c.queueMu.Unlock()
	if reindexing {
		return
	}

	c.mu.Lock()
	var retry []string
	for id, ds := range c.states {
		if ds.state == StateStale || ds.state == StateError {
			retry = append(retry, id)
		}
	}
	c.mu.Unlock()

	if len(retry) == 0 {
		return
	}
	c.log.Debug("sweeping documents", slog.Int("count", len(retry)))
	for _, id := range retry {
		c.scheduleJob(id)
	}
}

// visible reports whether id may appear in query results. Documents in
// flight or errored keep their last published index entries; only removed
// (or never-tracked) documents are filtered out.
func (c *Coordinator) visible(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ds, ok := c.states[id]
	return ok && ds.state != StateAbsent
}

// Status returns the state snapshot for one document.
func (c *Coordinator) Status(id string) (DocStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ds, ok := c.states[id]
	if !ok {
		return DocStatus{}, false
	}
	return DocStatus{
		ID:        id,
		State:     ds.state,
		Path:      ds.path,
		LastErr:   ds.lastErr,
		UpdatedAt: ds.updatedAt,
	}, true
}

// Stats summarizes document states across the corpus.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var s Stats
	for _, ds := range c.states {
		s.Total++
		switch ds.state {
		case StateReady:
			s.Ready++
		case StateIndexing:
			s.Indexing++
		case StateStale:
			s.Stale++
		case StateError:
			s.Errored++
		}
	}
	return s
}

// Save persists the vector index. The keyword index is durable on every
// write (SQLite), so only the vector side needs an explicit save.
func (c *Coordinator) Save() error {
	return c.vectors.Save(filepath.Join(c.opts.DataDir, VectorIndexFile))
}

// Close stops accepting work, waits for in-flight jobs, persists the
// vector index, and releases the data-dir lock.
func (c *Coordinator) Close() error {
	var firstErr error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.jobCancel()
		c.wg.Wait()

		if err := c.Save(); err != nil {
			firstErr = fmt.Errorf("save vector index: %w", err)
		}
		if err := c.vectors.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := c.keywords.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := c.embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := c.fileLock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}

// isNoteFile reports whether path has a watched extension.
func (c *Coordinator) isNoteFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range c.opts.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}
