package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// NotesWatcher implements Watcher using fsnotify. Raw events are filtered
// to note files and fed through the Debouncer; consumers read coalesced
// events from Events().
type NotesWatcher struct {
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	errors    chan error
	stopCh    chan struct{}
	rootPath  string
	opts      Options

	mu      sync.Mutex
	stopped bool
	dirs    map[string]bool // directories currently registered with fsnotify
}

var _ Watcher = (*NotesWatcher)(nil)

// NewNotesWatcher creates a new watcher with the given options.
func NewNotesWatcher(opts Options) (*NotesWatcher, error) {
	opts = opts.WithDefaults()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &NotesWatcher{
		fsWatcher: fsw,
		debouncer: NewDebouncer(opts.DebounceWindow, opts.EventBufferSize),
		errors:    make(chan error, 10),
		stopCh:    make(chan struct{}),
		opts:      opts,
		dirs:      make(map[string]bool),
	}, nil
}

// Start begins watching the given directory recursively. It blocks until
// Stop is called or the context is cancelled.
func (w *NotesWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}
	w.rootPath = absPath

	if err := w.addRecursive(absPath); err != nil {
		return fmt.Errorf("add directories to watcher: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleFsnotifyEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

// handleFsnotifyEvent converts and filters raw fsnotify events.
func (w *NotesWatcher) handleFsnotifyEvent(event fsnotify.Event) {
	isDir := false
	if info, err := os.Stat(event.Name); err == nil {
		isDir = info.IsDir()
	}

	if isDir {
		// New directories must be added so nested notes are seen.
		if event.Op&fsnotify.Create != 0 {
			if err := w.addRecursive(event.Name); err != nil {
				w.emitError(err)
			}
		}
		return
	}

	// A removed or renamed-away directory yields no per-file events for
	// the notes under it; report the whole subtree as gone.
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 && w.forgetDir(event.Name) {
		slog.Debug("directory removed", slog.String("path", event.Name))
		w.debouncer.Add(Event{
			Path:      event.Name,
			Kind:      TreeRemoved,
			Timestamp: time.Now(),
		})
		return
	}

	if !w.isNoteFile(event.Name) {
		return
	}

	var kind EventKind
	switch {
	case event.Op&fsnotify.Create != 0:
		kind = Created
	case event.Op&fsnotify.Write != 0:
		kind = Modified
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		// A rename away is a delete for the old path; the new path
		// arrives as its own Create event.
		kind = Deleted
	case event.Op&fsnotify.Chmod != 0:
		return
	default:
		return
	}

	slog.Debug("file event",
		slog.String("path", event.Name),
		slog.String("kind", kind.String()))

	w.debouncer.Add(Event{
		Path:      event.Name,
		Kind:      kind,
		Timestamp: time.Now(),
	})
}

// isNoteFile reports whether the path has a watched extension.
func (w *NotesWatcher) isNoteFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, want := range w.opts.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// addRecursive adds the directory and all subdirectories to the watch,
// skipping hidden directories (including the index data dir).
func (w *NotesWatcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Keep walking; a vanished subdirectory is not fatal.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if name := d.Name(); strings.HasPrefix(name, ".") && path != root {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		w.mu.Lock()
		w.dirs[path] = true
		w.mu.Unlock()
		return nil
	})
}

// forgetDir reports whether path was a registered directory, dropping it
// and everything registered under it.
func (w *NotesWatcher) forgetDir(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.dirs[path] {
		return false
	}
	prefix := path + string(filepath.Separator)
	for dir := range w.dirs {
		if dir == path || strings.HasPrefix(dir, prefix) {
			delete(w.dirs, dir)
		}
	}
	return true
}

// emitError sends a non-fatal error without blocking. Errors arriving
// after Stop are dropped: Stop closes the channel, so sending past it
// would panic.
func (w *NotesWatcher) emitError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return
	}
	select {
	case w.errors <- err:
	default:
		slog.Warn("watcher error channel full", slog.String("error", err.Error()))
	}
}

// Events returns the channel of debounced events.
func (w *NotesWatcher) Events() <-chan Event {
	return w.debouncer.Output()
}

// Errors returns the channel of watcher errors.
func (w *NotesWatcher) Errors() <-chan error {
	return w.errors
}

// Stop stops the watcher and releases resources.
// Safe to call multiple times.
func (w *NotesWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true

	close(w.stopCh)
	err := w.fsWatcher.Close()
	w.debouncer.Stop()
	close(w.errors)
	return err
}
