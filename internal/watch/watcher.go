// Package watch rebuilds an image when its source environment changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/karrick/godirwalk"
	"github.com/sirupsen/logrus"
)

// FileEventType represents the type of file system event
type FileEventType int

const (
	FileEventCreated FileEventType = iota + 1
	FileEventModified
	FileEventDeleted
	FileEventRenamed
)

func (t FileEventType) String() string {
	switch t {
	case FileEventCreated:
		return "created"
	case FileEventModified:
		return "modified"
	case FileEventDeleted:
		return "deleted"
	case FileEventRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileEvent represents a file system event
type FileEvent struct {
	Path      string
	Type      FileEventType
	Timestamp time.Time
}

// WatcherConfig contains configuration for the file watcher
type WatcherConfig struct {
	// Root is the environment directory to watch
	Root string

	// IgnorePatterns are patterns to ignore. A pattern matches any path
	// component, or the whole path relative to Root (e.g. "conda-meta/history").
	IgnorePatterns []string

	// Debounce is the debounce duration for rapid events on one path
	Debounce time.Duration
}

// DefaultWatcherConfig returns default watcher configuration
func DefaultWatcherConfig(root string) *WatcherConfig {
	return &WatcherConfig{
		Root:           root,
		IgnorePatterns: []string{".git", "__pycache__", "*.pyc", "conda-meta/history"},
		Debounce:       100 * time.Millisecond,
	}
}

// Watcher watches for file changes in an environment directory
type Watcher struct {
	config  *WatcherConfig
	log     *logrus.Entry
	watcher *fsnotify.Watcher
	events  chan FileEvent
	errors  chan error
	done    chan struct{}
	mu      sync.RWMutex
	running bool

	// Debouncing
	pending   map[string]*time.Timer
	pendingMu sync.Mutex
}

// NewWatcher creates a new file watcher
func NewWatcher(config *WatcherConfig, log *logrus.Entry) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &Watcher{
		config:  config,
		log:     log,
		watcher: fsWatcher,
		events:  make(chan FileEvent, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
		pending: make(map[string]*time.Timer),
	}, nil
}

// Start begins watching for file changes
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	// Add the environment directory recursively
	if err := w.addRecursive(w.config.Root); err != nil {
		return err
	}

	// Start the event processing goroutine
	go w.processEvents(ctx)

	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}

	w.running = false
	close(w.done)

	w.pendingMu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.pendingMu.Unlock()

	return w.watcher.Close()
}

// Events returns the channel of file events
func (w *Watcher) Events() <-chan FileEvent {
	return w.events
}

// Errors returns the channel of errors
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// IsRunning returns whether the watcher is running
func (w *Watcher) IsRunning() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.running
}

// addRecursive adds a directory and all subdirectories to the watcher.
// Links are not followed.
func (w *Watcher) addRecursive(dir string) error {
	err := godirwalk.Walk(dir, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if !de.IsDir() {
				return nil
			}
			if path != w.config.Root && w.shouldIgnore(path) {
				return godirwalk.SkipThis
			}
			if err := w.watcher.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	return nil
}

// processEvents processes fsnotify events and emits debounced FileEvents
func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

func (w *Watcher) sendError(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

// handleEvent handles a single fsnotify event
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.shouldIgnore(event.Name) {
		return
	}

	var eventType FileEventType
	switch {
	case event.Has(fsnotify.Create):
		eventType = FileEventCreated
		// New directories (e.g. a freshly installed package) are watched too.
		if err := w.addIfDir(event.Name); err != nil {
			w.sendError(err)
		}
	case event.Has(fsnotify.Write):
		eventType = FileEventModified
	case event.Has(fsnotify.Remove):
		eventType = FileEventDeleted
	case event.Has(fsnotify.Rename):
		eventType = FileEventRenamed
	default:
		return
	}

	w.log.WithFields(logrus.Fields{"path": event.Name, "op": eventType}).Debug("file event")

	w.debounce(FileEvent{
		Path:      event.Name,
		Type:      eventType,
		Timestamp: time.Now(),
	})
}

func (w *Watcher) addIfDir(path string) error {
	de, err := godirwalk.NewDirent(path)
	if err != nil || !de.IsDir() {
		// Gone already, or not a directory.
		return nil
	}
	return w.addRecursive(path)
}

// debounce debounces file events
func (w *Watcher) debounce(event FileEvent) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	// Cancel existing pending event for this path
	if timer, ok := w.pending[event.Path]; ok {
		timer.Stop()
	}

	w.pending[event.Path] = time.AfterFunc(w.config.Debounce, func() {
		w.pendingMu.Lock()
		delete(w.pending, event.Path)
		w.pendingMu.Unlock()

		select {
		case w.events <- event:
		default:
			// Channel full, drop event
		}
	})
}

// shouldIgnore checks if a path should be ignored
func (w *Watcher) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(w.config.Root, path)
	if err != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)

	for _, pattern := range w.config.IgnorePatterns {
		if strings.Contains(pattern, "/") {
			if matched, _ := filepath.Match(pattern, rel); matched {
				return true
			}
			continue
		}
		for _, part := range strings.Split(rel, "/") {
			if matched, _ := filepath.Match(pattern, part); matched {
				return true
			}
		}
	}

	return false
}
