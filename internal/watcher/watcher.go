// Package watcher reports template files being added, changed or removed
// below a project root. Events are filtered through a Matcher, debounced and
// delivered to handlers in batches.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/frewsxcv/template-tally/internal/logging"
	"github.com/frewsxcv/template-tally/internal/types"
)

// Matcher decides whether a root-relative path is a tracked template.
type Matcher interface {
	Matches(relPath string) bool
}

// ChangeEvent represents a template file change.
type ChangeEvent struct {
	Type     EventType
	Path     string
	Template types.TemplateID
	ModTime  time.Time
	Size     int64
}

// EventType represents the type of file change
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

// String returns the string representation of the EventType
func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// ChangeHandler handles a debounced batch of changes.
type ChangeHandler func(ctx context.Context, events []ChangeEvent) error

// TemplateWatcher watches a project tree for template changes.
type TemplateWatcher struct {
	root      string
	matcher   Matcher
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	logger    logging.Logger

	mutex    sync.RWMutex
	handlers []ChangeHandler

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a TemplateWatcher.
type Option func(*TemplateWatcher)

// WithLogger sets the watcher's logger.
func WithLogger(logger logging.Logger) Option {
	return func(w *TemplateWatcher) {
		w.logger = logger.WithComponent("watcher")
	}
}

// New creates a watcher for the templates below root.
func New(root string, matcher Matcher, debounceDelay time.Duration, opts ...Option) (*TemplateWatcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %s: %w", root, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	w := &TemplateWatcher{
		root:      absRoot,
		matcher:   matcher,
		watcher:   fsw,
		debouncer: NewDebouncer(debounceDelay),
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// AddHandler adds a change handler
func (w *TemplateWatcher) AddHandler(handler ChangeHandler) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start watches every non-hidden directory below the root and begins
// delivering events until ctx is done or Stop is called.
func (w *TemplateWatcher) Start(ctx context.Context) error {
	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(3)
	go func() {
		defer w.wg.Done()
		w.debouncer.run(ctx)
	}()
	go func() {
		defer w.wg.Done()
		w.processEvents(ctx)
	}()
	go func() {
		defer w.wg.Done()
		w.watchLoop(ctx)
	}()

	w.logger.Info(ctx, "Watching templates", "root", w.root)
	return nil
}

// Stop stops the watcher and waits for its goroutines to exit.
func (w *TemplateWatcher) Stop() error {
	if w.cancel != nil {
		w.cancel()
	}
	err := w.watcher.Close()
	w.wg.Wait()
	w.debouncer.stop()
	return err
}

// addRecursive adds dir and all of its non-hidden subdirectories.
func (w *TemplateWatcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func (w *TemplateWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFsnotifyEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn(ctx, err, "File watcher error")
		}
	}
}

func (w *TemplateWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	info, statErr := os.Stat(event.Name)

	if statErr == nil && info.IsDir() {
		if event.Op.Has(fsnotify.Create) && !strings.HasPrefix(info.Name(), ".") {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn(ctx, err, "Failed to watch new directory", "path", event.Name)
			}
		}
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || !w.matcher.Matches(rel) {
		return
	}

	change := ChangeEvent{
		Type:     eventType(event.Op),
		Path:     event.Name,
		Template: types.IdentifierFromRelative(rel),
	}
	if statErr == nil {
		change.ModTime = info.ModTime()
		change.Size = info.Size()
	}

	w.debouncer.add(change)
}

func eventType(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventTypeCreated
	case op.Has(fsnotify.Write):
		return EventTypeModified
	case op.Has(fsnotify.Remove):
		return EventTypeDeleted
	case op.Has(fsnotify.Rename):
		return EventTypeRenamed
	default:
		return EventTypeModified
	}
}

func (w *TemplateWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-w.debouncer.output:
			w.mutex.RLock()
			handlers := w.handlers
			w.mutex.RUnlock()

			for _, handler := range handlers {
				if err := handler(ctx, events); err != nil {
					w.logger.Error(ctx, err, "Template change handler failed", "events", len(events))
				}
			}
		}
	}
}
