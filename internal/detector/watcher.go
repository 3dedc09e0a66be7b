package detector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devjournal/internal/catalog"
)

const (
	// defaultDebounce is the quiescence window after which buffered
	// non-significant changes are flushed.
	defaultDebounce = 500 * time.Millisecond

	// defaultFlushInterval is the periodic flush for the non-significant
	// backlog, in case events never go quiet.
	defaultFlushInterval = 5 * time.Second
)

// skipDirs are directories never watched: generated code, dependencies,
// version-control internals.
var skipDirs = map[string]bool{
	".git":         true,
	".svn":         true,
	".hg":          true,
	"node_modules": true,
	"vendor":       true,
	".venv":        true,
	"venv":         true,
	"__pycache__":  true,
	".idea":        true,
	".vscode":      true,
	".cache":       true,
	"dist":         true,
	"build":        true,
	".next":        true,
	"target":       true,
}

// Sink receives batches of classified change events.
type Sink func(ctx context.Context, events []ChangeEvent)

// Watcher is the continuous operating mode: one long-lived fsnotify watch
// across all catalog project roots, with debounced batching. Significant
// changes are surfaced immediately; the rest are grouped within a short
// quiescence window and flushed periodically.
type Watcher struct {
	cat    *catalog.Catalog
	sink   Sink
	logger *zap.Logger

	debounce      time.Duration
	flushInterval time.Duration

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]ChangeEvent // keyed by project id + path, latest change wins
	timer   *time.Timer
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce overrides the quiescence window.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// WithFlushInterval overrides the periodic backlog flush interval.
func WithFlushInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.flushInterval = d }
}

// NewWatcher creates a watcher over the catalog's project roots.
func NewWatcher(cat *catalog.Catalog, sink Sink, logger *zap.Logger, opts ...WatcherOption) (*Watcher, error) {
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		cat:           cat,
		sink:          sink,
		logger:        logger,
		debounce:      defaultDebounce,
		flushInterval: defaultFlushInterval,
		fsw:           fsw,
		pending:       make(map[string]ChangeEvent),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start adds every project root (recursively) and begins the event loop.
// A project whose root cannot be watched is skipped with a warning, not
// fatal to the rest.
func (w *Watcher) Start(ctx context.Context) error {
	watched := 0
	for _, p := range w.cat.Projects() {
		if err := w.addTree(p.RootPath); err != nil {
			w.logger.Warn("cannot watch project root",
				zap.String("project_id", p.ID), zap.String("root", p.RootPath),
				zap.Error(err))
			continue
		}
		watched++
	}
	if watched == 0 {
		return fmt.Errorf("no project roots could be watched")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop shuts the watcher down cleanly: no new file events are accepted, the
// pending batch is flushed, and watch handles are released.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.fsw.Close()
	w.flush(context.Background())
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if skipDirs[d.Name()] && path != root {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	// New directories get added to the watch; their contents arrive as
	// separate events.
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !skipDirs[filepath.Base(ev.Name)] {
				_ = w.fsw.Add(ev.Name)
			}
			return
		}
	}

	var change ChangeType
	switch {
	case ev.Op.Has(fsnotify.Create):
		change = ChangeAdded
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		change = ChangeDeleted
	case ev.Op.Has(fsnotify.Write):
		change = ChangeModified
	default:
		return
	}

	project, err := w.cat.Resolve(ev.Name)
	if err != nil {
		w.logger.Warn("change not attributable to a project",
			zap.String("path", ev.Name))
		return
	}

	rel := ev.Name
	if r, err := filepath.Rel(project.RootPath, ev.Name); err == nil {
		rel = r
	}
	event := Classify(project.ID, rel, change)

	if event.Significant {
		w.sink(ctx, []ChangeEvent{event})
		return
	}

	w.mu.Lock()
	w.pending[event.ProjectID+"\x00"+event.Path] = event
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() { w.flush(ctx) })
	w.mu.Unlock()
}

// flush delivers the buffered non-significant batch, if any.
func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	batch := make([]ChangeEvent, 0, len(w.pending))
	for _, ev := range w.pending {
		batch = append(batch, ev)
	}
	w.pending = make(map[string]ChangeEvent)
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	w.sink(ctx, batch)
}
