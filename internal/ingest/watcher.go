package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher watches directories for freshly written report files and feeds
// them to the ingestor. Unparseable or unattributable files are logged and
// skipped; nothing here is fatal to the watch loop.
type Watcher struct {
	ingestor *Ingestor
	dirs     []string
	logger   *zap.Logger

	fsw    *fsnotify.Watcher
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewWatcher creates a report watcher over the given directories.
func NewWatcher(ingestor *Ingestor, dirs []string, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		ingestor: ingestor,
		dirs:     dirs,
		logger:   logger,
		fsw:      fsw,
		inFlight: make(map[string]bool),
	}, nil
}

// Start begins watching. Directories that cannot be watched are skipped
// with a warning.
func (w *Watcher) Start(ctx context.Context) error {
	watched := 0
	for _, dir := range w.dirs {
		if err := w.fsw.Add(dir); err != nil {
			w.logger.Warn("cannot watch report dir",
				zap.String("dir", dir), zap.Error(err))
			continue
		}
		watched++
	}
	w.logger.Info("report watcher started", zap.Int("dirs", watched))

	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// Stop shuts the watcher down and waits for in-flight ingestions.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.fsw.Close()
	w.wg.Wait()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
				continue
			}
			if !isReportFile(ev.Name) {
				continue
			}
			w.dispatch(ctx, ev.Name)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("report watch error", zap.Error(err))
		}
	}
}

// dispatch ingests one report in the background, deduplicating the
// create+write event pairs emitted for a single file.
func (w *Watcher) dispatch(ctx context.Context, path string) {
	w.mu.Lock()
	if w.inFlight[path] {
		w.mu.Unlock()
		return
	}
	w.inFlight[path] = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.inFlight, path)
			w.mu.Unlock()
		}()

		if _, err := w.ingestor.ingestWithRetry(ctx, path); err != nil {
			w.logger.Warn("report skipped",
				zap.String("path", path), zap.Error(err))
		}
	}()
}

func isReportFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".xml":
		return true
	}
	return false
}
