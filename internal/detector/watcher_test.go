package detector

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/devjournal/internal/catalog"
	"github.com/fyrsmithlabs/devjournal/internal/journal"
)

// batchCollector is a Sink that records delivered batches.
type batchCollector struct {
	mu      sync.Mutex
	batches [][]ChangeEvent
}

func (c *batchCollector) sink(_ context.Context, events []ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, events)
}

func (c *batchCollector) all() []ChangeEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []ChangeEvent
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestWatcher_DebouncedBatchAndImmediateSignificant(t *testing.T) {
	root := t.TempDir()
	cat := catalog.New([]journal.Project{{ID: "proj-1", RootPath: root}})
	collector := &batchCollector{}

	w, err := NewWatcher(cat, collector.sink, nil,
		WithDebounce(50*time.Millisecond),
		WithFlushInterval(time.Hour)) // keep the ticker out of the way
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// A doc change is insignificant: it should arrive only after the
	// debounce window, batched.
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte("x"), 0o644))
	waitFor(t, 3*time.Second, func() bool {
		for _, ev := range collector.all() {
			if ev.Path == "notes.md" {
				return true
			}
		}
		return false
	})

	// A dependency manifest is significant and surfaces immediately in a
	// batch of its own.
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0o644))
	waitFor(t, 3*time.Second, func() bool {
		for _, ev := range collector.all() {
			if ev.Path == "go.mod" && ev.Significant {
				return true
			}
		}
		return false
	})
}

func TestWatcher_StopFlushesPending(t *testing.T) {
	root := t.TempDir()
	cat := catalog.New([]journal.Project{{ID: "proj-1", RootPath: root}})
	collector := &batchCollector{}

	w, err := NewWatcher(cat, collector.sink, nil,
		WithDebounce(time.Hour), // never fires on its own
		WithFlushInterval(time.Hour))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"), []byte("x"), 0o644))

	// Give fsnotify time to deliver, then stop; the pending batch must not
	// be lost.
	waitFor(t, 3*time.Second, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return len(w.pending) > 0
	})
	w.Stop()

	found := false
	for _, ev := range collector.all() {
		if ev.Path == "notes.md" {
			found = true
		}
	}
	assert.True(t, found, "already-detected changes survive shutdown")
}

func TestWatcher_RequiresSink(t *testing.T) {
	_, err := NewWatcher(catalog.New(nil), nil, nil)
	assert.Error(t, err)
}
