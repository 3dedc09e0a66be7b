package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/devjournal/internal/catalog"
	"github.com/fyrsmithlabs/devjournal/internal/journal"
	"github.com/fyrsmithlabs/devjournal/internal/store"
)

func newTestEnv(t *testing.T) (*store.Store, string) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	root := t.TempDir()
	require.NoError(t, s.UpsertProject(context.Background(), journal.Project{
		ID: "proj-1", Name: "api", RootPath: root, Language: "ts",
	}))
	return s, root
}

func TestIngestFile_AttachesToActiveSession(t *testing.T) {
	ctx := context.Background()
	s, root := newTestEnv(t)
	cat, err := catalog.Load(ctx, s)
	require.NoError(t, err)
	ing := NewIngestor(s, cat, nil)

	sess, err := s.StartSession(ctx, "proj-1", "fix auth")
	require.NoError(t, err)

	reportPath := filepath.Join(root, "results.json")
	require.NoError(t, os.WriteFile(reportPath, []byte(frameworkJSON), 0o644))

	run, err := ing.IngestFile(ctx, reportPath)
	require.NoError(t, err)
	assert.Equal(t, "proj-1", run.ProjectID)
	assert.Equal(t, sess.ID, run.SessionID)
	assert.Equal(t, 12, run.Total)
	assert.Equal(t, journal.TestFailed, run.Status)

	// The run is linked 1:1 to a TEST_RUN journal entry.
	entries, err := s.EntriesForSession(ctx, sess.ID)
	require.NoError(t, err)
	var testRunEntries int
	for _, e := range entries {
		if e.Type == journal.EntryTestRun {
			testRunEntries++
			assert.Equal(t, e.ID, run.EntryID)
		}
	}
	assert.Equal(t, 1, testRunEntries)

	runs, err := s.TestRunsForSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}

func TestIngestFile_SessionlessWhenNoActiveSession(t *testing.T) {
	ctx := context.Background()
	s, root := newTestEnv(t)
	cat, err := catalog.Load(ctx, s)
	require.NoError(t, err)
	ing := NewIngestor(s, cat, nil)

	reportPath := filepath.Join(root, "results.json")
	require.NoError(t, os.WriteFile(reportPath, []byte(frameworkJSON), 0o644))

	run, err := ing.IngestFile(ctx, reportPath)
	require.NoError(t, err)
	assert.Empty(t, run.SessionID)
}

func TestIngestFile_DropsUnattributableRun(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestEnv(t)
	cat := catalog.New(nil) // empty catalog: nothing can be attributed
	ing := NewIngestor(s, cat, nil)

	outside := filepath.Join(t.TempDir(), "results.json")
	require.NoError(t, os.WriteFile(outside, []byte(frameworkJSON), 0o644))

	_, err := ing.IngestFile(ctx, outside)
	assert.ErrorIs(t, err, catalog.ErrNoProject)

	// Nothing was stored.
	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.TotalTestRuns)
}

func TestIngestFile_UnparseableReport(t *testing.T) {
	ctx := context.Background()
	s, root := newTestEnv(t)
	cat, err := catalog.Load(ctx, s)
	require.NoError(t, err)
	ing := NewIngestor(s, cat, nil)

	reportPath := filepath.Join(root, "garbage.json")
	require.NoError(t, os.WriteFile(reportPath, []byte("not json"), 0o644))

	_, err = ing.IngestFile(ctx, reportPath)
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestIngestWithRetry_RecoversFromTornWrite(t *testing.T) {
	ctx := context.Background()
	s, root := newTestEnv(t)
	cat, err := catalog.Load(ctx, s)
	require.NoError(t, err)
	ing := NewIngestor(s, cat, nil)

	// First attempt sees a torn prefix; complete the file before the retry
	// lands.
	reportPath := filepath.Join(root, "slow.json")
	require.NoError(t, os.WriteFile(reportPath, []byte(frameworkJSON[:40]), 0o644))
	go func() {
		// Finish the write shortly after the first failed parse.
		os.WriteFile(reportPath, []byte(frameworkJSON), 0o644)
	}()

	run, err := ing.ingestWithRetry(ctx, reportPath)
	require.NoError(t, err)
	assert.Equal(t, 12, run.Total)
}
