package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/devjournal/internal/journal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedProject(t *testing.T, s *Store, id string) {
	t.Helper()
	require.NoError(t, s.UpsertProject(context.Background(), journal.Project{
		ID:       id,
		Name:     id,
		RootPath: "/work/" + id,
		Language: "go",
	}))
}

func TestOpen_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "journal.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedProject(t, s, "proj-1")

	sess, err := s.StartSession(ctx, "proj-1", "fix login timeout")
	require.NoError(t, err)
	assert.Equal(t, journal.SessionInProgress, sess.Status)
	assert.Equal(t, journal.ReflectionPending, sess.ReflectionStatus)

	// Start writes the SESSION_START entry.
	entries, err := s.EntriesForSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.EntrySessionStart, entries[0].Type)

	active, err := s.ActiveSession(ctx, "proj-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, sess.ID, active.ID)

	ended, err := s.EndSession(ctx, sess.ID, journal.SessionCompleted, "done", "")
	require.NoError(t, err)
	assert.Equal(t, journal.SessionCompleted, ended.Status)
	assert.False(t, ended.EndedAt.IsZero())

	active, err = s.ActiveSession(ctx, "proj-1")
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestEndSession_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.EndSession(context.Background(), "nope", journal.SessionCompleted, "", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStartSession_UnknownProject(t *testing.T) {
	s := newTestStore(t)
	_, err := s.StartSession(context.Background(), "ghost", "goal")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendEntry_Validation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.AppendEntry(ctx, &journal.Entry{Type: journal.EntryNote})
	assert.Error(t, err, "missing project id")

	_, err = s.AppendEntry(ctx, &journal.Entry{ProjectID: "p", Type: "BOGUS"})
	assert.Error(t, err, "invalid entry type")
}

func TestEntriesAreChronological(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedProject(t, s, "proj-1")
	sess, err := s.StartSession(ctx, "proj-1", "goal")
	require.NoError(t, err)

	base := time.Now()
	for i := 0; i < 5; i++ {
		_, err := s.AppendEntry(ctx, &journal.Entry{
			ProjectID: "proj-1",
			SessionID: sess.ID,
			Type:      journal.EntryNote,
			Summary:   fmt.Sprintf("note %d", i),
			CreatedAt: base.Add(time.Duration(5-i) * time.Second), // inserted out of order
		})
		require.NoError(t, err)
	}

	entries, err := s.EntriesForSession(ctx, sess.ID)
	require.NoError(t, err)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].CreatedAt.Before(entries[i-1].CreatedAt))
	}
}

func TestAnnotateEntry_OnlyOutcomeAndTags(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedProject(t, s, "proj-1")

	id, err := s.AppendEntry(ctx, &journal.Entry{
		ProjectID: "proj-1",
		Type:      journal.EntryAIHypothesis,
		Summary:   "maybe the cache is stale",
	})
	require.NoError(t, err)

	require.NoError(t, s.AnnotateEntry(ctx, id, journal.OutcomeSuccess, []string{"cache-invalidation"}))

	e, err := s.GetEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, journal.OutcomeSuccess, e.Outcome)
	assert.Equal(t, []string{"cache-invalidation"}, e.StrategyTags)
	assert.Equal(t, "maybe the cache is stale", e.Summary, "summary must never be rewritten")

	assert.ErrorIs(t, s.AnnotateEntry(ctx, "missing", journal.OutcomeFailure, nil), ErrNotFound)
}

func TestFlakyTests(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedProject(t, s, "proj-1")

	entryID, err := s.AppendEntry(ctx, &journal.Entry{
		ProjectID: "proj-1", Type: journal.EntryTestRun, Summary: "run",
	})
	require.NoError(t, err)
	run := &journal.TestRun{EntryID: entryID, ProjectID: "proj-1", Total: 4, Passed: 2, Failed: 2}
	require.NoError(t, s.RecordTestRun(ctx, run))

	results := []journal.TestResult{
		{RunID: run.ID, Name: "TestLogin", File: "auth_test.go", Status: journal.TestPassed},
		{RunID: run.ID, Name: "TestLogin", File: "auth_test.go", Status: journal.TestFailed},
		{RunID: run.ID, Name: "TestLogin", File: "auth_test.go", Status: journal.TestFailed},
		{RunID: run.ID, Name: "TestStable", File: "auth_test.go", Status: journal.TestPassed},
		{RunID: run.ID, Name: "TestBroken", File: "auth_test.go", Status: journal.TestFailed},
	}
	require.NoError(t, s.RecordTestResults(ctx, results))

	flaky, err := s.FlakyTests(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, flaky, 1, "only tests with both outcomes qualify")
	assert.Equal(t, "TestLogin", flaky[0].Name)
	assert.Equal(t, 1, flaky[0].Passes)
	assert.Equal(t, 2, flaky[0].Failures)
	assert.InDelta(t, 66.67, flaky[0].FlakinessPct, 0.1)
}

func TestFlakyTests_WindowExcludesOld(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedProject(t, s, "proj-1")

	entryID, err := s.AppendEntry(ctx, &journal.Entry{
		ProjectID: "proj-1", Type: journal.EntryTestRun, Summary: "run",
	})
	require.NoError(t, err)
	run := &journal.TestRun{EntryID: entryID, ProjectID: "proj-1", Total: 2, Passed: 1, Failed: 1}
	require.NoError(t, s.RecordTestRun(ctx, run))

	old := time.Now().Add(-60 * 24 * time.Hour)
	require.NoError(t, s.RecordTestResults(ctx, []journal.TestResult{
		{RunID: run.ID, Name: "TestOld", Status: journal.TestFailed, CreatedAt: old},
		{RunID: run.ID, Name: "TestOld", Status: journal.TestPassed},
	}))

	flaky, err := s.FlakyTests(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, flaky, "the failing half is outside the window")
}

func TestPatternUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := &journal.Pattern{
		Signature:     "TypeError: boom",
		BestStrategy:  "null-check-fix",
		SuccessCount:  1,
		Occurrences:   1,
		Projects:      []string{"proj-1"},
		AvgTimeToFix:  5 * time.Minute,
		StrategyHisto: map[string]int{"null-check-fix": 1},
	}
	require.NoError(t, s.SavePattern(ctx, p))

	got, err := s.GetPattern(ctx, "TypeError: boom")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1, got.SuccessCount)
	assert.Equal(t, []string{"proj-1"}, got.Projects)

	got.SuccessCount++
	got.Occurrences++
	require.NoError(t, s.SavePattern(ctx, got))

	again, err := s.GetPattern(ctx, "TypeError: boom")
	require.NoError(t, err)
	assert.Equal(t, 2, again.SuccessCount)

	none, err := s.GetPattern(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, none, "absence is not an error")
}

func TestFindPlaybook_FuzzyFallback(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.SavePlaybook(ctx, &journal.Playbook{
		Signature:  "TypeError: Cannot read property 'email' of undefined at <path>",
		Title:      "undefined user on auth path",
		Status:     journal.PlaybookActive,
		Confidence: 0.7,
	}))

	// Exact.
	pb, err := s.FindPlaybook(ctx, "TypeError: Cannot read property 'email' of undefined at <path>")
	require.NoError(t, err)
	require.NotNil(t, pb)

	// Fuzzy: one token differs.
	pb, err = s.FindPlaybook(ctx, "TypeError: Cannot read property 'name' of undefined at <path>")
	require.NoError(t, err)
	require.NotNil(t, pb)
	assert.Equal(t, "undefined user on auth path", pb.Title)

	// Unrelated signature misses.
	pb, err = s.FindPlaybook(ctx, "completely different failure mode entirely")
	require.NoError(t, err)
	assert.Nil(t, pb)
}

func TestRecordPlaybookUsage_ConfidenceEvolution(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	pb := &journal.Playbook{
		Signature:    "Error: connection reset",
		Title:        "reset handling",
		Status:       journal.PlaybookDraft,
		SuccessCount: 1,
		Confidence:   0.6,
	}
	require.NoError(t, s.SavePlaybook(ctx, pb))

	// Success-only sequence strictly increases confidence, bounded in (0,1).
	prev := pb.Confidence
	for i := 0; i < 5; i++ {
		updated, err := s.RecordPlaybookUsage(ctx, pb.ID, "", true)
		require.NoError(t, err)
		assert.Greater(t, updated.Confidence, prev)
		assert.Less(t, updated.Confidence, 1.0)
		prev = updated.Confidence
	}

	// Failure-only sequence strictly decreases it.
	for i := 0; i < 5; i++ {
		updated, err := s.RecordPlaybookUsage(ctx, pb.ID, "", false)
		require.NoError(t, err)
		assert.Less(t, updated.Confidence, prev)
		assert.Greater(t, updated.Confidence, 0.0)
		prev = updated.Confidence
	}

	_, err := s.RecordPlaybookUsage(ctx, "missing", "", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedProject(t, s, "proj-1")

	err := s.WithTx(ctx, func(tx *Store) error {
		if _, err := tx.AppendEntry(ctx, &journal.Entry{
			ProjectID: "proj-1", Type: journal.EntryNote, Summary: "doomed",
		}); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	entries, err := s.ListEntries(ctx, EntryFilter{ProjectID: "proj-1"})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStats_SharedWinnerTagCountsOneSuccess(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedProject(t, s, "proj-1")

	sess, err := s.StartSession(ctx, "proj-1", "goal")
	require.NoError(t, err)

	// Two hypotheses carried the same tag; only the one that fixed the
	// session is a success for that strategy.
	require.NoError(t, s.RecordAIPerformance(ctx, &journal.AIPerformance{
		SessionID:       sess.ID,
		HypothesisCount: 2,
		WinningPosition: 2,
		Strategies:      []string{"timeout-config-fix", "timeout-config-fix"},
		WinningStrategy: "timeout-config-fix",
		Outcome:         "FIXED",
	}))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	require.Len(t, st.TopStrategies, 1)
	assert.Equal(t, 1, st.TopStrategies[0].Successes)
	assert.Equal(t, 1, st.TopStrategies[0].Failures)
	assert.InDelta(t, 0.5, st.TopStrategies[0].SuccessRate, 1e-9)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedProject(t, s, "proj-1")

	sess, err := s.StartSession(ctx, "proj-1", "goal")
	require.NoError(t, err)
	_, err = s.EndSession(ctx, sess.ID, journal.SessionCompleted, "", "")
	require.NoError(t, err)

	require.NoError(t, s.RecordAIPerformance(ctx, &journal.AIPerformance{
		SessionID:       sess.ID,
		HypothesisCount: 3,
		WinningPosition: 3,
		Strategies:      []string{"timeout-config-fix", "cache-invalidation"},
		WinningStrategy: "timeout-config-fix",
		Outcome:         "FIXED",
	}))

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalSessions)
	assert.Equal(t, 1, st.CompletedSessions)
	assert.InDelta(t, 3.0, st.AvgHypotheses, 0.001)
	assert.Equal(t, 0.0, st.FirstTrySuccessPct)
	require.NotEmpty(t, st.TopStrategies)
	assert.Equal(t, "timeout-config-fix", st.TopStrategies[0].Strategy)
}
