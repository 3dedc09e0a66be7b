package reflector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/devjournal/internal/journal"
)

func hypothesis(id, text string, at time.Time) journal.Entry {
	return journal.Entry{ID: id, Type: journal.EntryAIHypothesis, Summary: text, CreatedAt: at}
}

func run(passed, failed int, at time.Time) journal.TestRun {
	return journal.TestRun{Total: passed + failed, Passed: passed, Failed: failed, CreatedAt: at}
}

func TestAnalyze_WinnerIsLastBeforeFirstSuccess(t *testing.T) {
	base := time.Now()
	entries := []journal.Entry{
		{ID: "start", Type: journal.EntrySessionStart, CreatedAt: base},
		hypothesis("h1", "first theory", base.Add(1*time.Minute)),
		hypothesis("h2", "second theory", base.Add(3*time.Minute)),
		hypothesis("h3", "after the fact", base.Add(10*time.Minute)),
	}
	runs := []journal.TestRun{
		run(8, 2, base.Add(2*time.Minute)),
		run(10, 0, base.Add(5*time.Minute)),
	}

	an := analyze(entries, runs, "", base.Add(time.Hour))
	require.True(t, an.Resolved)
	require.NotNil(t, an.Winner)
	assert.Equal(t, "h2", an.Winner.ID)
	assert.Equal(t, 2, an.WinnerPos)
	assert.Equal(t, 5*time.Minute, an.TimeToFix)

	// h1 saw a failing run before the success; h3 came after it.
	require.Len(t, an.Losers, 1)
	assert.Equal(t, "h1", an.Losers[0].ID)
	require.Len(t, an.Neutral, 1)
	assert.Equal(t, "h3", an.Neutral[0].ID)
}

func TestAnalyze_FixEntryOverridesChronology(t *testing.T) {
	base := time.Now()
	entries := []journal.Entry{
		hypothesis("h1", "the real fix", base.Add(1*time.Minute)),
		hypothesis("h2", "a red herring", base.Add(2*time.Minute)),
	}
	runs := []journal.TestRun{run(10, 0, base.Add(3*time.Minute))}

	an := analyze(entries, runs, "h1", base.Add(time.Hour))
	require.NotNil(t, an.Winner)
	assert.Equal(t, "h1", an.Winner.ID)
	assert.Equal(t, 1, an.WinnerPos)
}

func TestAnalyze_FixEntryNamesNonHypothesis(t *testing.T) {
	base := time.Now()
	entries := []journal.Entry{
		hypothesis("h1", "a wrong theory", base.Add(1*time.Minute)),
		{ID: "n1", Type: journal.EntryNote, Summary: "raised the pool ceiling in config.yaml",
			CreatedAt: base.Add(2 * time.Minute)},
	}
	runs := []journal.TestRun{run(10, 0, base.Add(3*time.Minute))}

	an := analyze(entries, runs, "n1", base.Add(time.Hour))
	require.NotNil(t, an.Winner)
	assert.Equal(t, "n1", an.Winner.ID)
	assert.Zero(t, an.WinnerPos, "a non-hypothesis fix has no hypothesis position")
}

func TestAnalyze_UnresolvedWithoutPassingRun(t *testing.T) {
	base := time.Now()
	entries := []journal.Entry{
		{ID: "start", Type: journal.EntrySessionStart, CreatedAt: base},
		hypothesis("h1", "a theory", base.Add(1*time.Minute)),
	}
	runs := []journal.TestRun{run(8, 2, base.Add(2*time.Minute))}

	now := base.Add(30 * time.Minute)
	an := analyze(entries, runs, "", now)
	assert.False(t, an.Resolved)
	assert.Nil(t, an.Winner)
	assert.Zero(t, an.WinnerPos)
	assert.Equal(t, 30*time.Minute, an.TimeToFix)
	assert.Len(t, an.Neutral, 1)
}

func TestAnalyze_SignatureFromFirstErrorLog(t *testing.T) {
	base := time.Now()
	entries := []journal.Entry{
		{ID: "e1", Type: journal.EntryErrorLog,
			Summary:   "TypeError: Cannot read property 'email' of undefined at /srv/app/user.ts:42:10",
			CreatedAt: base},
		{ID: "e2", Type: journal.EntryErrorLog,
			Summary:   "ReferenceError: a later, different failure",
			CreatedAt: base.Add(time.Minute)},
	}

	an := analyze(entries, nil, "", base.Add(time.Hour))
	assert.Contains(t, an.Signature, "TypeError:")
	assert.NotContains(t, an.Signature, "/srv/app")
	assert.NotContains(t, an.Signature, ":42")
}
