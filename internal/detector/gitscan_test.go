package detector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/devjournal/internal/catalog"
	"github.com/fyrsmithlabs/devjournal/internal/journal"
)

// initRepo creates a git repository with one commit authored at when.
func initRepo(t *testing.T, when time.Time) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("main.go")
	require.NoError(t, err)
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "dev", Email: "dev@example.com", When: when},
	})
	require.NoError(t, err)
	return dir
}

func TestScanStatus(t *testing.T) {
	ctx := context.Background()
	dir := initRepo(t, time.Now())
	project := journal.Project{ID: "proj-1", RootPath: dir}
	scanner := NewScanner(catalog.New([]journal.Project{project}), nil)

	// Modify a tracked file, add an untracked one.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "util.go"), []byte("package main\n"), 0o644))

	events, err := scanner.ScanStatus(ctx, project)
	require.NoError(t, err)

	byPath := map[string]ChangeEvent{}
	for _, ev := range events {
		byPath[ev.Path] = ev
	}
	require.Contains(t, byPath, "main.go")
	require.Contains(t, byPath, "util.go")
	assert.Equal(t, ChangeModified, byPath["main.go"].Type)
	assert.Equal(t, ChangeAdded, byPath["util.go"].Type)
	assert.True(t, byPath["util.go"].Significant, "new source file is significant")
	assert.False(t, byPath["main.go"].Significant)
}

func TestScanStatus_NotGitRepo(t *testing.T) {
	project := journal.Project{ID: "proj-1", RootPath: t.TempDir()}
	scanner := NewScanner(catalog.New([]journal.Project{project}), nil)
	_, err := scanner.ScanStatus(context.Background(), project)
	assert.ErrorIs(t, err, ErrNotGitRepo)
}

func TestScanAll_IsolatesFailures(t *testing.T) {
	good := journal.Project{ID: "good", RootPath: initRepo(t, time.Now())}
	bad := journal.Project{ID: "bad", RootPath: filepath.Join(t.TempDir(), "missing")}
	scanner := NewScanner(catalog.New([]journal.Project{good, bad}), nil)

	out := scanner.ScanAll(context.Background())
	assert.Contains(t, out, "good")
	assert.NotContains(t, out, "bad", "failing project skipped, not fatal")
}

func TestRecentCommitsAndStaleness(t *testing.T) {
	ctx := context.Background()
	old := initRepo(t, time.Now().Add(-48*time.Hour))
	fresh := initRepo(t, time.Now().Add(-time.Hour))
	projects := []journal.Project{
		{ID: "old", RootPath: old},
		{ID: "fresh", RootPath: fresh},
	}
	scanner := NewScanner(catalog.New(projects), nil)

	commits, err := scanner.RecentCommits(ctx, projects[1], 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, commits, 1)
	assert.Equal(t, "initial", commits[0].Message)

	commits, err = scanner.RecentCommits(ctx, projects[0], 24*time.Hour)
	require.NoError(t, err)
	assert.Empty(t, commits)

	stale := scanner.StaleProjects(ctx, 24*time.Hour)
	require.Len(t, stale, 1)
	assert.Equal(t, "old", stale[0].ID)
}
