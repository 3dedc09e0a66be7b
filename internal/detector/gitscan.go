package detector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devjournal/internal/catalog"
	"github.com/fyrsmithlabs/devjournal/internal/journal"
)

// ErrNotGitRepo indicates the project root is not under version control.
var ErrNotGitRepo = errors.New("not a git repository")

// Commit is one commit inside the trailing history window.
type Commit struct {
	Hash    string
	Author  string
	Message string
	When    time.Time
}

// Scanner is the point-in-time operating mode: it diffs each project's
// working tree against HEAD and produces the same event shape as the
// continuous watcher, without holding a live watch.
type Scanner struct {
	cat    *catalog.Catalog
	logger *zap.Logger
}

// NewScanner creates a scanner over the catalog's projects.
func NewScanner(cat *catalog.Catalog, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{cat: cat, logger: logger}
}

// ScanStatus diffs one project's working tree against HEAD.
func (s *Scanner) ScanStatus(ctx context.Context, project journal.Project) ([]ChangeEvent, error) {
	repo, err := git.PlainOpen(project.RootPath)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotGitRepo, project.RootPath)
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("working tree status: %w", err)
	}

	var events []ChangeEvent
	for path, fs := range status {
		change, ok := changeFromStatus(fs)
		if !ok {
			continue
		}
		events = append(events, Classify(project.ID, path, change))
	}
	return events, nil
}

// ScanAll runs ScanStatus over every catalog project. A project whose root
// is inaccessible or whose git open fails is skipped for this cycle, not
// fatal to the batch.
func (s *Scanner) ScanAll(ctx context.Context) map[string][]ChangeEvent {
	out := make(map[string][]ChangeEvent)
	for _, p := range s.cat.Projects() {
		events, err := s.ScanStatus(ctx, p)
		if err != nil {
			s.logger.Warn("skipping project this cycle",
				zap.String("project_id", p.ID), zap.Error(err))
			continue
		}
		out[p.ID] = events
	}
	return out
}

// RecentCommits lists a project's commits inside the trailing window,
// newest first.
func (s *Scanner) RecentCommits(ctx context.Context, project journal.Project, window time.Duration) ([]Commit, error) {
	repo, err := git.PlainOpen(project.RootPath)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotGitRepo, project.RootPath)
		}
		return nil, fmt.Errorf("open repository: %w", err)
	}

	since := time.Now().Add(-window)
	iter, err := repo.Log(&git.LogOptions{Since: &since})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var commits []Commit
	err = iter.ForEach(func(c *object.Commit) error {
		commits = append(commits, Commit{
			Hash:    c.Hash.String(),
			Author:  c.Author.Name,
			Message: strings.TrimSpace(c.Message),
			When:    c.Author.When,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return commits, nil
}

// StaleProjects flags projects with no commits inside the window. Projects
// that cannot be scanned are skipped with a warning rather than reported.
func (s *Scanner) StaleProjects(ctx context.Context, window time.Duration) []journal.Project {
	var stale []journal.Project
	for _, p := range s.cat.Projects() {
		commits, err := s.RecentCommits(ctx, p, window)
		if err != nil {
			s.logger.Warn("cannot determine staleness",
				zap.String("project_id", p.ID), zap.Error(err))
			continue
		}
		if len(commits) == 0 {
			stale = append(stale, p)
		}
	}
	return stale
}

// changeFromStatus maps a go-git file status to a change type. The worktree
// side wins over staging when both carry a change.
func changeFromStatus(fs *git.FileStatus) (ChangeType, bool) {
	for _, code := range []git.StatusCode{fs.Worktree, fs.Staging} {
		switch code {
		case git.Untracked, git.Added, git.Copied:
			return ChangeAdded, true
		case git.Modified, git.Renamed, git.UpdatedButUnmerged:
			return ChangeModified, true
		case git.Deleted:
			return ChangeDeleted, true
		}
	}
	return "", false
}
