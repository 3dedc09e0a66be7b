// Package catalog resolves filesystem paths to known projects.
//
// The project catalog itself is owned by the surrounding indexer; this
// package is a read-only view over it plus the resolution heuristics the
// detector and ingestor share: longest-prefix matching against configured
// roots, with a fallback walk up the directory tree looking for a project
// marker (a version-control directory or a dependency manifest).
package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fyrsmithlabs/devjournal/internal/journal"
)

// ErrNoProject indicates a path could not be attributed to any known
// project. Callers drop the event with a warning rather than storing it.
var ErrNoProject = errors.New("no project resolved")

// projectMarkers are filenames whose presence identifies a directory as a
// project root during the fallback walk.
var projectMarkers = []string{
	".git",
	"go.mod",
	"package.json",
	"Cargo.toml",
	"pyproject.toml",
	"requirements.txt",
	"pom.xml",
	"build.gradle",
}

// Source supplies catalog entries. *store.Store satisfies it.
type Source interface {
	Projects(ctx context.Context) ([]journal.Project, error)
}

// Catalog is a snapshot of known projects with resolution helpers.
type Catalog struct {
	projects []journal.Project
}

// Load reads the current catalog from src. Roots are cleaned and sorted
// longest-first so prefix resolution prefers the most specific project.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	projects, err := src.Projects(ctx)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		projects[i].RootPath = filepath.Clean(projects[i].RootPath)
	}
	sort.Slice(projects, func(i, j int) bool {
		return len(projects[i].RootPath) > len(projects[j].RootPath)
	})
	return &Catalog{projects: projects}, nil
}

// New builds a catalog directly from entries, mostly for tests.
func New(projects []journal.Project) *Catalog {
	c := &Catalog{projects: append([]journal.Project(nil), projects...)}
	for i := range c.projects {
		c.projects[i].RootPath = filepath.Clean(c.projects[i].RootPath)
	}
	sort.Slice(c.projects, func(i, j int) bool {
		return len(c.projects[i].RootPath) > len(c.projects[j].RootPath)
	})
	return c
}

// Projects returns the catalog entries, most specific root first.
func (c *Catalog) Projects() []journal.Project {
	return c.projects
}

// Resolve attributes a path to a project. It first tries longest-prefix
// matching against configured roots, then walks parent directories looking
// for a project marker and matches the discovered root against the catalog.
// Returns ErrNoProject when nothing matches.
func (c *Catalog) Resolve(path string) (*journal.Project, error) {
	path = filepath.Clean(path)

	if p := c.byPrefix(path); p != nil {
		return p, nil
	}

	root, ok := findMarkerRoot(path)
	if !ok {
		return nil, ErrNoProject
	}
	for i := range c.projects {
		if c.projects[i].RootPath == root {
			return &c.projects[i], nil
		}
	}
	return nil, ErrNoProject
}

func (c *Catalog) byPrefix(path string) *journal.Project {
	for i := range c.projects {
		root := c.projects[i].RootPath
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return &c.projects[i]
		}
	}
	return nil
}

// findMarkerRoot walks from path upward until a directory containing a
// project marker is found.
func findMarkerRoot(path string) (string, bool) {
	dir := path
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	for {
		for _, marker := range projectMarkers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}
