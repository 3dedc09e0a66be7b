// Package detector watches project file trees and git working copies and
// emits classified change events.
//
// Two operating modes are provided: a continuous fsnotify-based watch with
// debounced batching (Watcher), and a point-in-time git status scan
// (Scanner) that produces the same event shape without a live watcher.
package detector

import (
	"path/filepath"
	"strings"
	"time"
)

// ChangeType classifies what happened to a file.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeDeleted  ChangeType = "deleted"
)

// FileCategory is a coarse content category derived from the filename.
type FileCategory string

const (
	CategoryCode     FileCategory = "code"
	CategoryConfig   FileCategory = "config"
	CategoryManifest FileCategory = "dependency-manifest"
	CategoryDocs     FileCategory = "docs"
	CategoryOther    FileCategory = "other"
)

// ChangeEvent is one classified file-level change.
type ChangeEvent struct {
	ProjectID   string
	Path        string // relative to the project root where possible
	Type        ChangeType
	Category    FileCategory
	Significant bool
	DetectedAt  time.Time
}

// alwaysSignificant names files whose change is always significant:
// dependency manifests, build and project config, AI-context files.
var alwaysSignificant = map[string]bool{
	"go.mod":             true,
	"go.sum":             true,
	"package.json":       true,
	"package-lock.json":  true,
	"yarn.lock":          true,
	"pnpm-lock.yaml":     true,
	"requirements.txt":   true,
	"pyproject.toml":     true,
	"Cargo.toml":         true,
	"Cargo.lock":         true,
	"pom.xml":            true,
	"build.gradle":       true,
	"Makefile":           true,
	"Dockerfile":         true,
	"docker-compose.yml": true,
	"CLAUDE.md":          true,
	"AGENTS.md":          true,
	".cursorrules":       true,
}

var manifestNames = map[string]bool{
	"go.mod":            true,
	"go.sum":            true,
	"package.json":      true,
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"requirements.txt":  true,
	"pyproject.toml":    true,
	"Cargo.toml":        true,
	"Cargo.lock":        true,
	"pom.xml":           true,
	"build.gradle":      true,
	"Gemfile":           true,
	"composer.json":     true,
}

var codeExtensions = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
	".py": true, ".rs": true, ".java": true, ".kt": true, ".rb": true,
	".c": true, ".h": true, ".cc": true, ".cpp": true, ".hpp": true,
	".cs": true, ".swift": true, ".scala": true, ".ex": true, ".exs": true,
	".php": true, ".sql": true, ".sh": true,
}

var configExtensions = map[string]bool{
	".yaml": true, ".yml": true, ".toml": true, ".ini": true,
	".json": true, ".env": true, ".conf": true, ".properties": true,
}

var docExtensions = map[string]bool{
	".md": true, ".rst": true, ".txt": true, ".adoc": true,
}

// Categorize derives the content category of a path from its filename and
// extension. Pure heuristic, never fails.
func Categorize(path string) FileCategory {
	base := filepath.Base(path)
	if manifestNames[base] {
		return CategoryManifest
	}
	ext := strings.ToLower(filepath.Ext(base))
	switch {
	case codeExtensions[ext]:
		return CategoryCode
	case configExtensions[ext]:
		return CategoryConfig
	case docExtensions[ext]:
		return CategoryDocs
	default:
		return CategoryOther
	}
}

// Classify builds a fully classified event for one raw change.
// Significance: named always-significant files are always significant;
// added or deleted source files are significant; everything else defaults
// to insignificant.
func Classify(projectID, path string, change ChangeType) ChangeEvent {
	category := Categorize(path)
	base := filepath.Base(path)

	significant := alwaysSignificant[base] || category == CategoryManifest
	if !significant && category == CategoryCode {
		significant = change == ChangeAdded || change == ChangeDeleted
	}

	return ChangeEvent{
		ProjectID:   projectID,
		Path:        path,
		Type:        change,
		Category:    category,
		Significant: significant,
		DetectedAt:  time.Now(),
	}
}
