package detector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		path string
		want FileCategory
	}{
		{"internal/server/handler.go", CategoryCode},
		{"src/auth.ts", CategoryCode},
		{"scripts/migrate.sql", CategoryCode},
		{"config/app.yaml", CategoryConfig},
		{".env", CategoryConfig},
		{"go.mod", CategoryManifest},
		{"frontend/package.json", CategoryManifest},
		{"README.md", CategoryDocs},
		{"assets/logo.png", CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Categorize(tt.path))
		})
	}
}

func TestClassify_Significance(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		change ChangeType
		want   bool
	}{
		{"manifest always significant", "go.mod", ChangeModified, true},
		{"nested manifest", "api/package.json", ChangeModified, true},
		{"ai context file", "CLAUDE.md", ChangeModified, true},
		{"makefile", "Makefile", ChangeModified, true},
		{"new source file", "internal/new.go", ChangeAdded, true},
		{"deleted source file", "internal/old.go", ChangeDeleted, true},
		{"modified source file", "internal/main.go", ChangeModified, false},
		{"modified doc", "docs/notes.md", ChangeModified, false},
		{"added asset", "img/icon.png", ChangeAdded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Classify("proj-1", tt.path, tt.change)
			assert.Equal(t, tt.want, ev.Significant)
			assert.Equal(t, "proj-1", ev.ProjectID)
			assert.Equal(t, tt.change, ev.Type)
		})
	}
}
