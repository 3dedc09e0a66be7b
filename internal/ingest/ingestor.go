package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devjournal/internal/catalog"
	"github.com/fyrsmithlabs/devjournal/internal/journal"
)

// Store is the slice of the journal store the ingestor writes through.
type Store interface {
	AppendEntry(ctx context.Context, e *journal.Entry) (string, error)
	RecordTestRun(ctx context.Context, run *journal.TestRun) error
	RecordTestResults(ctx context.Context, results []journal.TestResult) error
	ActiveSession(ctx context.Context, projectID string) (*journal.Session, error)
	FindPlaybook(ctx context.Context, sig string) (*journal.Playbook, error)
}

// Ingestor parses report files, attributes them to a project and records
// the canonical run/results through the store.
type Ingestor struct {
	store  Store
	cat    *catalog.Catalog
	logger *zap.Logger
}

// NewIngestor creates an ingestor.
func NewIngestor(store Store, cat *catalog.Catalog, logger *zap.Logger) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ingestor{store: store, cat: cat, logger: logger}
}

// runDetail is the structured payload stored on the TEST_RUN entry.
type runDetail struct {
	SourceFile string `json:"source_file"`
	Total      int    `json:"total"`
	Passed     int    `json:"passed"`
	Failed     int    `json:"failed"`
	Skipped    int    `json:"skipped"`
	DurationMS int64  `json:"duration_ms"`
}

// IngestFile reads, parses and stores one report file.
//
// Attribution failures (catalog.ErrNoProject) mean the run is dropped with a
// warning, not stored; it cannot be attributed to anything. The run
// attaches to the project's active session if one exists, otherwise it is
// recorded session-less. After storing, each failing case triggers a
// playbook lookup for observability; no blocking action is taken on it.
func (in *Ingestor) IngestFile(ctx context.Context, path string) (*journal.TestRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	rep, err := ParseReport(data)
	if err != nil {
		return nil, err
	}

	abs := path
	if a, err := filepath.Abs(path); err == nil {
		abs = a
	}
	project, err := in.cat.Resolve(abs)
	if err != nil {
		in.logger.Warn("dropping unattributable test run",
			zap.String("source", path), zap.Error(err))
		return nil, err
	}

	sessionID := ""
	if sess, err := in.store.ActiveSession(ctx, project.ID); err == nil && sess != nil {
		sessionID = sess.ID
	}

	detail, err := json.Marshal(runDetail{
		SourceFile: path,
		Total:      rep.Total,
		Passed:     rep.Passed,
		Failed:     rep.Failed,
		Skipped:    rep.Skipped,
		DurationMS: rep.Duration.Milliseconds(),
	})
	if err != nil {
		return nil, fmt.Errorf("encode run detail: %w", err)
	}

	entryID, err := in.store.AppendEntry(ctx, &journal.Entry{
		ProjectID: project.ID,
		SessionID: sessionID,
		Type:      journal.EntryTestRun,
		Summary:   fmt.Sprintf("%d/%d tests passed", rep.Passed, rep.Total),
		Detail:    string(detail),
	})
	if err != nil {
		return nil, err
	}

	run := &journal.TestRun{
		EntryID:    entryID,
		ProjectID:  project.ID,
		SessionID:  sessionID,
		SourceFile: path,
		Total:      rep.Total,
		Passed:     rep.Passed,
		Failed:     rep.Failed,
		Skipped:    rep.Skipped,
		Duration:   rep.Duration,
	}
	if err := in.store.RecordTestRun(ctx, run); err != nil {
		return nil, err
	}

	results := make([]journal.TestResult, len(rep.Results))
	copy(results, rep.Results)
	for i := range results {
		results[i].RunID = run.ID
	}
	if err := in.store.RecordTestResults(ctx, results); err != nil {
		return nil, err
	}

	in.surfacePlaybooks(ctx, results)

	in.logger.Info("test run ingested",
		zap.String("project_id", project.ID),
		zap.String("session_id", sessionID),
		zap.Int("total", rep.Total),
		zap.Int("failed", rep.Failed))
	return run, nil
}

// surfacePlaybooks looks up known troubleshooting knowledge for every
// failing case and logs the best match. Observability only.
func (in *Ingestor) surfacePlaybooks(ctx context.Context, results []journal.TestResult) {
	seen := make(map[string]bool)
	for _, r := range results {
		if r.ErrorSignature == "" || seen[r.ErrorSignature] {
			continue
		}
		seen[r.ErrorSignature] = true

		pb, err := in.store.FindPlaybook(ctx, r.ErrorSignature)
		if err != nil {
			in.logger.Warn("playbook lookup failed", zap.Error(err))
			continue
		}
		if pb == nil {
			continue
		}
		in.logger.Info("known failure pattern",
			zap.String("test", r.Name),
			zap.String("playbook", pb.Title),
			zap.Float64("confidence", pb.Confidence))
	}
}

// readRetries and readBackoff govern tolerance for report files still being
// written when the watcher notices them.
const (
	readRetries = 4
	readBackoff = 150 * time.Millisecond
)

// ingestWithRetry retries torn reads: a file that fails to parse may simply
// not be fully flushed yet.
func (in *Ingestor) ingestWithRetry(ctx context.Context, path string) (*journal.TestRun, error) {
	var lastErr error
	backoff := readBackoff
	for attempt := 0; attempt < readRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		run, err := in.IngestFile(ctx, path)
		if err == nil {
			return run, nil
		}
		if errors.Is(err, catalog.ErrNoProject) {
			return nil, err // retrying cannot fix attribution
		}
		lastErr = err
	}
	return nil, lastErr
}
