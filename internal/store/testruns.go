package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/devjournal/internal/journal"
)

// RecordTestRun persists one ingested run. EntryID must reference the
// TEST_RUN journal entry the run is linked to.
func (s *Store) RecordTestRun(ctx context.Context, run *journal.TestRun) error {
	if run.EntryID == "" || run.ProjectID == "" {
		return fmt.Errorf("test run entry_id and project_id are required")
	}
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = journal.TestPassed
		if run.Failed > 0 {
			run.Status = journal.TestFailed
		}
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO test_runs
			(id, entry_id, project_id, session_id, source_file, total, passed,
			 failed, skipped, duration_ms, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.EntryID, run.ProjectID, run.SessionID, run.SourceFile,
		run.Total, run.Passed, run.Failed, run.Skipped,
		run.Duration.Milliseconds(), run.Status, toMillis(run.CreatedAt))
	if err != nil {
		return fmt.Errorf("record test run: %w", err)
	}
	return nil
}

// RecordTestResults persists the per-case results of a run.
func (s *Store) RecordTestResults(ctx context.Context, results []journal.TestResult) error {
	for i := range results {
		r := &results[i]
		if r.RunID == "" {
			return fmt.Errorf("test result run_id is required")
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = time.Now()
		}
		_, err := s.q.ExecContext(ctx, `
			INSERT INTO test_results
				(id, run_id, name, file, status, duration_ms, error_message,
				 error_signature, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.RunID, r.Name, r.File, r.Status, r.Duration.Milliseconds(),
			r.ErrorMessage, r.ErrorSignature, toMillis(r.CreatedAt))
		if err != nil {
			return fmt.Errorf("record test result %s: %w", r.Name, err)
		}
	}
	return nil
}

// TestRunsForSession returns a session's runs in chronological order.
func (s *Store) TestRunsForSession(ctx context.Context, sessionID string) ([]journal.TestRun, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, entry_id, project_id, session_id, source_file, total, passed,
		       failed, skipped, duration_ms, status, created_at
		FROM test_runs WHERE session_id = ? ORDER BY created_at ASC, id ASC`,
		sessionID)
	if err != nil {
		return nil, fmt.Errorf("test runs for session: %w", err)
	}
	defer rows.Close()

	var runs []journal.TestRun
	for rows.Next() {
		var run journal.TestRun
		var durMs, created int64
		if err := rows.Scan(&run.ID, &run.EntryID, &run.ProjectID, &run.SessionID,
			&run.SourceFile, &run.Total, &run.Passed, &run.Failed, &run.Skipped,
			&durMs, &run.Status, &created); err != nil {
			return nil, err
		}
		run.Duration = time.Duration(durMs) * time.Millisecond
		run.CreatedAt = fromMillis(created)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// FlakyTests aggregates pass/fail ratios per test name+file over the
// trailing window. Only tests with both outcomes present inside the window
// qualify; ERROR counts as a failure.
func (s *Store) FlakyTests(ctx context.Context, window time.Duration) ([]journal.FlakyTest, error) {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	cutoff := toMillis(time.Now().Add(-window))

	rows, err := s.q.QueryContext(ctx, `
		SELECT name, file,
		       SUM(CASE WHEN status = 'PASSED' THEN 1 ELSE 0 END) AS passes,
		       SUM(CASE WHEN status IN ('FAILED','ERROR') THEN 1 ELSE 0 END) AS failures,
		       MAX(created_at) AS last_seen
		FROM test_results
		WHERE created_at >= ?
		GROUP BY name, file
		HAVING SUM(CASE WHEN status = 'PASSED' THEN 1 ELSE 0 END) > 0
		   AND SUM(CASE WHEN status IN ('FAILED','ERROR') THEN 1 ELSE 0 END) > 0
		ORDER BY CAST(SUM(CASE WHEN status IN ('FAILED','ERROR') THEN 1 ELSE 0 END) AS REAL)
		         / (SUM(CASE WHEN status = 'PASSED' THEN 1 ELSE 0 END)
		            + SUM(CASE WHEN status IN ('FAILED','ERROR') THEN 1 ELSE 0 END)) DESC`,
		cutoff)
	if err != nil {
		return nil, fmt.Errorf("flaky tests: %w", err)
	}
	defer rows.Close()

	var flaky []journal.FlakyTest
	for rows.Next() {
		var f journal.FlakyTest
		var lastSeen int64
		if err := rows.Scan(&f.Name, &f.File, &f.Passes, &f.Failures, &lastSeen); err != nil {
			return nil, err
		}
		f.FlakinessPct = float64(f.Failures) / float64(f.Passes+f.Failures) * 100
		f.LastSeen = fromMillis(lastSeen)
		flaky = append(flaky, f)
	}
	return flaky, rows.Err()
}
