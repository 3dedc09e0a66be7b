package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devjournal/internal/journal"
)

const sessionColumns = `id, project_id, goal, status, reflection_status,
	started_at, ended_at, summary, winning_strategy, time_to_fix_ms,
	hypothesis_count, fix_entry_id`

// UpsertProject records or refreshes a catalog entry. The catalog itself is
// owned by the surrounding indexer; this is the mirror the core reads from.
func (s *Store) UpsertProject(ctx context.Context, p journal.Project) error {
	if p.ID == "" || p.RootPath == "" {
		return fmt.Errorf("project id and root_path are required")
	}
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO projects (id, name, root_path, language, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			root_path = excluded.root_path,
			language = excluded.language`,
		p.ID, p.Name, p.RootPath, p.Language, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	return nil
}

// Projects returns all known catalog entries.
func (s *Store) Projects(ctx context.Context) ([]journal.Project, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, root_path, language FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []journal.Project
	for rows.Next() {
		var p journal.Project
		if err := rows.Scan(&p.ID, &p.Name, &p.RootPath, &p.Language); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProject looks up one catalog entry by id.
func (s *Store) GetProject(ctx context.Context, id string) (*journal.Project, error) {
	var p journal.Project
	err := s.q.QueryRowContext(ctx,
		`SELECT id, name, root_path, language FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.RootPath, &p.Language)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &p, nil
}

// StartSession creates a new IN_PROGRESS session for a project and writes
// its SESSION_START journal entry. One in-progress session per project is
// the intended invariant; it is not force-unique at this layer.
func (s *Store) StartSession(ctx context.Context, projectID, goal string) (*journal.Session, error) {
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &journal.Session{
		ID:               uuid.New().String(),
		ProjectID:        projectID,
		Goal:             goal,
		Status:           journal.SessionInProgress,
		ReflectionStatus: journal.ReflectionPending,
		StartedAt:        now,
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO sessions (id, project_id, goal, status, reflection_status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.ProjectID, sess.Goal, sess.Status, sess.ReflectionStatus, toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	if _, err := s.AppendEntry(ctx, &journal.Entry{
		ProjectID: projectID,
		SessionID: sess.ID,
		Type:      journal.EntrySessionStart,
		Summary:   goal,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("session started",
		zap.String("session_id", sess.ID), zap.String("project_id", projectID))
	return sess, nil
}

// EndSession transitions a session out of IN_PROGRESS, records the
// SESSION_END entry and returns the updated session. fixEntryID, when
// supplied, is the caller's authoritative statement of which entry fixed the
// bug; the reflector prefers it over timestamp inference. Reflection itself
// is triggered by the reflector service wrapping this call.
func (s *Store) EndSession(ctx context.Context, id string, status journal.SessionStatus, summary, fixEntryID string) (*journal.Session, error) {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = s.q.ExecContext(ctx, `
		UPDATE sessions SET status = ?, ended_at = ?, summary = ?, fix_entry_id = ?
		WHERE id = ?`,
		status, toMillis(now), summary, fixEntryID, id)
	if err != nil {
		return nil, fmt.Errorf("end session: %w", err)
	}

	if _, err := s.AppendEntry(ctx, &journal.Entry{
		ProjectID: sess.ProjectID,
		SessionID: id,
		Type:      journal.EntrySessionEnd,
		Summary:   summary,
	}); err != nil {
		return nil, err
	}

	return s.GetSession(ctx, id)
}

// GetSession returns one session or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (*journal.Session, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// ActiveSession returns the most recent IN_PROGRESS session for a project,
// or nil if there is none. Convenience helper only; callers should thread
// explicit session ids wherever they can.
func (s *Store) ActiveSession(ctx context.Context, projectID string) (*journal.Session, error) {
	row := s.q.QueryRowContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE project_id = ? AND status = ?
		ORDER BY started_at DESC LIMIT 1`,
		projectID, journal.SessionInProgress)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active session: %w", err)
	}
	return sess, nil
}

// RecentSessions returns up to limit sessions, newest first.
func (s *Store) RecentSessions(ctx context.Context, limit int) ([]journal.Session, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// PendingSessions returns COMPLETED sessions whose reflection is still
// PENDING, oldest first, for the maintenance sweep.
func (s *Store) PendingSessions(ctx context.Context) ([]journal.Session, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions
		WHERE status = ? AND reflection_status = ?
		ORDER BY ended_at ASC`,
		journal.SessionCompleted, journal.ReflectionPending)
	if err != nil {
		return nil, fmt.Errorf("pending sessions: %w", err)
	}
	defer rows.Close()
	return collectSessions(rows)
}

// SetReflectionStatus moves a session between reflection states.
func (s *Store) SetReflectionStatus(ctx context.Context, id string, status journal.ReflectionStatus) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE sessions SET reflection_status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set reflection status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// SaveSessionAnalysis writes the reflector-derived fields and marks the
// session ANALYZED in one statement.
func (s *Store) SaveSessionAnalysis(ctx context.Context, id, winningStrategy string, timeToFix time.Duration, hypothesisCount int, fixEntryID string) error {
	res, err := s.q.ExecContext(ctx, `
		UPDATE sessions SET
			reflection_status = ?,
			winning_strategy = ?,
			time_to_fix_ms = ?,
			hypothesis_count = ?,
			fix_entry_id = ?
		WHERE id = ?`,
		journal.ReflectionAnalyzed, winningStrategy, timeToFix.Milliseconds(),
		hypothesisCount, fixEntryID, id)
	if err != nil {
		return fmt.Errorf("save session analysis: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*journal.Session, error) {
	var sess journal.Session
	var started, ended, fixMs int64
	if err := row.Scan(&sess.ID, &sess.ProjectID, &sess.Goal, &sess.Status,
		&sess.ReflectionStatus, &started, &ended, &sess.Summary,
		&sess.WinningStrategy, &fixMs, &sess.HypothesisCount, &sess.FixEntryID); err != nil {
		return nil, err
	}
	sess.StartedAt = fromMillis(started)
	sess.EndedAt = fromMillis(ended)
	sess.TimeToFix = time.Duration(fixMs) * time.Millisecond
	return &sess, nil
}

func collectSessions(rows *sql.Rows) ([]journal.Session, error) {
	var sessions []journal.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}
