package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/devjournal/internal/journal"
)

const entryColumns = `id, project_id, session_id, parent_id, entry_type,
	summary, detail, outcome, strategy_tags, created_at`

// EntryFilter narrows ListEntries. Zero values mean "no constraint".
type EntryFilter struct {
	ProjectID string
	SessionID string
	Type      journal.EntryType
	Since     time.Time
	Limit     int
}

// AppendEntry inserts one immutable journal entry and returns its id.
// A missing id and timestamp are filled in; outcome and strategy tags are
// reserved for the reflector and ignored here.
func (s *Store) AppendEntry(ctx context.Context, e *journal.Entry) (string, error) {
	if e.ProjectID == "" {
		return "", fmt.Errorf("entry project_id is required")
	}
	if !journal.ValidEntryType(e.Type) {
		return "", fmt.Errorf("invalid entry type %q", e.Type)
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err := s.q.ExecContext(ctx, `
		INSERT INTO journal_entries
			(id, project_id, session_id, parent_id, entry_type, summary, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ProjectID, e.SessionID, e.ParentID, e.Type, e.Summary, e.Detail,
		toMillis(e.CreatedAt))
	if err != nil {
		return "", fmt.Errorf("append entry: %w", err)
	}
	return e.ID, nil
}

// GetEntry returns one entry or ErrNotFound.
func (s *Store) GetEntry(ctx context.Context, id string) (*journal.Entry, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// EntriesForSession returns a session's entries in chronological order; the
// reflector's causal reconstruction depends on this ordering.
func (s *Store) EntriesForSession(ctx context.Context, sessionID string) ([]journal.Entry, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM journal_entries
		WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("entries for session: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// ListEntries returns entries matching the filter, newest first.
func (s *Store) ListEntries(ctx context.Context, f EntryFilter) ([]journal.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM journal_entries WHERE 1=1`
	var args []any
	if f.ProjectID != "" {
		query += ` AND project_id = ?`
		args = append(args, f.ProjectID)
	}
	if f.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, f.SessionID)
	}
	if f.Type != "" {
		query += ` AND entry_type = ?`
		args = append(args, f.Type)
	}
	if !f.Since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, toMillis(f.Since))
	}
	query += ` ORDER BY created_at DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// AnnotateEntry writes the reflector-derived outcome and strategy tags onto
// an entry. This is the one place entries are mutated post-creation, and
// only these two fields.
func (s *Store) AnnotateEntry(ctx context.Context, id string, outcome journal.Outcome, tags []string) error {
	encoded, err := encodeTags(tags)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx,
		`UPDATE journal_entries SET outcome = ?, strategy_tags = ? WHERE id = ?`,
		outcome, encoded, id)
	if err != nil {
		return fmt.Errorf("annotate entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func encodeTags(tags []string) (string, error) {
	if len(tags) == 0 {
		return "", nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encode strategy tags: %w", err)
	}
	return string(b), nil
}

func scanEntry(row rowScanner) (*journal.Entry, error) {
	var e journal.Entry
	var tags string
	var created int64
	if err := row.Scan(&e.ID, &e.ProjectID, &e.SessionID, &e.ParentID, &e.Type,
		&e.Summary, &e.Detail, &e.Outcome, &tags, &created); err != nil {
		return nil, err
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &e.StrategyTags); err != nil {
			return nil, fmt.Errorf("decode strategy tags: %w", err)
		}
	}
	e.CreatedAt = fromMillis(created)
	return &e, nil
}

func collectEntries(rows *sql.Rows) ([]journal.Entry, error) {
	var entries []journal.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}
