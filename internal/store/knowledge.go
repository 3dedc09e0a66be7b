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
	"github.com/fyrsmithlabs/devjournal/internal/signature"
)

// fuzzyMatchThreshold is the minimum Jaccard similarity for a fuzzy
// signature match to be considered at all.
const fuzzyMatchThreshold = 0.5

const patternColumns = `signature, best_strategy, success_count, failure_count,
	occurrence_count, projects, avg_fix_ms, strategy_histo, created_at, updated_at`

const playbookColumns = `id, signature, title, context, success_count,
	failure_count, confidence, status, source_sessions, created_at, updated_at,
	last_used_at, last_decayed_at`

// GetPattern returns the pattern for an exact signature, or nil if none
// exists. Absence is not an error here; the reflector creates on miss.
func (s *Store) GetPattern(ctx context.Context, sig string) (*journal.Pattern, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+patternColumns+` FROM universal_patterns WHERE signature = ?`, sig)
	p, err := scanPattern(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pattern: %w", err)
	}
	return p, nil
}

// SavePattern upserts a pattern keyed by signature.
func (s *Store) SavePattern(ctx context.Context, p *journal.Pattern) error {
	if p.Signature == "" {
		return fmt.Errorf("pattern signature is required")
	}
	projects, err := json.Marshal(p.Projects)
	if err != nil {
		return fmt.Errorf("encode pattern projects: %w", err)
	}
	histo := p.StrategyHisto
	if histo == nil {
		histo = map[string]int{}
	}
	histoJSON, err := json.Marshal(histo)
	if err != nil {
		return fmt.Errorf("encode strategy histogram: %w", err)
	}

	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO universal_patterns
			(signature, best_strategy, success_count, failure_count,
			 occurrence_count, projects, avg_fix_ms, strategy_histo,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(signature) DO UPDATE SET
			best_strategy = excluded.best_strategy,
			success_count = excluded.success_count,
			failure_count = excluded.failure_count,
			occurrence_count = excluded.occurrence_count,
			projects = excluded.projects,
			avg_fix_ms = excluded.avg_fix_ms,
			strategy_histo = excluded.strategy_histo,
			updated_at = excluded.updated_at`,
		p.Signature, p.BestStrategy, p.SuccessCount, p.FailureCount,
		p.Occurrences, string(projects), p.AvgTimeToFix.Milliseconds(),
		string(histoJSON), toMillis(p.CreatedAt), toMillis(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save pattern: %w", err)
	}
	return nil
}

// ListPatterns returns patterns whose signature contains the query
// substring (all patterns when query is empty), most reinforced first.
func (s *Store) ListPatterns(ctx context.Context, query string) ([]journal.Pattern, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+patternColumns+` FROM universal_patterns
		WHERE signature LIKE '%' || ? || '%'
		ORDER BY occurrence_count DESC`, query)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	var patterns []journal.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, *p)
	}
	return patterns, rows.Err()
}

// FindPattern resolves a signature to a pattern by exact match, then
// substring, then Jaccard-ranked fuzzy match. Returns nil when nothing
// clears the fuzzy threshold; lookup never fails on a miss.
func (s *Store) FindPattern(ctx context.Context, sig string) (*journal.Pattern, error) {
	if p, err := s.GetPattern(ctx, sig); err != nil || p != nil {
		return p, err
	}
	candidates, err := s.ListPatterns(ctx, "")
	if err != nil {
		return nil, err
	}
	var best *journal.Pattern
	bestScore := fuzzyMatchThreshold
	for i := range candidates {
		score := signature.Similarity(sig, candidates[i].Signature)
		if score > bestScore {
			best = &candidates[i]
			bestScore = score
		}
	}
	return best, nil
}

// GetPlaybook returns the playbook for an exact signature, or nil.
func (s *Store) GetPlaybook(ctx context.Context, sig string) (*journal.Playbook, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+playbookColumns+` FROM playbooks WHERE signature = ?`, sig)
	pb, err := scanPlaybook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get playbook: %w", err)
	}
	return pb, nil
}

// GetPlaybookByID returns one playbook or ErrNotFound.
func (s *Store) GetPlaybookByID(ctx context.Context, id string) (*journal.Playbook, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+playbookColumns+` FROM playbooks WHERE id = ?`, id)
	pb, err := scanPlaybook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("playbook %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get playbook: %w", err)
	}
	return pb, nil
}

// FindPlaybook resolves a signature exactly, then by substring, then by
// fuzzy similarity, mirroring FindPattern.
func (s *Store) FindPlaybook(ctx context.Context, sig string) (*journal.Playbook, error) {
	if pb, err := s.GetPlaybook(ctx, sig); err != nil || pb != nil {
		return pb, err
	}

	rows, err := s.q.QueryContext(ctx, `
		SELECT `+playbookColumns+` FROM playbooks
		WHERE status != ? ORDER BY confidence DESC`, journal.PlaybookArchived)
	if err != nil {
		return nil, fmt.Errorf("find playbook: %w", err)
	}
	defer rows.Close()

	var best *journal.Playbook
	bestScore := fuzzyMatchThreshold
	for rows.Next() {
		pb, err := scanPlaybook(rows)
		if err != nil {
			return nil, err
		}
		score := signature.Similarity(sig, pb.Signature)
		if score > bestScore {
			best = pb
			bestScore = score
		}
	}
	return best, rows.Err()
}

// SavePlaybook upserts a playbook keyed by signature.
func (s *Store) SavePlaybook(ctx context.Context, pb *journal.Playbook) error {
	if pb.Signature == "" {
		return fmt.Errorf("playbook signature is required")
	}
	if pb.ID == "" {
		pb.ID = uuid.New().String()
	}
	sources, err := json.Marshal(pb.SourceSessions)
	if err != nil {
		return fmt.Errorf("encode source sessions: %w", err)
	}

	now := time.Now()
	if pb.CreatedAt.IsZero() {
		pb.CreatedAt = now
	}
	pb.UpdatedAt = now

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO playbooks
			(id, signature, title, context, success_count, failure_count,
			 confidence, status, source_sessions, created_at, updated_at,
			 last_used_at, last_decayed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(signature) DO UPDATE SET
			title = excluded.title,
			context = excluded.context,
			success_count = excluded.success_count,
			failure_count = excluded.failure_count,
			confidence = excluded.confidence,
			status = excluded.status,
			source_sessions = excluded.source_sessions,
			updated_at = excluded.updated_at,
			last_used_at = excluded.last_used_at,
			last_decayed_at = excluded.last_decayed_at`,
		pb.ID, pb.Signature, pb.Title, pb.Context, pb.SuccessCount,
		pb.FailureCount, pb.Confidence, pb.Status, string(sources),
		toMillis(pb.CreatedAt), toMillis(pb.UpdatedAt),
		toMillis(pb.LastUsedAt), toMillis(pb.LastDecayedAt))
	if err != nil {
		return fmt.Errorf("save playbook: %w", err)
	}
	return nil
}

// ListPlaybooks returns playbooks filtered by status (empty = all) with
// confidence at or above minConfidence, most trusted first.
func (s *Store) ListPlaybooks(ctx context.Context, status journal.PlaybookStatus, minConfidence float64) ([]journal.Playbook, error) {
	query := `SELECT ` + playbookColumns + ` FROM playbooks WHERE confidence >= ?`
	args := []any{minConfidence}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY confidence DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list playbooks: %w", err)
	}
	defer rows.Close()

	var playbooks []journal.Playbook
	for rows.Next() {
		pb, err := scanPlaybook(rows)
		if err != nil {
			return nil, err
		}
		playbooks = append(playbooks, *pb)
	}
	return playbooks, rows.Err()
}

// RecordPlaybookUsage appends a usage-feedback event, bumps the playbook's
// counters, recomputes its Bayesian confidence and refreshes last_used_at.
// Returns the updated playbook.
func (s *Store) RecordPlaybookUsage(ctx context.Context, playbookID, sessionID string, helpful bool) (*journal.Playbook, error) {
	pb, err := s.GetPlaybookByID(ctx, playbookID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = s.q.ExecContext(ctx, `
		INSERT INTO playbook_usage (id, playbook_id, session_id, helpful, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), playbookID, sessionID, boolToInt(helpful), toMillis(now))
	if err != nil {
		return nil, fmt.Errorf("record playbook usage: %w", err)
	}

	if helpful {
		pb.SuccessCount++
	} else {
		pb.FailureCount++
	}
	pb.Confidence = journal.BayesianConfidence(pb.SuccessCount, pb.FailureCount)
	pb.LastUsedAt = now
	if pb.Status == journal.PlaybookDraft && pb.SuccessCount >= 2 {
		pb.Status = journal.PlaybookActive
	}
	if err := s.SavePlaybook(ctx, pb); err != nil {
		return nil, err
	}
	return pb, nil
}

// RecordAIPerformance appends one per-session performance record.
func (s *Store) RecordAIPerformance(ctx context.Context, rec *journal.AIPerformance) error {
	if rec.SessionID == "" {
		return fmt.Errorf("ai performance session_id is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	strategies, err := json.Marshal(rec.Strategies)
	if err != nil {
		return fmt.Errorf("encode strategies: %w", err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO ai_performance
			(id, session_id, hypothesis_count, winning_position, strategies,
			 winning_strategy, time_to_fix_ms, signature, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.HypothesisCount, rec.WinningPosition,
		string(strategies), rec.WinningStrategy, rec.TimeToFix.Milliseconds(),
		rec.Signature, rec.Outcome, toMillis(rec.CreatedAt))
	if err != nil {
		return fmt.Errorf("record ai performance: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func scanPattern(row rowScanner) (*journal.Pattern, error) {
	var p journal.Pattern
	var projects, histo string
	var avgMs, created, updated int64
	if err := row.Scan(&p.Signature, &p.BestStrategy, &p.SuccessCount,
		&p.FailureCount, &p.Occurrences, &projects, &avgMs, &histo,
		&created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(projects), &p.Projects); err != nil {
		return nil, fmt.Errorf("decode pattern projects: %w", err)
	}
	if err := json.Unmarshal([]byte(histo), &p.StrategyHisto); err != nil {
		return nil, fmt.Errorf("decode strategy histogram: %w", err)
	}
	p.AvgTimeToFix = time.Duration(avgMs) * time.Millisecond
	p.CreatedAt = fromMillis(created)
	p.UpdatedAt = fromMillis(updated)
	return &p, nil
}

func scanPlaybook(row rowScanner) (*journal.Playbook, error) {
	var pb journal.Playbook
	var sources string
	var created, updated, lastUsed, lastDecayed int64
	if err := row.Scan(&pb.ID, &pb.Signature, &pb.Title, &pb.Context,
		&pb.SuccessCount, &pb.FailureCount, &pb.Confidence, &pb.Status,
		&sources, &created, &updated, &lastUsed, &lastDecayed); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(sources), &pb.SourceSessions); err != nil {
		return nil, fmt.Errorf("decode source sessions: %w", err)
	}
	pb.CreatedAt = fromMillis(created)
	pb.UpdatedAt = fromMillis(updated)
	pb.LastUsedAt = fromMillis(lastUsed)
	pb.LastDecayedAt = fromMillis(lastDecayed)
	return &pb, nil
}
