package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/fyrsmithlabs/devjournal/internal/journal"
)

// Stats computes the summary-statistics view: session counts, run pass rate,
// hypothesis averages, first-try success rate and strategies ranked by
// success rate (derived from the AI performance log).
func (s *Store) Stats(ctx context.Context) (*journal.Stats, error) {
	var st journal.Stats

	err := s.q.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       SUM(CASE WHEN status = 'COMPLETED' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = 'ABANDONED' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN reflection_status = 'ANALYZED' THEN 1 ELSE 0 END)
		FROM sessions`).
		Scan(&st.TotalSessions, &nullInt{&st.CompletedSessions},
			&nullInt{&st.AbandonedSessions}, &nullInt{&st.AnalyzedSessions})
	if err != nil {
		return nil, fmt.Errorf("session stats: %w", err)
	}

	if err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM journal_entries`).Scan(&st.TotalEntries); err != nil {
		return nil, fmt.Errorf("entry stats: %w", err)
	}

	var passingRuns int
	err = s.q.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(CASE WHEN failed = 0 AND total > 0 THEN 1 ELSE 0 END)
		FROM test_runs`).
		Scan(&st.TotalTestRuns, &nullInt{&passingRuns})
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}
	if st.TotalTestRuns > 0 {
		st.PassRate = float64(passingRuns) / float64(st.TotalTestRuns)
	}

	// Hypothesis and first-try figures come from the performance log; only
	// resolved sessions carry a winning position.
	rows, err := s.q.QueryContext(ctx,
		`SELECT hypothesis_count, winning_position, strategies, winning_strategy, outcome
		 FROM ai_performance`)
	if err != nil {
		return nil, fmt.Errorf("performance stats: %w", err)
	}
	defer rows.Close()

	type tally struct{ success, failure int }
	byStrategy := make(map[string]*tally)
	records, firstTry, totalHyp := 0, 0, 0
	for rows.Next() {
		var hypCount, winPos int
		var strategiesJSON, winning, outcome string
		if err := rows.Scan(&hypCount, &winPos, &strategiesJSON, &winning, &outcome); err != nil {
			return nil, err
		}
		records++
		totalHyp += hypCount
		if winPos == 1 {
			firstTry++
		}

		var strategies []string
		if err := json.Unmarshal([]byte(strategiesJSON), &strategies); err != nil {
			return nil, fmt.Errorf("decode strategies: %w", err)
		}
		// One record carries at most one success: the winner. A losing
		// hypothesis sharing the winner's tag still counts as a failure.
		winnerCredited := false
		for _, strat := range strategies {
			t := byStrategy[strat]
			if t == nil {
				t = &tally{}
				byStrategy[strat] = t
			}
			if !winnerCredited && strat == winning && outcome == "FIXED" {
				t.success++
				winnerCredited = true
			} else {
				t.failure++
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if records > 0 {
		st.AvgHypotheses = float64(totalHyp) / float64(records)
		st.FirstTrySuccessPct = float64(firstTry) / float64(records) * 100
	}

	for strat, t := range byStrategy {
		st.TopStrategies = append(st.TopStrategies, journal.StrategyStat{
			Strategy:    strat,
			Successes:   t.success,
			Failures:    t.failure,
			SuccessRate: float64(t.success) / float64(t.success+t.failure),
		})
	}
	sort.Slice(st.TopStrategies, func(i, j int) bool {
		a, b := st.TopStrategies[i], st.TopStrategies[j]
		if a.SuccessRate != b.SuccessRate {
			return a.SuccessRate > b.SuccessRate
		}
		return a.Successes > b.Successes
	})

	return &st, nil
}

// nullInt scans a nullable SUM() into an int, treating NULL as zero.
type nullInt struct{ dst *int }

func (n *nullInt) Scan(src any) error {
	if src == nil {
		*n.dst = 0
		return nil
	}
	switch v := src.(type) {
	case int64:
		*n.dst = int(v)
	case float64:
		*n.dst = int(v)
	default:
		return fmt.Errorf("unexpected sum type %T", src)
	}
	return nil
}
