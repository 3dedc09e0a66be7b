package reflector

import (
	"time"

	"github.com/fyrsmithlabs/devjournal/internal/journal"
	"github.com/fyrsmithlabs/devjournal/internal/signature"
)

// analysis is the causal reconstruction of one session.
type analysis struct {
	Resolved   bool
	Winner     *journal.Entry
	WinnerPos  int // 1-indexed among all hypotheses, 0 if unresolved or if the fix is not a hypothesis
	Losers     []journal.Entry
	Neutral    []journal.Entry
	Hypotheses []journal.Entry
	Signature  string
	TimeToFix  time.Duration
	FixedAt    time.Time // first passing run, zero if unresolved
}

// analyze replays a session's entries and test runs in timestamp order.
//
// The winner is the latest hypothesis logged strictly before the first
// passing run. A caller-supplied fix entry is authoritative over that
// inference: if it names a hypothesis, that hypothesis wins; if it names
// any other entry, that entry becomes the fix point. Losers are hypotheses
// that saw at least one failing run between them and the eventual success;
// anything else stays neutral.
func analyze(entries []journal.Entry, runs []journal.TestRun, fixEntryID string, now time.Time) *analysis {
	an := &analysis{}

	for i := range entries {
		e := entries[i]
		switch e.Type {
		case journal.EntryAIHypothesis:
			an.Hypotheses = append(an.Hypotheses, e)
		case journal.EntryErrorLog:
			if an.Signature == "" {
				raw := e.Summary
				if raw == "" {
					raw = e.Detail
				}
				an.Signature = signature.Canonicalize(raw)
			}
		}
	}

	var failures []time.Time
	for _, r := range runs {
		if r.Passing() {
			if an.FixedAt.IsZero() || r.CreatedAt.Before(an.FixedAt) {
				an.FixedAt = r.CreatedAt
			}
		} else {
			failures = append(failures, r.CreatedAt)
		}
	}
	an.Resolved = !an.FixedAt.IsZero()

	if len(entries) > 0 {
		start := entries[0].CreatedAt
		if an.Resolved {
			an.TimeToFix = an.FixedAt.Sub(start)
		} else {
			an.TimeToFix = now.Sub(start)
		}
	}

	if an.Resolved {
		for i := range an.Hypotheses {
			h := &an.Hypotheses[i]
			if h.ID == fixEntryID {
				an.Winner, an.WinnerPos = h, i+1
				break
			}
			if h.CreatedAt.Before(an.FixedAt) {
				an.Winner, an.WinnerPos = h, i+1
			}
		}
		if fixEntryID != "" && (an.Winner == nil || an.Winner.ID != fixEntryID) {
			// The pinned entry is not a hypothesis. Honor it anyway.
			for i := range entries {
				if entries[i].ID == fixEntryID {
					an.Winner, an.WinnerPos = &entries[i], 0
					break
				}
			}
		}
	}

	for i := range an.Hypotheses {
		h := an.Hypotheses[i]
		if an.Winner != nil && h.ID == an.Winner.ID {
			continue
		}
		if an.Resolved && failedAfter(h.CreatedAt, an.FixedAt, failures) {
			an.Losers = append(an.Losers, h)
		} else {
			an.Neutral = append(an.Neutral, h)
		}
	}
	return an
}

// failedAfter reports whether any failing run landed between the hypothesis
// and the eventual success.
func failedAfter(hypothesis, success time.Time, failures []time.Time) bool {
	for _, f := range failures {
		if f.After(hypothesis) && f.Before(success) {
			return true
		}
	}
	return false
}
