package reflector

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/devjournal/internal/journal"
	"github.com/fyrsmithlabs/devjournal/internal/store"
)

const (
	// playbookMinSuccesses is how many independent pattern successes it
	// takes before a draft playbook is worth writing.
	playbookMinSuccesses = 2
	// playbookInitialConfidence is the neutral prior for a new draft.
	playbookInitialConfidence = 0.6

	// decayFactor is applied once per sweep to playbooks unused for the
	// stale window, so shelfware loses trust without being deleted.
	decayFactor = 0.995
	staleWindow = 30 * 24 * time.Hour
	// decayGuard keys decay to wall-clock elapsed since the last decay,
	// so repeated sweeps in one day cannot compound it.
	decayGuard = 24 * time.Hour

	// archiveFloor and archiveMinEvidence gate auto-archival: the score
	// has to be low and backed by enough feedback to mean something.
	archiveFloor       = 0.2
	archiveMinEvidence = 5
)

// Service drives reflection. It holds no state across invocations; every
// run re-derives its analysis from the store.
type Service struct {
	store      *store.Store
	classifier Classifier
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClassifier swaps the strategy classifier.
func WithClassifier(c Classifier) Option {
	return func(s *Service) { s.classifier = c }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a reflector backed by st.
func NewService(st *store.Store, opts ...Option) *Service {
	s := &Service{
		store:      st,
		classifier: DefaultClassifier(),
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CompleteSession closes a session and, for completed sessions, runs
// reflection synchronously before returning. Abandoned sessions are marked
// SKIPPED and excluded from learning.
func (s *Service) CompleteSession(ctx context.Context, id string, status journal.SessionStatus, summary, fixEntryID string) (*journal.Session, error) {
	sess, err := s.store.EndSession(ctx, id, status, summary, fixEntryID)
	if err != nil {
		return nil, err
	}

	switch status {
	case journal.SessionCompleted:
		if err := s.ReflectSession(ctx, id); err != nil {
			return sess, fmt.Errorf("reflect session %s: %w", id, err)
		}
		return s.store.GetSession(ctx, id)
	case journal.SessionAbandoned:
		if err := s.store.SetReflectionStatus(ctx, id, journal.ReflectionSkipped); err != nil {
			return sess, err
		}
	}
	return sess, nil
}

// ReflectSession analyzes one session and folds the outcome into the
// knowledge base. Already-analyzed and skipped sessions are no-ops. The
// whole update runs in one transaction so a crash mid-reflection leaves
// the session PENDING and re-runnable.
func (s *Service) ReflectSession(ctx context.Context, sessionID string) error {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	switch sess.ReflectionStatus {
	case journal.ReflectionAnalyzed, journal.ReflectionSkipped:
		return nil
	}

	return s.store.WithTx(ctx, func(tx *store.Store) error {
		return s.reflect(ctx, tx, sess)
	})
}

func (s *Service) reflect(ctx context.Context, tx *store.Store, sess *journal.Session) error {
	entries, err := tx.EntriesForSession(ctx, sess.ID)
	if err != nil {
		return err
	}
	runs, err := tx.TestRunsForSession(ctx, sess.ID)
	if err != nil {
		return err
	}

	an := analyze(entries, runs, sess.FixEntryID, s.now())

	// A caller-supplied fix entry id is written back verbatim; only when
	// none was supplied does the inferred winner fill it in.
	fixEntryID := sess.FixEntryID
	var winningStrategy string
	var strategies []string
	if an.Winner != nil {
		tags := s.classifier.Classify(an.Winner.Summary)
		winningStrategy = tags[0]
		if fixEntryID == "" {
			fixEntryID = an.Winner.ID
		}
		if err := tx.AnnotateEntry(ctx, an.Winner.ID, journal.OutcomeSuccess, tags); err != nil {
			return err
		}
	}
	for _, h := range an.Losers {
		tags := s.classifier.Classify(h.Summary)
		strategies = append(strategies, tags[0])
		if err := tx.AnnotateEntry(ctx, h.ID, journal.OutcomeFailure, tags); err != nil {
			return err
		}
	}
	for _, h := range an.Neutral {
		tags := s.classifier.Classify(h.Summary)
		strategies = append(strategies, tags[0])
		if err := tx.AnnotateEntry(ctx, h.ID, journal.OutcomeNeutral, tags); err != nil {
			return err
		}
	}
	if winningStrategy != "" {
		strategies = append(strategies, winningStrategy)
	}

	if err := tx.SaveSessionAnalysis(ctx, sess.ID, winningStrategy,
		an.TimeToFix, len(an.Hypotheses), fixEntryID); err != nil {
		return err
	}

	if an.Signature != "" {
		if an.Resolved && winningStrategy != "" {
			if err := s.reinforceSuccess(ctx, tx, sess, an, winningStrategy); err != nil {
				return err
			}
		} else if !an.Resolved {
			if err := s.reinforceFailure(ctx, tx, sess, an); err != nil {
				return err
			}
		}
	}

	outcome := "ABANDONED"
	if an.Resolved {
		outcome = "FIXED"
	}
	if err := tx.RecordAIPerformance(ctx, &journal.AIPerformance{
		SessionID:       sess.ID,
		HypothesisCount: len(an.Hypotheses),
		WinningPosition: an.WinnerPos,
		Strategies:      strategies,
		WinningStrategy: winningStrategy,
		TimeToFix:       an.TimeToFix,
		Signature:       an.Signature,
		Outcome:         outcome,
	}); err != nil {
		return err
	}

	s.logger.Info("session reflected",
		zap.String("session_id", sess.ID),
		zap.Bool("resolved", an.Resolved),
		zap.Int("hypotheses", len(an.Hypotheses)),
		zap.String("winning_strategy", winningStrategy),
		zap.Duration("time_to_fix", an.TimeToFix))
	return nil
}

// reinforceSuccess folds a resolved session into the universal pattern for
// its signature and grows or reinforces the matching playbook.
func (s *Service) reinforceSuccess(ctx context.Context, tx *store.Store, sess *journal.Session, an *analysis, strategy string) error {
	p, err := tx.GetPattern(ctx, an.Signature)
	if err != nil {
		return err
	}
	if p == nil {
		p = &journal.Pattern{
			Signature:     an.Signature,
			BestStrategy:  strategy,
			SuccessCount:  1,
			Occurrences:   1,
			Projects:      []string{sess.ProjectID},
			AvgTimeToFix:  an.TimeToFix,
			StrategyHisto: map[string]int{strategy: 1},
		}
	} else {
		// Weighted incorporation: the running average is over prior
		// successes, so the new sample carries 1/(n+1) weight.
		n := p.SuccessCount
		p.AvgTimeToFix = time.Duration(
			(float64(p.AvgTimeToFix)*float64(n) + float64(an.TimeToFix)) / float64(n+1))
		p.SuccessCount++
		p.Occurrences++
		p.Projects = mergeProject(p.Projects, sess.ProjectID)
		if p.StrategyHisto == nil {
			p.StrategyHisto = map[string]int{}
		}
		p.StrategyHisto[strategy]++
		p.BestStrategy = histogramMode(p.StrategyHisto, p.BestStrategy)
	}
	if err := tx.SavePattern(ctx, p); err != nil {
		return err
	}

	pb, err := tx.GetPlaybook(ctx, an.Signature)
	if err != nil {
		return err
	}
	switch {
	case pb == nil && p.SuccessCount >= playbookMinSuccesses:
		pb = &journal.Playbook{
			Signature:      an.Signature,
			Title:          fmt.Sprintf("%s for %q", p.BestStrategy, an.Signature),
			Context:        playbookContext(p),
			SuccessCount:   1,
			Confidence:     playbookInitialConfidence,
			Status:         journal.PlaybookDraft,
			SourceSessions: []string{sess.ID},
		}
		if err := tx.SavePlaybook(ctx, pb); err != nil {
			return err
		}
		s.logger.Info("playbook drafted",
			zap.String("signature", an.Signature),
			zap.String("strategy", p.BestStrategy))
	case pb != nil && pb.Status != journal.PlaybookArchived:
		if _, err := tx.RecordPlaybookUsage(ctx, pb.ID, sess.ID, true); err != nil {
			return err
		}
	}
	return nil
}

// reinforceFailure counts an unresolved session against the pattern so the
// counters stay honest, without disturbing the best-known strategy.
func (s *Service) reinforceFailure(ctx context.Context, tx *store.Store, sess *journal.Session, an *analysis) error {
	p, err := tx.GetPattern(ctx, an.Signature)
	if err != nil {
		return err
	}
	if p == nil {
		p = &journal.Pattern{
			Signature:    an.Signature,
			FailureCount: 1,
			Occurrences:  1,
			Projects:     []string{sess.ProjectID},
		}
	} else {
		p.FailureCount++
		p.Occurrences++
		p.Projects = mergeProject(p.Projects, sess.ProjectID)
	}
	return tx.SavePattern(ctx, p)
}

// Report summarizes one maintenance sweep.
type Report struct {
	SessionsReflected int
	PlaybooksDecayed  int
	PlaybooksArchived int
}

// Maintain runs the maintenance sweep: reflect every pending completed
// session, decay stale playbooks and archive the ones whose low confidence
// is backed by enough evidence. Safe to run repeatedly.
func (s *Service) Maintain(ctx context.Context) (*Report, error) {
	rep := &Report{}

	pending, err := s.store.PendingSessions(ctx)
	if err != nil {
		return nil, err
	}
	for _, sess := range pending {
		if err := s.ReflectSession(ctx, sess.ID); err != nil {
			s.logger.Warn("sweep reflection failed",
				zap.String("session_id", sess.ID), zap.Error(err))
			continue
		}
		rep.SessionsReflected++
	}

	playbooks, err := s.store.ListPlaybooks(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range playbooks {
		pb := &playbooks[i]
		if pb.Status == journal.PlaybookArchived {
			continue
		}
		changed := false

		if pb.Status == journal.PlaybookActive && s.shouldDecay(pb, now) {
			pb.Confidence *= decayFactor
			pb.LastDecayedAt = now
			changed = true
			rep.PlaybooksDecayed++
		}

		if pb.Confidence < archiveFloor && pb.SuccessCount+pb.FailureCount >= archiveMinEvidence {
			pb.Status = journal.PlaybookArchived
			changed = true
			rep.PlaybooksArchived++
			s.logger.Info("playbook archived",
				zap.String("signature", pb.Signature),
				zap.Float64("confidence", pb.Confidence))
		}

		if changed {
			if err := s.store.SavePlaybook(ctx, pb); err != nil {
				return nil, err
			}
		}
	}
	return rep, nil
}

// shouldDecay guards decay on both the stale window and the elapsed time
// since the previous decay, so two sweeps in one day only decay once.
func (s *Service) shouldDecay(pb *journal.Playbook, now time.Time) bool {
	ref := pb.LastUsedAt
	if ref.IsZero() {
		ref = pb.CreatedAt
	}
	if now.Sub(ref) < staleWindow {
		return false
	}
	return pb.LastDecayedAt.IsZero() || now.Sub(pb.LastDecayedAt) >= decayGuard
}

func mergeProject(projects []string, id string) []string {
	for _, p := range projects {
		if p == id {
			return projects
		}
	}
	return append(projects, id)
}

// histogramMode returns the most-seen strategy, preferring the incumbent
// on ties so the best-known strategy never flaps.
func histogramMode(histo map[string]int, current string) string {
	best, bestN := current, histo[current]
	for tag, n := range histo {
		if n > bestN || (n == bestN && best != current && tag < best) {
			best, bestN = tag, n
		}
	}
	return best
}

// playbookContext renders the narrative seed for a new draft playbook.
func playbookContext(p *journal.Pattern) string {
	return fmt.Sprintf(
		"Seen %d times across %d project(s). Best known strategy: %s. Average time to fix: %s.",
		p.Occurrences, len(p.Projects), p.BestStrategy, p.AvgTimeToFix.Round(time.Second))
}
