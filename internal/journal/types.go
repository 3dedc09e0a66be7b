// Package journal defines the domain model shared by the store, the change
// detector, the test-result ingestor and the reflector: sessions, journal
// entries, test runs and results, universal patterns and troubleshooting
// playbooks.
package journal

import (
	"time"
)

// SessionStatus is the lifecycle state of a work session.
type SessionStatus string

const (
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionAbandoned  SessionStatus = "ABANDONED"
)

// ReflectionStatus tracks whether a session has been analyzed.
type ReflectionStatus string

const (
	ReflectionPending  ReflectionStatus = "PENDING"
	ReflectionAnalyzed ReflectionStatus = "ANALYZED"
	ReflectionSkipped  ReflectionStatus = "SKIPPED"
)

// EntryType is the closed enumeration of journal entry kinds.
type EntryType string

const (
	EntrySessionStart  EntryType = "SESSION_START"
	EntrySessionEnd    EntryType = "SESSION_END"
	EntryTestRun       EntryType = "TEST_RUN"
	EntryErrorLog      EntryType = "ERROR_LOG"
	EntryFileChange    EntryType = "FILE_CHANGE"
	EntryAITask        EntryType = "AI_TASK"
	EntryAIHypothesis  EntryType = "AI_HYPOTHESIS"
	EntryAIToolCall    EntryType = "AI_TOOL_CALL"
	EntryAIObservation EntryType = "AI_OBSERVATION"
	EntryNote          EntryType = "NOTE"
	EntryCommandRun    EntryType = "COMMAND_RUN"
	EntryBuildEvent    EntryType = "BUILD_EVENT"
)

// ValidEntryType reports whether t is a member of the entry type enumeration.
func ValidEntryType(t EntryType) bool {
	switch t {
	case EntrySessionStart, EntrySessionEnd, EntryTestRun, EntryErrorLog,
		EntryFileChange, EntryAITask, EntryAIHypothesis, EntryAIToolCall,
		EntryAIObservation, EntryNote, EntryCommandRun, EntryBuildEvent:
		return true
	}
	return false
}

// Outcome annotates an entry after reflection.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
	OutcomeNeutral Outcome = "NEUTRAL"
)

// TestStatus is the status of a single test case or run.
type TestStatus string

const (
	TestPassed  TestStatus = "PASSED"
	TestFailed  TestStatus = "FAILED"
	TestSkipped TestStatus = "SKIPPED"
	TestError   TestStatus = "ERROR"
)

// PlaybookStatus is the lifecycle state of a troubleshooting playbook.
type PlaybookStatus string

const (
	PlaybookDraft    PlaybookStatus = "DRAFT"
	PlaybookActive   PlaybookStatus = "ACTIVE"
	PlaybookArchived PlaybookStatus = "ARCHIVED"
)

// Project is an entry from the external project catalog. Read-only input to
// this core; the catalog itself is owned by the surrounding indexer.
type Project struct {
	ID       string
	Name     string
	RootPath string
	Language string
}

// Session is a bounded unit of developer work. The derived fields
// (WinningStrategy, TimeToFix, HypothesisCount, FixEntryID) are populated
// only by the reflector.
type Session struct {
	ID               string
	ProjectID        string
	Goal             string
	Status           SessionStatus
	ReflectionStatus ReflectionStatus
	StartedAt        time.Time
	EndedAt          time.Time // zero while IN_PROGRESS
	Summary          string

	WinningStrategy string
	TimeToFix       time.Duration
	HypothesisCount int
	FixEntryID      string
}

// Entry is an immutable timestamped journal event. ParentID optionally links
// the entry into a reasoning tree (hypothesis → tool call → observation).
// Outcome and StrategyTags are write-once by the reflector; everything else
// is append-only.
type Entry struct {
	ID           string
	ProjectID    string
	SessionID    string // optional
	ParentID     string // optional
	Type         EntryType
	Summary      string
	Detail       string // optional structured payload, JSON
	Outcome      Outcome
	StrategyTags []string
	CreatedAt    time.Time
}

// TestRun is one report-ingestion event, linked 1:1 to a TEST_RUN entry.
type TestRun struct {
	ID         string
	EntryID    string
	ProjectID  string
	SessionID  string // optional
	SourceFile string
	Total      int
	Passed     int
	Failed     int
	Skipped    int
	Duration   time.Duration
	Status     TestStatus
	CreatedAt  time.Time
}

// Passing reports whether the run had zero failing cases.
func (r TestRun) Passing() bool {
	return r.Failed == 0 && r.Total > 0
}

// TestResult is one test case inside a run.
type TestResult struct {
	ID             string
	RunID          string
	Name           string
	File           string // optional
	Status         TestStatus
	Duration       time.Duration
	ErrorMessage   string
	ErrorSignature string
	CreatedAt      time.Time
}

// Pattern is the cross-project aggregate for one error signature. Counters
// only ever grow; AvgTimeToFix is a running weighted average over successes.
type Pattern struct {
	Signature     string
	BestStrategy  string
	SuccessCount  int
	FailureCount  int
	Occurrences   int
	Projects      []string
	AvgTimeToFix  time.Duration
	StrategyHisto map[string]int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Playbook is a curated troubleshooting knowledge unit for one signature.
type Playbook struct {
	ID             string
	Signature      string
	Title          string
	Context        string
	SuccessCount   int
	FailureCount   int
	Confidence     float64
	Status         PlaybookStatus
	SourceSessions []string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastUsedAt     time.Time // zero if never used
	LastDecayedAt  time.Time // zero if never decayed
}

// BayesianConfidence computes the smoothed success ratio
// (success+1)/(success+failure+2). A single observation never pins the score
// at an extreme; the score approaches the true rate as evidence accumulates.
func BayesianConfidence(success, failure int) float64 {
	return float64(success+1) / float64(success+failure+2)
}

// PlaybookUsage is one explicit usage-feedback event against a playbook.
type PlaybookUsage struct {
	ID         string
	PlaybookID string
	SessionID  string // optional
	Helpful    bool
	CreatedAt  time.Time
}

// AIPerformance is one record per analyzed session capturing how the
// hypothesis chain played out.
type AIPerformance struct {
	ID              string
	SessionID       string
	HypothesisCount int
	WinningPosition int // 1-indexed among all attempts, 0 if unresolved
	Strategies      []string
	WinningStrategy string
	TimeToFix       time.Duration
	Signature       string
	Outcome         string // FIXED or ABANDONED
	CreatedAt       time.Time
}

// FlakyTest is one row of the flaky-test aggregation: a test that both
// passed and failed inside the trailing window.
type FlakyTest struct {
	Name         string
	File         string
	Passes       int
	Failures     int
	FlakinessPct float64
	LastSeen     time.Time
}

// Stats is the summary-statistics view over the whole journal.
type Stats struct {
	TotalSessions      int
	CompletedSessions  int
	AbandonedSessions  int
	AnalyzedSessions   int
	TotalEntries       int
	TotalTestRuns      int
	PassRate           float64 // fraction of runs with zero failures
	AvgHypotheses      float64 // per analyzed session
	FirstTrySuccessPct float64 // sessions fixed by the first hypothesis
	TopStrategies      []StrategyStat
}

// StrategyStat is one strategy ranked by success rate.
type StrategyStat struct {
	Strategy    string
	Successes   int
	Failures    int
	SuccessRate float64
}
