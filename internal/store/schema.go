package store

// schema is applied in full at every open; all statements are idempotent.
// Timestamp columns are integer Unix milliseconds (sortable, skew-free
// within a single process).
const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	root_path  TEXT NOT NULL,
	language   TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id                TEXT PRIMARY KEY,
	project_id        TEXT NOT NULL REFERENCES projects(id),
	goal              TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL DEFAULT 'IN_PROGRESS',
	reflection_status TEXT NOT NULL DEFAULT 'PENDING',
	started_at        INTEGER NOT NULL,
	ended_at          INTEGER NOT NULL DEFAULT 0,
	summary           TEXT NOT NULL DEFAULT '',
	winning_strategy  TEXT NOT NULL DEFAULT '',
	time_to_fix_ms    INTEGER NOT NULL DEFAULT 0,
	hypothesis_count  INTEGER NOT NULL DEFAULT 0,
	fix_entry_id      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sessions_project ON sessions(project_id, status);
CREATE INDEX IF NOT EXISTS idx_sessions_reflection ON sessions(reflection_status, status);

CREATE TABLE IF NOT EXISTS journal_entries (
	id            TEXT PRIMARY KEY,
	project_id    TEXT NOT NULL,
	session_id    TEXT NOT NULL DEFAULT '',
	parent_id     TEXT NOT NULL DEFAULT '',
	entry_type    TEXT NOT NULL,
	summary       TEXT NOT NULL DEFAULT '',
	detail        TEXT NOT NULL DEFAULT '',
	outcome       TEXT NOT NULL DEFAULT '',
	strategy_tags TEXT NOT NULL DEFAULT '',
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_session ON journal_entries(session_id, created_at);
CREATE INDEX IF NOT EXISTS idx_entries_project ON journal_entries(project_id, created_at);

CREATE TABLE IF NOT EXISTS test_runs (
	id          TEXT PRIMARY KEY,
	entry_id    TEXT NOT NULL,
	project_id  TEXT NOT NULL,
	session_id  TEXT NOT NULL DEFAULT '',
	source_file TEXT NOT NULL DEFAULT '',
	total       INTEGER NOT NULL DEFAULT 0,
	passed      INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	status      TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_session ON test_runs(session_id, created_at);

CREATE TABLE IF NOT EXISTS test_results (
	id              TEXT PRIMARY KEY,
	run_id          TEXT NOT NULL REFERENCES test_runs(id),
	name            TEXT NOT NULL,
	file            TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	duration_ms     INTEGER NOT NULL DEFAULT 0,
	error_message   TEXT NOT NULL DEFAULT '',
	error_signature TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_name ON test_results(name, file, created_at);
CREATE INDEX IF NOT EXISTS idx_results_signature ON test_results(error_signature);

CREATE TABLE IF NOT EXISTS universal_patterns (
	signature        TEXT PRIMARY KEY,
	best_strategy    TEXT NOT NULL DEFAULT '',
	success_count    INTEGER NOT NULL DEFAULT 0,
	failure_count    INTEGER NOT NULL DEFAULT 0,
	occurrence_count INTEGER NOT NULL DEFAULT 0,
	projects         TEXT NOT NULL DEFAULT '[]',
	avg_fix_ms       INTEGER NOT NULL DEFAULT 0,
	strategy_histo   TEXT NOT NULL DEFAULT '{}',
	created_at       INTEGER NOT NULL,
	updated_at       INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS playbooks (
	id              TEXT PRIMARY KEY,
	signature       TEXT NOT NULL UNIQUE,
	title           TEXT NOT NULL DEFAULT '',
	context         TEXT NOT NULL DEFAULT '',
	success_count   INTEGER NOT NULL DEFAULT 0,
	failure_count   INTEGER NOT NULL DEFAULT 0,
	confidence      REAL NOT NULL DEFAULT 0.5,
	status          TEXT NOT NULL DEFAULT 'DRAFT',
	source_sessions TEXT NOT NULL DEFAULT '[]',
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL,
	last_used_at    INTEGER NOT NULL DEFAULT 0,
	last_decayed_at INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_playbooks_status ON playbooks(status, confidence);

CREATE TABLE IF NOT EXISTS playbook_usage (
	id          TEXT PRIMARY KEY,
	playbook_id TEXT NOT NULL REFERENCES playbooks(id),
	session_id  TEXT NOT NULL DEFAULT '',
	helpful     INTEGER NOT NULL,
	created_at  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS ai_performance (
	id               TEXT PRIMARY KEY,
	session_id       TEXT NOT NULL,
	hypothesis_count INTEGER NOT NULL DEFAULT 0,
	winning_position INTEGER NOT NULL DEFAULT 0,
	strategies       TEXT NOT NULL DEFAULT '[]',
	winning_strategy TEXT NOT NULL DEFAULT '',
	time_to_fix_ms   INTEGER NOT NULL DEFAULT 0,
	signature        TEXT NOT NULL DEFAULT '',
	outcome          TEXT NOT NULL DEFAULT '',
	created_at       INTEGER NOT NULL
);
`
