// Package store implements the relational persistence layer: projects,
// agents, messages, recipients, reservations, contact links, and summaries,
// backed by an embedded SQLite database (modernc.org/sqlite, pure Go — no
// cgo). It owns schema migration, connection pooling, FTS index
// maintenance, and busy/locked retry discipline; it never touches the
// filesystem archive (see internal/archive for that).
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps a pooled *sql.DB with coordination-bus-specific retry and
// query-tracking behavior.
type Store struct {
	db          *sql.DB
	logger      *slog.Logger
	slowQuery   time.Duration
	tracker     *QueryTracker
}

// Config controls pool sizing and retry behavior; mirrors config.StoreConfig
// without importing internal/config, so store stays independently testable.
type Config struct {
	Path          string
	MaxOpenConns  int
	BusyTimeoutMS int
	SlowQueryMS   int
}

// Open creates (or attaches to) the SQLite database at cfg.Path and applies
// schema migrations idempotently.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := cfg.Path
	if !strings.Contains(dsn, "?") {
		dsn = fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", dsn, busyTimeoutOr(cfg.BusyTimeoutMS))
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 8
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxOpen)

	s := &Store{
		db:        db,
		logger:    logger,
		slowQuery: time.Duration(orDefault(cfg.SlowQueryMS, 250)) * time.Millisecond,
		tracker:   NewQueryTracker(),
	}

	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating store: %w", err)
	}

	return s, nil
}

func busyTimeoutOr(ms int) int {
	if ms <= 0 {
		return 5000
	}
	return ms
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying pool for packages (tests, migrations tooling)
// that need raw access; business code should prefer the typed methods.
func (s *Store) DB() *sql.DB { return s.db }

// Tracker returns the process-global per-call query counter.
func (s *Store) Tracker() *QueryTracker { return s.tracker }

const schema = `
CREATE TABLE IF NOT EXISTS projects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	slug TEXT NOT NULL UNIQUE,
	human_key TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id),
	name TEXT NOT NULL,
	name_lower TEXT NOT NULL,
	program TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT '',
	task_description TEXT NOT NULL DEFAULT '',
	inception_ts TEXT NOT NULL,
	last_active_ts TEXT NOT NULL,
	contact_policy TEXT NOT NULL DEFAULT 'auto',
	attachments_policy TEXT NOT NULL DEFAULT 'auto',
	registration_token TEXT NOT NULL,
	UNIQUE(project_id, name_lower)
);
CREATE INDEX IF NOT EXISTS idx_agents_project ON agents(project_id);

CREATE TABLE IF NOT EXISTS window_identities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id),
	window_uuid TEXT NOT NULL,
	agent_name TEXT NOT NULL,
	created_at TEXT NOT NULL,
	expires_at TEXT NOT NULL,
	UNIQUE(project_id, window_uuid)
);

CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id),
	sender_id INTEGER NOT NULL REFERENCES agents(id),
	thread_id TEXT,
	topic TEXT NOT NULL DEFAULT '',
	subject TEXT NOT NULL,
	body_md TEXT NOT NULL,
	importance TEXT NOT NULL DEFAULT 'normal',
	ack_required INTEGER NOT NULL DEFAULT 0,
	created_ts TEXT NOT NULL,
	attachments_json TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_messages_project_created ON messages(project_id, created_ts);
CREATE INDEX IF NOT EXISTS idx_messages_project_thread ON messages(project_id, thread_id);
CREATE INDEX IF NOT EXISTS idx_messages_project_sender ON messages(project_id, sender_id);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(
	subject, body_md, content='messages', content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
	INSERT INTO messages_fts(rowid, subject, body_md) VALUES (new.id, new.subject, new.body_md);
END;
CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
	INSERT INTO messages_fts(messages_fts, rowid, subject, body_md) VALUES('delete', old.id, old.subject, old.body_md);
END;
CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
	INSERT INTO messages_fts(messages_fts, rowid, subject, body_md) VALUES('delete', old.id, old.subject, old.body_md);
	INSERT INTO messages_fts(rowid, subject, body_md) VALUES (new.id, new.subject, new.body_md);
END;

CREATE TABLE IF NOT EXISTS message_recipients (
	message_id INTEGER NOT NULL REFERENCES messages(id),
	agent_id INTEGER NOT NULL REFERENCES agents(id),
	kind TEXT NOT NULL,
	read_ts TEXT,
	ack_ts TEXT,
	PRIMARY KEY (message_id, agent_id)
);
CREATE INDEX IF NOT EXISTS idx_recipients_agent ON message_recipients(agent_id, message_id);

CREATE TABLE IF NOT EXISTS file_reservations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id),
	agent_id INTEGER NOT NULL REFERENCES agents(id),
	path_pattern TEXT NOT NULL,
	exclusive INTEGER NOT NULL DEFAULT 1,
	reason TEXT NOT NULL DEFAULT '',
	created_ts TEXT NOT NULL,
	expires_ts TEXT NOT NULL,
	released_ts TEXT
);
CREATE INDEX IF NOT EXISTS idx_reservations_lifecycle ON file_reservations(project_id, released_ts, expires_ts);

CREATE TABLE IF NOT EXISTS agent_links (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	a_project_id INTEGER NOT NULL,
	a_agent_id INTEGER NOT NULL,
	b_project_id INTEGER NOT NULL,
	b_agent_id INTEGER NOT NULL,
	status TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	created_ts TEXT NOT NULL,
	updated_ts TEXT NOT NULL,
	expires_ts TEXT,
	UNIQUE(a_project_id, a_agent_id, b_project_id, b_agent_id)
);

CREATE TABLE IF NOT EXISTS message_summaries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_id INTEGER NOT NULL REFERENCES projects(id),
	start_ts TEXT NOT NULL,
	end_ts TEXT NOT NULL,
	source_message_count INTEGER NOT NULL,
	source_thread_ids TEXT NOT NULL DEFAULT '[]',
	summary_text TEXT NOT NULL,
	llm_model TEXT NOT NULL DEFAULT '',
	cost_usd REAL NOT NULL DEFAULT 0,
	created_ts TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_summaries_project_window ON message_summaries(project_id, start_ts, end_ts);

CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	key TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS product_project_links (
	product_id INTEGER NOT NULL REFERENCES products(id),
	project_id INTEGER NOT NULL REFERENCES projects(id),
	PRIMARY KEY (product_id, project_id)
);

CREATE TABLE IF NOT EXISTS project_sibling_suggestions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project_a_id INTEGER NOT NULL,
	project_b_id INTEGER NOT NULL,
	score REAL NOT NULL,
	status TEXT NOT NULL DEFAULT 'suggested',
	created_ts TEXT NOT NULL,
	updated_ts TEXT NOT NULL,
	UNIQUE(project_a_id, project_b_id)
);
`

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// busy reports whether err is a SQLite busy/locked class error worth retrying.
func busy(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

// withRetry runs fn with exponential backoff on busy/locked errors, up to 6
// attempts capped at ~500ms, per the coordination bus's contention-handling
// contract for idempotent operations like ensure_project.
func (s *Store) withRetry(ctx context.Context, operation string, fn func() error) error {
	const maxAttempts = 6
	backoff := 10 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
			if backoff > 500*time.Millisecond {
				backoff = 500 * time.Millisecond
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !busy(lastErr) {
			return lastErr
		}
		s.logger.Warn("retrying store operation after busy error", "operation", operation, "attempt", attempt+1)
	}
	return fmt.Errorf("%s: exceeded retries: %w", operation, lastErr)
}

// unique reports whether err is a UNIQUE/PRIMARY KEY constraint violation —
// the race-losing branch of an idempotent insert, which the caller should
// degrade into a select-then-return rather than surfacing as an error.
func unique(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}

// ErrNotFound is returned by lookups with no matching row.
var ErrNotFound = errors.New("not found")
