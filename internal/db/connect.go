package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open opens a DB and ensures schema exists.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			// foreign_keys is per-connection in sqlite; setting it in the DSN
			// covers every connection the pool opens.
			dsn = "file:usmle.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/usmle?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	if err := ensureSchema(ctx, db, driver); err != nil {
		return nil, err
	}
	return db, nil
}

func ensureSchema(ctx context.Context, db *sql.DB, driver Driver) error {
	var schema string
	switch driver {
	case DriverSQLite:
		schema = schemaSQLite
	case DriverPostgres:
		schema = schemaPostgres
	}
	_, err := db.ExecContext(ctx, schema)
	return err
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS users_profile (
  user_id TEXT PRIMARY KEY,
  display_name TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'student',
  password_hash TEXT,
  created_at INTEGER NOT NULL
);

-- Catalog (read-only to the session core; written by import tooling)

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  canonical_code TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'draft',              -- draft|published|archived
  content_source TEXT NOT NULL DEFAULT 'production', -- production|seed
  created_by TEXT REFERENCES users_profile(user_id),
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS question_versions (
  id TEXT PRIMARY KEY,
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  exam TEXT NOT NULL,                         -- step1|step2ck
  language TEXT NOT NULL,
  difficulty TEXT NOT NULL,                   -- easy|medium|hard
  active BOOLEAN NOT NULL DEFAULT 1,
  stem TEXT NOT NULL,
  prompt TEXT NOT NULL DEFAULT '',
  explanation_short TEXT NOT NULL DEFAULT '',
  explanation_long TEXT NOT NULL DEFAULT '',
  bibliography TEXT,                          -- JSON, nullable
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS choices (
  id TEXT PRIMARY KEY,
  question_version_id TEXT NOT NULL REFERENCES question_versions(id) ON DELETE CASCADE,
  label TEXT NOT NULL,
  text TEXT NOT NULL,
  correct BOOLEAN NOT NULL DEFAULT 0,
  explanation TEXT NOT NULL DEFAULT ''
);

-- Session core

CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  exam TEXT NOT NULL,
  mode TEXT NOT NULL,                         -- practice|timed
  language TEXT NOT NULL,
  time_limit_sec INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,                       -- active|closed
  started_at INTEGER NOT NULL,
  closed_at INTEGER
);

CREATE TABLE IF NOT EXISTS session_items (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  question_version_id TEXT NOT NULL REFERENCES question_versions(id),
  UNIQUE (session_id, position),
  UNIQUE (session_id, question_version_id)
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
  session_item_id TEXT NOT NULL UNIQUE REFERENCES session_items(id) ON DELETE CASCADE,
  choice_id TEXT REFERENCES choices(id),
  result TEXT NOT NULL,                       -- correct|wrong|skipped
  is_correct BOOLEAN,
  time_spent_sec INTEGER,
  confidence INTEGER,
  flagged BOOLEAN NOT NULL DEFAULT 0,
  answered_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS learning_state (
  user_id TEXT NOT NULL,
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  last_seen_at INTEGER NOT NULL,
  last_attempt_id TEXT,
  times_seen INTEGER NOT NULL DEFAULT 0,
  times_correct INTEGER NOT NULL DEFAULT 0,
  last_result TEXT,
  bookmarked BOOLEAN NOT NULL DEFAULT 0,
  PRIMARY KEY (user_id, question_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  offset INTEGER PRIMARY KEY AUTOINCREMENT, -- BIGSERIAL in Postgres
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,                         -- e.g., SessionClosed
  key TEXT NOT NULL,                         -- natural key: sessionID
  data TEXT NOT NULL,                        -- JSON payload
  created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_qv_pool ON question_versions (exam, language, difficulty, active);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions (user_id, started_at);
CREATE INDEX IF NOT EXISTS idx_attempts_session ON attempts (session_id);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS users_profile (
  user_id TEXT PRIMARY KEY,
  display_name TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT 'student',
  password_hash TEXT,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  canonical_code TEXT NOT NULL UNIQUE,
  status TEXT NOT NULL DEFAULT 'draft',
  content_source TEXT NOT NULL DEFAULT 'production',
  created_by TEXT REFERENCES users_profile(user_id),
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS question_versions (
  id TEXT PRIMARY KEY,
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  exam TEXT NOT NULL,
  language TEXT NOT NULL,
  difficulty TEXT NOT NULL,
  active BOOLEAN NOT NULL DEFAULT TRUE,
  stem TEXT NOT NULL,
  prompt TEXT NOT NULL DEFAULT '',
  explanation_short TEXT NOT NULL DEFAULT '',
  explanation_long TEXT NOT NULL DEFAULT '',
  bibliography TEXT,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS choices (
  id TEXT PRIMARY KEY,
  question_version_id TEXT NOT NULL REFERENCES question_versions(id) ON DELETE CASCADE,
  label TEXT NOT NULL,
  text TEXT NOT NULL,
  correct BOOLEAN NOT NULL DEFAULT FALSE,
  explanation TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  exam TEXT NOT NULL,
  mode TEXT NOT NULL,
  language TEXT NOT NULL,
  time_limit_sec INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  started_at BIGINT NOT NULL,
  closed_at BIGINT
);

CREATE TABLE IF NOT EXISTS session_items (
  id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
  position INTEGER NOT NULL,
  question_version_id TEXT NOT NULL REFERENCES question_versions(id),
  UNIQUE (session_id, position),
  UNIQUE (session_id, question_version_id)
);

CREATE TABLE IF NOT EXISTS attempts (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
  session_item_id TEXT NOT NULL UNIQUE REFERENCES session_items(id) ON DELETE CASCADE,
  choice_id TEXT REFERENCES choices(id),
  result TEXT NOT NULL,
  is_correct BOOLEAN,
  time_spent_sec INTEGER,
  confidence INTEGER,
  flagged BOOLEAN NOT NULL DEFAULT FALSE,
  answered_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS learning_state (
  user_id TEXT NOT NULL,
  question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
  last_seen_at BIGINT NOT NULL,
  last_attempt_id TEXT,
  times_seen INTEGER NOT NULL DEFAULT 0,
  times_correct INTEGER NOT NULL DEFAULT 0,
  last_result TEXT,
  bookmarked BOOLEAN NOT NULL DEFAULT FALSE,
  PRIMARY KEY (user_id, question_id)
);

CREATE TABLE IF NOT EXISTS event_log (
  "offset" BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_qv_pool ON question_versions (exam, language, difficulty, active);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions (user_id, started_at);
CREATE INDEX IF NOT EXISTS idx_attempts_session ON attempts (session_id);
`
