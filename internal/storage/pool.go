package storage

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// pragmas are applied to every pooled connection before the schema.
// busy_timeout goes first so that concurrent connections switching to WAL
// wait on each other instead of failing with SQLITE_BUSY. WAL lets the
// presence snapshot read while a transition holds the write lock.
var pragmas = []string{
	"PRAGMA busy_timeout=5000",
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA cache_size=-8192",
	"PRAGMA temp_store=MEMORY",
}

func openPool(path string, size int) (*sqlitex.Pool, error) {
	if size <= 0 {
		size = 4
	}
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    size,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return pool, nil
}

func prepareConn(conn *sqlite.Conn) error {
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL UNIQUE,
	name       TEXT NOT NULL,
	token_hash TEXT NOT NULL UNIQUE,
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tasks (
	id                  TEXT PRIMARY KEY,
	user_id             TEXT NOT NULL REFERENCES users(id),
	task_name           TEXT NOT NULL,
	subject             TEXT NOT NULL DEFAULT '',
	estimated_minutes   INTEGER NOT NULL CHECK (estimated_minutes > 0),
	accumulated_minutes INTEGER NOT NULL DEFAULT 0,
	actual_minutes      INTEGER,
	status              TEXT NOT NULL DEFAULT 'pending',
	started_at          TEXT,
	completed_at        TEXT,
	task_date           TEXT NOT NULL,
	created_at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_user_date ON tasks(user_id, task_date);

CREATE TABLE IF NOT EXISTS active_sessions (
	user_id        TEXT PRIMARY KEY REFERENCES users(id),
	active_task_id TEXT NOT NULL REFERENCES tasks(id),
	last_seen      TEXT NOT NULL
);
`
