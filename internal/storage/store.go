// Package storage persists users, tasks and the active-session registry
// in SQLite.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/Tiliavir/trivial-study-tracker/internal/timer"
)

// ErrUserExists is returned by CreateUser for a taken username.
var ErrUserExists = errors.New("username already exists")

// Config holds the parameters for opening a Store.
type Config struct {
	// Path is the database file. Its directory must exist.
	Path string

	// PoolSize defaults to 4.
	PoolSize int

	Logger *slog.Logger
}

// Store is the SQLite-backed persistence layer. It is safe for concurrent
// use; each call borrows its own connection.
type Store struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// Open opens (creating if needed) the database at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("storage: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := openPool(cfg.Path, cfg.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	logger.Info("database opened", "path", cfg.Path)
	return &Store{pool: pool, logger: logger, path: cfg.Path}, nil
}

// Close closes every connection. It blocks until borrowed connections are
// returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("storage: closing %s: %w", s.path, err)
	}
	s.logger.Info("database closed", "path", s.path)
	return nil
}

// Update runs fn inside one IMMEDIATE transaction. The write lock is taken
// up front, so two transitions never interleave their reads and writes.
// Any error from fn rolls the transaction back.
func (s *Store) Update(ctx context.Context, fn func(tx timer.Tx) error) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("storage: take connection: %w", err)
	}
	defer s.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("storage: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	return fn(&Tx{conn: conn})
}

// view borrows a connection for a read-only query.
func (s *Store) view(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("storage: take connection: %w", err)
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// nullableTime binds nil as SQL NULL.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("storage: bad timestamp %q: %w", s, err)
	}
	return t, nil
}

func columnTime(stmt *sqlite.Stmt, col int) (*time.Time, error) {
	if stmt.ColumnIsNull(col) {
		return nil, nil
	}
	t, err := parseTime(stmt.ColumnText(col))
	if err != nil {
		return nil, err
	}
	return &t, nil
}
