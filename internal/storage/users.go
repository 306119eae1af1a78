package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/Tiliavir/trivial-study-tracker/internal/model"
	"github.com/Tiliavir/trivial-study-tracker/internal/timecalc"
	"github.com/Tiliavir/trivial-study-tracker/internal/timer"
)

// hashToken is what the users table stores instead of the token itself.
func hashToken(token string) string {
	sum := blake3.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CreateUser registers a user and returns its freshly generated API token.
// The token is shown once; only its hash is stored.
func (s *Store) CreateUser(ctx context.Context, username, name string) (model.User, string, error) {
	username = strings.TrimSpace(username)
	name = strings.TrimSpace(name)
	if username == "" {
		return model.User{}, "", fmt.Errorf("storage: username is required")
	}
	if name == "" {
		name = username
	}
	token, err := timecalc.GenerateToken()
	if err != nil {
		return model.User{}, "", fmt.Errorf("storage: %w", err)
	}
	user := model.User{
		ID:        uuid.NewString(),
		Username:  username,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	err = s.view(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `INSERT INTO users (id, username, name, token_hash, created_at)
			VALUES (?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{user.ID, user.Username, user.Name, hashToken(token), formatTime(user.CreatedAt)},
		})
	})
	if err != nil {
		if sqlite.ErrCode(err) == sqlite.ResultConstraintUnique {
			return model.User{}, "", fmt.Errorf("storage: %q: %w", username, ErrUserExists)
		}
		return model.User{}, "", fmt.Errorf("storage: create user %q: %w", username, err)
	}
	s.logger.Info("user created", "user", user.ID, "username", user.Username)
	return user, token, nil
}

// UserByToken resolves an API token. Unknown tokens yield
// timer.ErrUnauthenticated.
func (s *Store) UserByToken(ctx context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, timer.ErrUnauthenticated
	}
	return s.userWhere(ctx, "token_hash = ?", hashToken(token), timer.ErrUnauthenticated)
}

// UserByUsername returns timer.ErrNotFound for unknown usernames.
func (s *Store) UserByUsername(ctx context.Context, username string) (model.User, error) {
	return s.userWhere(ctx, "username = ?", username, timer.ErrNotFound)
}

func (s *Store) userWhere(ctx context.Context, cond string, arg any, missing error) (model.User, error) {
	var (
		user  model.User
		found bool
	)
	err := s.view(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT id, username, name, created_at FROM users WHERE `+cond, &sqlitex.ExecOptions{
			Args: []any{arg},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var err error
				user, err = scanUser(stmt)
				found = true
				return err
			},
		})
	})
	if err != nil {
		return model.User{}, fmt.Errorf("storage: look up user: %w", err)
	}
	if !found {
		return model.User{}, missing
	}
	return user, nil
}

// ListUsers returns every user ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	err := s.view(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, `SELECT id, username, name, created_at FROM users ORDER BY username`, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				u, err := scanUser(stmt)
				if err != nil {
					return err
				}
				users = append(users, u)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list users: %w", err)
	}
	return users, nil
}

func scanUser(stmt *sqlite.Stmt) (model.User, error) {
	created, err := parseTime(stmt.ColumnText(3))
	if err != nil {
		return model.User{}, err
	}
	return model.User{
		ID:        stmt.ColumnText(0),
		Username:  stmt.ColumnText(1),
		Name:      stmt.ColumnText(2),
		CreatedAt: created,
	}, nil
}
