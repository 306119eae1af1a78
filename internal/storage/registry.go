package storage

import (
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// ActiveTaskID returns the task userID is working on, or "".
func (tx *Tx) ActiveTaskID(userID string) (string, error) {
	var taskID string
	err := sqlitex.Execute(tx.conn, `SELECT active_task_id FROM active_sessions WHERE user_id = ?`, &sqlitex.ExecOptions{
		Args: []any{userID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			taskID = stmt.ColumnText(0)
			return nil
		},
	})
	if err != nil {
		return "", fmt.Errorf("storage: active task for %s: %w", userID, err)
	}
	return taskID, nil
}

// SetActiveTask replaces the registry entry for userID.
func (tx *Tx) SetActiveTask(userID, taskID string, seen time.Time) error {
	err := sqlitex.Execute(tx.conn, `INSERT INTO active_sessions (user_id, active_task_id, last_seen)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			active_task_id = excluded.active_task_id,
			last_seen = excluded.last_seen`, &sqlitex.ExecOptions{
		Args: []any{userID, taskID, formatTime(seen)},
	})
	if err != nil {
		return fmt.Errorf("storage: set active task for %s: %w", userID, err)
	}
	return nil
}

// ClearActiveTask removes the registry entry for userID, if any.
func (tx *Tx) ClearActiveTask(userID string) error {
	err := sqlitex.Execute(tx.conn, `DELETE FROM active_sessions WHERE user_id = ?`, &sqlitex.ExecOptions{
		Args: []any{userID},
	})
	if err != nil {
		return fmt.Errorf("storage: clear active task for %s: %w", userID, err)
	}
	return nil
}
