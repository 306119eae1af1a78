package storage

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/Tiliavir/trivial-study-tracker/internal/model"
	"github.com/Tiliavir/trivial-study-tracker/internal/timer"
)

const taskColumns = `t.id, t.user_id, t.task_name, t.subject, t.estimated_minutes,
	t.accumulated_minutes, t.actual_minutes, t.status, t.started_at,
	t.completed_at, t.task_date, t.created_at`

var completedStatuses = fmt.Sprintf("('%s', '%s')", model.StatusCompletedOnTime, model.StatusCompletedDelayed)

// Tx is one open write transaction. It implements timer.Tx.
type Tx struct {
	conn *sqlite.Conn
}

var _ timer.Tx = (*Tx)(nil)

// GetTask returns the task with the given id, or nil if there is none.
func (tx *Tx) GetTask(id string) (*model.Task, error) {
	var task *model.Task
	err := sqlitex.Execute(tx.conn, `SELECT `+taskColumns+` FROM tasks t WHERE t.id = ?`, &sqlitex.ExecOptions{
		Args: []any{id},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			t, err := scanTask(stmt)
			if err != nil {
				return err
			}
			task = &t
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("storage: get task %s: %w", id, err)
	}
	return task, nil
}

// UpdateTask writes the mutable timer fields of task.
func (tx *Tx) UpdateTask(task *model.Task) error {
	err := sqlitex.Execute(tx.conn, `UPDATE tasks SET
			accumulated_minutes = ?,
			actual_minutes = ?,
			status = ?,
			started_at = ?,
			completed_at = ?
		WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{
			task.AccumulatedMinutes,
			nullableInt(task.ActualMinutes),
			string(task.Status),
			nullableTime(task.StartedAt),
			nullableTime(task.CompletedAt),
			task.ID,
		},
	})
	if err != nil {
		return fmt.Errorf("storage: update task %s: %w", task.ID, err)
	}
	if tx.conn.Changes() == 0 {
		return fmt.Errorf("storage: update task %s: %w", task.ID, timer.ErrNotFound)
	}
	return nil
}

// InsertTasks inserts a planning batch.
func (tx *Tx) InsertTasks(tasks []model.Task) error {
	for _, t := range tasks {
		err := sqlitex.Execute(tx.conn, `INSERT INTO tasks
			(id, user_id, task_name, subject, estimated_minutes, accumulated_minutes,
			 actual_minutes, status, started_at, completed_at, task_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{
				t.ID,
				t.UserID,
				t.Name,
				t.Subject,
				t.EstimatedMinutes,
				t.AccumulatedMinutes,
				nullableInt(t.ActualMinutes),
				string(t.Status),
				nullableTime(t.StartedAt),
				nullableTime(t.CompletedAt),
				t.Date,
				formatTime(t.CreatedAt),
			},
		})
		if err != nil {
			return fmt.Errorf("storage: insert task %q: %w", t.Name, err)
		}
	}
	return nil
}

// CountCompletedToday counts userID's completed tasks dated day.
func (tx *Tx) CountCompletedToday(userID, day string) (int, error) {
	var count int
	err := sqlitex.Execute(tx.conn, `SELECT COUNT(*) FROM tasks
		WHERE user_id = ? AND task_date = ? AND status IN `+completedStatuses, &sqlitex.ExecOptions{
		Args: []any{userID, day},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("storage: count completed: %w", err)
	}
	return count, nil
}

// TasksForDay lists the tasks dated day in creation order, with the
// owner's display name. An empty userID lists every user's tasks.
func (s *Store) TasksForDay(ctx context.Context, day, userID string) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + `, u.name FROM tasks t
		JOIN users u ON u.id = t.user_id
		WHERE t.task_date = ?`
	args := []any{day}
	if userID != "" {
		query += ` AND t.user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY t.created_at ASC, t.rowid ASC`

	tasks := []model.Task{}
	err := s.view(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				t, err := scanTask(stmt)
				if err != nil {
					return err
				}
				t.UserName = stmt.ColumnText(12)
				tasks = append(tasks, t)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("storage: tasks for %s: %w", day, err)
	}
	return tasks, nil
}

// Task returns a single task outside of any transaction, or nil.
func (s *Store) Task(ctx context.Context, id string) (*model.Task, error) {
	var task *model.Task
	err := s.view(ctx, func(conn *sqlite.Conn) error {
		var err error
		task, err = (&Tx{conn: conn}).GetTask(id)
		return err
	})
	return task, err
}

func scanTask(stmt *sqlite.Stmt) (model.Task, error) {
	// Columns follow taskColumns.
	t := model.Task{
		ID:                 stmt.ColumnText(0),
		UserID:             stmt.ColumnText(1),
		Name:               stmt.ColumnText(2),
		Subject:            stmt.ColumnText(3),
		EstimatedMinutes:   stmt.ColumnInt(4),
		AccumulatedMinutes: stmt.ColumnInt(5),
		Status:             model.Status(stmt.ColumnText(7)),
		Date:               stmt.ColumnText(10),
	}
	if !stmt.ColumnIsNull(6) {
		actual := stmt.ColumnInt(6)
		t.ActualMinutes = &actual
	}
	var err error
	if t.StartedAt, err = columnTime(stmt, 8); err != nil {
		return t, err
	}
	if t.CompletedAt, err = columnTime(stmt, 9); err != nil {
		return t, err
	}
	if t.CreatedAt, err = parseTime(stmt.ColumnText(11)); err != nil {
		return t, err
	}
	return t, nil
}
