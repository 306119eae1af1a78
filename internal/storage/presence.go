package storage

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/Tiliavir/trivial-study-tracker/internal/model"
)

// The registry row is only trusted when the task it points at is still in
// progress; anything else renders the user idle.
var snapshotQuery = fmt.Sprintf(`
SELECT u.id, u.name,
	t.id, t.task_name, t.subject, t.started_at,
	t.estimated_minutes, t.accumulated_minutes,
	(SELECT COUNT(*) FROM tasks c
		WHERE c.user_id = u.id AND c.task_date = ? AND c.status IN %s) AS completed_today
FROM users u
LEFT JOIN active_sessions a ON a.user_id = u.id
LEFT JOIN tasks t ON t.id = a.active_task_id AND t.status = 'in_progress'
ORDER BY u.name, u.id`, completedStatuses)

// Snapshot reads every user's presence in a single statement, so all rows
// come from one consistent WAL read view.
func (s *Store) Snapshot(ctx context.Context, day string) ([]model.Presence, error) {
	users := []model.Presence{}
	err := s.view(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, snapshotQuery, &sqlitex.ExecOptions{
			Args: []any{day},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				p := model.Presence{
					UserID:         stmt.ColumnText(0),
					Name:           stmt.ColumnText(1),
					CompletedToday: stmt.ColumnInt(8),
				}
				if !stmt.ColumnIsNull(2) && !stmt.ColumnIsNull(5) {
					started, err := parseTime(stmt.ColumnText(5))
					if err != nil {
						return err
					}
					p.ActiveTask = &model.ActiveTask{
						TaskID:             stmt.ColumnText(2),
						Name:               stmt.ColumnText(3),
						Subject:            stmt.ColumnText(4),
						StartedAt:          started,
						EstimatedMinutes:   stmt.ColumnInt(6),
						AccumulatedMinutes: stmt.ColumnInt(7),
					}
				}
				users = append(users, p)
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("storage: snapshot: %w", err)
	}
	return users, nil
}
