package storage

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/Tiliavir/trivial-study-tracker/internal/model"
)

var leaderboardQuery = fmt.Sprintf(`
SELECT u.id, u.name,
	COUNT(t.id) AS total_tasks,
	COALESCE(SUM(CASE WHEN t.status = '%s' THEN 1 ELSE 0 END), 0) AS ontime_tasks,
	COALESCE(SUM(t.actual_minutes), 0) AS total_minutes
FROM users u
LEFT JOIN tasks t ON t.user_id = u.id AND t.status IN %s
GROUP BY u.id, u.name
ORDER BY total_minutes DESC, total_tasks DESC, u.name ASC`, model.StatusCompletedOnTime, completedStatuses)

// Leaderboard aggregates completed work over all time. Users with equal
// minutes and task counts share a rank.
func (s *Store) Leaderboard(ctx context.Context) ([]model.Standing, error) {
	rows := []model.Standing{}
	err := s.view(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, leaderboardQuery, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rows = append(rows, model.Standing{
					UserID:         stmt.ColumnText(0),
					Name:           stmt.ColumnText(1),
					CompletedTasks: stmt.ColumnInt(2),
					OnTimeTasks:    stmt.ColumnInt(3),
					TotalMinutes:   stmt.ColumnInt(4),
				})
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("storage: leaderboard: %w", err)
	}
	rank(rows)
	return rows, nil
}

// rank assigns competition ranks (1, 2, 2, 4) to rows already in order.
func rank(rows []model.Standing) {
	for i := range rows {
		if i > 0 && rows[i].TotalMinutes == rows[i-1].TotalMinutes && rows[i].CompletedTasks == rows[i-1].CompletedTasks {
			rows[i].Rank = rows[i-1].Rank
			continue
		}
		rows[i].Rank = i + 1
	}
}
