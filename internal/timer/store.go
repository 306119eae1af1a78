package timer

import (
	"context"
	"time"

	"github.com/Tiliavir/trivial-study-tracker/internal/model"
)

// Store runs fn as one atomic unit. If fn returns an error every write it
// made is discarded and the error is returned unchanged (wrapping is
// allowed, errors.Is must still match).
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the persistence a single transition needs. Lookups that find
// nothing return a zero value and a nil error.
type Tx interface {
	GetTask(id string) (*model.Task, error)
	UpdateTask(task *model.Task) error
	InsertTasks(tasks []model.Task) error

	// ActiveTaskID returns the registry entry for userID, or "".
	ActiveTaskID(userID string) (string, error)
	SetActiveTask(userID, taskID string, seen time.Time) error
	ClearActiveTask(userID string) error

	CountCompletedToday(userID, day string) (int, error)
}
