// Package timer implements the task lifecycle: planning, start, pause and
// complete, together with the accumulated-minute bookkeeping and the
// per-user active-session registry.
package timer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Tiliavir/trivial-study-tracker/internal/clock"
	"github.com/Tiliavir/trivial-study-tracker/internal/model"
	"github.com/Tiliavir/trivial-study-tracker/internal/timecalc"
)

// Engine validates and applies task transitions. Every public method runs
// inside a single Store.Update call, so a rejected transition leaves all
// state unchanged.
type Engine struct {
	store    Store
	clock    clock.Clock
	logger   *slog.Logger
	location *time.Location
}

// Option customizes engine construction.
type Option func(*Engine)

// WithClock overrides the wall clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger sets the logger for transition records.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithLocation sets the time zone that decides which calendar day "today" is.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.location = loc
		}
	}
}

// NewEngine returns an engine backed by store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		clock:    clock.Real(),
		logger:   slog.New(slog.DiscardHandler),
		location: time.UTC,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Completion is the outcome of completing a task.
type Completion struct {
	TaskID         string       `json:"task_id"`
	Status         model.Status `json:"status"`
	ActualMinutes  int          `json:"actual_minutes"`
	CompletedAt    time.Time    `json:"completed_at"`
	CompletedToday int          `json:"completed_today"`
}

// Today returns the current calendar day in the engine's location.
func (e *Engine) Today() string {
	return timecalc.Day(e.clock.Now(), e.location)
}

// Plan inserts a batch of pending tasks for today.
func (e *Engine) Plan(ctx context.Context, userID string, planned []model.PlannedTask) ([]model.Task, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if len(planned) == 0 {
		return nil, fmt.Errorf("%w: no tasks given", ErrInvalidPlan)
	}

	now := e.clock.Now().UTC()
	day := timecalc.Day(now, e.location)
	tasks := make([]model.Task, 0, len(planned))
	for i, p := range planned {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: task %d has no name", ErrInvalidPlan, i+1)
		}
		if p.EstimatedMinutes <= 0 {
			return nil, fmt.Errorf("%w: task %q needs a positive estimate, got %d", ErrInvalidPlan, name, p.EstimatedMinutes)
		}
		tasks = append(tasks, model.Task{
			ID:               uuid.NewString(),
			UserID:           userID,
			Date:             day,
			Name:             name,
			Subject:          strings.TrimSpace(p.Subject),
			EstimatedMinutes: p.EstimatedMinutes,
			Status:           model.StatusPending,
			CreatedAt:        now,
		})
	}

	err := e.store.Update(ctx, func(tx Tx) error {
		return tx.InsertTasks(tasks)
	})
	if err != nil {
		return nil, err
	}
	e.logger.Info("tasks planned", "user", userID, "date", day, "count", len(tasks))
	return tasks, nil
}

// Start puts a pending or paused task in progress. If the user was busy
// with a different task, that task is paused first. Starting a task that is
// already in progress is rejected.
func (e *Engine) Start(ctx context.Context, userID, taskID string) (time.Time, error) {
	if userID == "" {
		return time.Time{}, ErrUnauthenticated
	}
	now := e.clock.Now().UTC()
	var autoPaused *model.Task

	err := e.store.Update(ctx, func(tx Tx) error {
		task, err := ownedTask(tx, userID, taskID)
		if err != nil {
			return err
		}
		switch {
		case task.Status == model.StatusInProgress:
			return fmt.Errorf("%w: task %s is already in progress", ErrInvalidState, taskID)
		case task.Status.Completed():
			return fmt.Errorf("%w: task %s is already completed", ErrInvalidState, taskID)
		}

		autoPaused, err = pauseActive(tx, userID, now)
		if err != nil {
			return err
		}

		task.Status = model.StatusInProgress
		task.StartedAt = &now
		if err := tx.UpdateTask(task); err != nil {
			return err
		}
		return tx.SetActiveTask(userID, task.ID, now)
	})
	if err != nil {
		return time.Time{}, err
	}

	if autoPaused != nil {
		e.logger.Info("task auto-paused",
			"user", userID,
			"task", autoPaused.ID,
			"accumulated_minutes", autoPaused.AccumulatedMinutes,
		)
	}
	e.logger.Info("task started", "user", userID, "task", taskID, "started_at", now)
	return now, nil
}

// Pause ends the running session of the user's active task and banks its
// minutes. taskID must be the task the registry points at.
func (e *Engine) Pause(ctx context.Context, userID, taskID string) (model.Task, error) {
	if userID == "" {
		return model.Task{}, ErrUnauthenticated
	}
	now := e.clock.Now().UTC()
	var paused model.Task

	err := e.store.Update(ctx, func(tx Tx) error {
		activeID, err := tx.ActiveTaskID(userID)
		if err != nil {
			return err
		}
		if activeID == "" || activeID != taskID {
			return fmt.Errorf("%w: task is not currently active", ErrInvalidState)
		}
		task, err := ownedTask(tx, userID, taskID)
		if err != nil {
			return err
		}
		if task.Status != model.StatusInProgress || task.StartedAt == nil {
			return fmt.Errorf("%w: task %s is %s", ErrInvalidState, taskID, task.Status)
		}
		if err := pauseSession(tx, task, now); err != nil {
			return err
		}
		paused = *task
		return tx.ClearActiveTask(userID)
	})
	if err != nil {
		return model.Task{}, err
	}

	e.logger.Info("task paused",
		"user", userID,
		"task", taskID,
		"accumulated_minutes", paused.AccumulatedMinutes,
	)
	return paused, nil
}

// Complete finishes a task, classifying it against its estimate plus the
// grace period. Any registry entry for the user is removed; if it pointed
// at another running task, that task is paused first.
func (e *Engine) Complete(ctx context.Context, userID, taskID string) (Completion, error) {
	if userID == "" {
		return Completion{}, ErrUnauthenticated
	}
	now := e.clock.Now().UTC()
	today := timecalc.Day(now, e.location)
	var result Completion

	err := e.store.Update(ctx, func(tx Tx) error {
		task, err := ownedTask(tx, userID, taskID)
		if err != nil {
			return err
		}
		if task.Status.Completed() {
			return fmt.Errorf("%w: task %s is already completed", ErrInvalidState, taskID)
		}

		session := 0
		if task.Status == model.StatusInProgress && task.StartedAt != nil {
			session = timecalc.SessionMinutes(*task.StartedAt, now)
		}
		total := task.AccumulatedMinutes + session

		activeID, err := tx.ActiveTaskID(userID)
		if err != nil {
			return err
		}
		if activeID != "" && activeID != task.ID {
			if _, err := pauseActive(tx, userID, now); err != nil {
				return err
			}
		}
		if err := tx.ClearActiveTask(userID); err != nil {
			return err
		}

		task.AccumulatedMinutes = total
		task.ActualMinutes = &total
		task.Status = timecalc.Classify(total, task.EstimatedMinutes)
		task.StartedAt = nil
		task.CompletedAt = &now
		if err := tx.UpdateTask(task); err != nil {
			return err
		}

		count, err := tx.CountCompletedToday(userID, today)
		if err != nil {
			return err
		}
		result = Completion{
			TaskID:         task.ID,
			Status:         task.Status,
			ActualMinutes:  total,
			CompletedAt:    now,
			CompletedToday: count,
		}
		return nil
	})
	if err != nil {
		return Completion{}, err
	}

	e.logger.Info("task completed",
		"user", userID,
		"task", taskID,
		"status", result.Status,
		"actual_minutes", result.ActualMinutes,
	)
	return result, nil
}

// ownedTask loads taskID and checks it belongs to userID. Someone else's
// task is reported as not found.
func ownedTask(tx Tx, userID, taskID string) (*model.Task, error) {
	task, err := tx.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil || task.UserID != userID {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, taskID)
	}
	return task, nil
}

// pauseActive pauses whatever the registry says userID is working on and
// removes the entry. A registry row pointing at a task that is not running
// is dropped without touching the task. Returns the paused task, if any.
func pauseActive(tx Tx, userID string, now time.Time) (*model.Task, error) {
	activeID, err := tx.ActiveTaskID(userID)
	if err != nil || activeID == "" {
		return nil, err
	}
	var paused *model.Task
	task, err := tx.GetTask(activeID)
	if err != nil {
		return nil, err
	}
	if task != nil && task.Status == model.StatusInProgress && task.StartedAt != nil {
		if err := pauseSession(tx, task, now); err != nil {
			return nil, err
		}
		paused = task
	}
	return paused, tx.ClearActiveTask(userID)
}

// pauseSession banks the running session of task and marks it paused.
func pauseSession(tx Tx, task *model.Task, now time.Time) error {
	task.AccumulatedMinutes += timecalc.SessionMinutes(*task.StartedAt, now)
	task.StartedAt = nil
	task.Status = model.StatusPaused
	return tx.UpdateTask(task)
}
