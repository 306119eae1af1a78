package timer_test

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/Tiliavir/trivial-study-tracker/internal/model"
	"github.com/Tiliavir/trivial-study-tracker/internal/timer"
)

// memStore is an in-memory timer.Store. Update holds one mutex for the
// whole callback and restores the previous state when the callback fails.
type memStore struct {
	mu       sync.Mutex
	tasks    map[string]model.Task
	registry map[string]string
}

func newMemStore() *memStore {
	return &memStore{
		tasks:    map[string]model.Task{},
		registry: map[string]string{},
	}
}

func (s *memStore) Update(ctx context.Context, fn func(tx timer.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tasks := maps.Clone(s.tasks)
	registry := maps.Clone(s.registry)
	if err := fn(memTx{s}); err != nil {
		s.tasks = tasks
		s.registry = registry
		return err
	}
	return nil
}

// task returns a copy of the stored task for assertions.
func (s *memStore) task(id string) model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks[id]
}

func (s *memStore) active(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registry[userID]
}

func (s *memStore) snapshot() (map[string]model.Task, map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.tasks), maps.Clone(s.registry)
}

type memTx struct{ s *memStore }

func (tx memTx) GetTask(id string) (*model.Task, error) {
	t, ok := tx.s.tasks[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (tx memTx) UpdateTask(task *model.Task) error {
	tx.s.tasks[task.ID] = *task
	return nil
}

func (tx memTx) InsertTasks(tasks []model.Task) error {
	for _, t := range tasks {
		tx.s.tasks[t.ID] = t
	}
	return nil
}

func (tx memTx) ActiveTaskID(userID string) (string, error) {
	return tx.s.registry[userID], nil
}

func (tx memTx) SetActiveTask(userID, taskID string, _ time.Time) error {
	tx.s.registry[userID] = taskID
	return nil
}

func (tx memTx) ClearActiveTask(userID string) error {
	delete(tx.s.registry, userID)
	return nil
}

func (tx memTx) CountCompletedToday(userID, day string) (int, error) {
	n := 0
	for _, t := range tx.s.tasks {
		if t.UserID == userID && t.Date == day && t.Status.Completed() {
			n++
		}
	}
	return n, nil
}
