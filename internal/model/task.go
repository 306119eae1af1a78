package model

import "time"

// Status is the lifecycle state of a task.
//
//	pending -> in_progress <-> paused -> completed_ontime | completed_delayed
type Status string

const (
	StatusPending          Status = "pending"
	StatusInProgress       Status = "in_progress"
	StatusPaused           Status = "paused"
	StatusCompletedOnTime  Status = "completed_ontime"
	StatusCompletedDelayed Status = "completed_delayed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusPaused, StatusCompletedOnTime, StatusCompletedDelayed:
		return true
	}
	return false
}

// Completed reports whether s is a terminal status.
func (s Status) Completed() bool {
	return s == StatusCompletedOnTime || s == StatusCompletedDelayed
}

// Subjects is the fixed set offered when planning. Free-form subjects are
// accepted as well.
var Subjects = []string{"Maths", "Physics", "Chemistry"}

// Task is one planned unit of study for a given day.
type Task struct {
	ID                 string     `json:"id"`
	UserID             string     `json:"user_id"`
	UserName           string     `json:"user_name,omitempty"`
	Date               string     `json:"task_date"`
	Name               string     `json:"task_name"`
	Subject            string     `json:"subject"`
	EstimatedMinutes   int        `json:"estimated_minutes"`
	AccumulatedMinutes int        `json:"accumulated_minutes"`
	ActualMinutes      *int       `json:"actual_minutes"`
	Status             Status     `json:"status"`
	StartedAt          *time.Time `json:"started_at"`
	CompletedAt        *time.Time `json:"completed_at"`
	CreatedAt          time.Time  `json:"created_at"`
}

// PlannedTask is the input row for a planning batch.
type PlannedTask struct {
	Name             string `json:"task_name"`
	Subject          string `json:"subject"`
	EstimatedMinutes int    `json:"estimated_minutes"`
}
