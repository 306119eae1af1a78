package model

import "time"

// ActiveTask describes the task a user is currently working on.
type ActiveTask struct {
	TaskID             string    `json:"task_id"`
	Name               string    `json:"task_name"`
	Subject            string    `json:"subject"`
	StartedAt          time.Time `json:"started_at"`
	EstimatedMinutes   int       `json:"estimated_minutes"`
	AccumulatedMinutes int       `json:"accumulated_minutes"`

	// Computed when the snapshot is taken.
	ElapsedMinutes  float64 `json:"elapsed_minutes"`
	ProgressPercent float64 `json:"progress_percent"`
	Overrun         bool    `json:"overrun"`
}

// Presence is one user's entry in the live feed. ActiveTask is nil while
// the user is idle.
type Presence struct {
	UserID         string      `json:"user_id"`
	Name           string      `json:"name"`
	ActiveTask     *ActiveTask `json:"active_task"`
	CompletedToday int         `json:"completed_today"`
}

// Snapshot is a point-in-time view of every user's presence.
type Snapshot struct {
	GeneratedAt time.Time  `json:"generated_at"`
	Users       []Presence `json:"users"`
}
