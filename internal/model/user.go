package model

import "time"

// User is a registered participant. The API token is never serialised.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Standing is one leaderboard row, aggregated over all time.
type Standing struct {
	Rank           int    `json:"rank"`
	UserID         string `json:"id"`
	Name           string `json:"name"`
	CompletedTasks int    `json:"total_tasks"`
	OnTimeTasks    int    `json:"ontime_tasks"`
	TotalMinutes   int    `json:"total_minutes"`
}
