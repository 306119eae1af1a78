package timecalc

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/Tiliavir/trivial-study-tracker/internal/model"
)

// GraceMinutes is the tolerance added to an estimate before a completed
// task counts as delayed.
const GraceMinutes = 5

// DayLayout is the calendar-date format used for task dates.
const DayLayout = "2006-01-02"

// SessionMinutes returns the length of one in-progress session rounded to
// the nearest whole minute. A negative duration (clock skew) counts as 0.
func SessionMinutes(startedAt, now time.Time) int {
	d := now.Sub(startedAt)
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Minutes()))
}

// Classify returns the completed status for a task that took totalMinutes
// against an estimate of estimatedMinutes.
func Classify(totalMinutes, estimatedMinutes int) model.Status {
	if totalMinutes <= estimatedMinutes+GraceMinutes {
		return model.StatusCompletedOnTime
	}
	return model.StatusCompletedDelayed
}

// ElapsedMinutes returns banked minutes plus the unrounded length of the
// running session.
func ElapsedMinutes(accumulated int, startedAt, now time.Time) float64 {
	session := now.Sub(startedAt).Minutes()
	if session < 0 {
		session = 0
	}
	return float64(accumulated) + session
}

// ProgressPercent returns how far an in-progress task is through its
// estimate, capped at 100.
func ProgressPercent(accumulated int, startedAt, now time.Time, estimatedMinutes int) float64 {
	if estimatedMinutes <= 0 {
		return 0
	}
	pct := ElapsedMinutes(accumulated, startedAt, now) / float64(estimatedMinutes) * 100
	return math.Min(100, pct)
}

// Overrun reports whether the elapsed time has gone past the estimate.
func Overrun(accumulated int, startedAt, now time.Time, estimatedMinutes int) bool {
	return ElapsedMinutes(accumulated, startedAt, now) > float64(estimatedMinutes)
}

// Day returns the calendar date of t in loc. A nil loc means UTC.
func Day(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(DayLayout)
}

// GenerateToken returns a random 32 character hex string for API tokens.
func GenerateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// FormatMinutes formats minutes as "1h 40m" or "45m".
func FormatMinutes(minutes int) string {
	h := minutes / 60
	m := minutes % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// FormatDurationHHMMSS formats seconds as HH:MM:SS.
func FormatDurationHHMMSS(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
