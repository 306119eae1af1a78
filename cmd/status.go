package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-study-tracker/internal/model"
	"github.com/Tiliavir/trivial-study-tracker/internal/timecalc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running task and today's progress",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	tasks, err := c.TasksToday(ctx, false)
	if err != nil {
		return err
	}
	printStatus(os.Stdout, tasks, time.Now())
	return nil
}

func printStatus(w io.Writer, tasks []model.Task, now time.Time) {
	var done, logged int
	for _, t := range tasks {
		if t.Status.Completed() {
			done++
		}
		if t.ActualMinutes != nil {
			logged += *t.ActualMinutes
		} else {
			logged += t.AccumulatedMinutes
		}
	}

	for _, t := range tasks {
		if t.Status != model.StatusInProgress || t.StartedAt == nil {
			continue
		}
		session := int64(now.Sub(*t.StartedAt).Seconds())
		fmt.Fprintln(w, "Running:")
		fmt.Fprintf(w, "  Task: %s (%s)\n", t.Name, shortID(t.ID))
		if t.Subject != "" {
			fmt.Fprintf(w, "  Subject: %s\n", t.Subject)
		}
		fmt.Fprintf(w, "  Since: %s\n", t.StartedAt.Local().Format("15:04"))
		fmt.Fprintf(w, "  Session: %s\n", formatElapsed(session))
		fmt.Fprintf(w, "  Elapsed: %s\n", timecalc.FormatDurationHHMMSS(int64(t.AccumulatedMinutes)*60+session))
		fmt.Fprintf(w, "  Progress: %.0f%% of %s\n",
			timecalc.ProgressPercent(t.AccumulatedMinutes, *t.StartedAt, now, t.EstimatedMinutes),
			timecalc.FormatMinutes(t.EstimatedMinutes))
		if timecalc.Overrun(t.AccumulatedMinutes, *t.StartedAt, now, t.EstimatedMinutes) {
			fmt.Fprintln(w, "  Over the estimate.")
		}
		fmt.Fprintf(w, "Today: %d of %d done.\n", done, len(tasks))
		return
	}

	fmt.Fprintln(w, "No active task.")
	fmt.Fprintf(w, "Today: %d of %d done, %s logged.\n", done, len(tasks), timecalc.FormatMinutes(logged))
}

func formatElapsed(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
