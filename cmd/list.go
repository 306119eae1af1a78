package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-study-tracker/internal/model"
	"github.com/Tiliavir/trivial-study-tracker/internal/timecalc"
)

var listAll bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List today's tasks",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	listCmd.Flags().BoolVar(&listAll, "all", false, "Show everyone's tasks")
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	tasks, err := c.TasksToday(ctx, listAll)
	if err != nil {
		return err
	}
	printList(os.Stdout, tasks, listAll)
	return nil
}

// printList prints one line per task, grouped by owner when showOwner is set.
func printList(w io.Writer, tasks []model.Task, showOwner bool) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks planned for today.")
		return
	}

	var currentOwner string
	for _, t := range tasks {
		if showOwner && t.UserName != currentOwner {
			fmt.Fprintln(w, t.UserName)
			currentOwner = t.UserName
		}
		fmt.Fprintf(w, "%s  %-18s %-28s %-10s %s\n",
			shortID(t.ID), statusLabel(t.Status), t.Name, t.Subject, minutesLabel(t))
	}
}

func statusLabel(s model.Status) string {
	switch s {
	case model.StatusInProgress:
		return "in progress"
	case model.StatusCompletedOnTime:
		return "done (on time)"
	case model.StatusCompletedDelayed:
		return "done (delayed)"
	}
	return string(s)
}

// minutesLabel shows logged against estimated time.
func minutesLabel(t model.Task) string {
	logged := t.AccumulatedMinutes
	if t.ActualMinutes != nil {
		logged = *t.ActualMinutes
	}
	return fmt.Sprintf("%s / %s", timecalc.FormatMinutes(logged), timecalc.FormatMinutes(t.EstimatedMinutes))
}
