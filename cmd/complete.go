package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-study-tracker/internal/model"
	"github.com/Tiliavir/trivial-study-tracker/internal/timecalc"
)

var completeCmd = &cobra.Command{
	Use:   "complete <task-id>",
	Short: "Complete a task",
	Args:  cobra.ExactArgs(1),
	RunE:  runComplete,
}

func runComplete(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	task, err := findTask(ctx, c, args[0])
	if err != nil {
		return err
	}
	resp, err := c.Complete(ctx, task.ID)
	if err != nil {
		return err
	}
	verdict := "on time"
	if resp.Status == model.StatusCompletedDelayed {
		verdict = "delayed"
	}
	fmt.Printf("Completed %q in %s (estimate %s, %s). %d done today.\n",
		task.Name,
		timecalc.FormatMinutes(resp.ActualMinutes),
		timecalc.FormatMinutes(task.EstimatedMinutes),
		verdict,
		resp.CompletedToday)
	return nil
}
