package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-study-tracker/internal/timecalc"
)

var pauseCmd = &cobra.Command{
	Use:   "pause <task-id>",
	Short: "Pause the running task",
	Args:  cobra.ExactArgs(1),
	RunE:  runPause,
}

func runPause(cmd *cobra.Command, args []string) error {
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
	resp, err := c.Pause(ctx, task.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Paused %q. Logged so far: %s of %s\n",
		task.Name,
		timecalc.FormatMinutes(resp.AccumulatedMinutes),
		timecalc.FormatMinutes(task.EstimatedMinutes))
	return nil
}
