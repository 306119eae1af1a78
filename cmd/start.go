package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start <task-id>",
	Short: "Start or resume a task",
	Long:  "Start or resume a task. A task already running is paused first.",
	Args:  cobra.ExactArgs(1),
	RunE:  runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
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
	resp, err := c.Start(ctx, task.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Started %q at %s\n", task.Name, resp.StartedAt.Local().Format("15:04:05"))
	return nil
}
