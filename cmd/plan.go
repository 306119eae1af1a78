package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-study-tracker/internal/model"
	"github.com/Tiliavir/trivial-study-tracker/internal/timecalc"
)

var planCmd = &cobra.Command{
	Use:   "plan <name|subject|minutes>...",
	Short: "Plan today's tasks",
	Long: `Plan one or more tasks for today. Each argument is
"name|subject|minutes" or "name|minutes", for example:

  tst plan "Kinematics|Physics|60" "Integration by parts|Maths|45"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	planned := make([]model.PlannedTask, 0, len(args))
	for _, arg := range args {
		p, err := parsePlanned(arg)
		if err != nil {
			return err
		}
		planned = append(planned, p)
	}

	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	tasks, err := c.Plan(ctx, planned)
	if err != nil {
		return err
	}
	fmt.Printf("Planned %d task(s):\n", len(tasks))
	for _, t := range tasks {
		fmt.Printf("  %s  %-28s %-10s %s\n", shortID(t.ID), t.Name, t.Subject, timecalc.FormatMinutes(t.EstimatedMinutes))
	}
	return nil
}
