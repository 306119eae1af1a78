package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-study-tracker/internal/model"
	"github.com/Tiliavir/trivial-study-tracker/internal/timecalc"
)

var leaderboardFormat string

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the all-time leaderboard",
	Args:  cobra.NoArgs,
	RunE:  runLeaderboard,
}

func init() {
	leaderboardCmd.Flags().StringVar(&leaderboardFormat, "format", "md", "Output format: md, csv, json")
}

var leaderStyle = lipgloss.NewStyle().Bold(true)

func runLeaderboard(cmd *cobra.Command, args []string) error {
	switch leaderboardFormat {
	case "md", "csv", "json":
	default:
		return userErrorf("unknown format %q (want md, csv or json)", leaderboardFormat)
	}
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	rows, err := c.Leaderboard(ctx)
	if err != nil {
		return err
	}
	return printLeaderboard(os.Stdout, rows, leaderboardFormat)
}

func printLeaderboard(w io.Writer, rows []model.Standing, format string) error {
	switch format {
	case "csv":
		fmt.Fprintln(w, "rank,name,completed_tasks,ontime_tasks,total_minutes")
		for _, r := range rows {
			fmt.Fprintf(w, "%d,%s,%d,%d,%d\n", r.Rank, csvEscape(r.Name), r.CompletedTasks, r.OnTimeTasks, r.TotalMinutes)
		}
	case "json":
		data, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))
	default: // md
		fmt.Fprintln(w, "Leaderboard")
		fmt.Fprintln(w, "--------------------------------------------")
		if len(rows) == 0 {
			fmt.Fprintln(w, "No users yet.")
		}
		for _, r := range rows {
			name := fmt.Sprintf("%-20s", r.Name)
			if r.Rank == 1 && r.TotalMinutes > 0 {
				name = leaderStyle.Render(name)
			}
			fmt.Fprintf(w, "%2d. %s %3d tasks %3d on time %8s\n",
				r.Rank, name, r.CompletedTasks, r.OnTimeTasks, timecalc.FormatMinutes(r.TotalMinutes))
		}
	}
	return nil
}
