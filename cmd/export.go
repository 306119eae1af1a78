package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Tiliavir/trivial-study-tracker/internal/model"
)

var (
	exportFormat string
	exportAll    bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export today's tasks to stdout",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json, yaml, md")
	exportCmd.Flags().BoolVar(&exportAll, "all", false, "Include everyone's tasks")
}

// exportRow is the flat, stable shape written by every export format.
type exportRow struct {
	Date               string `json:"date" yaml:"date"`
	User               string `json:"user" yaml:"user"`
	Task               string `json:"task" yaml:"task"`
	Subject            string `json:"subject" yaml:"subject"`
	Status             string `json:"status" yaml:"status"`
	EstimatedMinutes   int    `json:"estimated_minutes" yaml:"estimated_minutes"`
	AccumulatedMinutes int    `json:"accumulated_minutes" yaml:"accumulated_minutes"`
	ActualMinutes      *int   `json:"actual_minutes" yaml:"actual_minutes"`
	CompletedAt        string `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

func toExportRows(tasks []model.Task) []exportRow {
	rows := make([]exportRow, 0, len(tasks))
	for _, t := range tasks {
		row := exportRow{
			Date:               t.Date,
			User:               t.UserName,
			Task:               t.Name,
			Subject:            t.Subject,
			Status:             string(t.Status),
			EstimatedMinutes:   t.EstimatedMinutes,
			AccumulatedMinutes: t.AccumulatedMinutes,
			ActualMinutes:      t.ActualMinutes,
		}
		if t.CompletedAt != nil {
			row.CompletedAt = t.CompletedAt.UTC().Format(time.RFC3339)
		}
		rows = append(rows, row)
	}
	return rows
}

func runExport(cmd *cobra.Command, args []string) error {
	switch exportFormat {
	case "csv", "json", "yaml", "md":
	default:
		return userErrorf("unknown format %q (want csv, json, yaml or md)", exportFormat)
	}
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(cmd)
	defer cancel()

	tasks, err := c.TasksToday(ctx, exportAll)
	if err != nil {
		return err
	}
	return writeExport(os.Stdout, tasks, exportFormat, exportAll)
}

func writeExport(w io.Writer, tasks []model.Task, format string, all bool) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(toExportRows(tasks), "", "  ")
		if err != nil {
			return fmt.Errorf("encoding JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toExportRows(tasks)); err != nil {
			return fmt.Errorf("encoding YAML: %w", err)
		}
		return enc.Close()
	case "md":
		printList(w, tasks, all)
	default: // csv
		printCSV(w, toExportRows(tasks))
	}
	return nil
}

func printCSV(w io.Writer, rows []exportRow) {
	fmt.Fprintln(w, "date,user,task,subject,status,estimated_minutes,accumulated_minutes,actual_minutes,completed_at")
	for _, r := range rows {
		actual := ""
		if r.ActualMinutes != nil {
			actual = fmt.Sprint(*r.ActualMinutes)
		}
		fmt.Fprintf(w, "%s,%s,%s,%s,%s,%d,%d,%s,%s\n",
			csvEscape(r.Date),
			csvEscape(r.User),
			csvEscape(r.Task),
			csvEscape(r.Subject),
			csvEscape(r.Status),
			r.EstimatedMinutes,
			r.AccumulatedMinutes,
			actual,
			csvEscape(r.CompletedAt),
		)
	}
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
