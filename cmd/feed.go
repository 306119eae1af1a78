package cmd

import (
	"errors"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-study-tracker/internal/model"
	"github.com/Tiliavir/trivial-study-tracker/internal/timecalc"
)

var feedOnce bool

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Watch who is studying what, live",
	Args:  cobra.NoArgs,
	RunE:  runFeed,
}

func init() {
	feedCmd.Flags().BoolVar(&feedOnce, "once", false, "Print one snapshot and exit")
}

var (
	feedTitle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	feedName    = lipgloss.NewStyle().Bold(true).Width(16)
	feedIdle    = lipgloss.NewStyle().Faint(true)
	feedActive  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	feedOverrun = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	feedDone    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

const barWidth = 20

var errFeedDone = errors.New("feed done")

func runFeed(cmd *cobra.Command, args []string) error {
	c, err := newClient()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	err = c.Stream(ctx, func(snap model.Snapshot) error {
		if feedOnce {
			fmt.Print(renderFeed(snap))
			return errFeedDone
		}
		// Clear the screen and redraw.
		fmt.Print("\033[H\033[2J")
		fmt.Print(renderFeed(snap))
		return nil
	})
	if errors.Is(err, errFeedDone) {
		return nil
	}
	return err
}

func renderFeed(snap model.Snapshot) string {
	var b strings.Builder
	b.WriteString(feedTitle.Render("Study feed"))
	fmt.Fprintf(&b, "  %s\n\n", feedIdle.Render(snap.GeneratedAt.Local().Format("15:04:05")))
	if len(snap.Users) == 0 {
		b.WriteString(feedIdle.Render("Nobody has signed up yet."))
		b.WriteString("\n")
		return b.String()
	}
	for _, p := range snap.Users {
		b.WriteString(feedName.Render(p.Name))
		b.WriteString(" ")
		b.WriteString(renderActivity(p.ActiveTask))
		if p.CompletedToday > 0 {
			b.WriteString("  ")
			b.WriteString(feedDone.Render(fmt.Sprintf("✓ %d today", p.CompletedToday)))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func renderActivity(a *model.ActiveTask) string {
	if a == nil {
		return feedIdle.Render("idle")
	}
	style := feedActive
	if a.Overrun {
		style = feedOverrun
	}
	label := a.Name
	if a.Subject != "" {
		label += " (" + a.Subject + ")"
	}
	elapsed := int(math.Floor(a.ElapsedMinutes))
	return style.Render(fmt.Sprintf("%s %s %3.0f%% %s / %s",
		label,
		progressBar(a.ProgressPercent, barWidth),
		a.ProgressPercent,
		timecalc.FormatMinutes(elapsed),
		timecalc.FormatMinutes(a.EstimatedMinutes)))
}

func progressBar(pct float64, width int) string {
	filled := int(math.Round(pct / 100 * float64(width)))
	filled = max(0, min(width, filled))
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", width-filled) + "]"
}
