package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-study-tracker/internal/client"
	"github.com/Tiliavir/trivial-study-tracker/internal/config"
)

var (
	flagURL   string
	flagToken string
)

var rootCmd = &cobra.Command{
	Use:   "tst",
	Short: "Trivial Study Tracker - plan, time and share study sessions",
	Long: `tst tracks planned study tasks for a small group. One member runs
"tst serve"; everyone else plans, starts, pauses and completes tasks against
it and can watch who is studying what with "tst feed".

Settings live in ~/.tst/config.json.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// requestTimeout bounds every non-streaming API call.
const requestTimeout = 10 * time.Second

// Execute is the entry point called from main. Problems the user can fix
// exit with 1, everything else with 2.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagURL, "url", "", "Server URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "API token (overrides config)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(feedCmd)
	rootCmd.AddCommand(leaderboardCmd)
	rootCmd.AddCommand(exportCmd)
}

// userError marks failures caused by bad input rather than the system.
type userError struct{ error }

func userErrorf(format string, args ...any) error {
	return userError{fmt.Errorf(format, args...)}
}

func exitCode(err error) int {
	var ue userError
	if errors.As(err, &ue) {
		return 1
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
		return 1
	}
	return 2
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	if flagURL != "" {
		cfg.Client.URL = flagURL
	}
	if flagToken != "" {
		cfg.Client.Token = flagToken
	}
	return cfg, nil
}

// newClient builds an API client from config and flags.
func newClient() (*client.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Client.Token == "" {
		return nil, userErrorf("no API token configured; set client.token in %s, TST_TOKEN or --token", configPathHint())
	}
	return client.New(cfg.Client.URL, cfg.Client.Token), nil
}

func configPathHint() string {
	p, err := config.Path()
	if err != nil {
		return "~/.tst/config.json"
	}
	return p
}

func requestContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout)
}
