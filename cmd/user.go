package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/trivial-study-tracker/internal/storage"
)

var userName string

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users (server side, opens the database directly)",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register a user and print its API token",
	Args:  cobra.ExactArgs(1),
	RunE:  runUserAdd,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered users",
	Args:  cobra.NoArgs,
	RunE:  runUserList,
}

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "Display name (defaults to the username)")
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		return err
	}
	defer store.Close()

	user, token, err := store.CreateUser(cmd.Context(), args[0], userName)
	if errors.Is(err, storage.ErrUserExists) {
		return userError{err}
	}
	if err != nil {
		return err
	}
	fmt.Printf("Created user %q (%s).\n", user.Username, user.Name)
	fmt.Printf("API token: %s\n", token)
	fmt.Println("The token is shown only once. Put it in client.token of the user's config.")
	return nil
}

func runUserList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg, slog.New(slog.DiscardHandler))
	if err != nil {
		return err
	}
	defer store.Close()

	users, err := store.ListUsers(cmd.Context())
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Println("No users registered.")
		return nil
	}
	for _, u := range users {
		fmt.Printf("%-16s %-24s since %s\n", u.Username, u.Name, u.CreatedAt.Local().Format("2006-01-02"))
	}
	return nil
}
