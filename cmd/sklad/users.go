package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sklad-bot/sklad/internal/store"
)

// openStore resolves the database path the same way `run` does, so admin
// commands and the bot share one file.
func openStore() (*store.Store, error) {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	if err := godotenv.Load(filepath.Join(dataDir, ".env")); err != nil {
		logrus.Debugf("No .env file loaded: %v", err)
	}
	dbFile := os.Getenv("DB_FILE")
	if dbFile == "" {
		dbFile = filepath.Join(dataDir, "sklad.db")
	}
	return store.Open(dbFile)
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage registered users",
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
			os.Exit(1)
		},
	}
	cmd.AddCommand(userAddCmd(), userListCmd(), userDeleteCmd())
	return cmd
}

func userAddCmd() *cobra.Command {
	var twitterUsername, twitterEmail, twitterPassword string

	cmd := &cobra.Command{
		Use:   "add <username> <telegram_id>",
		Short: "Register a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			telegramID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid telegram id %q: %w", args[1], err)
			}

			creds := 0
			for _, v := range []string{twitterUsername, twitterEmail, twitterPassword} {
				if v != "" {
					creds++
				}
			}
			if creds != 0 && creds != 3 {
				return fmt.Errorf("twitter credentials require username, email and password together")
			}

			st, err := openStore()
			if err != nil {
				return err
			}

			logrus.Infof("Adding user %s with telegram id %d", args[0], telegramID)
			return st.CreateUser(&store.User{
				Username:        args[0],
				TelegramID:      telegramID,
				TwitterUsername: twitterUsername,
				TwitterEmail:    twitterEmail,
				TwitterPassword: twitterPassword,
			})
		},
	}

	cmd.Flags().StringVar(&twitterUsername, "twitter-username", "", "Twitter login username")
	cmd.Flags().StringVar(&twitterEmail, "twitter-email", "", "Twitter login email")
	cmd.Flags().StringVar(&twitterPassword, "twitter-password", "", "Twitter login password")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered users",
		RunE: func(_ *cobra.Command, _ []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			users, err := st.Users()
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"ID", "Username", "Telegram ID", "Twitter", "Cookies"})
			for _, user := range users {
				cookies := "no"
				if user.HasCookies() {
					cookies = "yes"
				}
				table.Append([]string{
					strconv.FormatUint(uint64(user.ID), 10),
					user.Username,
					strconv.FormatInt(user.TelegramID, 10),
					user.TwitterUsername,
					cookies,
				})
			}
			table.Render()
			return nil
		},
	}
}

func userDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			st, err := openStore()
			if err != nil {
				return err
			}
			logrus.Infof("Deleting user %s", args[0])
			return st.DeleteUser(args[0])
		},
	}
}
