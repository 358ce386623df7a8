package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pinned/internal/client"
	"pinned/internal/logging"
)

var (
	apiURL   string
	token    string
	logLevel string

	apiClient *client.Client
	log       *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "pinnedctl",
	Short: "Command-line client for a pinned server",
	Long: `pinnedctl talks to a pinned server: manage your account, boards and
tiles, drop files or links onto a board, or edit a board interactively
with undo and redo.

The server address and token default to PINNED_API_URL and PINNED_TOKEN,
which may also be set in a .env file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		var err error
		if log, err = logging.New(logLevel); err != nil {
			return err
		}
		apiClient = client.New(apiURL, client.WithToken(token))
		return nil
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, explain(err))
		os.Exit(1)
	}
}

func init() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("PINNED_API_URL", "http://localhost:8080"), "server base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("PINNED_TOKEN"), "bearer token")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "log level")
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func requireToken() error {
	if apiClient.Token() == "" {
		return errors.New("not logged in: pass --token or set PINNED_TOKEN")
	}
	return nil
}

func explain(err error) string {
	switch {
	case client.IsUnauthorized(err):
		return "unauthorized: log in again and export the new PINNED_TOKEN"
	case client.IsForbidden(err):
		return "access denied: " + err.Error()
	case client.IsNotFound(err):
		return "not found: " + err.Error()
	}
	return err.Error()
}
