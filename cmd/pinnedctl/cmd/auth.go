package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pinned/internal/api"
)

var (
	password string
	userName string
)

func passwordOrEnv() (string, error) {
	if password != "" {
		return password, nil
	}
	if p := os.Getenv("PINNED_PASSWORD"); p != "" {
		return p, nil
	}
	return "", errors.New("password required: pass --password or set PINNED_PASSWORD")
}

func printAuth(res api.AuthResponse) {
	fmt.Printf("logged in as %s (%s)\n", res.User.Email, res.User.ID)
	fmt.Printf("export PINNED_TOKEN=%s\n", res.Token)
}

var registerCmd = &cobra.Command{
	Use:   "register <email>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := passwordOrEnv()
		if err != nil {
			return err
		}
		res, err := apiClient.Register(context.Background(), api.Credentials{Email: args[0], Password: pw, Name: userName})
		if err != nil {
			return err
		}
		printAuth(res)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Log in and print a token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pw, err := passwordOrEnv()
		if err != nil {
			return err
		}
		res, err := apiClient.Login(context.Background(), args[0], pw)
		if err != nil {
			return err
		}
		printAuth(res)
		return nil
	},
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the logged-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireToken(); err != nil {
			return err
		}
		u, err := apiClient.Me(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("%s %s %s\n", u.ID, u.Email, u.Name)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, loginCmd} {
		c.Flags().StringVarP(&password, "password", "p", "", "account password")
	}
	registerCmd.Flags().StringVarP(&userName, "name", "n", "", "display name")

	rootCmd.AddCommand(registerCmd, loginCmd, meCmd)
}
