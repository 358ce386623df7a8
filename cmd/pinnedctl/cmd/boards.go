package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pinned/internal/api"
)

var (
	boardPublic      bool
	boardDuplicable  bool
	boardDescription string
)

var boardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "Manage boards",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return requireToken()
	},
}

var boardsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your boards",
	RunE: func(cmd *cobra.Command, args []string) error {
		boards, err := apiClient.ListBoards(context.Background())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tTILES\tVISIBILITY")
		for _, b := range boards {
			fmt.Fprintf(w, "%s\t%s %s\t%d\t%s\n", b.ID, b.Icon, b.Title, b.TileCount, b.Visibility)
		}
		return w.Flush()
	},
}

var boardsCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a board",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := api.BoardInput{Title: &args[0]}
		if boardDescription != "" {
			in.Description = &boardDescription
		}
		if boardPublic {
			v := "public"
			in.Visibility = &v
		}
		if cmd.Flags().Changed("duplicable") {
			in.AllowDuplication = &boardDuplicable
		}
		b, err := apiClient.CreateBoard(context.Background(), in)
		if err != nil {
			return err
		}
		fmt.Println(b.ID)
		return nil
	},
}

var boardsDeleteCmd = &cobra.Command{
	Use:   "delete <board-id>",
	Short: "Delete a board and all of its tiles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient.DeleteBoard(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Println("deleted", args[0])
		return nil
	},
}

var boardsDuplicateCmd = &cobra.Command{
	Use:   "duplicate <board-id>",
	Short: "Copy a board, with its tiles, into your account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := apiClient.DuplicateBoard(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s %s\n", b.ID, b.Title)
		return nil
	},
}

func init() {
	boardsCreateCmd.Flags().BoolVar(&boardPublic, "public", false, "make the board readable by every user")
	boardsCreateCmd.Flags().BoolVar(&boardDuplicable, "duplicable", false, "let other users copy a public board")
	boardsCreateCmd.Flags().StringVarP(&boardDescription, "description", "d", "", "board description")

	rootCmd.AddCommand(boardsCmd)
	boardsCmd.AddCommand(boardsListCmd, boardsCreateCmd, boardsDeleteCmd, boardsDuplicateCmd)
}
