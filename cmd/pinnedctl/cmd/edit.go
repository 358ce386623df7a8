package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"pinned/internal/api"
	"pinned/internal/canvas"
)

var syncDelay time.Duration

var editCmd = &cobra.Command{
	Use:   "edit <board-id>",
	Short: "Edit a board interactively with undo and redo",
	Long: `Open a board and edit it line by line. Changes are applied locally
at once and saved in the background; undo and redo are synced with the
server after a short pause.

Commands:
  list                       show tiles (# is the row number)
  add <text>                 add a text tile at the origin
  move <#> <x> <y>           move a tile
  resize <#> <width> <height>
  rm <#>                     delete a tile
  undo | redo
  quit`,
	Args: cobra.ExactArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return requireToken()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := canvas.Open(ctx, apiClient, args[0],
			canvas.WithLogger(log),
			canvas.WithSyncDelay(syncDelay),
			canvas.WithNotifier(canvas.NotifierFunc(func(err error) {
				fmt.Fprintln(cmd.ErrOrStderr(), "!", explain(err))
			})),
		)
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Fprintf(cmd.OutOrStdout(), "editing %s %s\n", s.Board().Icon, s.Board().Title)
		runEditor(ctx, s, cmd.InOrStdin(), cmd.OutOrStdout())

		// let a pending undo/redo reach the server before leaving
		deadline := time.Now().Add(10 * time.Second)
		for !s.Settled() && time.Now().Before(deadline) {
			time.Sleep(50 * time.Millisecond)
		}
		return nil
	},
}

func runEditor(ctx context.Context, s *canvas.Session, in io.Reader, out io.Writer) {
	sc := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) > 0 {
			if fields[0] == "quit" || fields[0] == "exit" {
				return
			}
			if err := editCommand(ctx, s, fields, out); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		}
		fmt.Fprint(out, "> ")
	}
}

func editCommand(ctx context.Context, s *canvas.Session, f []string, out io.Writer) error {
	tiles := s.Tiles()
	pick := func(arg string) (api.Tile, error) {
		var n int
		if _, err := fmt.Sscanf(arg, "%d", &n); err != nil || n < 1 || n > len(tiles) {
			return api.Tile{}, fmt.Errorf("no tile #%s", arg)
		}
		return tiles[n-1], nil
	}

	switch f[0] {
	case "list", "ls":
		return printRows(out, tiles)
	case "add":
		if len(f) < 2 {
			return fmt.Errorf("usage: add <text>")
		}
		_, err := s.Create(ctx, api.TileInput{
			Type: api.TileText,
			Data: api.TileData{Text: strings.Join(f[1:], " ")},
		})
		return err
	case "move", "resize":
		if len(f) != 4 {
			return fmt.Errorf("usage: %s <#> <a> <b>", f[0])
		}
		t, err := pick(f[1])
		if err != nil {
			return err
		}
		a, b, err := parsePair(f[2], f[3])
		if err != nil {
			return err
		}
		p := api.TilePatch{Position: &api.Position{X: a, Y: b}}
		if f[0] == "resize" {
			p = api.TilePatch{Size: &api.Size{Width: a, Height: b}}
		}
		_, err = s.Update(ctx, t.ID, p)
		return err
	case "rm", "delete":
		if len(f) != 2 {
			return fmt.Errorf("usage: rm <#>")
		}
		t, err := pick(f[1])
		if err != nil {
			return err
		}
		return s.Delete(ctx, t.ID)
	case "undo", "redo":
		ok := s.Undo
		if f[0] == "redo" {
			ok = s.Redo
		}
		if !ok() {
			if s.Syncing() {
				return fmt.Errorf("still syncing, try again")
			}
			return fmt.Errorf("nothing to %s", f[0])
		}
		n, i := s.HistoryState()
		fmt.Fprintf(out, "history %d/%d\n", i+1, n)
		return nil
	}
	return fmt.Errorf("unknown command %q", f[0])
}

func printRows(out io.Writer, tiles []api.Tile) error {
	for i, t := range tiles {
		fmt.Fprintf(out, "%3d  %-5s %g,%g  %gx%g  %s\n",
			i+1, t.Type, t.Position.X, t.Position.Y, t.Size.Width, t.Size.Height, summary(t))
	}
	if len(tiles) == 0 {
		fmt.Fprintln(out, "(empty board)")
	}
	return nil
}

func init() {
	editCmd.Flags().DurationVar(&syncDelay, "sync-delay", canvas.DefaultSyncDelay, "pause after undo/redo before syncing")
	rootCmd.AddCommand(editCmd)
}
