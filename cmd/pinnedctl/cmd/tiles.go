package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pinned/internal/api"
)

var (
	tileType   string
	tileHeader string
	tileText   string
	tileURL    string
	tileX      float64
	tileY      float64
	tileWidth  float64
	tileHeight float64
)

var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Manage the tiles of a board",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return requireToken()
	},
}

var tilesListCmd = &cobra.Command{
	Use:   "list <board-id>",
	Short: "List tiles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tiles, err := apiClient.ListTiles(context.Background(), args[0])
		if err != nil {
			return err
		}
		return printTiles(os.Stdout, tiles)
	},
}

var tilesAddCmd = &cobra.Command{
	Use:   "add <board-id>",
	Short: "Add a tile",
	Long: `Add a text, image or link tile.

Examples:
  pinnedctl tiles add B1 --text "buy milk" --x 200 --y 200
  pinnedctl tiles add B1 --type image --url https://example.com/cat.png
  pinnedctl tiles add B1 --type link --url https://go.dev`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := tileInput(cmd)
		if err != nil {
			return err
		}
		t, err := apiClient.CreateTile(context.Background(), args[0], in)
		if err != nil {
			return err
		}
		fmt.Println(t.ID)
		return nil
	},
}

var tilesMoveCmd = &cobra.Command{
	Use:   "move <board-id> <tile-id> <x> <y>",
	Short: "Move a tile to canvas coordinates",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		x, y, err := parsePair(args[2], args[3])
		if err != nil {
			return err
		}
		t, err := apiClient.UpdateTile(context.Background(), args[0], args[1], api.TilePatch{Position: &api.Position{X: x, Y: y}})
		if err != nil {
			return err
		}
		return printTiles(os.Stdout, []api.Tile{t})
	},
}

var tilesRmCmd = &cobra.Command{
	Use:   "rm <board-id> <tile-id>",
	Short: "Delete a tile",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient.DeleteTile(context.Background(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("deleted", args[1])
		return nil
	},
}

func tileInput(cmd *cobra.Command) (api.TileInput, error) {
	in := api.TileInput{
		Type:     api.TileType(tileType),
		Position: &api.Position{X: tileX, Y: tileY},
	}
	if !in.Type.Valid() {
		return in, fmt.Errorf("unknown tile type %q", tileType)
	}
	if cmd.Flags().Changed("width") || cmd.Flags().Changed("height") {
		in.Size = &api.Size{Width: tileWidth, Height: tileHeight}
	}
	switch in.Type {
	case api.TileText:
		in.Data = api.TileData{Header: tileHeader, Text: tileText}
	case api.TileImage:
		in.Data = api.TileData{ImageURL: tileURL, Caption: tileText}
	case api.TileLink:
		in.Data = api.TileData{LinkURL: tileURL, LinkTitle: firstSet(tileHeader, tileURL), LinkDescription: tileText}
	}
	return in, nil
}

func firstSet(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func parsePair(a, b string) (float64, float64, error) {
	x, err := strconv.ParseFloat(a, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad number %q", a)
	}
	y, err := strconv.ParseFloat(b, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad number %q", b)
	}
	return x, y, nil
}

func printTiles(out io.Writer, tiles []api.Tile) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tPOSITION\tSIZE\tCONTENT")
	for _, t := range tiles {
		fmt.Fprintf(w, "%s\t%s\t%g,%g\t%gx%g\t%s\n",
			t.ID, t.Type, t.Position.X, t.Position.Y, t.Size.Width, t.Size.Height, summary(t))
	}
	return w.Flush()
}

func summary(t api.Tile) string {
	var s string
	switch t.Type {
	case api.TileText:
		s = firstSet(t.Data.Header, t.Data.Text)
	case api.TileImage:
		s = firstSet(t.Data.Caption, t.Data.ImageURL)
	case api.TileLink:
		s = firstSet(t.Data.LinkTitle, t.Data.LinkURL)
	}
	if r := []rune(s); len(r) > 48 {
		s = string(r[:47]) + "…"
	}
	return s
}

func init() {
	f := tilesAddCmd.Flags()
	f.StringVarP(&tileType, "type", "t", string(api.TileText), "tile type: text, image or link")
	f.StringVar(&tileHeader, "header", "", "text header or link title")
	f.StringVar(&tileText, "text", "", "text body, image caption or link description")
	f.StringVar(&tileURL, "url", "", "image or link URL")
	f.Float64Var(&tileX, "x", 0, "canvas x")
	f.Float64Var(&tileY, "y", 0, "canvas y")
	f.Float64Var(&tileWidth, "width", api.DefaultTileSize, "tile width")
	f.Float64Var(&tileHeight, "height", api.DefaultTileSize, "tile height")

	rootCmd.AddCommand(tilesCmd)
	tilesCmd.AddCommand(tilesListCmd, tilesAddCmd, tilesMoveCmd, tilesRmCmd)
}
