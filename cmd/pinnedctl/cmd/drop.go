package cmd

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"pinned/internal/canvas"
)

var dropX, dropY float64

var dropCmd = &cobra.Command{
	Use:   "drop <board-id> <file|url>",
	Short: "Drop a file or URL onto a board",
	Long: `Drop an image file, an image URL or a web page URL onto a board, as if
dragged onto the canvas at screen position --x,--y. Image files are
uploaded first; web pages become link tiles with their title and preview.`,
	Args: cobra.ExactArgs(2),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		return requireToken()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		s, err := canvas.Open(ctx, apiClient, args[0], canvas.WithLogger(log))
		if err != nil {
			return err
		}
		defer s.Close()

		payload, closeFn, err := dropPayload(args[1])
		if err != nil {
			return err
		}
		defer closeFn()

		d := &canvas.DropHandler{Session: s, Uploader: apiClient, Metadata: apiClient}
		t, err := d.Drop(ctx, canvas.NewViewport(), canvas.Point{X: dropX, Y: dropY}, payload)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s at %g,%g\n", t.ID, t.Type, t.Position.X, t.Position.Y)
		return nil
	},
}

// dropPayload reads arg as a local file when one exists, otherwise as
// dragged text.
func dropPayload(arg string) (canvas.DropPayload, func(), error) {
	f, err := os.Open(arg)
	if err != nil {
		if os.IsNotExist(err) {
			return canvas.DropPayload{Text: arg}, func() {}, nil
		}
		return canvas.DropPayload{}, nil, err
	}

	ct := mime.TypeByExtension(filepath.Ext(arg))
	if ct == "" {
		head := make([]byte, 512)
		n, _ := f.Read(head)
		ct = http.DetectContentType(head[:n])
		if _, err := f.Seek(0, 0); err != nil {
			f.Close()
			return canvas.DropPayload{}, nil, err
		}
	}
	return canvas.DropPayload{
		File: &canvas.DroppedFile{Name: filepath.Base(arg), ContentType: ct, Body: f},
	}, func() { f.Close() }, nil
}

func init() {
	dropCmd.Flags().Float64Var(&dropX, "x", 0, "screen x of the drop")
	dropCmd.Flags().Float64Var(&dropY, "y", 0, "screen y of the drop")
	rootCmd.AddCommand(dropCmd)
}
