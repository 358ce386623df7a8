package canvas

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"pinned/internal/api"
)

var ErrUnsupportedDrop = errors.New("nothing droppable in payload")

// MinTileSize is the smallest width or height a resize produces.
const MinTileSize = 40

var imageURLPattern = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp|svg)$`)

type Uploader interface {
	UploadImage(ctx context.Context, filename, contentType string, body io.Reader) (api.UploadedImage, error)
}

type MetadataSource interface {
	FetchMetadata(ctx context.Context, rawURL string) (api.Metadata, error)
}

// DroppedFile is a file dragged onto the canvas.
type DroppedFile struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// DropPayload mirrors what a drag-and-drop carries: an optional file plus
// the text/html and text/plain representations.
type DropPayload struct {
	File *DroppedFile
	HTML string
	Text string
}

// DropHandler turns drops and drag gestures into session changes.
type DropHandler struct {
	Session  *Session
	Uploader Uploader
	Metadata MetadataSource
}

// Drop creates a tile at the canvas position under screen point at. Image
// files are uploaded first. Images referenced by HTML or by a plain-text
// URL become image tiles; other web URLs become link tiles.
func (d *DropHandler) Drop(ctx context.Context, v Viewport, at Point, p DropPayload) (api.Tile, error) {
	pos := v.ToCanvas(at)

	if f := p.File; f != nil && strings.HasPrefix(f.ContentType, "image/") {
		if d.Uploader == nil {
			return api.Tile{}, fmt.Errorf("%w: no uploader", ErrUnsupportedDrop)
		}
		img, err := d.Uploader.UploadImage(ctx, f.Name, f.ContentType, f.Body)
		if err != nil {
			return api.Tile{}, fmt.Errorf("upload %s: %w", f.Name, err)
		}
		return d.createImage(ctx, pos, img.URL, img.PublicID)
	}

	if src := imageSource(p.HTML); src != "" {
		return d.createImage(ctx, pos, src, "")
	}

	text := strings.TrimSpace(p.Text)
	if text != "" && imageURLPattern.MatchString(text) {
		return d.createImage(ctx, pos, text, "")
	}
	if isWebURL(text) {
		return d.createLink(ctx, pos, text)
	}
	return api.Tile{}, ErrUnsupportedDrop
}

func (d *DropHandler) createImage(ctx context.Context, pos api.Position, src, publicID string) (api.Tile, error) {
	return d.Session.Create(ctx, api.TileInput{
		Type:     api.TileImage,
		Position: &pos,
		Data:     api.TileData{ImageURL: src, PublicID: publicID},
	})
}

func (d *DropHandler) createLink(ctx context.Context, pos api.Position, raw string) (api.Tile, error) {
	data := api.TileData{LinkURL: raw, LinkTitle: raw}
	if d.Metadata != nil {
		m, err := d.Metadata.FetchMetadata(ctx, raw)
		if err != nil {
			// a bare link is still useful
			d.Session.log.Info("link metadata unavailable", zap.String("url", raw), zap.Error(err))
		} else {
			data.LinkTitle = firstNonEmpty(m.Title, raw)
			data.LinkDescription = m.Description
			data.ThumbnailURL = m.Image
			data.Author = m.Author
			data.PublishDate = m.Date
		}
	}
	return d.Session.Create(ctx, api.TileInput{
		Type:     api.TileLink,
		Position: &pos,
		Data:     data,
	})
}

// Move shifts a tile by a screen-space drag delta.
func (d *DropHandler) Move(ctx context.Context, v Viewport, id string, dx, dy float64) (api.Tile, error) {
	t, ok := d.Session.Tile(id)
	if !ok {
		return api.Tile{}, fmt.Errorf("%w: %s", ErrTileNotFound, id)
	}
	z := v.scale()
	pos := api.Position{
		X: math.Round(t.Position.X + dx/z),
		Y: math.Round(t.Position.Y + dy/z),
	}
	return d.Session.Update(ctx, id, api.TilePatch{Position: &pos})
}

// Resize grows or shrinks a tile by a screen-space delta.
func (d *DropHandler) Resize(ctx context.Context, v Viewport, id string, dw, dh float64) (api.Tile, error) {
	t, ok := d.Session.Tile(id)
	if !ok {
		return api.Tile{}, fmt.Errorf("%w: %s", ErrTileNotFound, id)
	}
	z := v.scale()
	size := api.Size{
		Width:  math.Max(MinTileSize, math.Round(t.Size.Width+dw/z)),
		Height: math.Max(MinTileSize, math.Round(t.Size.Height+dh/z)),
	}
	return d.Session.Update(ctx, id, api.TilePatch{Size: &size})
}

// imageSource returns the src of the first <img> in fragment.
func imageSource(fragment string) string {
	if fragment == "" {
		return ""
	}
	z := html.NewTokenizer(strings.NewReader(fragment))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if atom.Lookup(name) != atom.Img {
				continue
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "src" && len(val) > 0 {
					return string(val)
				}
			}
		}
	}
}

func isWebURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
