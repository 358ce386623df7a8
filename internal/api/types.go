// Package api holds the JSON wire types exchanged between the pinned server
// and its clients.
package api

import "time"

type TileType string

const (
	TileText  TileType = "text"
	TileImage TileType = "image"
	TileLink  TileType = "link"
)

func (t TileType) Valid() bool {
	switch t {
	case TileText, TileImage, TileLink:
		return true
	}
	return false
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Style struct {
	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
}

// TileData is the variant payload of a tile. Which fields are meaningful
// depends on the tile type.
type TileData struct {
	Header string `json:"header,omitempty"`
	Text   string `json:"text,omitempty"`

	ImageURL string `json:"imageUrl,omitempty"`
	Caption  string `json:"caption,omitempty"`
	PublicID string `json:"publicId,omitempty"`

	LinkURL         string `json:"linkUrl,omitempty"`
	LinkTitle       string `json:"linkTitle,omitempty"`
	LinkDescription string `json:"linkDescription,omitempty"`
	ThumbnailURL    string `json:"thumbnailUrl,omitempty"`
	Author          string `json:"author,omitempty"`
	PublishDate     string `json:"publishDate,omitempty"`
}

// Tile must stay free of pointers, maps and slices: copying the struct is a
// deep copy, which history snapshots rely on.
type Tile struct {
	ID        string    `json:"id"`
	BoardID   string    `json:"boardId"`
	Type      TileType  `json:"type"`
	Position  Position  `json:"position"`
	Size      Size      `json:"size"`
	Style     Style     `json:"style"`
	Data      TileData  `json:"data"`
	ZIndex    int       `json:"zIndex"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Input returns the create payload for t, dropping server-assigned fields.
func (t Tile) Input() TileInput {
	pos, size, style, z := t.Position, t.Size, t.Style, t.ZIndex
	return TileInput{
		Type:     t.Type,
		Position: &pos,
		Size:     &size,
		Style:    &style,
		Data:     t.Data,
		ZIndex:   &z,
	}
}

// Patch returns a patch carrying every mutable field of t.
func (t Tile) Patch() TilePatch {
	pos, size, style, data, z := t.Position, t.Size, t.Style, t.Data, t.ZIndex
	return TilePatch{
		Position: &pos,
		Size:     &size,
		Style:    &style,
		Data:     &data,
		ZIndex:   &z,
	}
}

// SameContent reports whether t and o agree on everything except identity
// and timestamps.
func (t Tile) SameContent(o Tile) bool {
	return t.Type == o.Type &&
		t.Position == o.Position &&
		t.Size == o.Size &&
		t.Style == o.Style &&
		t.Data == o.Data &&
		t.ZIndex == o.ZIndex
}

// Server-side defaults for layout fields omitted on create.
const (
	DefaultTileSize       = 240
	DefaultTileBackground = "oklch(93.88% 0.033 300.19)"
	DefaultTileTextColor  = "oklch(0% 0 0)"
	DefaultTileZIndex     = 1
)

// TileInput is the body of POST /boards/{id}/tiles. Omitted layout fields
// take server defaults.
type TileInput struct {
	Type     TileType  `json:"type"`
	Position *Position `json:"position,omitempty"`
	Size     *Size     `json:"size,omitempty"`
	Style    *Style    `json:"style,omitempty"`
	Data     TileData  `json:"data"`
	ZIndex   *int      `json:"zIndex,omitempty"`
}

// Resolve returns the tile the server stores for in, with defaults filled
// in. Identity and timestamps are left empty.
func (in TileInput) Resolve(boardID string) Tile {
	t := Tile{
		BoardID: boardID,
		Type:    in.Type,
		Size:    Size{Width: DefaultTileSize, Height: DefaultTileSize},
		Style:   Style{BackgroundColor: DefaultTileBackground, TextColor: DefaultTileTextColor},
		Data:    in.Data,
		ZIndex:  DefaultTileZIndex,
	}
	if in.Position != nil {
		t.Position = *in.Position
	}
	if in.Size != nil {
		t.Size = *in.Size
	}
	if in.Style != nil {
		if in.Style.BackgroundColor != "" {
			t.Style.BackgroundColor = in.Style.BackgroundColor
		}
		if in.Style.TextColor != "" {
			t.Style.TextColor = in.Style.TextColor
		}
	}
	if in.ZIndex != nil {
		t.ZIndex = *in.ZIndex
	}
	return t
}

// TilePatch is the body of PATCH /boards/{id}/tiles/{tileId}. Present
// top-level fields replace the stored value wholesale.
type TilePatch struct {
	Type     *TileType `json:"type,omitempty"`
	Position *Position `json:"position,omitempty"`
	Size     *Size     `json:"size,omitempty"`
	Style    *Style    `json:"style,omitempty"`
	Data     *TileData `json:"data,omitempty"`
	ZIndex   *int      `json:"zIndex,omitempty"`
}

// Apply returns t with the patch applied. Type is left untouched.
func (p TilePatch) Apply(t Tile) Tile {
	if p.Position != nil {
		t.Position = *p.Position
	}
	if p.Size != nil {
		t.Size = *p.Size
	}
	if p.Style != nil {
		t.Style = *p.Style
	}
	if p.Data != nil {
		t.Data = *p.Data
	}
	if p.ZIndex != nil {
		t.ZIndex = *p.ZIndex
	}
	return t
}

type Background struct {
	Type            string `json:"type,omitempty"`
	Color           string `json:"color,omitempty"`
	ForegroundColor string `json:"foregroundColor,omitempty"`
	ImageURL        string `json:"imageUrl,omitempty"`
}

type BoardSettings struct {
	TileColor   string     `json:"tileColor"`
	CanvasColor string     `json:"canvasColor"`
	Background  Background `json:"background"`
}

type Board struct {
	ID               string        `json:"id"`
	UserID           string        `json:"userId"`
	Title            string        `json:"title"`
	Description      string        `json:"description,omitempty"`
	Icon             string        `json:"icon"`
	Settings         BoardSettings `json:"settings"`
	Visibility       string        `json:"visibility"`
	AllowDuplication bool          `json:"allowDuplication"`
	TileCount        int           `json:"tileCount"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// BoardInput is used for both create and update; nil fields are left as
// they are (update) or defaulted (create).
type BoardInput struct {
	Title            *string        `json:"title,omitempty"`
	Description      *string        `json:"description,omitempty"`
	Icon             *string        `json:"icon,omitempty"`
	Settings         *BoardSettings `json:"settings,omitempty"`
	Visibility       *string        `json:"visibility,omitempty"`
	AllowDuplication *bool          `json:"allowDuplication,omitempty"`
}

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type MeResponse struct {
	User User `json:"user"`
}

type UploadedImage struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
}

type Metadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Logo        string `json:"logo"`
	Author      string `json:"author"`
	Date        string `json:"date"`
	URL         string `json:"url"`
}
