package board

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"pinned/internal/api"
)

const (
	DefaultTileSize       = api.DefaultTileSize
	DefaultTileBackground = api.DefaultTileBackground
	DefaultTileTextColor  = api.DefaultTileTextColor
	DefaultTileZIndex     = api.DefaultTileZIndex
)

// Layout columns carry no SQL defaults: gorm would skip explicit zero
// values on insert. newTile fills the defaults instead.
type Position struct {
	X float64 `gorm:"not null"`
	Y float64 `gorm:"not null"`
}

type Size struct {
	Width  float64 `gorm:"not null"`
	Height float64 `gorm:"not null"`
}

type Style struct {
	BackgroundColor string
	TextColor       string
}

// Data flattens every tile variant's payload into nullable-free columns.
type Data struct {
	Header string
	Text   string `gorm:"type:text"`

	ImageURL string
	Caption  string
	PublicID string `gorm:"index"`

	LinkURL         string
	LinkTitle       string
	LinkDescription string `gorm:"type:text"`
	ThumbnailURL    string
	Author          string
	PublishDate     string
}

type Tile struct {
	ID       string   `gorm:"type:varchar(36);primaryKey"`
	BoardID  string   `gorm:"type:varchar(36);index;not null"`
	Type     string   `gorm:"not null"`
	Position Position `gorm:"embedded;embeddedPrefix:position_"`
	Size     Size     `gorm:"embedded;embeddedPrefix:size_"`
	Style    Style    `gorm:"embedded;embeddedPrefix:style_"`
	Data     Data     `gorm:"embedded;embeddedPrefix:data_"`
	ZIndex   int      `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"`
}

func (t *Tile) BeforeCreate(*gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

func (t *Tile) API() api.Tile {
	return api.Tile{
		ID:       t.ID,
		BoardID:  t.BoardID,
		Type:     api.TileType(t.Type),
		Position: api.Position{X: t.Position.X, Y: t.Position.Y},
		Size:     api.Size{Width: t.Size.Width, Height: t.Size.Height},
		Style:    api.Style{BackgroundColor: t.Style.BackgroundColor, TextColor: t.Style.TextColor},
		Data:     api.TileData(t.Data),
		ZIndex:   t.ZIndex,

		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func newTile(boardID string, in api.TileInput) Tile {
	r := in.Resolve(boardID)
	return Tile{
		BoardID:  boardID,
		Type:     string(r.Type),
		Position: Position{X: r.Position.X, Y: r.Position.Y},
		Size:     Size{Width: r.Size.Width, Height: r.Size.Height},
		Style:    Style{BackgroundColor: r.Style.BackgroundColor, TextColor: r.Style.TextColor},
		Data:     Data(r.Data),
		ZIndex:   r.ZIndex,
	}
}

func (t *Tile) apply(p api.TilePatch) {
	if p.Position != nil {
		t.Position = Position{X: p.Position.X, Y: p.Position.Y}
	}
	if p.Size != nil {
		t.Size = Size{Width: p.Size.Width, Height: p.Size.Height}
	}
	if p.Style != nil {
		t.Style = Style{BackgroundColor: p.Style.BackgroundColor, TextColor: p.Style.TextColor}
	}
	if p.Data != nil {
		t.Data = Data(*p.Data)
	}
	if p.ZIndex != nil {
		t.ZIndex = *p.ZIndex
	}
}
