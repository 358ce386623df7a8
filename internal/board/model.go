package board

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultIcon        = "📌"
	DefaultTileColor   = "oklch(93.88% 0.033 300.19)"
	DefaultCanvasColor = "oklch(100% 0 0)"
	DefaultBackground  = "grid"

	VisibilityPrivate = "private"
	VisibilityPublic  = "public"
)

var backgroundTypes = map[string]bool{"solid": true, "grid": true, "dots": true, "image": true}

type Background struct {
	Type            string `gorm:"not null;default:'grid'"`
	Color           string
	ForegroundColor string
	ImageURL        string
}

type Settings struct {
	TileColor   string     `gorm:"not null"`
	CanvasColor string     `gorm:"not null"`
	Background  Background `gorm:"embedded;embeddedPrefix:background_"`
}

type Board struct {
	ID               string `gorm:"type:varchar(36);primaryKey"`
	UserID           string `gorm:"type:varchar(36);index;not null"`
	Title            string `gorm:"not null"`
	Description      string
	Icon             string
	Settings         Settings `gorm:"embedded;embeddedPrefix:settings_"`
	Visibility       string   `gorm:"not null;default:'private'"`
	AllowDuplication bool     `gorm:"not null;default:false"`
	TileCount        int      `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"index;not null;autoUpdateTime"`
}

func (b *Board) BeforeCreate(*gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// CanRead reports whether userID may view b and its tiles.
func (b *Board) CanRead(userID string) bool {
	return b.UserID == userID || b.Visibility == VisibilityPublic
}

func (b *Board) CanDuplicate(userID string) bool {
	return b.UserID == userID || (b.Visibility == VisibilityPublic && b.AllowDuplication)
}

func (b *Board) applyDefaults() {
	if b.Icon == "" {
		b.Icon = DefaultIcon
	}
	if b.Settings.TileColor == "" {
		b.Settings.TileColor = DefaultTileColor
	}
	if b.Settings.CanvasColor == "" {
		b.Settings.CanvasColor = DefaultCanvasColor
	}
	if b.Settings.Background.Type == "" {
		b.Settings.Background.Type = DefaultBackground
	}
	if b.Visibility == "" {
		b.Visibility = VisibilityPrivate
	}
}
