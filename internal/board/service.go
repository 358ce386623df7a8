package board

import (
	"context"
	"errors"
	"strings"
	"time"

	"pinned/internal/api"
	"pinned/internal/jobs"

	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("forbidden")
	ErrTitleRequired = errors.New("title required")
	ErrInvalidBoard  = errors.New("invalid board")
	ErrInvalidTile   = errors.New("invalid tile type")
	ErrTypeImmutable = errors.New("tile type cannot change")
	ErrNotDuplicable = errors.New("board does not allow duplication")
)

type Service struct {
	DB *gorm.DB
	// CleanupDelay postpones hosted image removal so that an undo can still
	// restore a deleted image tile.
	CleanupDelay time.Duration
	Now          func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) ListBoards(ctx context.Context, userID string) ([]Board, error) {
	var rows []Board
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at desc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) GetBoard(ctx context.Context, userID, id string) (*Board, error) {
	b, err := loadBoard(s.DB.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if !b.CanRead(userID) {
		return nil, ErrForbidden
	}
	return b, nil
}

func (s *Service) CreateBoard(ctx context.Context, userID string, in api.BoardInput) (*Board, error) {
	b := Board{UserID: userID}
	if err := b.apply(in); err != nil {
		return nil, err
	}
	if b.Title == "" {
		return nil, ErrTitleRequired
	}
	b.applyDefaults()
	if err := s.DB.WithContext(ctx).Create(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Service) UpdateBoard(ctx context.Context, userID, id string, in api.BoardInput) (*Board, error) {
	var out *Board
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := ownedBoard(tx, userID, id)
		if err != nil {
			return err
		}
		if err := b.apply(in); err != nil {
			return err
		}
		if b.Title == "" {
			return ErrTitleRequired
		}
		b.applyDefaults()
		if err := tx.Save(b).Error; err != nil {
			return err
		}
		out = b
		return nil
	})
	return out, err
}

// DeleteBoard removes the board with all of its tiles. Hosted images of
// image tiles are queued for cleanup.
func (s *Service) DeleteBoard(ctx context.Context, userID, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := ownedBoard(tx, userID, id)
		if err != nil {
			return err
		}

		var publicIDs []string
		if err := tx.Model(&Tile{}).
			Where("board_id = ? AND data_public_id <> ''", b.ID).
			Pluck("data_public_id", &publicIDs).Error; err != nil {
			return err
		}
		repo := &jobs.Repo{DB: tx, Now: s.Now}
		for _, pid := range publicIDs {
			if err := repo.EnqueueImageDelete(userID, pid, s.now().Add(s.CleanupDelay)); err != nil {
				return err
			}
		}

		if err := tx.Where("board_id = ?", b.ID).Delete(&Tile{}).Error; err != nil {
			return err
		}
		return tx.Delete(b).Error
	})
}

// DuplicateBoard copies a board and its tiles into a new private board owned
// by userID.
func (s *Service) DuplicateBoard(ctx context.Context, userID, id string) (*Board, error) {
	var out *Board
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		src, err := loadBoard(tx, id)
		if err != nil {
			return err
		}
		if !src.CanRead(userID) {
			return ErrForbidden
		}
		if !src.CanDuplicate(userID) {
			return ErrNotDuplicable
		}

		var tiles []Tile
		if err := tx.Where("board_id = ?", src.ID).Order("z_index asc, created_at asc").Find(&tiles).Error; err != nil {
			return err
		}

		dst := Board{
			UserID:      userID,
			Title:       src.Title + " (copy)",
			Description: src.Description,
			Icon:        src.Icon,
			Settings:    src.Settings,
			Visibility:  VisibilityPrivate,
			TileCount:   len(tiles),
		}
		dst.applyDefaults()
		if err := tx.Create(&dst).Error; err != nil {
			return err
		}
		for i := range tiles {
			tiles[i].ID = ""
			tiles[i].BoardID = dst.ID
		}
		if len(tiles) > 0 {
			if err := tx.Create(&tiles).Error; err != nil {
				return err
			}
		}
		out = &dst
		return nil
	})
	return out, err
}

func (b *Board) apply(in api.BoardInput) error {
	if in.Title != nil {
		b.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		b.Description = *in.Description
	}
	if in.Icon != nil {
		b.Icon = *in.Icon
	}
	if in.Settings != nil {
		bg := in.Settings.Background
		if bg.Type != "" && !backgroundTypes[bg.Type] {
			return ErrInvalidBoard
		}
		b.Settings = Settings{
			TileColor:   in.Settings.TileColor,
			CanvasColor: in.Settings.CanvasColor,
			Background: Background{
				Type:            bg.Type,
				Color:           bg.Color,
				ForegroundColor: bg.ForegroundColor,
				ImageURL:        bg.ImageURL,
			},
		}
	}
	if in.Visibility != nil {
		switch *in.Visibility {
		case VisibilityPrivate, VisibilityPublic:
			b.Visibility = *in.Visibility
		default:
			return ErrInvalidBoard
		}
	}
	if in.AllowDuplication != nil {
		b.AllowDuplication = *in.AllowDuplication
	}
	return nil
}

func (b *Board) API() api.Board {
	return api.Board{
		ID:          b.ID,
		UserID:      b.UserID,
		Title:       b.Title,
		Description: b.Description,
		Icon:        b.Icon,
		Settings: api.BoardSettings{
			TileColor:   b.Settings.TileColor,
			CanvasColor: b.Settings.CanvasColor,
			Background: api.Background{
				Type:            b.Settings.Background.Type,
				Color:           b.Settings.Background.Color,
				ForegroundColor: b.Settings.Background.ForegroundColor,
				ImageURL:        b.Settings.Background.ImageURL,
			},
		},
		Visibility:       b.Visibility,
		AllowDuplication: b.AllowDuplication,
		TileCount:        b.TileCount,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func loadBoard(tx *gorm.DB, id string) (*Board, error) {
	var b Board
	if err := tx.Where("id = ?", id).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func ownedBoard(tx *gorm.DB, userID, id string) (*Board, error) {
	b, err := loadBoard(tx, id)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	return b, nil
}
