package board

import (
	"context"
	"errors"

	"pinned/internal/api"
	"pinned/internal/jobs"

	"gorm.io/gorm"
)

func (s *Service) ListTiles(ctx context.Context, userID, boardID string) ([]Tile, error) {
	db := s.DB.WithContext(ctx)
	b, err := loadBoard(db, boardID)
	if err != nil {
		return nil, err
	}
	if !b.CanRead(userID) {
		return nil, ErrForbidden
	}

	var rows []Tile
	if err := db.Where("board_id = ?", boardID).
		Order("z_index asc, created_at asc, id asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) GetTile(ctx context.Context, userID, boardID, tileID string) (*Tile, error) {
	db := s.DB.WithContext(ctx)
	b, err := loadBoard(db, boardID)
	if err != nil {
		return nil, err
	}
	if !b.CanRead(userID) {
		return nil, ErrForbidden
	}
	return loadTile(db, boardID, tileID)
}

func (s *Service) CreateTile(ctx context.Context, userID, boardID string, in api.TileInput) (*Tile, error) {
	if !in.Type.Valid() {
		return nil, ErrInvalidTile
	}

	var out Tile
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		b, err := ownedBoard(tx, userID, boardID)
		if err != nil {
			return err
		}
		out = newTile(b.ID, in)
		if err := tx.Create(&out).Error; err != nil {
			return err
		}
		return tx.Model(&Board{}).Where("id = ?", b.ID).
			Update("tile_count", gorm.Expr("tile_count + ?", 1)).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateTile replaces the top-level fields present in p. The tile type is
// fixed at creation.
func (s *Service) UpdateTile(ctx context.Context, userID, boardID, tileID string, p api.TilePatch) (*Tile, error) {
	var out *Tile
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ownedBoard(tx, userID, boardID); err != nil {
			return err
		}
		t, err := loadTile(tx, boardID, tileID)
		if err != nil {
			return err
		}
		if p.Type != nil && string(*p.Type) != t.Type {
			return ErrTypeImmutable
		}

		oldPublicID := t.Data.PublicID
		t.apply(p)
		if err := tx.Save(t).Error; err != nil {
			return err
		}
		if oldPublicID != "" && oldPublicID != t.Data.PublicID {
			if err := s.enqueueCleanup(tx, userID, oldPublicID); err != nil {
				return err
			}
		}
		out = t
		return nil
	})
	return out, err
}

func (s *Service) DeleteTile(ctx context.Context, userID, boardID, tileID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := ownedBoard(tx, userID, boardID); err != nil {
			return err
		}
		t, err := loadTile(tx, boardID, tileID)
		if err != nil {
			return err
		}
		if err := tx.Delete(t).Error; err != nil {
			return err
		}
		if err := tx.Model(&Board{}).Where("id = ? AND tile_count > 0", boardID).
			Update("tile_count", gorm.Expr("tile_count - ?", 1)).Error; err != nil {
			return err
		}
		if t.Data.PublicID != "" {
			return s.enqueueCleanup(tx, userID, t.Data.PublicID)
		}
		return nil
	})
}

func (s *Service) enqueueCleanup(tx *gorm.DB, userID, publicID string) error {
	repo := &jobs.Repo{DB: tx, Now: s.Now}
	return repo.EnqueueImageDelete(userID, publicID, s.now().Add(s.CleanupDelay))
}

func loadTile(tx *gorm.DB, boardID, tileID string) (*Tile, error) {
	var t Tile
	if err := tx.Where("id = ? AND board_id = ?", tileID, boardID).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}
