package storage

import (
	"context"
	"errors"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
	"gorm.io/gorm"
)

var _ ports.VenueRepository = (*SQLiteAdapter)(nil)

// SaveVenue creates or replaces a venue.
func (a *SQLiteAdapter) SaveVenue(ctx context.Context, v domain.Venue) error {
	model := venueToModel(v)
	return a.db.WithContext(ctx).Save(&model).Error
}

// GetVenue retrieves a venue by ID.
func (a *SQLiteAdapter) GetVenue(ctx context.Context, id string) (*domain.Venue, error) {
	var m VenueModel
	if err := a.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrVenueNotFound
		}
		return nil, err
	}
	v := venueToDomain(m)
	return &v, nil
}

// ListVenues returns all venues, newest first.
func (a *SQLiteAdapter) ListVenues(ctx context.Context) ([]domain.Venue, error) {
	var models []VenueModel
	if err := a.db.WithContext(ctx).Order("created_at desc").Find(&models).Error; err != nil {
		return nil, err
	}
	venues := make([]domain.Venue, len(models))
	for i, m := range models {
		venues[i] = venueToDomain(m)
	}
	return venues, nil
}

// DeleteVenue removes a venue and its messages in one transaction.
func (a *SQLiteAdapter) DeleteVenue(ctx context.Context, id string) (int64, error) {
	var purged int64
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&VenueModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrVenueNotFound
		}

		res = tx.Delete(&MessageModel{}, "venue_id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		purged = res.RowsAffected
		return nil
	})
	return purged, err
}
