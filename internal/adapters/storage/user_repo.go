package storage

import (
	"context"
	"errors"
	"time"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ ports.UserRepository = (*SQLiteAdapter)(nil)

// newerLocation keeps a stored location unless the incoming one is at least as recent.
var newerLocation = clause.Where{Exprs: []clause.Expression{clause.Expr{
	SQL: "NOT users.has_location OR julianday(excluded.last_location_update) >= julianday(users.last_location_update)",
}}}

// SaveUser upserts the profile columns of a user. The stored location is untouched.
func (a *SQLiteAdapter) SaveUser(ctx context.Context, user domain.User) error {
	model := UserModel{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Role:        string(user.Role),
		CreatedAt:   user.CreatedAt,
		LastLogin:   user.LastLogin,
	}
	return a.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "display_name", "role", "last_login"}),
	}).Create(&model).Error
}

// GetUser retrieves a user by ID.
func (a *SQLiteAdapter) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var m UserModel
	if err := a.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	u := userToDomain(m)
	return &u, nil
}

// SaveLocationsBatch writes the last location of several users in a single
// transaction. Unknown users get a minimal profile row. A stored location is
// only replaced by one at least as recent.
func (a *SQLiteAdapter) SaveLocationsBatch(ctx context.Context, records []domain.LocationRecord) error {
	if len(records) == 0 {
		return nil
	}

	models := make([]UserModel, len(records))
	for i, r := range records {
		models[i] = UserModel{
			ID:                 r.UserID,
			Email:              r.Email,
			DisplayName:        r.DisplayName,
			Role:               string(domain.RoleUser),
			CreatedAt:          r.UpdatedAt,
			LastLogin:          r.UpdatedAt,
			HasLocation:        true,
			Latitude:           r.Location.Latitude,
			Longitude:          r.Location.Longitude,
			LastLocationUpdate: r.UpdatedAt.UTC(),
		}
	}

	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"has_location", "latitude", "longitude", "last_location_update"}),
			Where:     newerLocation,
		}).CreateInBatches(models, 100).Error
	})
}

// ListLocationsSince returns the location records of users who reported after since.
func (a *SQLiteAdapter) ListLocationsSince(ctx context.Context, since time.Time) ([]domain.LocationRecord, error) {
	var models []UserModel
	if err := a.db.WithContext(ctx).
		Where("has_location = ? AND last_location_update > ?", true, since.UTC()).
		Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]domain.LocationRecord, len(models))
	for i, m := range models {
		records[i] = userToRecord(m)
	}
	return records, nil
}
