package storage

import (
	"context"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
)

var _ ports.MessageRepository = (*SQLiteAdapter)(nil)

func (a *SQLiteAdapter) SaveMessage(ctx context.Context, msg domain.ChatMessage) error {
	model := messageToModel(msg)
	return a.db.WithContext(ctx).Create(&model).Error
}

// ListMessages returns the latest limit messages of a venue, oldest first.
func (a *SQLiteAdapter) ListMessages(ctx context.Context, venueID string, limit int) ([]domain.ChatMessage, error) {
	var models []MessageModel
	q := a.db.WithContext(ctx).Where("venue_id = ?", venueID).Order("timestamp desc").Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}

	msgs := make([]domain.ChatMessage, len(models))
	for i, m := range models {
		msgs[len(models)-1-i] = messageToDomain(m)
	}
	return msgs, nil
}
