package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
	"github.com/lcalzada-xor/venuechat/internal/telemetry"
)

const (
	// DefaultHistoryLimit is used when History is called without a limit.
	DefaultHistoryLimit = 100
	// MaxHistoryLimit caps a single History page.
	MaxHistoryLimit = 500
)

// Service implements ports.ChatService.
type Service struct {
	venues   ports.VenueRepository
	messages ports.MessageRepository
	feed     ports.ChangeFeed
	now      func() time.Time
}

func NewService(venues ports.VenueRepository, messages ports.MessageRepository, feed ports.ChangeFeed) *Service {
	return &Service{
		venues:   venues,
		messages: messages,
		feed:     feed,
		now:      time.Now,
	}
}

var _ ports.ChatService = (*Service)(nil)

// Send posts text from actor to the venue's channel.
func (s *Service) Send(ctx context.Context, actor *domain.User, venueID, text string) (*domain.ChatMessage, error) {
	msg, err := domain.NewChatMessage(venueID, actor, text, s.now())
	if err != nil {
		return nil, err
	}

	if _, err := s.venues.GetVenue(ctx, venueID); err != nil {
		return nil, err
	}

	msg.ID = uuid.New().String()
	if err := s.messages.SaveMessage(ctx, *msg); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}
	telemetry.ChatMessages.Inc()

	if s.feed != nil {
		if err := s.feed.Publish(ctx, domain.NewMessageEvent(msg)); err != nil {
			slog.Error("failed to publish chat message", "venue_id", venueID, "message_id", msg.ID, "error", err)
		}
	}
	return msg, nil
}

// History returns up to limit of the latest messages of a venue, oldest first.
func (s *Service) History(ctx context.Context, venueID string, limit int) ([]domain.ChatMessage, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	if _, err := s.venues.GetVenue(ctx, venueID); err != nil {
		return nil, err
	}
	return s.messages.ListMessages(ctx, venueID, limit)
}
