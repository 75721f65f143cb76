package ports

import (
	"context"
	"time"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
)

// VenueRepository persists venues.
type VenueRepository interface {
	SaveVenue(ctx context.Context, venue domain.Venue) error
	GetVenue(ctx context.Context, id string) (*domain.Venue, error)
	// ListVenues returns every venue, newest first.
	ListVenues(ctx context.Context) ([]domain.Venue, error)
	// DeleteVenue removes a venue together with its messages and returns
	// how many messages were removed.
	DeleteVenue(ctx context.Context, id string) (int64, error)
}

// MessageRepository persists chat messages.
type MessageRepository interface {
	SaveMessage(ctx context.Context, msg domain.ChatMessage) error
	// ListMessages returns the latest limit messages of a venue in ascending time order.
	ListMessages(ctx context.Context, venueID string, limit int) ([]domain.ChatMessage, error)
}

// UserRepository mirrors identity-provider profiles and their last location.
type UserRepository interface {
	SaveUser(ctx context.Context, user domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	// SaveLocationsBatch stores the last reported location of several users.
	SaveLocationsBatch(ctx context.Context, records []domain.LocationRecord) error
	// ListLocationsSince returns location records updated after since.
	ListLocationsSince(ctx context.Context, since time.Time) ([]domain.LocationRecord, error)
}

// Storage is the full persistence surface of the service.
type Storage interface {
	VenueRepository
	MessageRepository
	UserRepository
	AuditRepository
	Close() error
}
