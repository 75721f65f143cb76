package ports

import (
	"context"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/geo"
)

// VenueService manages the shared venue catalogue.
type VenueService interface {
	Create(ctx context.Context, actor *domain.User, draft domain.VenueDraft) (*domain.Venue, error)
	Update(ctx context.Context, actor *domain.User, id string, draft domain.VenueDraft) (*domain.Venue, error)
	Delete(ctx context.Context, actor *domain.User, id string) error
	Get(ctx context.Context, id string) (*domain.Venue, error)
	List(ctx context.Context) ([]domain.Venue, error)
}

// ChatService manages venue chat channels.
type ChatService interface {
	Send(ctx context.Context, actor *domain.User, venueID, text string) (*domain.ChatMessage, error)
	History(ctx context.Context, venueID string, limit int) ([]domain.ChatMessage, error)
}

// NearbyService tracks user locations and answers nearby queries.
type NearbyService interface {
	UpdateLocation(ctx context.Context, user *domain.User, lat, lng float64) (domain.LocationRecord, error)
	Nearby(ctx context.Context, userID string, origin geo.Location) ([]domain.NearbyUser, error)
	// Watch calls onUpdate with the current nearby set and again every time
	// it changes, until cancel is called or ctx ends.
	Watch(ctx context.Context, userID string, origin geo.Location, onUpdate func([]domain.NearbyUser)) (cancel func(), err error)
}
