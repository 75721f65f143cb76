package ports

import (
	"context"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
)

// ChangeFeed distributes change events between service instances.
type ChangeFeed interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
	// Subscribe delivers events on topic (which may contain a "*" token
	// wildcard) to handler until the returned cancel func is called.
	Subscribe(topic string, handler func(domain.ChangeEvent)) (cancel func(), err error)
}

// LocationStore holds the current location record of every active user.
// Records expire once they can no longer be considered nearby.
type LocationStore interface {
	PutLocation(ctx context.Context, record domain.LocationRecord) error
	GetLocation(ctx context.Context, userID string) (domain.LocationRecord, bool, error)
	ListLocations(ctx context.Context) ([]domain.LocationRecord, error)
}

// LocationPersister queues location records for durable storage.
type LocationPersister interface {
	Persist(record domain.LocationRecord)
}
