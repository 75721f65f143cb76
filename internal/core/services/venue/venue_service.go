package venue

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

// Service implements ports.VenueService. Every change is persisted first and
// then published on the change feed.
type Service struct {
	repo  ports.VenueRepository
	feed  ports.ChangeFeed
	audit ports.AuditService
	now   func() time.Time
}

// NewService creates a venue service. audit may be nil.
func NewService(repo ports.VenueRepository, feed ports.ChangeFeed, audit ports.AuditService) *Service {
	return &Service{
		repo:  repo,
		feed:  feed,
		audit: audit,
		now:   time.Now,
	}
}

var _ ports.VenueService = (*Service)(nil)

// Create validates the draft and stores a new venue owned by actor.
func (s *Service) Create(ctx context.Context, actor *domain.User, draft domain.VenueDraft) (*domain.Venue, error) {
	createdBy := ""
	if actor != nil {
		createdBy = actor.ID
	}

	v, err := domain.NewVenue(draft, createdBy)
	if err != nil {
		return nil, err
	}
	v.ID = uuid.New().String()
	v.CreatedAt = s.now().UTC()

	if err := s.repo.SaveVenue(ctx, *v); err != nil {
		return nil, fmt.Errorf("failed to save venue: %w", err)
	}

	s.publish(ctx, domain.NewVenueEvent(domain.EventVenueCreated, v, s.now()))
	s.record(ctx, actor, domain.ActionVenueCreate, v.ID, v.Name)
	return v, nil
}

// Update replaces the editable fields of an existing venue.
func (s *Service) Update(ctx context.Context, actor *domain.User, id string, draft domain.VenueDraft) (*domain.Venue, error) {
	v, err := s.repo.GetVenue(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := v.ApplyDraft(draft); err != nil {
		return nil, err
	}

	if err := s.repo.SaveVenue(ctx, *v); err != nil {
		return nil, fmt.Errorf("failed to save venue: %w", err)
	}

	s.publish(ctx, domain.NewVenueEvent(domain.EventVenueUpdated, v, s.now()))
	s.record(ctx, actor, domain.ActionVenueUpdate, v.ID, v.Name)
	return v, nil
}

// Delete removes a venue and its chat history.
func (s *Service) Delete(ctx context.Context, actor *domain.User, id string) error {
	v, err := s.repo.GetVenue(ctx, id)
	if err != nil {
		return err
	}

	purged, err := s.repo.DeleteVenue(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete venue: %w", err)
	}

	s.publish(ctx, domain.NewVenueEvent(domain.EventVenueDeleted, v, s.now()))
	s.record(ctx, actor, domain.ActionVenueDelete, v.ID, v.Name)
	if purged > 0 {
		s.record(ctx, actor, domain.ActionMessagePurge, v.ID, fmt.Sprintf("%d messages", purged))
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Venue, error) {
	return s.repo.GetVenue(ctx, id)
}

// List returns all venues, newest first.
func (s *Service) List(ctx context.Context) ([]domain.Venue, error) {
	return s.repo.ListVenues(ctx)
}

// publish is best effort; the change is already stored.
func (s *Service) publish(ctx context.Context, ev domain.ChangeEvent) {
	telemetry.VenueChanges.WithLabelValues(string(ev.Kind)).Inc()
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, ev); err != nil {
		slog.Error("failed to publish venue event", "kind", ev.Kind, "venue_id", ev.VenueID, "error", err)
	}
}

func (s *Service) record(ctx context.Context, actor *domain.User, action domain.AuditAction, target, details string) {
	if s.audit == nil {
		return
	}
	if actor != nil {
		ctx = domain.WithActor(ctx, actor)
	}
	if err := s.audit.Log(ctx, action, target, details); err != nil {
		slog.Warn("failed to audit venue change", "action", action, "venue_id", target, "error", err)
	}
}
