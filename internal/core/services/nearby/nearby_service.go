package nearby

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
	"github.com/lcalzada-xor/venuechat/internal/geo"
	"github.com/lcalzada-xor/venuechat/internal/telemetry"
)

// DefaultRefreshInterval is how often live watches are re-evaluated without
// any location event, so that stale users drop out.
const DefaultRefreshInterval = 30 * time.Second

// Config tunes the nearby service.
type Config struct {
	Criteria        domain.NearbyCriteria
	RefreshInterval time.Duration
}

// Service implements ports.NearbyService. Location reports flow through the
// change feed; every instance keeps its presence cache current from the feed
// and re-evaluates its own live watches.
type Service struct {
	store     ports.LocationStore
	users     ports.UserRepository
	persister ports.LocationPersister
	feed      ports.ChangeFeed
	criteria  domain.NearbyCriteria
	refresh   time.Duration
	now       func() time.Time

	mu      sync.Mutex
	nextID  int
	watches map[int]*watch
}

type watch struct {
	mu       sync.Mutex
	userID   string
	origin   geo.Location
	last     []domain.NearbyUser
	onUpdate func([]domain.NearbyUser)
	closed   bool
}

// NewService wires the nearby service. users and persister may be nil, in
// which case locations are neither warmed from nor written to durable storage.
func NewService(store ports.LocationStore, users ports.UserRepository, persister ports.LocationPersister, feed ports.ChangeFeed, cfg Config) (*Service, error) {
	if cfg.Criteria == (domain.NearbyCriteria{}) {
		cfg.Criteria = domain.DefaultNearbyCriteria()
	}
	if err := cfg.Criteria.Validate(); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}

	return &Service{
		store:     store,
		users:     users,
		persister: persister,
		feed:      feed,
		criteria:  cfg.Criteria,
		refresh:   cfg.RefreshInterval,
		now:       time.Now,
		watches:   make(map[int]*watch),
	}, nil
}

var _ ports.NearbyService = (*Service)(nil)

// Criteria returns the radius and window in use.
func (s *Service) Criteria() domain.NearbyCriteria {
	return s.criteria
}

// UpdateLocation stores the privacy-reduced location of user and announces it.
func (s *Service) UpdateLocation(ctx context.Context, user *domain.User, lat, lng float64) (domain.LocationRecord, error) {
	if user == nil || user.ID == "" {
		return domain.LocationRecord{}, domain.ErrUnauthenticated
	}

	loc := geo.Location{Latitude: lat, Longitude: lng}
	if err := loc.Validate(); err != nil {
		return domain.LocationRecord{}, domain.NewValidationError("location", err.Error())
	}

	rec := domain.LocationRecord{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Location:    loc.Reduced(),
		UpdatedAt:   s.now().UTC(),
	}

	if err := s.store.PutLocation(ctx, rec); err != nil {
		return domain.LocationRecord{}, fmt.Errorf("failed to cache location: %w", err)
	}
	if s.persister != nil {
		s.persister.Persist(rec)
	}

	if s.feed == nil {
		s.handleLocation(rec)
	} else if err := s.feed.Publish(ctx, domain.NewLocationEvent(rec)); err != nil {
		slog.Error("failed to publish location", "user_id", rec.UserID, "error", err)
		s.handleLocation(rec)
	}

	return rec, nil
}

// Nearby evaluates the nearby set of userID around origin once. Distances are
// measured from origin rounded to its reduced precision.
func (s *Service) Nearby(ctx context.Context, userID string, origin geo.Location) ([]domain.NearbyUser, error) {
	if err := origin.Validate(); err != nil {
		return nil, domain.NewValidationError("origin", err.Error())
	}
	records, err := s.store.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	telemetry.NearbyEvaluations.WithLabelValues("query").Inc()
	return domain.EvaluateNearby(userID, origin.Reduced(), records, s.now(), s.criteria), nil
}

// Watch registers a live nearby subscription. onUpdate receives the initial
// set before Watch returns and is then called only when the set changes.
// Calls for one watch never overlap. As in Nearby, the origin is rounded to
// its reduced precision before any distance is measured.
func (s *Service) Watch(ctx context.Context, userID string, origin geo.Location, onUpdate func([]domain.NearbyUser)) (func(), error) {
	if err := origin.Validate(); err != nil {
		return nil, domain.NewValidationError("origin", err.Error())
	}

	w := &watch{userID: userID, origin: origin.Reduced(), onUpdate: onUpdate}

	records, err := s.store.ListLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	s.evaluate(w, records, true)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watches[id] = w
	s.mu.Unlock()
	telemetry.ActiveWatches.Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watches, id)
			s.mu.Unlock()

			w.mu.Lock()
			w.closed = true
			w.mu.Unlock()
			telemetry.ActiveWatches.Dec()
		})
	}
	stop := context.AfterFunc(ctx, cancel)

	return func() {
		stop()
		cancel()
	}, nil
}

// Serve warms the presence cache, follows the location topic and refreshes
// live watches until ctx is done.
func (s *Service) Serve(ctx context.Context) error {
	if err := s.warm(ctx); err != nil {
		slog.Warn("failed to warm presence cache", "error", err)
	}

	if s.feed != nil {
		unsubscribe, err := s.feed.Subscribe(domain.TopicLocations, func(ev domain.ChangeEvent) {
			if ev.Location == nil {
				return
			}
			if err := s.store.PutLocation(context.Background(), *ev.Location); err != nil {
				slog.Error("failed to cache location event", "user_id", ev.Location.UserID, "error", err)
			}
			s.handleLocation(*ev.Location)
		})
		if err != nil {
			return fmt.Errorf("subscribe to locations: %w", err)
		}
		defer unsubscribe()
	}

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.refreshAll(ctx)
		}
	}
}

func (s *Service) warm(ctx context.Context) error {
	if s.users == nil {
		return nil
	}
	records, err := s.users.ListLocationsSince(ctx, s.now().Add(-s.criteria.Window))
	if err != nil {
		return err
	}
	for _, rec := range records {
		if err := s.store.PutLocation(ctx, rec); err != nil {
			return err
		}
	}
	slog.Info("presence cache warmed", "records", len(records))
	return nil
}

// handleLocation moves the watches owned by the reporting user and
// re-evaluates every live watch.
func (s *Service) handleLocation(rec domain.LocationRecord) {
	for _, w := range s.snapshotWatches() {
		if w.userID == rec.UserID {
			w.mu.Lock()
			w.origin = rec.Location
			w.mu.Unlock()
		}
	}
	s.refreshAll(context.Background())
}

func (s *Service) refreshAll(ctx context.Context) {
	watches := s.snapshotWatches()
	if len(watches) == 0 {
		return
	}

	records, err := s.store.ListLocations(ctx)
	if err != nil {
		slog.Error("failed to list locations for refresh", "error", err)
		return
	}
	for _, w := range watches {
		s.evaluate(w, records, false)
	}
}

func (s *Service) evaluate(w *watch, records []domain.LocationRecord, initial bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	telemetry.NearbyEvaluations.WithLabelValues("watch").Inc()
	result := domain.EvaluateNearby(w.userID, w.origin, records, s.now(), s.criteria)
	if !initial && domain.SameNearbySet(w.last, result) {
		return
	}
	w.last = result
	w.onUpdate(result)
}

func (s *Service) snapshotWatches() []*watch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*watch, 0, len(s.watches))
	for _, w := range s.watches {
		out = append(out, w)
	}
	return out
}

func (s *Service) String() string {
	return "nearby-service"
}
