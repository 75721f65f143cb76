// Package servicetest provides in-memory doubles of the persistence and
// change-feed ports for service tests.
package servicetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/ports"
)

// MemoryStore is a map-backed ports.Storage.
type MemoryStore struct {
	mu        sync.Mutex
	venues    map[string]domain.Venue
	messages  []domain.ChatMessage
	users     map[string]domain.User
	audit     []domain.AuditLog
	locations map[string]domain.LocationRecord
	Batches   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		venues:    make(map[string]domain.Venue),
		users:     make(map[string]domain.User),
		locations: make(map[string]domain.LocationRecord),
	}
}

var _ ports.Storage = (*MemoryStore)(nil)

func (m *MemoryStore) SaveVenue(ctx context.Context, v domain.Venue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.venues[v.ID] = v
	return nil
}

func (m *MemoryStore) GetVenue(ctx context.Context, id string) (*domain.Venue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.venues[id]
	if !ok {
		return nil, domain.ErrVenueNotFound
	}
	return &v, nil
}

func (m *MemoryStore) ListVenues(ctx context.Context) ([]domain.Venue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Venue, 0, len(m.venues))
	for _, v := range m.venues {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) DeleteVenue(ctx context.Context, id string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.venues[id]; !ok {
		return 0, domain.ErrVenueNotFound
	}
	delete(m.venues, id)

	var purged int64
	kept := m.messages[:0]
	for _, msg := range m.messages {
		if msg.VenueID == id {
			purged++
			continue
		}
		kept = append(kept, msg)
	}
	m.messages = kept
	return purged, nil
}

func (m *MemoryStore) SaveMessage(ctx context.Context, msg domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, venueID string, limit int) ([]domain.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ChatMessage, 0)
	for _, msg := range m.messages {
		if msg.VenueID == venueID {
			out = append(out, msg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *MemoryStore) SaveUser(ctx context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok && u.Location == nil {
		u.Location = prev.Location
		u.LastLocationUpdate = prev.LastLocationUpdate
	}
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStore) GetUser(ctx context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (m *MemoryStore) SaveLocationsBatch(ctx context.Context, records []domain.LocationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Batches++
	for _, r := range records {
		m.locations[r.UserID] = r
	}
	return nil
}

func (m *MemoryStore) ListLocationsSince(ctx context.Context, since time.Time) ([]domain.LocationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.LocationRecord, 0)
	for _, r := range m.locations {
		if r.UpdatedAt.After(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Locations returns a copy of the stored location records.
func (m *MemoryStore) Locations() map[string]domain.LocationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.LocationRecord, len(m.locations))
	for k, v := range m.locations {
		out[k] = v
	}
	return out
}

func (m *MemoryStore) SaveAuditLog(ctx context.Context, log domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.ID = uint(len(m.audit) + 1)
	m.audit = append(m.audit, log)
	return nil
}

func (m *MemoryStore) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.AuditLog, 0, len(m.audit))
	for i := len(m.audit) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.audit[i])
	}
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

// MemoryFeed is a synchronous in-process ports.ChangeFeed. Topic patterns use
// the same "*" single-token wildcard as the broker.
type MemoryFeed struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]subscription
	events []domain.ChangeEvent
}

type subscription struct {
	pattern string
	handler func(domain.ChangeEvent)
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[int]subscription)}
}

var _ ports.ChangeFeed = (*MemoryFeed)(nil)

func (f *MemoryFeed) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	f.mu.Lock()
	f.events = append(f.events, ev)
	handlers := make([]func(domain.ChangeEvent), 0, len(f.subs))
	for _, s := range f.subs {
		if TopicMatches(s.pattern, ev.Topic) {
			handlers = append(handlers, s.handler)
		}
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
	return nil
}

func (f *MemoryFeed) Subscribe(topic string, handler func(domain.ChangeEvent)) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.subs[id] = subscription{pattern: topic, handler: handler}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs, id)
	}, nil
}

// Subscribers returns the number of live subscriptions.
func (f *MemoryFeed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Events returns the events published so far.
func (f *MemoryFeed) Events() []domain.ChangeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ChangeEvent(nil), f.events...)
}

// TopicMatches reports whether topic matches pattern token by token.
func TopicMatches(pattern, topic string) bool {
	p := strings.Split(pattern, ".")
	t := strings.Split(topic, ".")
	if len(p) != len(t) {
		return false
	}
	for i := range p {
		if p[i] != "*" && p[i] != t[i] {
			return false
		}
	}
	return true
}

// MemoryLocations is a map-backed ports.LocationStore without expiry.
type MemoryLocations struct {
	mu      sync.Mutex
	records map[string]domain.LocationRecord
}

func NewMemoryLocations() *MemoryLocations {
	return &MemoryLocations{records: make(map[string]domain.LocationRecord)}
}

var _ ports.LocationStore = (*MemoryLocations)(nil)

func (m *MemoryLocations) PutLocation(ctx context.Context, rec domain.LocationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.UserID] = rec
	return nil
}

func (m *MemoryLocations) GetLocation(ctx context.Context, userID string) (domain.LocationRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[userID]
	return rec, ok, nil
}

func (m *MemoryLocations) ListLocations(ctx context.Context) ([]domain.LocationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.LocationRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	return out, nil
}
