package venue

import (
	"context"
	"testing"
	"time"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/core/services/audit"
	"github.com/lcalzada-xor/venuechat/internal/core/services/servicetest"
	"github.com/lcalzada-xor/venuechat/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup() (*Service, *servicetest.MemoryStore, *servicetest.MemoryFeed) {
	store := servicetest.NewMemoryStore()
	feed := servicetest.NewMemoryFeed()
	svc := NewService(store, feed, audit.NewAuditService(store))
	return svc, store, feed
}

func draft(name string) domain.VenueDraft {
	return domain.VenueDraft{
		Name:        name,
		Description: "A place",
		Coordinates: &geo.Location{Latitude: 51.5074, Longitude: -0.1278},
		EntryPrice:  "5",
		Activities:  "music, dancing",
	}
}

func TestService_Create(t *testing.T) {
	svc, store, feed := setup()
	actor := &domain.User{ID: "u1", Email: "u1@example.com", Role: domain.RoleUser}

	v, err := svc.Create(context.Background(), actor, draft(" Jazz Club "))
	require.NoError(t, err)

	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "Jazz Club", v.Name)
	assert.Equal(t, "u1", v.CreatedBy)
	assert.False(t, v.CreatedAt.IsZero())

	stored, err := store.GetVenue(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.Name, stored.Name)

	events := feed.Events()
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventVenueCreated, events[0].Kind)
	assert.Equal(t, v.ID, events[0].VenueID)

	logs, err := store.ListAuditLogs(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.ActionVenueCreate, logs[0].Action)
	assert.Equal(t, "u1", logs[0].UserID)
}

func TestService_CreateAnonymous(t *testing.T) {
	svc, _, _ := setup()
	v, err := svc.Create(context.Background(), nil, draft("Park"))
	require.NoError(t, err)
	assert.Equal(t, domain.AnonymousCreator, v.CreatedBy)
}

func TestService_CreateInvalid(t *testing.T) {
	svc, store, feed := setup()
	d := draft("")
	_, err := svc.Create(context.Background(), nil, d)
	assert.ErrorIs(t, err, domain.ErrValidation)

	venues, _ := store.ListVenues(context.Background())
	assert.Empty(t, venues)
	assert.Empty(t, feed.Events())
}

func TestService_Update(t *testing.T) {
	svc, _, feed := setup()
	ctx := context.Background()
	v, err := svc.Create(ctx, &domain.User{ID: "owner"}, draft("Old"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, &domain.User{ID: "editor"}, v.ID, draft("New"))
	require.NoError(t, err)
	assert.Equal(t, v.ID, updated.ID)
	assert.Equal(t, "New", updated.Name)
	assert.Equal(t, "owner", updated.CreatedBy)
	assert.True(t, v.CreatedAt.Equal(updated.CreatedAt))

	events := feed.Events()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventVenueUpdated, events[1].Kind)

	_, err = svc.Update(ctx, nil, "missing", draft("x"))
	assert.ErrorIs(t, err, domain.ErrVenueNotFound)
}

func TestService_DeleteCascadesMessages(t *testing.T) {
	svc, store, feed := setup()
	ctx := context.Background()
	v, err := svc.Create(ctx, &domain.User{ID: "u1"}, draft("Bar"))
	require.NoError(t, err)

	require.NoError(t, store.SaveMessage(ctx, domain.ChatMessage{ID: "m1", VenueID: v.ID, Message: "hi", Timestamp: time.Now()}))
	require.NoError(t, store.SaveMessage(ctx, domain.ChatMessage{ID: "m2", VenueID: "other", Message: "yo", Timestamp: time.Now()}))

	require.NoError(t, svc.Delete(ctx, &domain.User{ID: "u1"}, v.ID))

	_, err = svc.Get(ctx, v.ID)
	assert.ErrorIs(t, err, domain.ErrVenueNotFound)

	msgs, _ := store.ListMessages(ctx, v.ID, 0)
	assert.Empty(t, msgs)
	others, _ := store.ListMessages(ctx, "other", 0)
	assert.Len(t, others, 1)

	events := feed.Events()
	assert.Equal(t, domain.EventVenueDeleted, events[len(events)-1].Kind)

	logs, _ := store.ListAuditLogs(ctx, 10)
	require.NotEmpty(t, logs)
	assert.Equal(t, domain.ActionMessagePurge, logs[0].Action)

	assert.ErrorIs(t, svc.Delete(ctx, nil, v.ID), domain.ErrVenueNotFound)
}

func TestService_ListNewestFirst(t *testing.T) {
	svc, _, _ := setup()
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	svc.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first, err := svc.Create(ctx, nil, draft("First"))
	require.NoError(t, err)
	second, err := svc.Create(ctx, nil, draft("Second"))
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}
