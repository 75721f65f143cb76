package presence

import (
	"context"
	"testing"
	"time"

	"github.com/lcalzada-xor/venuechat/internal/core/domain"
	"github.com/lcalzada-xor/venuechat/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := Open("", 15*time.Minute)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndGetLocation(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := domain.LocationRecord{UserID: "u1", Email: "u1@example.com", Location: geo.Location{Latitude: 1.5, Longitude: 2.5}, UpdatedAt: now}
	require.NoError(t, s.PutLocation(ctx, rec))

	got, ok, err := s.GetLocation(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.Location, got.Location)
	assert.Equal(t, "u1@example.com", got.Email)
	assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))

	_, ok, err = s.GetLocation(ctx, "nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPutLocation_KeepsNewest(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	newer := domain.LocationRecord{UserID: "u1", Location: geo.Location{Latitude: 2}, UpdatedAt: now}
	older := domain.LocationRecord{UserID: "u1", Location: geo.Location{Latitude: 1}, UpdatedAt: now.Add(-time.Minute)}

	require.NoError(t, s.PutLocation(ctx, newer))
	require.NoError(t, s.PutLocation(ctx, older))

	got, ok, err := s.GetLocation(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2.0, got.Location.Latitude)
}

func TestPutLocation_IgnoresExpired(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	stale := domain.LocationRecord{UserID: "u1", UpdatedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, s.PutLocation(ctx, stale))

	_, ok, err := s.GetLocation(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListLocations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.PutLocation(ctx, domain.LocationRecord{UserID: id, UpdatedAt: now}))
	}

	recs, err := s.ListLocations(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
}

func TestServe_InMemoryReturnsOnCancel(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Serve(ctx), context.Canceled)
}
