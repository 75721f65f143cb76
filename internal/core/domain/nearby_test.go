package domain

import (
	"testing"
	"time"

	"github.com/lcalzada-xor/venuechat/internal/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateNearby(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	origin := geo.Location{Latitude: 40.0, Longitude: -3.0}
	fresh := now.Add(-time.Minute)

	records := []LocationRecord{
		{UserID: "self", Location: origin, UpdatedAt: fresh},
		{UserID: "north-2km", Location: geo.Location{Latitude: 40.02, Longitude: -3.0}, UpdatedAt: fresh},
		{UserID: "north-1km", Location: geo.Location{Latitude: 40.01, Longitude: -3.0}, UpdatedAt: fresh},
		{UserID: "edge", Location: geo.Location{Latitude: 40.045, Longitude: -3.0}, UpdatedAt: fresh},
		{UserID: "outside", Location: geo.Location{Latitude: 40.05, Longitude: -3.0}, UpdatedAt: fresh},
		{UserID: "stale", Location: geo.Location{Latitude: 40.01, Longitude: -3.0}, UpdatedAt: now.Add(-DefaultNearbyWindow)},
		{UserID: "never", Location: geo.Location{Latitude: 40.0, Longitude: -3.0}},
	}

	got := EvaluateNearby("self", origin, records, now, DefaultNearbyCriteria())
	require.Len(t, got, 3)

	assert.Equal(t, "north-1km", got[0].ID)
	assert.Equal(t, 1.11, got[0].DistanceKm)
	assert.Equal(t, "north-2km", got[1].ID)
	assert.Equal(t, 2.22, got[1].DistanceKm)
	// 5.0038 km rounds to 5.00, which is still inside the radius.
	assert.Equal(t, "edge", got[2].ID)
	assert.Equal(t, 5.0, got[2].DistanceKm)
}

func TestEvaluateNearby_Window(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	origin := geo.Location{Latitude: 10, Longitude: 10}

	tests := []struct {
		name    string
		updated time.Time
		want    bool
	}{
		{"just now", now, true},
		{"inside window", now.Add(-DefaultNearbyWindow + time.Second), true},
		{"window start", now.Add(-DefaultNearbyWindow), false},
		{"older", now.Add(-time.Hour), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs := []LocationRecord{{UserID: "u1", Location: origin, UpdatedAt: tt.updated}}
			got := EvaluateNearby("viewer", origin, recs, now, DefaultNearbyCriteria())
			assert.Equal(t, tt.want, len(got) == 1)
		})
	}
}

func TestEvaluateNearby_TiesOrderedByID(t *testing.T) {
	now := time.Now()
	origin := geo.Location{Latitude: 40.0, Longitude: -3.0}
	recs := []LocationRecord{
		{UserID: "zed", Location: geo.Location{Latitude: 40.01, Longitude: -3.0}, UpdatedAt: now},
		{UserID: "amy", Location: geo.Location{Latitude: 39.99, Longitude: -3.0}, UpdatedAt: now},
	}

	got := EvaluateNearby("", origin, recs, now, DefaultNearbyCriteria())
	require.Len(t, got, 2)
	assert.Equal(t, got[0].DistanceKm, got[1].DistanceKm)
	assert.Equal(t, "amy", got[0].ID)
	assert.Equal(t, "zed", got[1].ID)
}

func TestEvaluateNearby_EmptyIsNotNil(t *testing.T) {
	got := EvaluateNearby("me", geo.Location{}, nil, time.Now(), DefaultNearbyCriteria())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNearbyCriteria_Validate(t *testing.T) {
	assert.NoError(t, DefaultNearbyCriteria().Validate())
	assert.ErrorIs(t, NearbyCriteria{RadiusKm: 0, Window: time.Minute}.Validate(), ErrInvalidCriteria)
	assert.ErrorIs(t, NearbyCriteria{RadiusKm: 1}.Validate(), ErrInvalidCriteria)
}

func TestSameNearbySet(t *testing.T) {
	ts := time.Now()
	a := []NearbyUser{{ID: "a", DistanceKm: 1, LastUpdated: ts}, {ID: "b", DistanceKm: 2, LastUpdated: ts}}

	assert.True(t, SameNearbySet(a, []NearbyUser{a[0], a[1]}))
	assert.False(t, SameNearbySet(a, a[:1]))
	assert.False(t, SameNearbySet(a, []NearbyUser{a[1], a[0]}))

	moved := []NearbyUser{a[0], {ID: "b", DistanceKm: 2.5, LastUpdated: ts}}
	assert.False(t, SameNearbySet(a, moved))

	refreshed := []NearbyUser{a[0], {ID: "b", DistanceKm: 2, LastUpdated: ts.Add(time.Second)}}
	assert.False(t, SameNearbySet(a, refreshed))
}
