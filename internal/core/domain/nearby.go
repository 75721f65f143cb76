package domain

import (
	"errors"
	"sort"
	"time"

	"github.com/lcalzada-xor/venuechat/internal/geo"
)

const (
	// DefaultNearbyRadiusKm is the radius inside which other users count as nearby.
	DefaultNearbyRadiusKm = 5.0
	// DefaultNearbyWindow is how recent a location report must be to be considered.
	DefaultNearbyWindow = 15 * time.Minute
)

var ErrInvalidCriteria = errors.New("nearby radius and window must be positive")

// LocationRecord is the last privacy-reduced location reported by a user.
type LocationRecord struct {
	UserID      string       `json:"user_id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name"`
	Location    geo.Location `json:"location"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// NearbyUser is another user inside the radius and recency window of the viewer.
type NearbyUser struct {
	ID          string       `json:"id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name"`
	Location    geo.Location `json:"location"`
	LastUpdated time.Time    `json:"last_updated"`
	DistanceKm  float64      `json:"distance_km"`
}

// NearbyCriteria bounds the nearby-set evaluation.
type NearbyCriteria struct {
	RadiusKm float64       `json:"radius_km"`
	Window   time.Duration `json:"window"`
}

// DefaultNearbyCriteria returns the 5km / 15 minute criteria.
func DefaultNearbyCriteria() NearbyCriteria {
	return NearbyCriteria{
		RadiusKm: DefaultNearbyRadiusKm,
		Window:   DefaultNearbyWindow,
	}
}

// Validate checks that both bounds are positive.
func (c NearbyCriteria) Validate() error {
	if c.RadiusKm <= 0 || c.Window <= 0 {
		return ErrInvalidCriteria
	}
	return nil
}

// IsFresh reports whether a record updated at ts is inside the window ending at now.
// The window start itself is excluded.
func (c NearbyCriteria) IsFresh(ts, now time.Time) bool {
	return ts.After(now.Add(-c.Window))
}

// EvaluateNearby filters records down to the users nearby origin.
//
// The viewer's own record and records without a location are skipped, as are
// records last updated at or before now-Window. The remaining records are kept
// when their rounded distance is at most RadiusKm, and returned sorted by
// distance with ties ordered by user ID.
func EvaluateNearby(selfID string, origin geo.Location, records []LocationRecord, now time.Time, criteria NearbyCriteria) []NearbyUser {
	nearby := make([]NearbyUser, 0)

	for _, rec := range records {
		if rec.UserID == selfID {
			continue
		}
		if rec.UpdatedAt.IsZero() {
			continue
		}
		if !criteria.IsFresh(rec.UpdatedAt, now) {
			continue
		}

		distance := geo.DistanceKm(origin, rec.Location)
		if distance > criteria.RadiusKm {
			continue
		}

		nearby = append(nearby, NearbyUser{
			ID:          rec.UserID,
			Email:       rec.Email,
			DisplayName: rec.DisplayName,
			Location:    rec.Location,
			LastUpdated: rec.UpdatedAt,
			DistanceKm:  distance,
		})
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		if nearby[i].DistanceKm != nearby[j].DistanceKm {
			return nearby[i].DistanceKm < nearby[j].DistanceKm
		}
		return nearby[i].ID < nearby[j].ID
	})

	return nearby
}

// SameNearbySet reports whether two evaluation results carry the same users,
// distances and update times in the same order.
func SameNearbySet(a, b []NearbyUser) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID ||
			a[i].DistanceKm != b[i].DistanceKm ||
			!a[i].LastUpdated.Equal(b[i].LastUpdated) {
			return false
		}
	}
	return true
}
