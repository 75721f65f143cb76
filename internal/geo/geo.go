package geo

import (
	"errors"
	"math"
)

var (
	ErrNonFiniteCoordinate = errors.New("coordinate is not a finite number")
	ErrLatitudeRange       = errors.New("latitude must be between -90 and 90")
	ErrLongitudeRange      = errors.New("longitude must be between -180 and 180")
)

// Location represents a geographic coordinate.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks that both axes are finite and inside their ranges.
func (l Location) Validate() error {
	if math.IsNaN(l.Latitude) || math.IsInf(l.Latitude, 0) ||
		math.IsNaN(l.Longitude) || math.IsInf(l.Longitude, 0) {
		return ErrNonFiniteCoordinate
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		return ErrLatitudeRange
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return ErrLongitudeRange
	}
	return nil
}

// Reduced returns the location with both axes passed through ReducePrecision.
func (l Location) Reduced() Location {
	return Location{
		Latitude:  ReducePrecision(l.Latitude),
		Longitude: ReducePrecision(l.Longitude),
	}
}

// Provider defines the interface for obtaining the current location.
type Provider interface {
	GetLocation() Location
}

// StaticProvider implements Provider with a fixed location.
type StaticProvider struct {
	Lat float64
	Lng float64
}

// NewStaticProvider creates a provider that always returns the same location.
func NewStaticProvider(lat, lng float64) *StaticProvider {
	return &StaticProvider{
		Lat: lat,
		Lng: lng,
	}
}

// GetLocation returns the fixed location.
func (s *StaticProvider) GetLocation() Location {
	return Location{
		Latitude:  s.Lat,
		Longitude: s.Lng,
	}
}
