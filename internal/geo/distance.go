package geo

import "math"

const (
	// EarthRadiusKm is the mean Earth radius used by DistanceKm.
	EarthRadiusKm = 6371.0

	// PrivacyDecimals is the number of decimals kept by ReducePrecision (~100m).
	PrivacyDecimals = 3

	distanceDecimals = 2
)

// ToRadians converts degrees to radians.
func ToRadians(degrees float64) float64 {
	return degrees * (math.Pi / 180)
}

// DistanceKm returns the great-circle distance between a and b using the
// Haversine formula. The result is rounded to two decimal places.
func DistanceKm(a, b Location) float64 {
	dLat := ToRadians(b.Latitude - a.Latitude)
	dLon := ToRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(ToRadians(a.Latitude))*math.Cos(ToRadians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	// Float error can push h marginally past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return roundTo(EarthRadiusKm*c, distanceDecimals)
}

// ReducePrecision rounds a coordinate to PrivacyDecimals decimal places.
// Locations are reduced before they are stored or shared.
func ReducePrecision(coord float64) float64 {
	return roundTo(coord, PrivacyDecimals)
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow10(decimals)
	return math.Round(v*p) / p
}
