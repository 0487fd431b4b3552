package geography

import (
	"fmt"
	"math"
	"strings"

	"googlemaps.github.io/maps"
)

const earthRadiusMeters = 6371000

// GridPrecision is the number of decimals kept by GridKey. Three decimals of
// latitude is roughly 110 m.
const GridPrecision = 3

// ValidCoordinates reports whether lat/lng are within WGS84 bounds.
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// IsNullIsland flags the 0,0 placeholder many feeds emit for unknown points.
func IsNullIsland(lat, lng float64) bool {
	return math.Abs(lat) < 1e-6 && math.Abs(lng) < 1e-6
}

// DistanceMeters is the haversine distance between two points.
func DistanceMeters(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := math.Pi / 180
	dLat := (lat2 - lat1) * toRad
	dLng := (lng2 - lng1) * toRad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*toRad)*math.Cos(lat2*toRad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// Round rounds v to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// GridKey buckets a point into a ~100 m cell.
func GridKey(lat, lng float64) string {
	// adding 0 turns -0 into 0 so both sides of the equator/meridian print the same
	return fmt.Sprintf("%.*f,%.*f", GridPrecision, Round(lat, GridPrecision)+0, GridPrecision, Round(lng, GridPrecision)+0)
}

// NormalizeName converts a string to lowercase with spaces replaced by underscores.
func NormalizeName(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	return strings.Join(strings.Fields(normalized), "_")
}

// LocalityFromComponents picks the most specific city-like name from a
// geocoder result, falling back to the region.
func LocalityFromComponents(components []maps.AddressComponent) string {
	order := []string{"locality", "postal_town", "sublocality", "administrative_area_level_2", "administrative_area_level_1"}
	for _, want := range order {
		for _, c := range components {
			for _, t := range c.Types {
				if t == want {
					return c.LongName
				}
			}
		}
	}
	return ""
}

// MatchesDestination reports whether an address plausibly lies in destination.
func MatchesDestination(address, destination string) bool {
	a := strings.ToLower(address)
	d := strings.ToLower(strings.TrimSpace(destination))
	if d == "" {
		return true
	}
	if strings.Contains(a, d) {
		return true
	}
	// "Cancun, Mexico" style destinations: match on the first segment
	if i := strings.Index(d, ","); i > 0 {
		return strings.Contains(a, strings.TrimSpace(d[:i]))
	}
	return false
}
