// Package geo computes great-circle distances and builds radius queries
// against the supplier and user location indexes.
package geo

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/golang/geo/s2"
)

const EarthRadiusKm = 6371.0

var ErrInvalidCoordinates = errors.New("invalid coordinates")

// ValidCoordinates reports whether lat/lon are inside the WGS84 ranges.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// Distance returns the haversine distance in kilometers between two points
// given in degrees, rounded to 2 decimal places.
func Distance(lat1, lon1, lat2, lon2 float64) (float64, error) {
	if !ValidCoordinates(lat1, lon1) {
		return 0, errors.Wrapf(ErrInvalidCoordinates, "lat=%v lon=%v", lat1, lon1)
	}
	if !ValidCoordinates(lat2, lon2) {
		return 0, errors.Wrapf(ErrInvalidCoordinates, "lat=%v lon=%v", lat2, lon2)
	}

	// s2.LatLng.Distance is the haversine formula on the unit sphere.
	angle := s2.LatLngFromDegrees(lat1, lon1).Distance(s2.LatLngFromDegrees(lat2, lon2))
	km := angle.Radians() * EarthRadiusKm
	return math.Round(km*100) / 100, nil
}

// KilometersToMeters converts a radius for $maxDistance, which MongoDB
// evaluates in meters for GeoJSON points.
func KilometersToMeters(km float64) float64 {
	return km * 1000
}
