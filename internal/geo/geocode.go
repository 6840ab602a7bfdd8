package geo

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

var ErrNoMatch = errors.New("address could not be geocoded")

type Geocoder interface {
	Geocode(ctx context.Context, address string) (lat, lon float64, err error)
}

type cityCoordinates struct {
	city     string
	lat, lon float64
}

// CityGeocoder resolves an address by looking for a known city name in it.
// It stands in for a real geocoding provider.
type CityGeocoder struct {
	cities []cityCoordinates
}

func NewCityGeocoder() *CityGeocoder {
	return &CityGeocoder{cities: []cityCoordinates{
		{"chennai", 13.0827, 80.2707},
		{"mumbai", 19.0760, 72.8777},
		{"delhi", 28.7041, 77.1025},
		{"bangalore", 12.9716, 77.5946},
		{"kolkata", 22.5726, 88.3639},
		{"hyderabad", 17.3850, 78.4867},
		{"pune", 18.5204, 73.8567},
		{"ahmedabad", 23.0225, 72.5714},
	}}
}

func (g *CityGeocoder) Geocode(ctx context.Context, address string) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	lower := strings.ToLower(address)
	for _, c := range g.cities {
		if strings.Contains(lower, c.city) {
			return c.lat, c.lon, nil
		}
	}
	return 0, 0, errors.Wrapf(ErrNoMatch, "%q", address)
}
