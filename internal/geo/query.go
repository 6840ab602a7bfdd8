package geo

import (
	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
)

const DefaultRadiusKm = 50.0

// NearQuery builds a $near predicate on the "location" field. Results come
// back sorted nearest first.
func NearQuery(lat, lon, radiusKm float64) (bson.M, error) {
	if !ValidCoordinates(lat, lon) {
		return nil, errors.Wrapf(ErrInvalidCoordinates, "lat=%v lon=%v", lat, lon)
	}
	if radiusKm < 0 {
		return nil, errors.Newf("radius must be zero or greater, got %v", radiusKm)
	}

	return bson.M{
		"location": bson.M{
			"$near": bson.M{
				"$geometry": bson.M{
					"type":        "Point",
					"coordinates": []float64{lon, lat},
				},
				"$maxDistance": KilometersToMeters(radiusKm),
			},
		},
	}, nil
}
