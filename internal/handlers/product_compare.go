package handlers

import (
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"supplyhub/internal/geo"
	"supplyhub/internal/models"
	"supplyhub/internal/pricing"
)

type supplierOffer struct {
	SupplierID   primitive.ObjectID `json:"supplierId"`
	SupplierName string             `json:"supplierName"`
	ProductID    primitive.ObjectID `json:"productId"`
	Price        float64            `json:"price"`
	Rating       float64            `json:"rating"`
	ReviewCount  int                `json:"reviewCount"`
	IsVerified   bool               `json:"isVerified"`
	Location     string             `json:"location"`
	Distance     *float64           `json:"distance,omitempty"`
}

type productComparison struct {
	ProductName string          `json:"productName"`
	Category    string          `json:"category"`
	Unit        string          `json:"unit"`
	Variants    int             `json:"variants"`
	PriceRange  pricing.Spread  `json:"priceRange"`
	Suppliers   []supplierOffer `json:"suppliers"`
}

type origin struct {
	lat, lon, radiusKm float64
}

// parseOrigin reads a "lat,lon" pair.
func parseOrigin(location string, radiusKm float64) (*origin, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, nil
	}
	parts := strings.Split(location, ",")
	if len(parts) != 2 {
		return nil, errors.Newf("location must be \"lat,lon\", got %q", location)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, errors.Wrap(err, "location latitude")
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, errors.Wrap(err, "location longitude")
	}
	if !geo.ValidCoordinates(lat, lon) {
		return nil, errors.Wrapf(geo.ErrInvalidCoordinates, "lat=%v lon=%v", lat, lon)
	}
	return &origin{lat: lat, lon: lon, radiusKm: radiusKm}, nil
}

// compareProducts groups products by case-insensitive name and summarizes
// each group's prices. With an origin, suppliers outside the radius or
// without a location are dropped. Products arrive sorted by price.
func compareProducts(products []models.Product, suppliers map[primitive.ObjectID]models.Supplier, from *origin) []productComparison {
	groups := map[string]*productComparison{}
	prices := map[string][]float64{}
	var order []string

	for _, p := range products {
		sup, ok := suppliers[p.Supplier]
		if !ok {
			continue
		}

		offer := supplierOffer{
			SupplierID:   sup.ID,
			SupplierName: sup.Name,
			ProductID:    p.ID,
			Price:        p.Price,
			Rating:       sup.Rating,
			ReviewCount:  sup.ReviewCount,
			IsVerified:   sup.IsVerified,
			Location:     sup.City + ", " + sup.State,
		}
		if from != nil {
			if !sup.Location.Valid() {
				continue
			}
			d, err := geo.Distance(from.lat, from.lon, sup.Location.Lat(), sup.Location.Lon())
			if err != nil || d > from.radiusKm {
				continue
			}
			offer.Distance = &d
		}

		key := strings.ToLower(strings.TrimSpace(p.Name))
		group, ok := groups[key]
		if !ok {
			group = &productComparison{ProductName: p.Name, Category: p.Category, Unit: p.Unit}
			groups[key] = group
			order = append(order, key)
		}
		group.Suppliers = append(group.Suppliers, offer)
		prices[key] = append(prices[key], p.Price)
	}

	out := make([]productComparison, 0, len(order))
	for _, key := range order {
		group := groups[key]
		group.Variants = len(group.Suppliers)
		group.PriceRange = pricing.SpreadOf(prices[key])
		sort.SliceStable(group.Suppliers, func(i, j int) bool {
			return group.Suppliers[i].Price < group.Suppliers[j].Price
		})
		out = append(out, *group)
	}
	return out
}
