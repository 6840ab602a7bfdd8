package handlers

import (
	"context"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"supplyhub/internal/database"
	"supplyhub/internal/geo"
	"supplyhub/internal/models"
)

type supplierRequest struct {
	Name           *string               `json:"name" binding:"omitempty,max=100"`
	Description    *string               `json:"description" binding:"omitempty,max=500"`
	Category       *string               `json:"category"`
	Address        *string               `json:"address"`
	City           *string               `json:"city"`
	State          *string               `json:"state"`
	Phone          *string               `json:"phone"`
	Email          *string               `json:"email" binding:"omitempty,email"`
	Website        *string               `json:"website"`
	Latitude       *float64              `json:"latitude"`
	Longitude      *float64              `json:"longitude"`
	BusinessHours  *models.BusinessHours `json:"businessHours"`
	MinimumOrder   *float64              `json:"minimumOrder" binding:"omitempty,min=0"`
	DeliveryRadius *float64              `json:"deliveryRadius" binding:"omitempty,min=0"`
	PaymentMethods []string              `json:"paymentMethods"`
	Certifications []string              `json:"certifications"`
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

// fields returns the $set document for the provided fields.
func (r supplierRequest) fields() (bson.M, string) {
	set := bson.M{}
	if r.Name != nil {
		name := trimmed(r.Name)
		if name == "" {
			return nil, "Please add a supplier name"
		}
		set["name"] = name
	}
	if r.Description != nil {
		set["description"] = trimmed(r.Description)
	}
	if r.Category != nil {
		if !models.ValidSupplierCategory(*r.Category) {
			return nil, "Invalid supplier category"
		}
		set["category"] = *r.Category
	}
	for key, value := range map[string]*string{
		"address": r.Address,
		"city":    r.City,
		"state":   r.State,
		"phone":   r.Phone,
		"email":   r.Email,
		"website": r.Website,
	} {
		if value != nil {
			set[key] = trimmed(value)
		}
	}
	if r.BusinessHours != nil {
		set["businessHours"] = *r.BusinessHours
	}
	if r.MinimumOrder != nil {
		set["minimumOrder"] = *r.MinimumOrder
	}
	if r.DeliveryRadius != nil {
		set["deliveryRadius"] = *r.DeliveryRadius
	}
	if r.PaymentMethods != nil {
		for _, m := range r.PaymentMethods {
			if !models.ValidPaymentMethod(m) {
				return nil, "Invalid payment method " + m
			}
		}
		set["paymentMethods"] = models.StringList(r.PaymentMethods)
	}
	if r.Certifications != nil {
		set["certifications"] = models.StringList(r.Certifications)
	}
	return set, ""
}

// point resolves the supplier location from explicit coordinates or, failing
// that, from the address and city.
func (r supplierRequest) point(ctx context.Context, geocoder geo.Geocoder) (*models.GeoPoint, string) {
	if r.Latitude != nil || r.Longitude != nil {
		if r.Latitude == nil || r.Longitude == nil || !geo.ValidCoordinates(*r.Latitude, *r.Longitude) {
			return nil, "Valid latitude and longitude are required"
		}
		return models.NewGeoPoint(*r.Latitude, *r.Longitude), ""
	}
	if r.Address == nil && r.City == nil {
		return nil, ""
	}
	return locate(ctx, geocoder, strings.TrimSpace(trimmed(r.Address)+", "+trimmed(r.City))), ""
}

// GetNearbySuppliers lists suppliers within radius km of lat/lon, nearest
// first, each annotated with its distance.
func GetNearbySuppliers(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /suppliers/nearby"
		defer handlePanic(c, route)

		lat, latOK, latErr := parseFloatQuery(c, "lat")
		lon, lonOK, lonErr := parseFloatQuery(c, "lon")
		if latErr != nil || lonErr != nil || !latOK || !lonOK || !geo.ValidCoordinates(lat, lon) {
			respondWithError(c, http.StatusBadRequest, route, "Valid latitude and longitude are required")
			return
		}

		radius, ok, err := parseFloatQuery(c, "radius")
		if err != nil || (ok && radius <= 0) {
			respondWithError(c, http.StatusBadRequest, route, "radius must be a positive number")
			return
		}
		if !ok {
			radius = geo.DefaultRadiusKm
		}

		_, limit, err := parsePaginationParams("", c.Query("limit"), 20)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter, err := geo.NearQuery(lat, lon, radius)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}
		if category := strings.TrimSpace(c.Query("category")); category != "" {
			filter["category"] = category
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cursor, err := db.Collection(database.SuppliersCollection).Find(ctx, filter, options.Find().SetLimit(int64(limit)))
		if err != nil {
			log.Printf("[%s] [ERROR] near query failed: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}
		suppliers := []models.Supplier{}
		if err := cursor.All(ctx, &suppliers); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		withDistance(suppliers, lat, lon)

		log.Printf("[%s] returning %d suppliers within %.1f km", route, len(suppliers), radius)
		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(suppliers), "data": suppliers})
	}
}

// withDistance sets Distance on every supplier that has a location. $near
// already returns them nearest first.
func withDistance(suppliers []models.Supplier, lat, lon float64) {
	for i := range suppliers {
		loc := suppliers[i].Location
		if !loc.Valid() {
			continue
		}
		d, err := geo.Distance(lat, lon, loc.Lat(), loc.Lon())
		if err != nil {
			continue
		}
		suppliers[i].Distance = &d
	}
}

func containsInsensitive(value string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(value), Options: "i"}
}

func GetSuppliers(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /suppliers"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"), 10)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := bson.M{}
		if category := strings.TrimSpace(c.Query("category")); category != "" {
			filter["category"] = category
		}
		if city := strings.TrimSpace(c.Query("city")); city != "" {
			filter["city"] = containsInsensitive(city)
		}
		if state := strings.TrimSpace(c.Query("state")); state != "" {
			filter["state"] = containsInsensitive(state)
		}
		if verified := c.Query("verified"); verified != "" {
			filter["isVerified"] = verified == "true"
		}
		if search := strings.TrimSpace(c.Query("search")); search != "" {
			filter["$text"] = bson.M{"$search": search}
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		coll := db.Collection(database.SuppliersCollection)
		total, err := coll.CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		findOptions := options.Find().
			SetSort(bson.D{{Key: "rating", Value: -1}, {Key: "reviewCount", Value: -1}}).
			SetSkip(int64((page - 1) * limit)).
			SetLimit(int64(limit))
		cursor, err := coll.Find(ctx, filter, findOptions)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}
		suppliers := []models.Supplier{}
		if err := cursor.All(ctx, &suppliers); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		respondPage(c, suppliers, len(suppliers), newPagination(page, limit, total))
	}
}

func GetSupplier(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /suppliers/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, "id", route, "Supplier")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var supplier models.Supplier
		err := db.Collection(database.SuppliersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&supplier)
		if err == mongo.ErrNoDocuments {
			respondWithError(c, http.StatusNotFound, route, "Supplier not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		respondData(c, http.StatusOK, supplier)
	}
}

func CreateSupplier(db *mongo.Database, geocoder geo.Geocoder) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /suppliers"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}

		var req supplierRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		for _, required := range []struct {
			value *string
			msg   string
		}{
			{req.Name, "Please add a supplier name"},
			{req.Description, "Please add a description"},
			{req.Category, "Please select a category"},
			{req.Address, "Please add an address"},
			{req.City, "Please add a city"},
			{req.State, "Please add a state"},
			{req.Phone, "Please add a phone number"},
			{req.Email, "Please add an email"},
		} {
			if trimmed(required.value) == "" {
				respondWithError(c, http.StatusBadRequest, route, required.msg)
				return
			}
		}

		set, msg := req.fields()
		if msg != "" {
			respondWithError(c, http.StatusBadRequest, route, msg)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		location, msg := req.point(ctx, geocoder)
		if msg != "" {
			respondWithError(c, http.StatusBadRequest, route, msg)
			return
		}

		now := time.Now().UTC()
		supplier := models.Supplier{
			ID:             primitive.NewObjectID(),
			Name:           set["name"].(string),
			Description:    set["description"].(string),
			Category:       set["category"].(string),
			Location:       location,
			Address:        set["address"].(string),
			City:           set["city"].(string),
			State:          set["state"].(string),
			Phone:          set["phone"].(string),
			Email:          set["email"].(string),
			Website:        trimmed(req.Website),
			BusinessHours:  models.DefaultBusinessHours(),
			PaymentMethods: models.StringList{models.PaymentMethodCash},
			Certifications: models.StringList{},
			Owner:          actor.ID,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if req.BusinessHours != nil {
			supplier.BusinessHours = *req.BusinessHours
		}
		if req.MinimumOrder != nil {
			supplier.MinimumOrder = *req.MinimumOrder
		}
		if req.DeliveryRadius != nil {
			supplier.DeliveryRadius = *req.DeliveryRadius
		}
		if methods, ok := set["paymentMethods"].(models.StringList); ok {
			supplier.PaymentMethods = methods
		}
		if certs, ok := set["certifications"].(models.StringList); ok {
			supplier.Certifications = certs
		}

		if _, err := db.Collection(database.SuppliersCollection).InsertOne(ctx, supplier); err != nil {
			log.Printf("[%s] [ERROR] insert failed: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		log.Printf("[SUPPLIER] [INFO] supplier %s created by %s", supplier.ID.Hex(), actor.ID.Hex())
		respondData(c, http.StatusCreated, supplier)
	}
}

// canManage reports whether actor may change records that belong to owner.
func canManage(actor models.Actor, owner primitive.ObjectID) bool {
	if actor.IsAdmin() {
		return true
	}
	return !actor.ID.IsZero() && actor.ID == owner
}

// loadOwnedSupplier fetches a supplier the actor owns or, for admins, any
// supplier. It writes the error response itself.
func loadOwnedSupplier(ctx context.Context, c *gin.Context, db *mongo.Database, route string, actor models.Actor, id primitive.ObjectID, action string) (models.Supplier, bool) {
	var supplier models.Supplier
	err := db.Collection(database.SuppliersCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&supplier)
	if err == mongo.ErrNoDocuments {
		respondWithError(c, http.StatusNotFound, route, "Supplier not found")
		return supplier, false
	}
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, route, "server error")
		return supplier, false
	}
	if !canManage(actor, supplier.Owner) {
		respondWithError(c, http.StatusForbidden, route, "Not authorized to "+action+" this supplier")
		return supplier, false
	}
	return supplier, true
}

func UpdateSupplier(db *mongo.Database, geocoder geo.Geocoder) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /suppliers/:id"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id", route, "Supplier")
		if !ok {
			return
		}

		var req supplierRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		set, msg := req.fields()
		if msg != "" {
			respondWithError(c, http.StatusBadRequest, route, msg)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if _, ok := loadOwnedSupplier(ctx, c, db, route, actor, id, "update"); !ok {
			return
		}

		location, msg := req.point(ctx, geocoder)
		if msg != "" {
			respondWithError(c, http.StatusBadRequest, route, msg)
			return
		}
		if location != nil {
			set["location"] = location
		}
		set["updatedAt"] = time.Now().UTC()

		var updated models.Supplier
		err := db.Collection(database.SuppliersCollection).FindOneAndUpdate(ctx,
			bson.M{"_id": id},
			bson.M{"$set": set},
			options.FindOneAndUpdate().SetReturnDocument(options.After),
		).Decode(&updated)
		if err != nil {
			log.Printf("[%s] [ERROR] update failed: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		respondData(c, http.StatusOK, updated)
	}
}

// DeleteSupplier removes the supplier and its catalog.
func DeleteSupplier(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /suppliers/:id"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id", route, "Supplier")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		if _, ok := loadOwnedSupplier(ctx, c, db, route, actor, id, "delete"); !ok {
			return
		}

		if _, err := db.Collection(database.SuppliersCollection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}
		res, err := db.Collection(database.ProductsCollection).DeleteMany(ctx, bson.M{"supplier": id})
		if err != nil {
			log.Printf("[SUPPLIER] [WARN] removing products of %s failed: %v", id.Hex(), err)
		} else {
			log.Printf("[SUPPLIER] [INFO] supplier %s deleted with %d products", id.Hex(), res.DeletedCount)
		}

		respondData(c, http.StatusOK, gin.H{})
	}
}

type supplierOverview struct {
	TotalSuppliers    int     `json:"totalSuppliers" bson:"totalSuppliers"`
	VerifiedSuppliers int     `json:"verifiedSuppliers" bson:"verifiedSuppliers"`
	AvgRating         float64 `json:"avgRating" bson:"avgRating"`
	TotalReviews      int     `json:"totalReviews" bson:"totalReviews"`
}

type categoryStat struct {
	Category  string  `json:"category" bson:"_id"`
	Count     int     `json:"count" bson:"count"`
	AvgRating float64 `json:"avgRating" bson:"avgRating"`
}

func GetSupplierStats(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /suppliers/stats/overview"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		coll := db.Collection(database.SuppliersCollection)
		var overview []supplierOverview
		var categories []categoryStat

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			cursor, err := coll.Aggregate(gctx, mongo.Pipeline{
				{{Key: "$group", Value: bson.M{
					"_id":               nil,
					"totalSuppliers":    bson.M{"$sum": 1},
					"verifiedSuppliers": bson.M{"$sum": bson.M{"$cond": bson.A{"$isVerified", 1, 0}}},
					"avgRating":         bson.M{"$avg": "$rating"},
					"totalReviews":      bson.M{"$sum": "$reviewCount"},
				}}},
			})
			if err != nil {
				return err
			}
			return cursor.All(gctx, &overview)
		})
		g.Go(func() error {
			cursor, err := coll.Aggregate(gctx, mongo.Pipeline{
				{{Key: "$group", Value: bson.M{
					"_id":       "$category",
					"count":     bson.M{"$sum": 1},
					"avgRating": bson.M{"$avg": "$rating"},
				}}},
				{{Key: "$sort", Value: bson.M{"count": -1}}},
			})
			if err != nil {
				return err
			}
			return cursor.All(gctx, &categories)
		})
		if err := g.Wait(); err != nil {
			log.Printf("[%s] [ERROR] aggregation failed: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		data := gin.H{"overview": supplierOverview{}, "categories": categories}
		if len(overview) > 0 {
			data["overview"] = overview[0]
		}
		if categories == nil {
			data["categories"] = []categoryStat{}
		}
		respondData(c, http.StatusOK, data)
	}
}
