package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"supplyhub/internal/apperr"
	"supplyhub/internal/database"
	"supplyhub/internal/geo"
	"supplyhub/internal/models"
)

// ProductDescriber fills in catalogue copy for products created without a
// description.
type ProductDescriber interface {
	DescribeProduct(ctx context.Context, name, category string) string
}

type productRequest struct {
	Name                 *string           `json:"name" binding:"omitempty,max=100"`
	Description          *string           `json:"description" binding:"omitempty,max=500"`
	Category             *string           `json:"category"`
	Price                *float64          `json:"price" binding:"omitempty,min=0"`
	Unit                 *string           `json:"unit"`
	Currency             *string           `json:"currency"`
	Supplier             *string           `json:"supplier"`
	IsAvailable          *bool             `json:"isAvailable"`
	MinimumOrderQuantity *int              `json:"minimumOrderQuantity" binding:"omitempty,min=1"`
	StockQuantity        *int              `json:"stockQuantity" binding:"omitempty,min=0"`
	Specifications       map[string]string `json:"specifications"`
	Tags                 []string          `json:"tags"`
}

func (r productRequest) fields() (bson.M, string) {
	set := bson.M{}
	if r.Name != nil {
		name := trimmed(r.Name)
		if name == "" {
			return nil, "Please add a product name"
		}
		set["name"] = name
	}
	if r.Description != nil {
		set["description"] = trimmed(r.Description)
	}
	if r.Category != nil {
		if !models.ValidProductCategory(*r.Category) {
			return nil, "Invalid product category"
		}
		set["category"] = *r.Category
	}
	if r.Price != nil {
		set["price"] = *r.Price
	}
	if r.Unit != nil {
		if !models.ValidUnit(*r.Unit) {
			return nil, "Invalid unit"
		}
		set["unit"] = *r.Unit
	}
	if r.Currency != nil {
		currency := strings.ToUpper(trimmed(r.Currency))
		if !models.ValidCurrency(currency) {
			return nil, "Invalid currency"
		}
		set["currency"] = currency
	}
	if r.IsAvailable != nil {
		set["isAvailable"] = *r.IsAvailable
	}
	if r.MinimumOrderQuantity != nil {
		set["minimumOrderQuantity"] = *r.MinimumOrderQuantity
	}
	if r.StockQuantity != nil {
		set["stockQuantity"] = *r.StockQuantity
	}
	if r.Specifications != nil {
		set["specifications"] = r.Specifications
	}
	if r.Tags != nil {
		set["tags"] = models.StringList(r.Tags)
	}
	return set, ""
}

var productSortFields = map[string]bool{
	"createdAt":     true,
	"updatedAt":     true,
	"price":         true,
	"name":          true,
	"stockQuantity": true,
}

func CompareProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/compare"
		defer handlePanic(c, route)

		name := strings.TrimSpace(c.Query("name"))
		if name == "" {
			respondWithError(c, http.StatusBadRequest, route, "Product name is required")
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
		from, err := parseOrigin(c.Query("location"), radius)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := bson.M{"name": containsInsensitive(name), "isAvailable": true}
		if category := strings.TrimSpace(c.Query("category")); category != "" {
			filter["category"] = category
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		cursor, err := db.Collection(database.ProductsCollection).Find(ctx, filter,
			options.Find().SetSort(bson.D{{Key: "price", Value: 1}}))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}
		products := []models.Product{}
		if err := cursor.All(ctx, &products); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		suppliers, err := suppliersByID(ctx, db, products)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		comparison := compareProducts(products, suppliers, from)
		c.JSON(http.StatusOK, gin.H{"success": true, "count": len(comparison), "data": comparison})
	}
}

func suppliersByID(ctx context.Context, db *mongo.Database, products []models.Product) (map[primitive.ObjectID]models.Supplier, error) {
	ids := make([]primitive.ObjectID, 0, len(products))
	seen := map[primitive.ObjectID]bool{}
	for _, p := range products {
		if !seen[p.Supplier] {
			seen[p.Supplier] = true
			ids = append(ids, p.Supplier)
		}
	}
	out := make(map[primitive.ObjectID]models.Supplier, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	cursor, err := db.Collection(database.SuppliersCollection).Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var suppliers []models.Supplier
	if err := cursor.All(ctx, &suppliers); err != nil {
		return nil, err
	}
	for _, s := range suppliers {
		out[s.ID] = s
	}
	return out, nil
}

func GetProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"), 10)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		filter := bson.M{}
		if supplier := strings.TrimSpace(c.Query("supplier")); supplier != "" {
			id, err := primitive.ObjectIDFromHex(supplier)
			if err != nil {
				respondWithError(c, http.StatusBadRequest, route, "Invalid supplier id")
				return
			}
			filter["supplier"] = id
		}
		if category := strings.TrimSpace(c.Query("category")); category != "" {
			filter["category"] = category
		}
		if available := c.Query("available"); available != "" {
			filter["isAvailable"] = available == "true"
		}
		minPrice, hasMin, errMin := parseFloatQuery(c, "minPrice")
		maxPrice, hasMax, errMax := parseFloatQuery(c, "maxPrice")
		if errMin != nil || errMax != nil {
			respondWithError(c, http.StatusBadRequest, route, "minPrice and maxPrice must be numbers")
			return
		}
		if hasMin || hasMax {
			price := bson.M{}
			if hasMin {
				price["$gte"] = minPrice
			}
			if hasMax {
				price["$lte"] = maxPrice
			}
			filter["price"] = price
		}
		if search := strings.TrimSpace(c.Query("search")); search != "" {
			filter["$text"] = bson.M{"$search": search}
		}

		sortField := c.DefaultQuery("sort", "createdAt")
		if !productSortFields[sortField] {
			respondWithError(c, http.StatusBadRequest, route, "Invalid sort field")
			return
		}
		direction := -1
		if c.Query("order") == "asc" {
			direction = 1
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		coll := db.Collection(database.ProductsCollection)
		total, err := coll.CountDocuments(ctx, filter)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		findOptions := options.Find().
			SetSort(bson.D{{Key: sortField, Value: direction}}).
			SetSkip(int64((page - 1) * limit)).
			SetLimit(int64(limit))
		cursor, err := coll.Find(ctx, filter, findOptions)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}
		products := []models.Product{}
		if err := cursor.All(ctx, &products); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		log.Printf("[%s] returning %d products", route, len(products))
		respondPage(c, products, len(products), newPagination(page, limit, total))
	}
}

func GetProductCategories(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/categories/list"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		values, err := db.Collection(database.ProductsCollection).Distinct(ctx, "category", bson.M{})
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}
		categories := make([]string, 0, len(values))
		for _, v := range values {
			if s, ok := v.(string); ok {
				categories = append(categories, s)
			}
		}
		respondData(c, http.StatusOK, categories)
	}
}

func GetProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, "id", route, "Product")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		var product models.Product
		err := db.Collection(database.ProductsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&product)
		if err == mongo.ErrNoDocuments {
			respondWithError(c, http.StatusNotFound, route, "Product not found")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		respondData(c, http.StatusOK, product)
	}
}

// CreateProduct adds a product to the caller's supplier. Admins name the
// supplier in the body.
func CreateProduct(db *mongo.Database, describer ProductDescriber, defaultCurrency string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /products"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}

		var req productRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		switch {
		case trimmed(req.Name) == "":
			respondWithError(c, http.StatusBadRequest, route, "Please add a product name")
			return
		case req.Category == nil:
			respondWithError(c, http.StatusBadRequest, route, "Please select a category")
			return
		case req.Price == nil:
			respondWithError(c, http.StatusBadRequest, route, "Please add a price")
			return
		case req.Unit == nil:
			respondWithError(c, http.StatusBadRequest, route, "Please select a unit")
			return
		}
		set, msg := req.fields()
		if msg != "" {
			respondWithError(c, http.StatusBadRequest, route, msg)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		supplierID, ok := resolveProductSupplier(ctx, c, db, route, actor, req.Supplier)
		if !ok {
			return
		}

		now := time.Now().UTC()
		product := models.Product{
			ID:                   primitive.NewObjectID(),
			Name:                 set["name"].(string),
			Description:          trimmed(req.Description),
			Category:             *req.Category,
			Price:                *req.Price,
			Unit:                 *req.Unit,
			Currency:             defaultCurrency,
			Supplier:             supplierID,
			IsAvailable:          true,
			MinimumOrderQuantity: 1,
			Images:               models.StringList{},
			Specifications:       req.Specifications,
			Tags:                 models.StringList(req.Tags),
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if currency, ok := set["currency"].(string); ok {
			product.Currency = currency
		}
		if req.IsAvailable != nil {
			product.IsAvailable = *req.IsAvailable
		}
		if req.MinimumOrderQuantity != nil {
			product.MinimumOrderQuantity = *req.MinimumOrderQuantity
		}
		if req.StockQuantity != nil {
			product.StockQuantity = *req.StockQuantity
		}
		if product.Description == "" && describer != nil {
			product.Description = describer.DescribeProduct(ctx, product.Name, product.Category)
		}

		if _, err := db.Collection(database.ProductsCollection).InsertOne(ctx, product); err != nil {
			log.Printf("[%s] [ERROR] insert failed: %v", route, err)
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}

		log.Printf("[PRODUCT] [INFO] product %s created for supplier %s", product.ID.Hex(), supplierID.Hex())
		respondData(c, http.StatusCreated, product)
	}
}

// productSupplierTarget decides which supplier a new product is filed under.
// owned is the caller's own supplier profile, nil when they have none. Only
// admins may name another supplier.
func productSupplierTarget(actor models.Actor, requested string, owned *models.Supplier) (primitive.ObjectID, error) {
	if actor.IsAdmin() && requested != "" {
		id, err := primitive.ObjectIDFromHex(requested)
		if err != nil {
			return primitive.NilObjectID, apperr.Validation("Invalid supplier id")
		}
		return id, nil
	}
	if owned == nil {
		return primitive.NilObjectID, apperr.Forbidden("You must create a supplier profile first")
	}
	return owned.ID, nil
}

// resolveProductSupplier picks the supplier a new product belongs to: the
// caller's own profile, or for admins the one given in the body.
func resolveProductSupplier(ctx context.Context, c *gin.Context, db *mongo.Database, route string, actor models.Actor, requested *string) (primitive.ObjectID, bool) {
	suppliers := db.Collection(database.SuppliersCollection)
	target := trimmed(requested)

	var owned *models.Supplier
	if !actor.IsAdmin() || target == "" {
		var supplier models.Supplier
		err := suppliers.FindOne(ctx, bson.M{"owner": actor.ID}).Decode(&supplier)
		switch {
		case err == mongo.ErrNoDocuments:
		case err != nil:
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return primitive.NilObjectID, false
		default:
			owned = &supplier
		}
	}

	id, err := productSupplierTarget(actor, target, owned)
	if err != nil {
		respondError(c, route, err)
		return primitive.NilObjectID, false
	}
	if owned != nil {
		return id, true
	}

	n, err := suppliers.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, route, "server error")
		return primitive.NilObjectID, false
	}
	if n == 0 {
		respondWithError(c, http.StatusNotFound, route, "Supplier not found")
		return primitive.NilObjectID, false
	}
	return id, true
}

// loadOwnedProduct fetches a product whose supplier the actor owns. Admins
// may touch any product.
func loadOwnedProduct(ctx context.Context, c *gin.Context, db *mongo.Database, route string, actor models.Actor, id primitive.ObjectID, action string) (models.Product, bool) {
	var product models.Product
	err := db.Collection(database.ProductsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if err == mongo.ErrNoDocuments {
		respondWithError(c, http.StatusNotFound, route, "Product not found")
		return product, false
	}
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, route, "server error")
		return product, false
	}
	if actor.IsAdmin() {
		return product, true
	}

	// An orphaned product keeps a zero owner, which only admins can manage.
	var supplier models.Supplier
	err = db.Collection(database.SuppliersCollection).FindOne(ctx, bson.M{"_id": product.Supplier},
		options.FindOne().SetProjection(bson.M{"owner": 1}),
	).Decode(&supplier)
	if err != nil && err != mongo.ErrNoDocuments {
		respondWithError(c, http.StatusInternalServerError, route, "server error")
		return product, false
	}
	if !canManage(actor, supplier.Owner) {
		respondWithError(c, http.StatusForbidden, route, "Not authorized to "+action+" this product")
		return product, false
	}
	return product, true
}

func UpdateProduct(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /products/:id"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id", route, "Product")
		if !ok {
			return
		}

		var req productRequest
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

		if _, ok := loadOwnedProduct(ctx, c, db, route, actor, id, "update"); !ok {
			return
		}
		set["updatedAt"] = time.Now().UTC()

		var updated models.Product
		err := db.Collection(database.ProductsCollection).FindOneAndUpdate(ctx,
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

func DeleteProduct(db *mongo.Database, uploadDir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "DELETE /products/:id"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id", route, "Product")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		product, ok := loadOwnedProduct(ctx, c, db, route, actor, id, "delete")
		if !ok {
			return
		}

		if _, err := db.Collection(database.ProductsCollection).DeleteOne(ctx, bson.M{"_id": id}); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "server error")
			return
		}
		for _, image := range product.Images {
			if err := safeDeleteUpload(uploadDir, image); err != nil {
				log.Printf("[UPLOAD] [WARN] removing %s: %v", image, err)
			}
		}

		log.Printf("[PRODUCT] [INFO] product %s deleted", id.Hex())
		respondData(c, http.StatusOK, gin.H{})
	}
}

type productOverview struct {
	TotalProducts     int     `json:"totalProducts" bson:"totalProducts"`
	AvailableProducts int     `json:"availableProducts" bson:"availableProducts"`
	AvgPrice          float64 `json:"avgPrice" bson:"avgPrice"`
	TotalValue        float64 `json:"totalValue" bson:"totalValue"`
}

type productCategoryStat struct {
	Category  string  `json:"category" bson:"_id"`
	Count     int     `json:"count" bson:"count"`
	AvgPrice  float64 `json:"avgPrice" bson:"avgPrice"`
	Available int     `json:"available" bson:"available"`
}

func GetProductStats(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /products/stats/overview"
		defer handlePanic(c, route)

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		coll := db.Collection(database.ProductsCollection)
		var overview []productOverview
		categories := []productCategoryStat{}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			cursor, err := coll.Aggregate(gctx, mongo.Pipeline{
				{{Key: "$group", Value: bson.M{
					"_id":               nil,
					"totalProducts":     bson.M{"$sum": 1},
					"availableProducts": bson.M{"$sum": bson.M{"$cond": bson.A{"$isAvailable", 1, 0}}},
					"avgPrice":          bson.M{"$avg": "$price"},
					"totalValue":        bson.M{"$sum": bson.M{"$multiply": bson.A{"$price", "$stockQuantity"}}},
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
					"avgPrice":  bson.M{"$avg": "$price"},
					"available": bson.M{"$sum": bson.M{"$cond": bson.A{"$isAvailable", 1, 0}}},
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

		data := gin.H{"overview": productOverview{}, "categories": categories}
		if len(overview) > 0 {
			data["overview"] = overview[0]
		}
		respondData(c, http.StatusOK, data)
	}
}
