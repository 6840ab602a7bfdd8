package handlers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"supplyhub/internal/apperr"
	"supplyhub/internal/models"
	"supplyhub/internal/orders"
)

// SupplierDirectory resolves the supplier profiles a user owns.
type SupplierDirectory interface {
	OwnedSupplierIDs(ctx context.Context, owner primitive.ObjectID) ([]primitive.ObjectID, error)
}

type createOrderItemRequest struct {
	Product  string `json:"product" binding:"required"`
	Quantity int    `json:"quantity" binding:"required"`
}

type createOrderRequest struct {
	SupplierID           string                   `json:"supplierId" binding:"required"`
	Items                []createOrderItemRequest `json:"items" binding:"required"`
	DeliveryAddress      models.DeliveryAddress   `json:"deliveryAddress"`
	DeliveryInstructions string                   `json:"deliveryInstructions"`
	PaymentMethod        string                   `json:"paymentMethod" binding:"required"`
	Notes                string                   `json:"notes"`
}

type statusRequest struct {
	Status            string     `json:"status" binding:"required"`
	TrackingNumber    string     `json:"trackingNumber"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery"`
}

func buildPlaceRequest(userID primitive.ObjectID, req createOrderRequest) (orders.PlaceRequest, error) {
	supplierID, err := primitive.ObjectIDFromHex(strings.TrimSpace(req.SupplierID))
	if err != nil {
		return orders.PlaceRequest{}, apperr.NotFound("Supplier not found")
	}

	items := make([]orders.LineRequest, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := primitive.ObjectIDFromHex(strings.TrimSpace(item.Product))
		if err != nil {
			return orders.PlaceRequest{}, apperr.NotFound("Product %s not found", item.Product)
		}
		items = append(items, orders.LineRequest{ProductID: productID, Quantity: item.Quantity})
	}

	return orders.PlaceRequest{
		UserID:               userID,
		SupplierID:           supplierID,
		Items:                items,
		DeliveryAddress:      req.DeliveryAddress,
		PaymentMethod:        strings.TrimSpace(req.PaymentMethod),
		DeliveryInstructions: strings.TrimSpace(req.DeliveryInstructions),
		Notes:                strings.TrimSpace(req.Notes),
	}, nil
}

func CreateOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		placeReq, err := buildPlaceRequest(actor.ID, req)
		if err != nil {
			respondError(c, route, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*requestTimeout)
		defer cancel()

		placement, err := svc.Place(ctx, placeReq)
		if err != nil {
			respondError(c, route, err)
			return
		}

		log.Println("[ORDER] [INFO] order created for user:", actor.ID.Hex())
		c.JSON(http.StatusCreated, gin.H{
			"success":       true,
			"data":          placement.Order,
			"paymentIntent": placement.Payment,
		})
	}
}

// GetOrders lists the buyer's own orders, the orders of a supplier's
// profiles, or every order for admins.
func GetOrders(svc *orders.Service, directory SupplierDirectory) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"), 10)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		filter := orders.Filter{Status: strings.TrimSpace(c.Query("status")), Page: page, Limit: limit}
		switch actor.Role {
		case models.RoleAdmin:
		case models.RoleSupplier:
			ids, err := directory.OwnedSupplierIDs(ctx, actor.ID)
			if err != nil {
				respondError(c, route, errors.Wrap(err, "owned suppliers"))
				return
			}
			if len(ids) == 0 {
				respondPage(c, []models.Order{}, 0, newPagination(page, limit, 0))
				return
			}
			filter.Suppliers = ids
		default:
			filter.User = &actor.ID
		}

		list, total, err := svc.List(ctx, filter)
		if err != nil {
			respondError(c, route, err)
			return
		}
		if list == nil {
			list = []models.Order{}
		}

		respondPage(c, list, len(list), newPagination(page, limit, total))
	}
}

func GetOrderStats(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/stats/overview"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		stats, err := svc.Stats(ctx, actor.ID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondData(c, http.StatusOK, stats)
	}
}

// TrackOrder is public: anyone holding the order id sees its progress.
func TrackOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/track/:id"
		defer handlePanic(c, route)

		id, ok := objectIDParam(c, "id", route, "Order")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		tracking, err := svc.Track(ctx, id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondData(c, http.StatusOK, tracking)
	}
}

func GetOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id", route, "Order")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
		defer cancel()

		order, err := svc.Get(ctx, actor, id)
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondData(c, http.StatusOK, order)
	}
}

func UpdateOrderStatus(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /orders/:id/status"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id", route, "Order")
		if !ok {
			return
		}

		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*requestTimeout)
		defer cancel()

		order, err := svc.UpdateStatus(ctx, actor, id, orders.StatusChange{
			Status:            strings.TrimSpace(req.Status),
			TrackingNumber:    req.TrackingNumber,
			EstimatedDelivery: req.EstimatedDelivery,
		})
		if err != nil {
			respondError(c, route, err)
			return
		}
		respondData(c, http.StatusOK, order)
	}
}

func CancelOrder(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /orders/:id/cancel"
		defer handlePanic(c, route)

		actor, ok := requireActor(c, route)
		if !ok {
			return
		}
		id, ok := objectIDParam(c, "id", route, "Order")
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*requestTimeout)
		defer cancel()

		order, err := svc.Cancel(ctx, actor, id)
		if err != nil {
			respondError(c, route, err)
			return
		}

		log.Println("[ORDER] [INFO] order cancelled:", id.Hex())
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Order cancelled successfully", "data": order})
	}
}
