package orders

import (
	"time"

	"supplyhub/internal/models"
)

type TimelineEntry struct {
	Status      string    `json:"status"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
}

// Timeline synthesizes the tracking history from the order's current state.
func Timeline(order models.Order) []TimelineEntry {
	timeline := []TimelineEntry{{
		Status:      "Order Placed",
		Date:        order.CreatedAt,
		Description: "Order has been placed successfully",
	}}

	if order.Status == models.OrderStatusCancelled {
		return append(timeline, TimelineEntry{
			Status:      "Cancelled",
			Date:        order.UpdatedAt,
			Description: "Order has been cancelled",
		})
	}

	rank := models.StatusRank(order.Status)
	if rank >= models.StatusRank(models.OrderStatusConfirmed) {
		timeline = append(timeline, TimelineEntry{
			Status:      "Order Confirmed",
			Date:        order.UpdatedAt,
			Description: "Order has been confirmed by supplier",
		})
	}
	if rank >= models.StatusRank(models.OrderStatusProcessing) {
		timeline = append(timeline, TimelineEntry{
			Status:      "Processing",
			Date:        order.UpdatedAt,
			Description: "Order is being processed",
		})
	}
	if rank >= models.StatusRank(models.OrderStatusShipped) {
		description := "Order has been shipped"
		if order.TrackingNumber != "" {
			description = "Order shipped with tracking: " + order.TrackingNumber
		}
		timeline = append(timeline, TimelineEntry{
			Status:      "Shipped",
			Date:        order.UpdatedAt,
			Description: description,
		})
	}
	if order.Status == models.OrderStatusDelivered {
		date := order.UpdatedAt
		if order.ActualDelivery != nil {
			date = *order.ActualDelivery
		}
		timeline = append(timeline, TimelineEntry{
			Status:      "Delivered",
			Date:        date,
			Description: "Order has been delivered successfully",
		})
	}

	return timeline
}
