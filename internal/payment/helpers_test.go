package payment_test

import (
	"time"

	"supplyhub/internal/models"
	"supplyhub/internal/orders"
)

func cancelUpdate() orders.Update {
	return orders.Update{Status: models.OrderStatusCancelled, UpdatedAt: time.Now()}
}
